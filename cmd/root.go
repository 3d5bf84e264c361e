package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vivid-sim/vivid-sim/sim"
	"github.com/vivid-sim/vivid-sim/sim/output"
	"github.com/vivid-sim/vivid-sim/sim/population"
	"github.com/vivid-sim/vivid-sim/sim/telemetry"
	"github.com/vivid-sim/vivid-sim/sim/trace"
)

var (
	configPath        string // Scenario YAML file
	seed              int64  // Overrides the scenario seed when set
	steps             int    // Overrides the scenario step count when set
	logLevel          string // Log verbosity level
	statsCSV          string // Per-step statistics CSV path
	transmissionsCSV  string // Transmission audit CSV path
	xlsxPath          string // Workbook path
	showProgress      bool   // Progress bar on stderr
	workers           int    // Goroutines per action
	otlpEndpoint      string // OTLP gRPC collector
	runID             string // Identifier stamped on every output row
	weightedSelection bool   // Weight randomized testing by selection multipliers
	logEvery          int    // Steps between statistics log lines
	traceLevel        string // Transmission trace level for the run summary
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "vivid-sim",
	Short: "Agent-based epidemic simulator with testing, contact tracing and quarantine",
}

// runCmd executes a simulation from a scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an epidemic simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg := loadScenario()
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if cmd.Flags().Changed("steps") {
			cfg.Steps = steps
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s (valid: none, transmissions)", traceLevel)
		}
		if transmissionsCSV != "" || trace.TraceLevel(traceLevel) == trace.TraceLevelTransmissions {
			cfg.OutputTransmissions = true
		}
		if runID == "" {
			runID = cfg.RunID
		}
		if runID == "" {
			runID = uuid.NewString()
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		otelCfg := telemetry.DefaultConfig(otlpEndpoint)
		otelCfg.RunID = runID
		shutdown, err := telemetry.Init(ctx, otelCfg)
		if err != nil {
			logrus.Fatalf("Telemetry setup failed: %v", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logrus.Warnf("telemetry shutdown: %v", err)
			}
		}()

		level := trace.TraceLevelNone
		if cfg.OutputTransmissions {
			level = trace.TraceLevelTransmissions
		}
		st := trace.NewSimulationTrace(level)
		opts := sim.Options{Workers: workers, Trace: st}
		if weightedSelection {
			opts.Selector = sim.WeightedTestSelector
		}
		s, err := sim.NewSimulator(cfg, population.New(), opts)
		if err != nil {
			logrus.Fatalf("Cannot build simulator: %v", err)
		}

		sinks, xlsx := buildSinks(cfg)
		logrus.Infof("Run %s: %d agents (%d active), %d steps, protocol %s", runID,
			cfg.Population.Agents, cfg.Population.ActiveAgents, cfg.Steps, cfg.Protocol())

		startTime := time.Now()
		runErr := s.Run(ctx, sinks)
		if xlsx != nil && runErr == nil {
			if err := xlsx.WriteBuildings(s.Orchestrator().Buildings()); err != nil {
				logrus.Errorf("workbook buildings sheet: %v", err)
			}
		}
		if err := sinks.Close(); err != nil {
			logrus.Errorf("closing outputs: %v", err)
		}
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				logrus.Fatalf("Simulation interrupted at step %d", s.CurrentStep())
			}
			logrus.Fatalf("Simulation failed: %v", runErr)
		}

		fmt.Println(renderSummary(runID, s, trace.Summarize(st), time.Since(startTime)))
		logrus.Info("Simulation complete.")
	},
}

// validateCmd strict-parses and validates a scenario
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file without running it",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadScenario()
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		fmt.Printf("%s: ok (%d agents, %d place types, protocol %s)\n",
			configPath, cfg.Population.Agents, len(cfg.PlaceTypes), cfg.Protocol())
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func loadScenario() *sim.Config {
	if configPath == "" {
		logrus.Warnf("no --config given, using the default scenario")
		cfg := sim.DefaultConfig()
		return &cfg
	}
	cfg, err := sim.LoadConfig(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load scenario: %v", err)
	}
	return cfg
}

func buildSinks(cfg *sim.Config) (output.Multi, *output.XLSXSink) {
	sinks := output.Multi{output.LogSink{Every: logEvery}}
	if statsCSV != "" || transmissionsCSV != "" {
		csvSink, err := output.CreateCSVSink(runID, statsCSV, transmissionsCSV)
		if err != nil {
			logrus.Fatalf("Cannot open CSV outputs: %v", err)
		}
		sinks = append(sinks, csvSink)
	}
	var xlsx *output.XLSXSink
	if xlsxPath != "" {
		var err error
		xlsx, err = output.NewXLSXSink(runID, xlsxPath)
		if err != nil {
			logrus.Fatalf("Cannot create workbook: %v", err)
		}
		sinks = append(sinks, xlsx)
	}
	if showProgress {
		sinks = append(sinks, newProgress(cfg.Steps))
	}
	return sinks, xlsx
}

// progress drives a step progress bar on stderr.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(total int) progress {
	return progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("simulating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}
}

func (p progress) ObserveStep(sim.StepReport) error { return p.bar.Add(1) }

func (p progress) Close() error { return p.bar.Finish() }

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Scenario YAML file (defaults to the built-in scenario)")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed (overrides the scenario)")
	runCmd.Flags().IntVar(&steps, "steps", 100, "Number of steps to simulate (overrides the scenario)")
	runCmd.Flags().StringVar(&statsCSV, "stats-csv", "", "Write per-step statistics to this CSV file")
	runCmd.Flags().StringVar(&transmissionsCSV, "transmissions-csv", "", "Write one row per transmission to this CSV file")
	runCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write statistics, transmissions and building counters to this workbook")
	runCmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar on stderr")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Goroutines per action (0 = GOMAXPROCS, 1 = serial)")
	runCmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "Export step spans to this OTLP gRPC collector (host:port)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier stamped on outputs (default: scenario run_id, else a random UUID)")
	runCmd.Flags().BoolVar(&weightedSelection, "weighted-testing", false, "Weight randomized testing by each person's selection multiplier")
	runCmd.Flags().IntVar(&logEvery, "log-every", 10, "Steps between statistics log lines at info level")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Transmission tracing for the run summary (none, transmissions)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(defaultsCmd)
}
