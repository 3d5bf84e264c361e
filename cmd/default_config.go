package cmd

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vivid-sim/vivid-sim/sim"
)

var defaultsOut string // Destination for the default scenario; stdout when empty

// defaultsCmd prints the built-in scenario as YAML, a starting point for
// scenario files.
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default scenario as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := marshalDefaults()
		if err != nil {
			logrus.Fatalf("Failed to encode default scenario: %v", err)
		}
		if defaultsOut == "" {
			_, _ = os.Stdout.Write(data)
			return
		}
		if err := os.WriteFile(defaultsOut, data, 0o644); err != nil {
			logrus.Fatalf("Failed to write %s: %v", defaultsOut, err)
		}
	},
}

// marshalDefaults encodes sim.DefaultConfig with two-space indentation.
func marshalDefaults() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sim.DefaultConfig()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func init() {
	defaultsCmd.Flags().StringVar(&defaultsOut, "out", "", "Write to this file instead of stdout")
}
