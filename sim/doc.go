// Package sim provides the lock-step agent engine for vivid-sim, an epidemic
// simulator with testing, contact tracing and quarantine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - engine.go: the step loop, the fixed action order and message delivery
//   - person.go: a person's infection state, schedule and compliance behaviour
//   - orchestrator.go: testing, contact tracing, quarantine and statistics
//
// # Architecture
//
// Every step runs a fixed sequence of actions. Each action invokes one method
// on every agent of one kind; messages sent during an action are delivered
// only to the next action and are dropped if nobody reads them. Agents never
// share state, so an action can run its agents in parallel.
//
// Sub-packages:
//   - sim/population/: the synthetic population initializer run at step 0
//   - sim/output/: CSV, XLSX and log sinks for per-step reports
//   - sim/telemetry/: OTLP export of step and action spans
//   - sim/trace/: transmission audit records and secondary infection summaries
//
// # Key Interfaces
//
//   - PopulationInitializer: builds places, assignments and social links
//   - Affiliation: per-kind initialization tables and attendance overrides
//   - TestSelector: picks persons for randomized testing
//   - StepObserver: receives one StepReport per completed step
package sim
