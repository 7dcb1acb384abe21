package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fsbench/internal/bench"
	"fsbench/internal/config"
)

// Scenario flags shared by run, worker and seed. Only flags the user set
// override the scenario file.
var (
	scenarioPath string
	overrides    config.Overrides
	modeFlag     string
)

func addScenarioFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&scenarioPath, "scenario", "s", "", "Scenario YAML file (default: one local worker)")
	fs.StringVar(&overrides.RunID, "run-id", "", "Run identifier shared by all workers")
	fs.StringVarP(&overrides.OutputDir, "output", "o", "", "Root directory for per-run artifacts")
	fs.StringVar(&overrides.ServerID, "server-id", "", "Server id of generated workers")
	fs.IntVarP(&overrides.Instances, "instances", "n", 0, "Number of workers (replaces the scenario's worker list)")
	fs.StringVar(&overrides.UnmonitoredDir, "unmonitored", "", "Source pool root")
	fs.StringVar(&overrides.MonitoredDir, "monitored", "", "Managed pool root (the storage under test)")
	fs.StringVar(&modeFlag, "mode", "", "sequential or random")
	fs.IntVarP(&overrides.Iterations, "iterations", "i", 0, "Iterations per worker")
	fs.StringVar(&overrides.Strategy, "strategy", "", "native or shell")
	fs.BoolVar(&overrides.Random, "random", false, "Pick source resources at random instead of round-robin")
	fs.Uint64Var(&overrides.Seed, "seed", 0, "Random seed (0 picks one)")
}

func addThinkFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&overrides.ThinkAvg, "think-avg", 0, "Average delay between worker launches")
	fs.Float64Var(&overrides.ThinkMinPerc, "think-min", 0, "Lower spread of the launch delay, as a fraction of think-avg")
	fs.Float64Var(&overrides.ThinkMaxPerc, "think-max", 0, "Upper spread of the launch delay, as a fraction of think-avg")
}

func loadScenario(cmd *cobra.Command) (*config.Scenario, error) {
	o := overrides
	if cmd.Flags().Changed("mode") {
		o.Mode = bench.Mode(modeFlag)
	}
	return config.LoadWith(scenarioPath, o)
}

func elapsedSince(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}
