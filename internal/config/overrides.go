package config

import (
	"time"

	"fsbench/internal/bench"
)

// Overrides carries command-line values. Non-zero fields replace the
// scenario value, for the run and for every listed worker.
type Overrides struct {
	RunID          string
	OutputDir      string
	ServerID       string
	Instances      int
	UnmonitoredDir string
	MonitoredDir   string
	Mode           bench.Mode
	Iterations     int
	Strategy       string
	Random         bool
	Seed           uint64

	ThinkAvg     time.Duration
	ThinkMinPerc float64
	ThinkMaxPerc float64

	Monitor bool
}

func (s *Scenario) apply(o Overrides) {
	if o.RunID != "" {
		s.RunID = o.RunID
	}
	if o.OutputDir != "" {
		s.OutputDir = o.OutputDir
	}
	if o.ServerID != "" {
		s.ServerID = o.ServerID
	}
	if o.Instances > 0 {
		s.Instances = o.Instances
		s.Workers = nil
	}
	if o.ThinkAvg > 0 {
		s.ThinkTime.Avg = o.ThinkAvg
	}
	if o.ThinkMinPerc > 0 {
		s.ThinkTime.MinPerc = o.ThinkMinPerc
	}
	if o.ThinkMaxPerc > 0 {
		s.ThinkTime.MaxPerc = o.ThinkMaxPerc
	}
	if o.Monitor {
		s.Monitor.Enabled = true
	}

	override := func(w *bench.WorkerConfig) {
		if o.RunID != "" {
			w.RunID = o.RunID
		}
		if o.ServerID != "" {
			w.ServerID = o.ServerID
		}
		if o.UnmonitoredDir != "" {
			w.UnmonitoredDir = o.UnmonitoredDir
		}
		if o.MonitoredDir != "" {
			w.MonitoredDir = o.MonitoredDir
		}
		if o.Mode != "" {
			w.Mode = o.Mode
		}
		if o.Iterations > 0 {
			w.Iterations = o.Iterations
		}
		if o.Strategy != "" {
			w.Strategy = o.Strategy
		}
		if o.Random {
			w.RandomResources = true
		}
		if o.Seed != 0 {
			w.Seed = o.Seed
		}
	}
	override(&s.Defaults)
	for i := range s.Workers {
		override(&s.Workers[i])
	}
}
