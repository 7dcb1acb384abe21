package config

import (
	"fmt"
	"time"

	"fsbench/internal/bench"
	"fsbench/internal/runner"
)

// Scenario is the top-level run description loaded from YAML.
type Scenario struct {
	RunID     string           `yaml:"run_id"`
	OutputDir string           `yaml:"output_dir"`
	ServerID  string           `yaml:"server_id"`
	Instances int              `yaml:"instances"`
	ThinkTime runner.ThinkTime `yaml:"think_time"`

	// Defaults fills every zero field of the listed (or generated) workers.
	Defaults bench.WorkerConfig   `yaml:"defaults"`
	Workers  []bench.WorkerConfig `yaml:"workers"`

	Monitor MonitorConfig `yaml:"monitor"`
	Pool    PoolConfig    `yaml:"pool"`
}

// MonitorConfig controls host telemetry sampling during a run.
type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Output   string        `yaml:"output"`
}

// PoolConfig describes the source pool generated by `fsbench seed`.
type PoolConfig struct {
	Files       int    `yaml:"files"`
	Dirs        int    `yaml:"dirs"`
	FilesPerDir int    `yaml:"files_per_dir"`
	MinSizeRaw  string `yaml:"min_size"`
	MaxSizeRaw  string `yaml:"max_size"`

	MinSize int64 `yaml:"-"`
	MaxSize int64 `yaml:"-"`
}

// Validate checks the scenario after defaults were applied.
func (s *Scenario) Validate() error {
	if s.RunID == "" {
		return fmt.Errorf("config: run_id is required")
	}
	if len(s.Workers) == 0 {
		return fmt.Errorf("config: at least one worker is required (workers or instances)")
	}
	if s.ThinkTime.Avg < 0 {
		return fmt.Errorf("config: think_time.avg must not be negative")
	}

	seen := make(map[string]bool, len(s.Workers))
	for i, w := range s.Workers {
		if w.UnmonitoredDir == "" || w.MonitoredDir == "" {
			return fmt.Errorf("config: workers[%d]: unmonitored_dir and monitored_dir are required", i)
		}
		if w.Mode != bench.ModeSequential && w.Mode != bench.ModeRandom {
			return fmt.Errorf("config: workers[%d]: unknown mode %q", i, w.Mode)
		}
		if w.Iterations <= 0 {
			return fmt.Errorf("config: workers[%d]: iterations must be positive", i)
		}
		if w.Strategy != bench.StrategyNative && w.Strategy != bench.StrategyShell {
			return fmt.Errorf("config: workers[%d]: unknown strategy %q", i, w.Strategy)
		}
		for op, tag := range w.Strategies {
			if _, err := bench.ParseOperationType(string(op)); err != nil {
				return fmt.Errorf("config: workers[%d]: strategies: %w", i, err)
			}
			if tag != bench.StrategyNative && tag != bench.StrategyShell {
				return fmt.Errorf("config: workers[%d]: strategies.%s: unknown strategy %q", i, op, tag)
			}
		}
		uid := w.UniqueID()
		if seen[uid] {
			return fmt.Errorf("config: workers[%d]: duplicate worker %s", i, uid)
		}
		seen[uid] = true
	}

	if s.Monitor.Enabled && s.Monitor.Interval <= 0 {
		return fmt.Errorf("config: monitor.interval must be positive")
	}
	if s.Pool.MinSize > s.Pool.MaxSize {
		return fmt.Errorf("config: pool.min_size is larger than pool.max_size")
	}
	return nil
}

// RunnerConfig converts the scenario into what the orchestrator consumes.
func (s *Scenario) RunnerConfig() runner.Config {
	workers := make([]bench.WorkerConfig, len(s.Workers))
	copy(workers, s.Workers)
	return runner.Config{
		OutputDir: s.OutputDir,
		Workers:   workers,
		ThinkTime: s.ThinkTime,
	}
}
