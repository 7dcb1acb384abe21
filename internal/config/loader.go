package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"fsbench/internal/bench"
)

const DefaultServerID = "127.0.0.1"

// Load reads and parses a scenario file.
// Supports environment variable expansion in string values via ${VAR} syntax.
func Load(path string) (*Scenario, error) {
	return LoadWith(path, Overrides{})
}

// LoadWith is Load with command-line overrides applied before defaults.
// An empty path yields the default scenario: one local worker.
func LoadWith(path string, o Overrides) (*Scenario, error) {
	if path == "" {
		return finish(&Scenario{Instances: 1}, o)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
	}
	s, err := parse(data, o)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario, applies defaults and validates it.
func Parse(data []byte) (*Scenario, error) {
	return parse(data, Overrides{})
}

// Default is the scenario used when no file is given: one local worker.
func Default() (*Scenario, error) {
	return LoadWith("", Overrides{})
}

func parse(data []byte, o Overrides) (*Scenario, error) {
	expanded := os.ExpandEnv(string(data))

	var s Scenario
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return finish(&s, o)
}

func finish(s *Scenario, o Overrides) (*Scenario, error) {
	s.apply(o)
	s.applyDefaults()
	if err := s.parseSizes(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) applyDefaults() {
	if s.RunID == "" {
		s.RunID = "run_" + time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
	}
	if s.OutputDir == "" {
		s.OutputDir = "testdata"
	}
	if s.ServerID == "" {
		s.ServerID = DefaultServerID
	}

	d := &s.Defaults
	if d.UnmonitoredDir == "" {
		d.UnmonitoredDir = "input"
	}
	if d.MonitoredDir == "" {
		d.MonitoredDir = "output"
	}
	if d.Mode == "" {
		d.Mode = bench.ModeSequential
	}
	if d.Iterations == 0 {
		d.Iterations = 3
	}
	if d.Strategy == "" {
		d.Strategy = bench.StrategyNative
	}

	// instances: N is shorthand for workers with ids 1..N on server_id.
	if len(s.Workers) == 0 {
		for i := 1; i <= s.Instances; i++ {
			s.Workers = append(s.Workers, bench.WorkerConfig{InstanceID: i})
		}
	}
	for i := range s.Workers {
		s.fillWorker(&s.Workers[i])
	}

	if s.Monitor.Interval == 0 {
		s.Monitor.Interval = time.Second
	}

	p := &s.Pool
	if p.Files == 0 {
		p.Files = 10
	}
	if p.Dirs == 0 {
		p.Dirs = 3
	}
	if p.FilesPerDir == 0 {
		p.FilesPerDir = 5
	}
	if p.MinSizeRaw == "" {
		p.MinSizeRaw = "1KiB"
	}
	if p.MaxSizeRaw == "" {
		p.MaxSizeRaw = "64KiB"
	}
}

func (s *Scenario) fillWorker(w *bench.WorkerConfig) {
	d := s.Defaults
	if w.ServerID == "" {
		w.ServerID = s.ServerID
	}
	if w.RunID == "" {
		w.RunID = s.RunID
	}
	if w.UnmonitoredDir == "" {
		w.UnmonitoredDir = d.UnmonitoredDir
	}
	if w.MonitoredDir == "" {
		w.MonitoredDir = d.MonitoredDir
	}
	if w.Mode == "" {
		w.Mode = d.Mode
	}
	if w.Iterations == 0 {
		w.Iterations = d.Iterations
	}
	if w.Strategy == "" {
		w.Strategy = d.Strategy
	}
	if w.Seed == 0 && d.Seed != 0 {
		w.Seed = d.Seed + uint64(w.InstanceID)
	}
	w.RandomResources = w.RandomResources || d.RandomResources

	if len(d.Strategies) > 0 {
		merged := make(map[bench.OperationType]string, len(d.Strategies)+len(w.Strategies))
		for op, tag := range d.Strategies {
			merged[op] = tag
		}
		for op, tag := range w.Strategies {
			merged[op] = tag
		}
		w.Strategies = merged
	}
}

// parseSizes converts human-readable size strings to int64 bytes.
func (s *Scenario) parseSizes() error {
	v, err := humanize.ParseBytes(s.Pool.MinSizeRaw)
	if err != nil {
		return fmt.Errorf("config: invalid pool.min_size %q: %w", s.Pool.MinSizeRaw, err)
	}
	s.Pool.MinSize = int64(v)

	v, err = humanize.ParseBytes(s.Pool.MaxSizeRaw)
	if err != nil {
		return fmt.Errorf("config: invalid pool.max_size %q: %w", s.Pool.MaxSizeRaw, err)
	}
	s.Pool.MaxSize = int64(v)
	return nil
}
