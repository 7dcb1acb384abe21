package stats

import (
	"sync/atomic"

	"fsbench/internal/bench"
)

// Stats holds real-time aggregates over every record measured so far.
// Add is safe to call from many workers at once.
type Stats struct {
	Operations uint64
	Success    uint64
	Fail       uint64
	Bytes      uint64

	// Operation durations (microseconds)
	Duration *SafeHistogram
}

func NewStats() *Stats {
	return &Stats{
		Duration: NewSafeHistogram(),
	}
}

func (s *Stats) Add(rec bench.OperationRecord) {
	atomic.AddUint64(&s.Operations, 1)
	if rec.Success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
	}
	if rec.SizeBytes != nil && *rec.SizeBytes > 0 {
		atomic.AddUint64(&s.Bytes, uint64(*rec.SizeBytes))
	}

	s.Duration.RecordDuration(rec.DurationSeconds)
}

func (s *Stats) ErrorRate() float64 {
	ops := atomic.LoadUint64(&s.Operations)
	if ops == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(ops)) * 100
}

func (s *Stats) P50Ms() float64 {
	return float64(s.Duration.ValueAtQuantile(50)) / 1000.0
}

func (s *Stats) P90Ms() float64 {
	return float64(s.Duration.ValueAtQuantile(90)) / 1000.0
}

func (s *Stats) P99Ms() float64 {
	return float64(s.Duration.ValueAtQuantile(99)) / 1000.0
}

func (s *Stats) MaxMs() float64 {
	return float64(s.Duration.Max()) / 1000.0
}
