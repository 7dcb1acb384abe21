package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 1h, 3 significant figures
	h := hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// RecordValue records a duration in microseconds. Values outside the
// trackable range are clamped.
func (h *SafeHistogram) RecordValue(v int64) error {
	if v < 1 {
		v = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if hi := h.hist.HighestTrackableValue(); v > hi {
		v = hi
	}
	return h.hist.RecordValue(v)
}

// RecordDuration records a duration given in seconds.
func (h *SafeHistogram) RecordDuration(seconds float64) error {
	return h.RecordValue(int64(seconds * 1e6))
}

func (h *SafeHistogram) ValueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.ValueAtQuantile(q)
}

func (h *SafeHistogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean()
}

func (h *SafeHistogram) Max() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Max()
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

func (h *SafeHistogram) Min() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Min()
}

func (h *SafeHistogram) StdDev() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.StdDev()
}
