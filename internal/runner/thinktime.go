package runner

import (
	"context"
	"math/rand/v2"
	"time"
)

// ThinkTime staggers worker launches. Delays are uniform in
// [Avg*(1-MinPerc), Avg*(1+MaxPerc)] with the lower bound clamped at 0.
type ThinkTime struct {
	Avg     time.Duration `yaml:"avg"`
	MinPerc float64       `yaml:"min_perc"`
	MaxPerc float64       `yaml:"max_perc"`
}

// Bounds returns the draw interval; ok is false when no delay applies.
func (t ThinkTime) Bounds() (lo, hi time.Duration, ok bool) {
	if t.Avg <= 0 {
		return 0, 0, false
	}
	lo = time.Duration(float64(t.Avg) * (1 - t.MinPerc))
	if lo < 0 {
		lo = 0
	}
	hi = time.Duration(float64(t.Avg) * (1 + t.MaxPerc))
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func (t ThinkTime) Draw(rng *rand.Rand) time.Duration {
	lo, hi, ok := t.Bounds()
	if !ok {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
