package bench

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderInvariants(t *testing.T) {
	var seen []OperationRecord
	r := NewRecorder(NewClock(), func(rec OperationRecord) { seen = append(seen, rec) })

	r.Measure(Target{Op: CopyFile, Path: "a"}, func() error { return nil })
	r.Measure(Target{Op: ReadFile, Path: "b"}, func() error { return errors.New("boom") })
	r.Fail(Target{Op: DeleteDir}, fmt.Errorf("delete_dir: %w", ErrEmptyResourcePool))
	r.Measure(Target{Op: EditFile, Path: "c"}, func() error { panic("bad state") })
	r.Measure(Target{Op: MoveDir, Path: "d"}, func() error { return nil })

	recs := r.Records()
	require.Len(t, recs, 5)
	assert.Equal(t, 5, r.Counter())
	assert.Equal(t, recs, seen)

	for i, rec := range recs {
		assert.Equal(t, i, rec.OperationID)
		assert.GreaterOrEqual(t, rec.EndTimeNs, rec.StartTimeNs)
		assert.GreaterOrEqual(t, rec.DurationSeconds, 0.0)
		if rec.Success {
			assert.Empty(t, rec.Error)
		} else {
			assert.NotEmpty(t, rec.Error)
		}
	}

	assert.True(t, recs[0].Success)
	assert.Equal(t, "boom", recs[1].Error)
	assert.Contains(t, recs[2].Error, "empty resource pool")
	assert.Equal(t, 0.0, recs[2].DurationSeconds)
	assert.Equal(t, "panic: bad state", recs[3].Error)
	assert.True(t, recs[4].Success)
}

func TestRecorderDurationMatchesNanos(t *testing.T) {
	r := NewRecorder(NewClock(), nil)
	rec := r.Measure(Target{Op: ReadFile}, func() error { return nil })
	assert.InDelta(t, float64(rec.EndTimeNs-rec.StartTimeNs)/1e9, rec.DurationSeconds, 1e-12)
	assert.NotEmpty(t, rec.StartTime)
	assert.NotEmpty(t, rec.EndTime)
}

func TestRecordsReturnsCopy(t *testing.T) {
	r := NewRecorder(NewClock(), nil)
	r.Measure(Target{Op: ReadFile}, func() error { return nil })
	recs := r.Records()
	recs[0].OperationID = 99
	assert.Equal(t, 0, r.Records()[0].OperationID)
}

func TestClockIsMonotonic(t *testing.T) {
	c := NewClock()
	prev := c.Nanos()
	for i := 0; i < 1000; i++ {
		n := c.Nanos()
		require.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestNamerNeverRepeats(t *testing.T) {
	n := NewNamer(NewClock())
	a := n.Name("copied_a", 3, ".txt")
	b := n.Name("copied_a", 3, ".txt")
	assert.NotEqual(t, a, b)

	pattern := fmt.Sprintf(`^copied_a_\d+_%d_000003_[0-9a-f]{8}\.txt$`, os.Getpid())
	assert.Regexp(t, regexp.MustCompile(pattern), a)
}

func TestNamerManyInTightLoop(t *testing.T) {
	n := NewNamer(NewClock())
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		name := n.Name("dir", 0, "")
		_, dup := seen[name]
		require.False(t, dup, name)
		seen[name] = struct{}{}
	}
}
