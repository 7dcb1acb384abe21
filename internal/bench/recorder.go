package bench

import (
	"fmt"
	"time"
)

// Target describes what a timed operation is about to act on.
type Target struct {
	Op          OperationType
	Path        string
	Destination string
	Size        *int64
	Strategy    string
}

// Observer sees every record right after it is appended.
type Observer func(OperationRecord)

// Recorder wraps file-system actions with timing and turns their failures
// into records. It is the only writer of a worker's record list.
type Recorder struct {
	clock    *Clock
	counter  int
	records  []OperationRecord
	observer Observer
}

func NewRecorder(clock *Clock, observer Observer) *Recorder {
	return &Recorder{clock: clock, observer: observer}
}

// Counter is the id the next record will get.
func (r *Recorder) Counter() int {
	return r.counter
}

// Measure runs action between two clock readings and appends exactly one record.
func (r *Recorder) Measure(t Target, action func() error) OperationRecord {
	startWall, startNs := r.clock.Now()
	err := call(action)
	endWall, endNs := r.clock.Now()
	return r.append(t, startWall, startNs, endWall, endNs, err)
}

// Fail records an operation that could not start, e.g. because selection failed.
func (r *Recorder) Fail(t Target, err error) OperationRecord {
	wall, ns := r.clock.Now()
	return r.append(t, wall, ns, wall, ns, err)
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []OperationRecord {
	out := make([]OperationRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder) append(t Target, startWall time.Time, startNs int64, endWall time.Time, endNs int64, err error) OperationRecord {
	if endNs < startNs {
		endNs = startNs
	}
	rec := OperationRecord{
		OperationID:     r.counter,
		OperationType:   t.Op,
		TargetPath:      t.Path,
		DestinationPath: t.Destination,
		SizeBytes:       t.Size,
		Strategy:        t.Strategy,
		StartTime:       startWall.Format(time.RFC3339Nano),
		EndTime:         endWall.Format(time.RFC3339Nano),
		StartTimeNs:     startNs,
		EndTimeNs:       endNs,
		DurationSeconds: float64(endNs-startNs) / float64(time.Second),
		Success:         err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
		if rec.Error == "" {
			rec.Error = fmt.Sprintf("%T", err)
		}
	}

	r.records = append(r.records, rec)
	r.counter++

	if r.observer != nil {
		r.observer(rec)
	}
	return rec
}

func call(action func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return action()
}
