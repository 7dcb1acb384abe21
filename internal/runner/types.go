package runner

import (
	"errors"
	"fmt"
	"time"

	"fsbench/internal/bench"
)

// ErrOrchestration marks configuration problems found before any worker starts.
var ErrOrchestration = errors.New("orchestration failure")

// ErrWorkersFailed is returned alongside a partial dataset.
var ErrWorkersFailed = errors.New("one or more workers failed")

type Config struct {
	OutputDir string
	Workers   []bench.WorkerConfig
	ThinkTime ThinkTime
}

// RunID is the identifier shared by all workers (validated in Configuring).
func (c Config) RunID() string {
	if len(c.Workers) == 0 {
		return ""
	}
	return c.Workers[0].RunID
}

type State int32

const (
	Configuring State = iota
	Launching
	Running
	Collecting
	Merged
	Failed
)

func (s State) String() string {
	switch s {
	case Configuring:
		return "configuring"
	case Launching:
		return "launching"
	case Running:
		return "running"
	case Collecting:
		return "collecting"
	case Merged:
		return "merged"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type EventKind string

const (
	EventState     EventKind = "state"
	EventLaunched  EventKind = "launched"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventProgress  EventKind = "progress"
)

// StatsSnapshot is a cheap copy of the live aggregates, sent with progress events.
type StatsSnapshot struct {
	Operations uint64
	Success    uint64
	Fail       uint64
	Bytes      uint64

	Launched      int
	Active        int64
	Completed     int
	FailedWorkers int

	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs float64
}

// Event is sent on the updates channel. The orchestrator only reports slot
// boundaries and state changes, never partial worker progress.
type Event struct {
	Kind     EventKind
	State    State
	Slot     int
	UniqueID string
	Records  int
	Stats    StatsSnapshot
	Err      error
	At       time.Time
}

// EventChan is the channel type
type EventChan chan Event

// WorkerFatalError is a worker-level fault. It removes one slot from the
// dataset without affecting siblings.
type WorkerFatalError struct {
	Slot     int
	UniqueID string
	Err      error
}

func (e *WorkerFatalError) Error() string {
	return fmt.Sprintf("worker slot %d (%s): %v", e.Slot, e.UniqueID, e.Err)
}

func (e *WorkerFatalError) Unwrap() error {
	return e.Err
}
