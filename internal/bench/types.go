package bench

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrEmptyResourcePool is returned when a selection folder has nothing to pick.
var ErrEmptyResourcePool = errors.New("empty resource pool")

type OperationType string

const (
	CopyFile   OperationType = "copy_file"
	CopyDir    OperationType = "copy_dir"
	MoveDir    OperationType = "move_dir"
	EditFile   OperationType = "edit_file"
	ReadFile   OperationType = "read_file"
	DeleteFile OperationType = "delete_file"
	DeleteDir  OperationType = "delete_dir"
)

// SequentialOrder is the fixed order used by sequential runs.
var SequentialOrder = []OperationType{
	CopyFile, CopyDir, MoveDir, EditFile, ReadFile, DeleteFile, DeleteDir,
}

func ParseOperationType(s string) (OperationType, error) {
	for _, op := range SequentialOrder {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation type %q", s)
}

// ResourceKind says whether a selection wants files or directories.
type ResourceKind int

const (
	KindFile ResourceKind = iota
	KindDir
)

type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeRandom     Mode = "random"
)

// OperationRecord is one measured file-system action.
type OperationRecord struct {
	OperationID     int           `json:"operation_id"`
	OperationType   OperationType `json:"operation_type"`
	TargetPath      string        `json:"target_path"`
	DestinationPath string        `json:"destination_path,omitempty"`
	SizeBytes       *int64        `json:"size_bytes,omitempty"`
	Strategy        string        `json:"strategy,omitempty"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	StartTimeNs     int64         `json:"start_time_ns"`
	EndTimeNs       int64         `json:"end_time_ns"`
	DurationSeconds float64       `json:"duration_seconds"`
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
}

// WorkerIdentity is fixed at worker construction.
type WorkerIdentity struct {
	ServerID   string    `json:"server_id"`
	InstanceID int       `json:"instance_id"`
	UniqueID   string    `json:"unique_id"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	StartedAt  time.Time `json:"started_at"`
}

func UniqueID(serverID string, instanceID int) string {
	return fmt.Sprintf("server%s_instance%d", serverID, instanceID)
}

func NewWorkerIdentity(serverID string, instanceID int) WorkerIdentity {
	host, _ := os.Hostname()
	return WorkerIdentity{
		ServerID:   serverID,
		InstanceID: instanceID,
		UniqueID:   UniqueID(serverID, instanceID),
		PID:        os.Getpid(),
		Hostname:   host,
		StartedAt:  time.Now(),
	}
}

// WorkerConfig is everything one worker needs. No process-wide defaults are consulted.
type WorkerConfig struct {
	ServerID        string                   `yaml:"server_id" json:"server_id"`
	InstanceID      int                      `yaml:"instance_id" json:"instance_id"`
	RunID           string                   `yaml:"run_id" json:"run_id"`
	UnmonitoredDir  string                   `yaml:"unmonitored_dir" json:"unmonitored_dir"`
	MonitoredDir    string                   `yaml:"monitored_dir" json:"monitored_dir"`
	RandomResources bool                     `yaml:"random_resources" json:"random_resources"`
	Mode            Mode                     `yaml:"mode" json:"mode"`
	Iterations      int                      `yaml:"iterations" json:"iterations"`
	Strategy        string                   `yaml:"strategy" json:"strategy"`
	Strategies      map[OperationType]string `yaml:"strategies,omitempty" json:"strategies,omitempty"`
	Seed            uint64                   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

func (c WorkerConfig) UniqueID() string {
	return UniqueID(c.ServerID, c.InstanceID)
}
