package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"fsbench/internal/bench"
)

const MergedFileName = "merged_results.json"

const (
	StatusMerged = "merged"
	StatusFailed = "failed"
)

var artifactName = regexp.MustCompile(`^results_server(.+)_instance(-?\d+)_(\d+)\.json$`)

// WorkerArtifact points at one worker's persisted record list.
type WorkerArtifact struct {
	Slot     int
	Identity bench.WorkerIdentity
	Path     string
}

// TaggedRecord is an OperationRecord tagged with the worker that produced it.
type TaggedRecord struct {
	bench.OperationRecord
	Instance   string `json:"instance"`
	ServerID   string `json:"server_id"`
	InstanceID int    `json:"instance_id"`
}

type WorkerSlot struct {
	Slot int `json:"slot"`
	bench.WorkerIdentity
	Artifact string `json:"artifact"`
	Records  int    `json:"records"`
}

type MissingSlot struct {
	Slot       int    `json:"slot"`
	UniqueID   string `json:"unique_id"`
	ServerID   string `json:"server_id"`
	InstanceID int    `json:"instance_id"`
	Error      string `json:"error"`
}

// RunDataset is the merged artifact of one run. Records keep launch order
// across workers and the original order within each worker.
type RunDataset struct {
	RunID        string         `json:"run_id"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	Workers      []WorkerSlot   `json:"workers"`
	MissingSlots []MissingSlot  `json:"missing_slots"`
	Records      []TaggedRecord `json:"records"`
}

func ArtifactName(id bench.WorkerIdentity, ns int64) string {
	return fmt.Sprintf("results_server%s_instance%d_%d.json", id.ServerID, id.InstanceID, ns)
}

// ParseArtifactName recovers server and instance ids from a worker artifact file name.
func ParseArtifactName(path string) (serverID string, instanceID int, err error) {
	m := artifactName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", 0, fmt.Errorf("storage.ParseArtifactName: %s: not a worker artifact", path)
	}
	instanceID, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("storage.ParseArtifactName: %s: %w", path, err)
	}
	return m[1], instanceID, nil
}

// WriteWorkerArtifact persists records as a JSON list and returns the file path.
func WriteWorkerArtifact(fs afero.Fs, dir string, id bench.WorkerIdentity, recs []bench.OperationRecord, ns int64) (string, error) {
	if recs == nil {
		recs = []bench.OperationRecord{}
	}
	data, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return "", fmt.Errorf("storage.WriteWorkerArtifact: %w", err)
	}
	path := filepath.Join(dir, ArtifactName(id, ns))
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage.WriteWorkerArtifact: %w", err)
	}
	return path, nil
}

func ReadWorkerArtifact(fs afero.Fs, path string) ([]bench.OperationRecord, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("storage.ReadWorkerArtifact: %w", err)
	}
	var recs []bench.OperationRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("storage.ReadWorkerArtifact: %s: %w", path, err)
	}
	return recs, nil
}

// Merge reads every artifact in the given order and concatenates the records.
// An artifact that cannot be read becomes a missing slot.
func Merge(fs afero.Fs, runID string, parts []WorkerArtifact, missing []MissingSlot) *RunDataset {
	ds := &RunDataset{
		RunID:        runID,
		CreatedAt:    time.Now(),
		Workers:      []WorkerSlot{},
		MissingSlots: append([]MissingSlot{}, missing...),
		Records:      []TaggedRecord{},
	}

	for _, part := range parts {
		recs, err := ReadWorkerArtifact(fs, part.Path)
		if err != nil {
			ds.MissingSlots = append(ds.MissingSlots, MissingSlot{
				Slot:       part.Slot,
				UniqueID:   part.Identity.UniqueID,
				ServerID:   part.Identity.ServerID,
				InstanceID: part.Identity.InstanceID,
				Error:      err.Error(),
			})
			continue
		}
		ds.Workers = append(ds.Workers, WorkerSlot{
			Slot:           part.Slot,
			WorkerIdentity: part.Identity,
			Artifact:       part.Path,
			Records:        len(recs),
		})
		for _, r := range recs {
			ds.Records = append(ds.Records, TaggedRecord{
				OperationRecord: r,
				Instance:        part.Identity.UniqueID,
				ServerID:        part.Identity.ServerID,
				InstanceID:      part.Identity.InstanceID,
			})
		}
	}

	sort.SliceStable(ds.MissingSlots, func(i, j int) bool {
		return ds.MissingSlots[i].Slot < ds.MissingSlots[j].Slot
	})
	ds.Status = StatusMerged
	if len(ds.MissingSlots) > 0 {
		ds.Status = StatusFailed
	}
	return ds
}

func WriteDataset(fs afero.Fs, path string, ds *RunDataset) error {
	data, err := json.MarshalIndent(ds, "", "    ")
	if err != nil {
		return fmt.Errorf("storage.WriteDataset: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("storage.WriteDataset: %w", err)
	}
	return nil
}

func ReadDataset(fs afero.Fs, path string) (*RunDataset, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("storage.ReadDataset: %w", err)
	}
	var ds RunDataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("storage.ReadDataset: %s: %w", path, err)
	}
	return &ds, nil
}
