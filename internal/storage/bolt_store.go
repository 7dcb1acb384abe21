package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	BucketRuns = "runs"
	IndexFile  = "runs.db"
)

var ErrRunNotFound = errors.New("run not found")

// RunSummary is what the index keeps about a finished run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Workers    int       `json:"workers"`
	Missing    int       `json:"missing"`
	Records    int       `json:"records"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	MergedPath string    `json:"merged_path"`
}

func Summarize(ds *RunDataset, startedAt, finishedAt time.Time, mergedPath string) RunSummary {
	sum := RunSummary{
		RunID:      ds.RunID,
		Status:     ds.Status,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Workers:    len(ds.Workers) + len(ds.MissingSlots),
		Missing:    len(ds.MissingSlots),
		Records:    len(ds.Records),
		MergedPath: mergedPath,
	}
	for _, r := range ds.Records {
		if r.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum
}

// Store is a bbolt-backed index of past runs keyed by run id.
type Store struct {
	db       *bbolt.DB
	filePath string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, IndexFile)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage.NewStore: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, filePath: path}, nil
}

func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces the summary for sum.RunID.
func (s *Store) Save(sum RunSummary) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		data, err := json.Marshal(sum)
		if err != nil {
			return err
		}
		return b.Put([]byte(sum.RunID), data)
	})
}

// List returns all runs, most recently started first.
func (s *Store) List() ([]RunSummary, error) {
	var items []RunSummary

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		return b.ForEach(func(k, v []byte) error {
			var item RunSummary
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("run %s: %w", k, err)
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].StartedAt.After(items[j].StartedAt)
	})
	return items, nil
}

func (s *Store) Get(runID string) (*RunSummary, error) {
	var item RunSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))
		v := b.Get([]byte(runID))
		if v == nil {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
