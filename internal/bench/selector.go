package bench

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/spf13/afero"
)

// Selector picks the next resource for an operation. It re-reads the folder
// on every call so that files produced earlier in the run become selectable.
// A Selector belongs to exactly one worker.
type Selector struct {
	fs      afero.Fs
	random  bool
	rng     *rand.Rand
	cursors map[OperationType]int
}

func NewSelector(fs afero.Fs, random bool, rng *rand.Rand) *Selector {
	return &Selector{
		fs:      fs,
		random:  random,
		rng:     rng,
		cursors: make(map[OperationType]int),
	}
}

// Next returns the name (not the full path) of one entry of the given kind.
func (s *Selector) Next(op OperationType, folder string, kind ResourceKind) (string, error) {
	names, err := s.list(folder, kind)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%s: %s: %w", op, folder, ErrEmptyResourcePool)
	}

	if s.random {
		return names[s.rng.IntN(len(names))], nil
	}

	idx := s.cursors[op] % len(names)
	s.cursors[op]++
	return names[idx], nil
}

// Cursor reports how many round-robin selections op has made.
func (s *Selector) Cursor(op OperationType) int {
	return s.cursors[op]
}

func (s *Selector) list(folder string, kind ResourceKind) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, folder)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() == (kind == KindDir) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
