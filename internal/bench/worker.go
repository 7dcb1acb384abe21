package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"fsbench/internal/logger"
)

const (
	editPayloadLen = 100
	alphanumeric   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Options carries the collaborators a worker uses. Zero values get defaults.
type Options struct {
	Fs       afero.Fs
	Clock    *Clock
	Observer Observer
	Logger   *zerolog.Logger
}

// Worker is one benchmark participant. Its cursors, counter, rng and records
// are private; nothing in it is shared with other workers.
type Worker struct {
	Cfg      WorkerConfig
	Identity WorkerIdentity

	fs         afero.Fs
	namer      *Namer
	selector   *Selector
	recorder   *Recorder
	rng        *rand.Rand
	strategies map[OperationType]Strategy
	log        zerolog.Logger

	sourceFiles  string
	sourceDirs   string
	managedFiles string
	managedDirs  string
}

func NewWorker(cfg WorkerConfig, opts Options) (*Worker, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = DefaultClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSequential
	}

	id := NewWorkerIdentity(cfg.ServerID, cfg.InstanceID)

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, uint64(cfg.InstanceID)))

	strategies := make(map[OperationType]Strategy, len(SequentialOrder))
	for _, op := range SequentialOrder {
		tag := cfg.Strategy
		if override, ok := cfg.Strategies[op]; ok {
			tag = override
		}
		s, err := NewStrategy(tag, opts.Fs)
		if err != nil {
			return nil, fmt.Errorf("bench.NewWorker: %s: %w", op, err)
		}
		strategies[op] = s
	}

	return &Worker{
		Cfg:          cfg,
		Identity:     id,
		fs:           opts.Fs,
		namer:        NewNamer(opts.Clock),
		selector:     NewSelector(opts.Fs, cfg.RandomResources, rng),
		recorder:     NewRecorder(opts.Clock, opts.Observer),
		rng:          rng,
		strategies:   strategies,
		log:          opts.Logger.With().Str("unique_id", id.UniqueID).Logger(),
		sourceFiles:  filepath.Join(cfg.UnmonitoredDir, "files", id.UniqueID),
		sourceDirs:   filepath.Join(cfg.UnmonitoredDir, "dirs", id.UniqueID),
		managedFiles: filepath.Join(cfg.MonitoredDir, "files", id.UniqueID),
		managedDirs:  filepath.Join(cfg.MonitoredDir, "dirs", id.UniqueID),
	}, nil
}

// Setup creates the worker's four folders. An error here is fatal to the worker.
func (w *Worker) Setup() error {
	for _, p := range []string{w.sourceFiles, w.sourceDirs, w.managedFiles, w.managedDirs} {
		if err := w.fs.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("bench.Setup: %s: %w", p, err)
		}
	}
	return nil
}

// Run executes the configured mode and returns the worker's records.
// Cancellation is honoured between operations; records taken so far are kept.
func (w *Worker) Run(ctx context.Context) []OperationRecord {
	w.log.Info().
		Str("mode", string(w.Cfg.Mode)).
		Int("iterations", w.Cfg.Iterations).
		Bool("random_resources", w.Cfg.RandomResources).
		Msg("worker started")

	if w.Cfg.Mode == ModeRandom {
		w.RunRandomly(ctx, w.Cfg.Iterations)
	} else {
		w.RunSequentially(ctx, w.Cfg.Iterations)
	}

	recs := w.Records()
	failed := 0
	for _, r := range recs {
		if !r.Success {
			failed++
		}
	}
	w.log.Info().Int("operations", len(recs)).Int("failed", failed).Msg("worker finished")
	return recs
}

func (w *Worker) RunSequentially(ctx context.Context, iterations int) {
	for i := 0; i < iterations; i++ {
		for _, op := range SequentialOrder {
			if ctx.Err() != nil {
				w.log.Warn().Int("iteration", i).Msg("run interrupted")
				return
			}
			w.Execute(op)
		}
	}
}

func (w *Worker) RunRandomly(ctx context.Context, iterations int) {
	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			w.log.Warn().Int("iteration", i).Msg("run interrupted")
			return
		}
		w.Execute(SequentialOrder[w.rng.IntN(len(SequentialOrder))])
	}
}

func (w *Worker) Execute(op OperationType) OperationRecord {
	var rec OperationRecord
	switch op {
	case CopyFile:
		rec = w.CopyFile()
	case CopyDir:
		rec = w.CopyDir()
	case MoveDir:
		rec = w.MoveDir()
	case EditFile:
		rec = w.EditFile()
	case ReadFile:
		rec = w.ReadFile()
	case DeleteFile:
		rec = w.DeleteFile()
	case DeleteDir:
		rec = w.DeleteDir()
	default:
		rec = w.recorder.Fail(Target{Op: op}, fmt.Errorf("unknown operation type %q", op))
	}

	if !rec.Success {
		w.log.Debug().Int("operation_id", rec.OperationID).Str("op", string(op)).Str("error", rec.Error).Msg("operation failed")
	}
	return rec
}

func (w *Worker) Records() []OperationRecord {
	return w.recorder.Records()
}

func (w *Worker) CopyFile() OperationRecord {
	s := w.strategies[CopyFile]
	t := Target{Op: CopyFile, Strategy: s.Name()}

	name, err := w.selector.Next(CopyFile, w.sourceFiles, KindFile)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	ext := filepath.Ext(name)
	src := filepath.Join(w.sourceFiles, name)
	dst := filepath.Join(w.managedFiles, w.namer.Name("copied_"+strings.TrimSuffix(name, ext), w.recorder.Counter(), ext))

	t.Path, t.Destination, t.Size = src, dst, w.size(src)
	return w.recorder.Measure(t, func() error { return s.CopyFile(src, dst) })
}

func (w *Worker) CopyDir() OperationRecord {
	s := w.strategies[CopyDir]
	t := Target{Op: CopyDir, Strategy: s.Name()}

	name, err := w.selector.Next(CopyDir, w.sourceDirs, KindDir)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	src := filepath.Join(w.sourceDirs, name)
	dst := filepath.Join(w.managedDirs, w.namer.Name(name, w.recorder.Counter(), ""))

	t.Path, t.Destination = src, dst
	return w.recorder.Measure(t, func() error { return s.CopyDir(src, dst) })
}

// MoveDir relocates a directory inside the managed pool so the source pool is never drained.
func (w *Worker) MoveDir() OperationRecord {
	s := w.strategies[MoveDir]
	t := Target{Op: MoveDir, Strategy: s.Name()}

	name, err := w.selector.Next(MoveDir, w.managedDirs, KindDir)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	src := filepath.Join(w.managedDirs, name)
	dst := filepath.Join(w.managedDirs, w.namer.Name("moved_"+name, w.recorder.Counter(), ""))

	t.Path, t.Destination = src, dst
	return w.recorder.Measure(t, func() error { return s.MoveDir(src, dst) })
}

func (w *Worker) EditFile() OperationRecord {
	s := w.strategies[EditFile]
	t := Target{Op: EditFile, Strategy: s.Name()}

	name, err := w.selector.Next(EditFile, w.managedFiles, KindFile)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	path := filepath.Join(w.managedFiles, name)
	payload := w.payload(editPayloadLen)

	t.Path, t.Size = path, w.size(path)
	return w.recorder.Measure(t, func() error { return s.AppendFile(path, payload) })
}

// ReadFile reads the whole file; the content is dropped after measurement.
func (w *Worker) ReadFile() OperationRecord {
	s := w.strategies[ReadFile]
	t := Target{Op: ReadFile, Strategy: s.Name()}

	name, err := w.selector.Next(ReadFile, w.managedFiles, KindFile)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	path := filepath.Join(w.managedFiles, name)

	t.Path, t.Size = path, w.size(path)
	return w.recorder.Measure(t, func() error {
		_, err := s.ReadFile(path)
		return err
	})
}

// DeleteFile only touches copies, never the source pool.
func (w *Worker) DeleteFile() OperationRecord {
	s := w.strategies[DeleteFile]
	t := Target{Op: DeleteFile, Strategy: s.Name()}

	name, err := w.selector.Next(DeleteFile, w.managedFiles, KindFile)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	path := filepath.Join(w.managedFiles, name)

	t.Path, t.Size = path, w.size(path)
	return w.recorder.Measure(t, func() error { return s.RemoveFile(path) })
}

func (w *Worker) DeleteDir() OperationRecord {
	s := w.strategies[DeleteDir]
	t := Target{Op: DeleteDir, Strategy: s.Name()}

	name, err := w.selector.Next(DeleteDir, w.managedDirs, KindDir)
	if err != nil {
		return w.recorder.Fail(t, err)
	}
	path := filepath.Join(w.managedDirs, name)

	t.Path = path
	return w.recorder.Measure(t, func() error { return s.RemoveDir(path) })
}

func (w *Worker) size(path string) *int64 {
	fi, err := w.fs.Stat(path)
	if err != nil || fi.IsDir() {
		return nil
	}
	n := fi.Size()
	return &n
}

func (w *Worker) payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[w.rng.IntN(len(alphanumeric))]
	}
	return b
}
