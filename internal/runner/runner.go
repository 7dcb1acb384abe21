package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"fsbench/internal/bench"
	"fsbench/internal/logger"
	"fsbench/internal/metrics"
	"fsbench/internal/stats"
	"fsbench/internal/storage"
)

// Orchestrator launches one worker per configured slot, waits for all of
// them and merges their artifacts into a single dataset.
type Orchestrator struct {
	Cfg     Config
	Fs      afero.Fs
	Clock   *bench.Clock
	Stats   *stats.Stats
	Updates EventChan

	// Observer sees every record as it is measured, from the worker's goroutine.
	Observer bench.Observer

	state     atomic.Int32
	active    atomic.Int64
	mu        sync.Mutex
	launched  int
	completed int
	failed    int

	rng *rand.Rand
	log zerolog.Logger
}

func NewOrchestrator(cfg Config, fs afero.Fs, updates EventChan) *Orchestrator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(EventChan, 64)
	}

	return &Orchestrator{
		Cfg:     cfg,
		Fs:      fs,
		Clock:   bench.DefaultClock(),
		Stats:   stats.NewStats(),
		Updates: updates,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:     logger.Get().With().Str("run_id", cfg.RunID()).Logger(),
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) RunDir() string {
	return filepath.Join(o.Cfg.OutputDir, o.Cfg.RunID())
}

func (o *Orchestrator) MergedPath() string {
	return filepath.Join(o.RunDir(), storage.MergedFileName)
}

// Validate checks the configuration without touching any worker folder.
func (o *Orchestrator) Validate() error {
	if len(o.Cfg.Workers) == 0 {
		return fmt.Errorf("%w: no workers configured", ErrOrchestration)
	}
	runID := o.Cfg.RunID()
	if runID == "" {
		return fmt.Errorf("%w: run_id is empty", ErrOrchestration)
	}

	seen := make(map[string]int, len(o.Cfg.Workers))
	for i, w := range o.Cfg.Workers {
		if w.RunID != runID {
			return fmt.Errorf("%w: slot %d has run_id %q, expected %q", ErrOrchestration, i, w.RunID, runID)
		}
		uid := w.UniqueID()
		if prev, ok := seen[uid]; ok {
			return fmt.Errorf("%w: slots %d and %d share unique id %s", ErrOrchestration, prev, i, uid)
		}
		seen[uid] = i

		for _, dir := range []string{w.UnmonitoredDir, w.MonitoredDir} {
			if dir == "" {
				return fmt.Errorf("%w: slot %d: empty folder path", ErrOrchestration, i)
			}
			ok, err := afero.DirExists(o.Fs, dir)
			if err != nil {
				return fmt.Errorf("%w: slot %d: %s: %v", ErrOrchestration, i, dir, err)
			}
			if !ok {
				return fmt.Errorf("%w: slot %d: %s is not a directory", ErrOrchestration, i, dir)
			}
		}
	}
	return nil
}

// Run drives the state machine to Merged or Failed. When some workers failed
// the partial dataset is returned together with an error wrapping
// ErrWorkersFailed; an ErrOrchestration error means nothing was launched.
func (o *Orchestrator) Run(ctx context.Context) (*storage.RunDataset, error) {
	o.setState(Configuring)
	if err := o.Validate(); err != nil {
		o.log.Error().Err(err).Msg("configuration rejected")
		o.setState(Failed)
		return nil, err
	}
	if err := o.Fs.MkdirAll(o.RunDir(), 0o755); err != nil {
		o.setState(Failed)
		return nil, fmt.Errorf("%w: %s: %v", ErrOrchestration, o.RunDir(), err)
	}

	pool, err := NewPool[storage.WorkerArtifact](len(o.Cfg.Workers))
	if err != nil {
		o.setState(Failed)
		return nil, fmt.Errorf("%w: %v", ErrOrchestration, err)
	}
	defer pool.Release()

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	ticksDone := o.StartTickLoop(tickCtx, 200*time.Millisecond)

	o.setState(Launching)
	unlaunched := o.launch(ctx, pool)

	o.setState(Running)
	results := pool.Wait()
	stopTicks()
	<-ticksDone

	o.setState(Collecting)
	var parts []storage.WorkerArtifact
	missing := unlaunched
	var faults []error
	for _, res := range results {
		if res.Err == nil {
			parts = append(parts, res.Value)
			continue
		}
		fatal := o.asFatal(res.Slot, res.Err)
		faults = append(faults, fatal)
		wc := o.Cfg.Workers[res.Slot]
		missing = append(missing, storage.MissingSlot{
			Slot:       res.Slot,
			UniqueID:   fatal.UniqueID,
			ServerID:   wc.ServerID,
			InstanceID: wc.InstanceID,
			Error:      fatal.Err.Error(),
		})
	}

	ds := storage.Merge(o.Fs, o.Cfg.RunID(), parts, missing)
	if err := storage.WriteDataset(o.Fs, o.MergedPath(), ds); err != nil {
		o.setState(Failed)
		return ds, err
	}
	o.sendUpdate(Event{Kind: EventProgress, Stats: o.Snapshot()})

	o.log.Info().
		Int("workers", len(ds.Workers)).
		Int("missing", len(ds.MissingSlots)).
		Int("records", len(ds.Records)).
		Str("path", o.MergedPath()).
		Msg("dataset merged")

	if ds.Status == storage.StatusFailed {
		o.setState(Failed)
		if len(faults) == 0 {
			// only unreadable artifacts or cancelled launches
			faults = append(faults, fmt.Errorf("%d slot(s) missing from the dataset", len(ds.MissingSlots)))
		}
		return ds, errors.Join(append([]error{ErrWorkersFailed}, faults...)...)
	}
	o.setState(Merged)
	return ds, nil
}

// launch submits the workers in slot order with a think time between
// launches. Slots never launched because ctx ended are returned as missing.
func (o *Orchestrator) launch(ctx context.Context, pool *Pool[storage.WorkerArtifact]) []storage.MissingSlot {
	var unlaunched []storage.MissingSlot
	for i, wc := range o.Cfg.Workers {
		if ctx.Err() != nil {
			for j := i; j < len(o.Cfg.Workers); j++ {
				w := o.Cfg.Workers[j]
				unlaunched = append(unlaunched, storage.MissingSlot{
					Slot:       j,
					UniqueID:   w.UniqueID(),
					ServerID:   w.ServerID,
					InstanceID: w.InstanceID,
					Error:      "not launched: " + ctx.Err().Error(),
				})
			}
			o.log.Warn().Int("launched", i).Msg("launch interrupted")
			break
		}

		slot := i
		cfg := wc
		if _, err := pool.Submit(func() (storage.WorkerArtifact, error) {
			return o.runWorker(ctx, slot, cfg)
		}); err != nil {
			o.log.Error().Err(err).Int("slot", slot).Msg("submit failed")
		}
		o.mu.Lock()
		o.launched++
		o.mu.Unlock()
		o.sendUpdate(Event{Kind: EventLaunched, Slot: slot, UniqueID: cfg.UniqueID()})

		if i < len(o.Cfg.Workers)-1 {
			_ = sleepCtx(ctx, o.Cfg.ThinkTime.Draw(o.rng))
		}
	}
	return unlaunched
}

func (o *Orchestrator) runWorker(ctx context.Context, slot int, cfg bench.WorkerConfig) (storage.WorkerArtifact, error) {
	o.active.Add(1)
	metrics.WorkersActive.Inc()
	defer func() {
		o.active.Add(-1)
		metrics.WorkersActive.Dec()
	}()

	uid := cfg.UniqueID()
	fail := func(err error) (storage.WorkerArtifact, error) {
		fatal := &WorkerFatalError{Slot: slot, UniqueID: uid, Err: err}
		o.markFailed(fatal)
		return storage.WorkerArtifact{}, fatal
	}

	w, err := bench.NewWorker(cfg, bench.Options{
		Fs:       o.Fs,
		Clock:    o.Clock,
		Observer: o.observe,
	})
	if err != nil {
		return fail(err)
	}
	if err := w.Setup(); err != nil {
		return fail(err)
	}

	recs := w.Run(ctx)

	path, err := storage.WriteWorkerArtifact(o.Fs, o.RunDir(), w.Identity, recs, o.Clock.Nanos())
	if err != nil {
		return fail(err)
	}

	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
	o.sendUpdate(Event{Kind: EventCompleted, Slot: slot, UniqueID: uid, Records: len(recs)})

	return storage.WorkerArtifact{Slot: slot, Identity: w.Identity, Path: path}, nil
}

func (o *Orchestrator) observe(rec bench.OperationRecord) {
	o.Stats.Add(rec)
	metrics.ObserveRecord(rec)
	if o.Observer != nil {
		o.Observer(rec)
	}
}

// asFatal turns a pool error into a WorkerFatalError. Panics recovered by the
// pool were never reported, so they are reported here.
func (o *Orchestrator) asFatal(slot int, err error) *WorkerFatalError {
	var fatal *WorkerFatalError
	if errors.As(err, &fatal) {
		return fatal
	}
	fatal = &WorkerFatalError{Slot: slot, UniqueID: o.Cfg.Workers[slot].UniqueID(), Err: err}
	o.markFailed(fatal)
	return fatal
}

func (o *Orchestrator) markFailed(fatal *WorkerFatalError) {
	o.mu.Lock()
	o.failed++
	o.mu.Unlock()
	metrics.WorkerFaults.Inc()
	o.log.Error().Err(fatal.Err).Int("slot", fatal.Slot).Str("unique_id", fatal.UniqueID).Msg("worker failed")
	o.sendUpdate(Event{Kind: EventFailed, Slot: fatal.Slot, UniqueID: fatal.UniqueID, Err: fatal})
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.log.Debug().Str("state", s.String()).Msg("state")
	o.sendUpdate(Event{Kind: EventState, State: s})
}

// StartTickLoop starts a goroutine that pushes progress snapshots. The
// returned channel is closed once it has stopped.
func (o *Orchestrator) StartTickLoop(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.sendUpdate(Event{Kind: EventProgress, Stats: o.Snapshot()})
			}
		}
	}()
	return done
}

func (o *Orchestrator) Snapshot() StatsSnapshot {
	o.mu.Lock()
	launched, completed, failed := o.launched, o.completed, o.failed
	o.mu.Unlock()

	return StatsSnapshot{
		Operations:    atomic.LoadUint64(&o.Stats.Operations),
		Success:       atomic.LoadUint64(&o.Stats.Success),
		Fail:          atomic.LoadUint64(&o.Stats.Fail),
		Bytes:         atomic.LoadUint64(&o.Stats.Bytes),
		Launched:      launched,
		Active:        o.active.Load(),
		Completed:     completed,
		FailedWorkers: failed,
		P50Ms:         o.Stats.P50Ms(),
		P90Ms:         o.Stats.P90Ms(),
		P99Ms:         o.Stats.P99Ms(),
		MaxMs:         o.Stats.MaxMs(),
	}
}

func (o *Orchestrator) sendUpdate(ev Event) {
	if ev.Kind != EventState {
		ev.State = o.State()
	}
	ev.At = time.Now()

	// Non-blocking send
	select {
	case o.Updates <- ev:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}
