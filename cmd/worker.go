package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"fsbench/internal/bench"
	"fsbench/internal/logger"
	"fsbench/internal/metrics"
	"fsbench/internal/storage"
)

var workerInstance int

// workerCmd runs a single worker in this process. Several hosts can each run
// their own workers against the same output directory and merge afterwards.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one worker and write its artifact into the run directory",
	Example: `  fsbench worker --server-id 10.0.0.5 --instance 3 --run-id nightly \
    --unmonitored /data/in --monitored /mnt/nfs/out -o /mnt/nfs/results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()

		sc, err := loadScenario(cmd)
		if err != nil {
			return err
		}
		cfg := sc.Workers[0]
		if cmd.Flags().Changed("instance") {
			found := false
			for _, w := range sc.Workers {
				if w.InstanceID == workerInstance {
					cfg, found = w, true
					break
				}
			}
			if !found {
				cfg.InstanceID = workerInstance
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fs := afero.NewOsFs()
		clock := bench.DefaultClock()
		w, err := bench.NewWorker(cfg, bench.Options{Fs: fs, Clock: clock, Observer: metrics.ObserveRecord})
		if err != nil {
			return err
		}
		if err := w.Setup(); err != nil {
			return err
		}

		recs := w.Run(ctx)

		runDir := filepath.Join(sc.OutputDir, cfg.RunID)
		if err := fs.MkdirAll(runDir, 0o755); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		path, err := storage.WriteWorkerArtifact(fs, runDir, w.Identity, recs, clock.Nanos())
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range recs {
			if !r.Success {
				failed++
			}
		}
		fmt.Printf("✅ %s: %s operations (%d failed) -> %s\n", w.Identity.UniqueID, humanize.Comma(int64(len(recs))), failed, path)
		log.Debug().Str("artifact", path).Msg("worker artifact written")
		return nil
	},
}

func init() {
	addScenarioFlags(workerCmd.Flags())
	workerCmd.Flags().IntVar(&workerInstance, "instance", 1, "Instance id of this worker")
}
