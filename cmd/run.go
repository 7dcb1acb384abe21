package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fsbench/internal/config"
	"fsbench/internal/cli"
	"fsbench/internal/logger"
	"fsbench/internal/metrics"
	"fsbench/internal/monitor"
	"fsbench/internal/runner"
	"fsbench/internal/seed"
	"fsbench/internal/stats"
	"fsbench/internal/storage"
	"fsbench/internal/tui/app"
)

var (
	runTUI     bool
	runAnalyze bool
	runReset   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch all workers of a scenario and merge their records",
	Example: `  fsbench run -s scenario.yaml
  fsbench run -n 8 -i 20 --mode random --unmonitored /data/in --monitored /mnt/nfs/out --analyze
  fsbench run -s scenario.yaml --tui --monitor`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	addScenarioFlags(f)
	addThinkFlags(f)
	f.BoolVar(&runTUI, "tui", false, "Show the interactive live view")
	f.BoolVar(&overrides.Monitor, "monitor", false, "Sample host telemetry into the run directory")
	f.BoolVar(&runAnalyze, "analyze", false, "Export statistics CSVs after merging")
	f.BoolVar(&runReset, "reset", false, "Empty each worker's managed pool before the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logger.Get()

	sc, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	if runReset {
		for _, w := range sc.Workers {
			n, err := seed.Reset(fs, w.MonitoredDir, w.UniqueID())
			if err != nil {
				return err
			}
			log.Debug().Str("unique_id", w.UniqueID()).Int("removed", n).Msg("managed pool reset")
		}
	}

	orch := runner.NewOrchestrator(sc.RunnerConfig(), fs, make(runner.EventChan, 256))
	// Fail before creating anything when the workers can't start.
	if err := orch.Validate(); err != nil {
		return err
	}

	store, err := storage.NewStore(viper.GetString("data_dir"))
	if err != nil {
		log.Warn().Err(err).Msg("run index unavailable, history will not be recorded")
		store = nil
	} else {
		defer store.Close()
	}

	if addr := viper.GetString("metrics_addr"); addr != "" {
		stopMetrics := make(chan struct{})
		defer close(stopMetrics)
		metrics.RegisterHealthCheck("output_dir", metrics.DirHealthCheck(sc.OutputDir))
		for _, w := range sc.Workers {
			metrics.RegisterHealthCheck("monitored:"+w.MonitoredDir, metrics.DirHealthCheck(w.MonitoredDir))
		}
		go func() {
			if err := metrics.MetricsServer(addr, stopMetrics); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
			}
		}()
		log.Info().Str("addr", addr).Msg("serving /metrics and /healthz")
	}

	stopMonitor, err := startMonitor(ctx, fs, sc, orch.RunDir())
	if err != nil {
		return err
	}

	started := time.Now()
	save := func(ds *storage.RunDataset, _ error) string {
		return saveSummary(store, ds, started, orch.MergedPath())
	}

	var ds *storage.RunDataset
	var runErr error
	if runTUI {
		m := app.NewModel(ctx, orch, store, save)
		final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		if err != nil {
			stopMonitor()
			return fmt.Errorf("tui: %w", err)
		}
		ds, runErr = final.(app.Model).Result()
	} else {
		ds, runErr = cli.Start(ctx, orch)
		if note := save(ds, runErr); note != "" {
			fmt.Println(note)
		}
	}
	stopMonitor()

	if runAnalyze && ds != nil && len(ds.Records) > 0 {
		files, err := stats.Analyze(ds).ExportCSV(fs, orch.RunDir())
		if err != nil {
			log.Error().Err(err).Msg("analysis export failed")
		} else {
			fmt.Printf("📊 Wrote %d statistics files to %s\n", len(files), orch.RunDir())
		}
	}

	log.Info().Str("run_id", orch.Cfg.RunID()).Str("state", orch.State().String()).Dur("elapsed", elapsedSince(started)).Msg("run finished")
	return runErr
}

// startMonitor samples host telemetry in the background when the scenario
// enables it. The returned func stops sampling and waits for the file to close.
func startMonitor(ctx context.Context, fs afero.Fs, sc *config.Scenario, runDir string) (func(), error) {
	if !sc.Monitor.Enabled {
		return func() {}, nil
	}
	path := sc.Monitor.Output
	if path == "" {
		path = filepath.Join(runDir, "monitoring.csv")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	monCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		rows, err := monitor.New(sc.Monitor.Interval).RunToFile(monCtx, fs, path)
		if err != nil {
			logger.Get().Error().Err(err).Str("path", path).Msg("telemetry sampling failed")
			return
		}
		logger.Get().Info().Int("samples", rows).Str("path", path).Msg("telemetry written")
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func saveSummary(store *storage.Store, ds *storage.RunDataset, started time.Time, mergedPath string) string {
	if store == nil || ds == nil {
		return ""
	}
	if err := store.Save(storage.Summarize(ds, started, time.Now(), mergedPath)); err != nil {
		logger.Get().Error().Err(err).Msg("saving run summary failed")
		return "History not updated."
	}
	return ""
}
