package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"fsbench/internal/monitor"
)

var (
	monitorInterval time.Duration
	monitorOutput   string
	monitorDuration time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Sample host CPU, memory and disk I/O into a CSV until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if monitorDuration > 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, monitorDuration)
			defer cancel()
		}

		fs := afero.NewOsFs()
		if err := fs.MkdirAll(filepath.Dir(monitorOutput), 0o755); err != nil {
			return fmt.Errorf("monitor: %w", err)
		}

		fmt.Printf("📈 Sampling every %s into %s (Ctrl+C to stop)\n", monitorInterval, monitorOutput)
		rows, err := monitor.New(monitorInterval).RunToFile(ctx, fs, monitorOutput)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d samples.\n", rows)
		return nil
	},
}

func init() {
	f := monitorCmd.Flags()
	f.DurationVar(&monitorInterval, "interval", time.Second, "Sampling interval")
	f.StringVarP(&monitorOutput, "output", "o", "monitoring.csv", "CSV file to write")
	f.DurationVar(&monitorDuration, "duration", 0, "Stop after this long (default: until interrupted)")
}
