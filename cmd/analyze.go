package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"fsbench/internal/bench"
	"fsbench/internal/stats"
	"fsbench/internal/storage"
)

var analyzeOut string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <merged_results.json | run-dir>",
	Short: "Compute statistics for a merged run and export them as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()

		path := args[0]
		if isDir, _ := afero.IsDir(fs, path); isDir {
			path = filepath.Join(path, storage.MergedFileName)
		}
		ds, err := storage.ReadDataset(fs, path)
		if err != nil {
			return err
		}
		if len(ds.Records) == 0 {
			return fmt.Errorf("analyze: %s holds no records", path)
		}

		out := analyzeOut
		if out == "" {
			out = filepath.Dir(path)
		}

		a := stats.Analyze(ds)
		files, err := a.ExportCSV(fs, out)
		if err != nil {
			return err
		}

		printAnalysis(a)
		fmt.Printf("\n📊 Wrote %d files to %s\n", len(files), out)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOut, "output", "o", "", "Directory for the CSV files (default: next to the dataset)")
}

func printAnalysis(a *stats.Analysis) {
	o := a.Overall
	fmt.Printf("%-14s %10s %10s %10s %10s %10s\n", "operation", "count", "mean ms", "p50 ms", "p99 ms", "max ms")
	row := func(name string, s stats.Summary) {
		fmt.Printf("%-14s %10s %10.3f %10.3f %10.3f %10.3f\n",
			name, humanize.Comma(int64(s.Count)), s.Mean*1e3, s.P50*1e3, s.P99*1e3, s.Max*1e3)
	}
	for _, s := range a.ByType {
		row(string(s.OperationType), s)
	}
	row("all", o)

	if len(a.Throughput) == 0 {
		return
	}
	type rate struct {
		sum   float64
		n     int
		bytes int64
	}
	rates := make(map[bench.OperationType]*rate)
	var order []bench.OperationType
	for _, t := range a.Throughput {
		r, ok := rates[t.OperationType]
		if !ok {
			r = &rate{}
			rates[t.OperationType] = r
			order = append(order, t.OperationType)
		}
		r.sum += t.MBPerSec
		r.n++
		r.bytes += t.SizeBytes
	}
	fmt.Println()
	for _, op := range order {
		r := rates[op]
		fmt.Printf("%-14s %10.2f MB/s avg  (%s moved)\n", op, r.sum/float64(r.n), humanize.IBytes(uint64(r.bytes)))
	}
}
