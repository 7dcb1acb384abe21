package stats

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

var summaryHeader = []string{"count", "mean", "std", "min", "p25", "p50", "p75", "p90", "p99", "max", "total_duration_seconds"}

// ExportCSV writes every analysis table into dir and returns the file paths.
func (a *Analysis) ExportCSV(fs afero.Fs, dir string) ([]string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stats.ExportCSV: %w", err)
	}

	tables := []struct {
		name string
		rows [][]string
	}{
		{"general_stats.csv", a.generalRows()},
		{"stats_by_operation_type.csv", summaryRows([]string{"operation_type"}, a.ByType)},
		{"stats_by_instance.csv", summaryRows([]string{"instance"}, a.ByInstance)},
		{"stats_by_instance_and_type.csv", summaryRows([]string{"instance", "operation_type"}, a.ByInstanceType)},
		{"success_counts_by_instance.csv", a.successRows()},
		{"file_mb_per_sec.csv", a.throughputRows()},
		{"top10_slowest.csv", a.slowestRows()},
		{"intervals_ns.csv", a.intervalRows()},
	}

	var paths []string
	for _, t := range tables {
		path := filepath.Join(dir, t.name)
		if err := writeCSV(fs, path, t.rows); err != nil {
			return paths, fmt.Errorf("stats.ExportCSV: %s: %w", t.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(fs afero.Fs, path string, rows [][]string) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 9, 64)
}

func summaryValues(s Summary) []string {
	return []string{
		strconv.Itoa(s.Count), ff(s.Mean), ff(s.Std), ff(s.Min),
		ff(s.P25), ff(s.P50), ff(s.P75), ff(s.P90), ff(s.P99), ff(s.Max), ff(s.Total),
	}
}

// generalRows is the overall summary transposed, one statistic per row.
func (a *Analysis) generalRows() [][]string {
	rows := [][]string{{"statistic", "value"}}
	values := summaryValues(a.Overall)
	for i, h := range summaryHeader {
		rows = append(rows, []string{h, values[i]})
	}
	rows = append(rows,
		[]string{"succeeded", strconv.Itoa(a.Succeeded)},
		[]string{"failed", strconv.Itoa(a.Failed)},
		[]string{"missing_slots", strconv.Itoa(a.Missing)},
	)
	return rows
}

func summaryRows(keys []string, sums []Summary) [][]string {
	header := append(append([]string{}, keys...), summaryHeader...)
	rows := [][]string{header}
	for _, s := range sums {
		var row []string
		for _, k := range keys {
			switch k {
			case "instance":
				row = append(row, s.Instance)
			case "operation_type":
				row = append(row, string(s.OperationType))
			}
		}
		rows = append(rows, append(row, summaryValues(s)...))
	}
	return rows
}

func (a *Analysis) successRows() [][]string {
	rows := [][]string{{"instance", "succeeded", "failed"}}
	for _, s := range a.SuccessByInstance {
		rows = append(rows, []string{s.Instance, strconv.Itoa(s.Succeeded), strconv.Itoa(s.Failed)})
	}
	return rows
}

func (a *Analysis) throughputRows() [][]string {
	rows := [][]string{{"global_op_id", "instance", "operation_type", "size_bytes", "duration_seconds", "mb_per_sec"}}
	for _, t := range a.Throughput {
		rows = append(rows, []string{
			t.GlobalOpID, t.Instance, string(t.OperationType),
			strconv.FormatInt(t.SizeBytes, 10), ff(t.DurationSeconds), ff(t.MBPerSec),
		})
	}
	return rows
}

func (a *Analysis) slowestRows() [][]string {
	rows := [][]string{{"global_op_id", "instance", "operation_type", "target_path", "duration_seconds", "success", "error"}}
	for _, r := range a.Slowest {
		rows = append(rows, []string{
			GlobalOpID(r), r.Instance, string(r.OperationType), r.TargetPath,
			ff(r.DurationSeconds), strconv.FormatBool(r.Success), r.Error,
		})
	}
	return rows
}

func (a *Analysis) intervalRows() [][]string {
	rows := [][]string{{"global_op_id", "instance", "interval_ns"}}
	for _, i := range a.Intervals {
		rows = append(rows, []string{i.GlobalOpID, i.Instance, strconv.FormatInt(i.IntervalNs, 10)})
	}
	return rows
}
