package stats

import (
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsbench/internal/bench"
	"fsbench/internal/storage"
)

func rec(instance string, id int, op bench.OperationType, seconds float64, ok bool, size int64) storage.TaggedRecord {
	r := storage.TaggedRecord{
		OperationRecord: bench.OperationRecord{
			OperationID:     id,
			OperationType:   op,
			TargetPath:      "/p",
			StartTimeNs:     1000,
			EndTimeNs:       1000 + int64(seconds*1e9),
			DurationSeconds: seconds,
			Success:         ok,
		},
		Instance: instance,
	}
	if !ok {
		r.Error = "boom"
	}
	if size > 0 {
		r.SizeBytes = &size
	}
	return r
}

func dataset() *storage.RunDataset {
	return &storage.RunDataset{
		RunID:  "r",
		Status: storage.StatusMerged,
		Records: []storage.TaggedRecord{
			rec("b", 0, bench.CopyFile, 0.010, true, 1024*1024),
			rec("b", 1, bench.ReadFile, 0.002, true, 2*1024*1024),
			rec("b", 2, bench.DeleteDir, 0.500, false, 0),
			rec("a", 0, bench.CopyFile, 0.020, true, 1024*1024),
			rec("a", 1, bench.CopyFile, 0.030, false, 1024*1024),
		},
	}
}

func TestAnalyzeGroups(t *testing.T) {
	a := Analyze(dataset())

	assert.Equal(t, 5, a.Overall.Count)
	assert.InDelta(t, 0.562, a.Overall.Total, 1e-9)
	assert.InDelta(t, 0.002, a.Overall.Min, 1e-9)
	assert.InDelta(t, 0.5, a.Overall.Max, 1e-9)
	assert.Equal(t, 3, a.Succeeded)
	assert.Equal(t, 2, a.Failed)

	// sequential run order, not alphabetical
	require.Len(t, a.ByType, 3)
	assert.Equal(t, bench.CopyFile, a.ByType[0].OperationType)
	assert.Equal(t, bench.ReadFile, a.ByType[1].OperationType)
	assert.Equal(t, bench.DeleteDir, a.ByType[2].OperationType)
	assert.Equal(t, 3, a.ByType[0].Count)

	// first-seen instance order
	require.Len(t, a.ByInstance, 2)
	assert.Equal(t, "b", a.ByInstance[0].Instance)
	assert.Equal(t, "a", a.ByInstance[1].Instance)

	require.Len(t, a.ByInstanceType, 4)
	assert.Equal(t, "a", a.ByInstanceType[3].Instance)
	assert.Equal(t, 2, a.ByInstanceType[3].Count)

	assert.Equal(t, []SuccessCount{{"b", 2, 1}, {"a", 1, 1}}, a.SuccessByInstance)
}

func TestAnalyzeQuantilesWithinRange(t *testing.T) {
	a := Analyze(dataset())
	s := a.Overall
	assert.LessOrEqual(t, s.P25, s.P50)
	assert.LessOrEqual(t, s.P50, s.P90)
	assert.LessOrEqual(t, s.P90, s.P99)
	assert.InDelta(t, 0.5, s.P99, 0.001)
}

func TestAnalyzeThroughputOnlySuccessfulSizedOps(t *testing.T) {
	a := Analyze(dataset())
	require.Len(t, a.Throughput, 3)
	assert.Equal(t, "b_0", a.Throughput[0].GlobalOpID)
	assert.InDelta(t, 100.0, a.Throughput[0].MBPerSec, 1e-6)
	assert.InDelta(t, 1000.0, a.Throughput[1].MBPerSec, 1e-6)
}

func TestAnalyzeSlowestAndIntervals(t *testing.T) {
	a := Analyze(dataset())
	require.Len(t, a.Slowest, 5)
	assert.Equal(t, bench.DeleteDir, a.Slowest[0].OperationType)
	assert.Equal(t, bench.ReadFile, a.Slowest[4].OperationType)

	require.Len(t, a.Intervals, 5)
	assert.Equal(t, int64(500_000_000), a.Intervals[2].IntervalNs)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(&storage.RunDataset{RunID: "e"})
	assert.Equal(t, 0, a.Overall.Count)
	assert.Empty(t, a.ByType)
	assert.Empty(t, a.Slowest)
}

func TestExportCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := Analyze(dataset())

	paths, err := a.ExportCSV(fs, "/run")
	require.NoError(t, err)
	assert.Len(t, paths, 8)

	f, err := fs.Open(filepath.Join("/run", "stats_by_instance_and_type.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"instance", "operation_type", "count"}, rows[0][:3])
	assert.Equal(t, []string{"b", "copy_file", "1"}, rows[1][:3])

	raw, err := afero.ReadFile(fs, "/run/general_stats.csv")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "missing_slots,0")
}

func TestLiveStats(t *testing.T) {
	s := NewStats()
	size := int64(10)
	s.Add(bench.OperationRecord{Success: true, DurationSeconds: 0.001, SizeBytes: &size})
	s.Add(bench.OperationRecord{Success: false, DurationSeconds: 0.003})

	assert.Equal(t, uint64(2), s.Operations)
	assert.Equal(t, uint64(1), s.Fail)
	assert.Equal(t, uint64(10), s.Bytes)
	assert.InDelta(t, 50.0, s.ErrorRate(), 1e-9)
	assert.InDelta(t, 3.0, s.MaxMs(), 0.01)
}
