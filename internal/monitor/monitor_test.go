package monitor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCollector(n int, cancel context.CancelFunc) Collector {
	calls := 0
	return func(ctx context.Context) (Sample, error) {
		calls++
		if calls == n {
			cancel()
		}
		if calls == 2 {
			return Sample{}, errors.New("transient")
		}
		return Sample{
			Time:        time.Unix(0, int64(calls)),
			Ns:          int64(calls),
			CPUPercent:  25,
			CPUPerCore:  []float64{10, 40},
			AvailableMB: 2048,
		}, nil
	}
}

func TestRunWritesRowsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(time.Millisecond)
	m.Collect = fakeCollector(4, cancel)

	var buf bytes.Buffer
	rows, err := m.Run(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Header(2), records[0])
	assert.Equal(t, "1", records[1][1])
	assert.Equal(t, "25.00", records[1][2])
	assert.Equal(t, "75.00", records[1][3])
	assert.Equal(t, "40.00", records[1][5])
	assert.Equal(t, "2048", records[1][6])
	assert.Equal(t, "3", records[2][1])
}

func TestRowPadsMissingCores(t *testing.T) {
	row := Row(Sample{CPUPerCore: []float64{1}}, 3)
	assert.Len(t, row, len(Header(3)))
	assert.Equal(t, "0.00", row[6])
}

func TestRunToFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(time.Millisecond)
	m.Collect = fakeCollector(1, cancel)

	rows, err := m.RunToFile(ctx, fs, "/monitoring.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	raw, err := afero.ReadFile(fs, "/monitoring.csv")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "timestamp,timestamp_ns,cpu_percent")
}

func TestHostCollector(t *testing.T) {
	h := NewHostCollector(New(time.Second).Clock)
	first, err := h.Collect(context.Background())
	if err != nil {
		t.Skipf("host counters unavailable: %v", err)
	}
	assert.NotZero(t, first.Ns)
	assert.Zero(t, first.DiskReadBytesPerSec)

	second, err := h.Collect(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Ns, first.Ns)
	assert.GreaterOrEqual(t, second.DiskReadBytesPerSec, 0.0)
}
