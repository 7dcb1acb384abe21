package monitor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/afero"

	"fsbench/internal/bench"
	"fsbench/internal/logger"
)

// Sample is one row of host telemetry.
type Sample struct {
	Time time.Time
	Ns   int64

	CPUPercent  float64
	CPUPerCore  []float64
	AvailableMB uint64

	DiskReadBytesPerSec  float64
	DiskWriteBytesPerSec float64
	DiskReadsPerSec      float64
	DiskWritesPerSec     float64
}

// Collector produces one sample; it is called once per interval.
type Collector func(ctx context.Context) (Sample, error)

// Monitor polls host counters on a fixed interval and appends them as CSV
// rows. It shares the benchmark clock so rows line up with operation records.
type Monitor struct {
	Interval time.Duration
	Clock    *bench.Clock
	Collect  Collector

	log zerolog.Logger
}

func New(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	clock := bench.DefaultClock()
	return &Monitor{
		Interval: interval,
		Clock:    clock,
		Collect:  NewHostCollector(clock).Collect,
		log:      logger.Get().With().Str("component", "monitor").Logger(),
	}
}

// RunToFile creates path and samples into it until ctx is done.
func (m *Monitor) RunToFile(ctx context.Context, fs afero.Fs, path string) (int, error) {
	f, err := fs.Create(path)
	if err != nil {
		return 0, fmt.Errorf("monitor.RunToFile: %w", err)
	}
	defer f.Close()
	return m.Run(ctx, f)
}

// Run writes a header and one row per interval until ctx is done. It returns
// the number of rows written. A failed sample is logged and skipped.
func (m *Monitor) Run(ctx context.Context, out io.Writer) (int, error) {
	w := csv.NewWriter(out)
	defer w.Flush()

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", m.Interval).Msg("monitoring started")
	rows := 0
	cores := -1
	for {
		s, err := m.Collect(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("sample failed")
		} else {
			if cores < 0 {
				cores = len(s.CPUPerCore)
				if err := w.Write(Header(cores)); err != nil {
					return rows, fmt.Errorf("monitor.Run: %w", err)
				}
			}
			if err := w.Write(Row(s, cores)); err != nil {
				return rows, fmt.Errorf("monitor.Run: %w", err)
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return rows, fmt.Errorf("monitor.Run: %w", err)
			}
			rows++
		}

		if !next(ctx, ticker) {
			m.log.Info().Int("rows", rows).Msg("monitoring stopped")
			return rows, nil
		}
	}
}

// next waits for the following tick. It reports false once ctx is done,
// even if a tick is also pending.
func next(ctx context.Context, ticker *time.Ticker) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
		return true
	}
}

func Header(cores int) []string {
	h := []string{"timestamp", "timestamp_ns", "cpu_percent", "cpu_idle_percent"}
	for i := 0; i < cores; i++ {
		h = append(h, "cpu"+strconv.Itoa(i))
	}
	return append(h,
		"available_mb",
		"disk_read_bytes_per_sec", "disk_write_bytes_per_sec",
		"disk_reads_per_sec", "disk_writes_per_sec",
	)
}

// Row formats s with exactly cores per-core columns.
func Row(s Sample, cores int) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	row := []string{
		s.Time.Format(time.RFC3339Nano),
		strconv.FormatInt(s.Ns, 10),
		f(s.CPUPercent),
		f(100 - s.CPUPercent),
	}
	for i := 0; i < cores; i++ {
		v := 0.0
		if i < len(s.CPUPerCore) {
			v = s.CPUPerCore[i]
		}
		row = append(row, f(v))
	}
	return append(row,
		strconv.FormatUint(s.AvailableMB, 10),
		f(s.DiskReadBytesPerSec), f(s.DiskWriteBytesPerSec),
		f(s.DiskReadsPerSec), f(s.DiskWritesPerSec),
	)
}

// HostCollector reads counters through gopsutil. Disk rates are deltas
// against the previous call, so the first sample reports zero.
type HostCollector struct {
	clock *bench.Clock

	prevAt time.Time
	prev   disk.IOCountersStat
}

func NewHostCollector(clock *bench.Clock) *HostCollector {
	return &HostCollector{clock: clock}
}

func (h *HostCollector) Collect(ctx context.Context) (Sample, error) {
	at, ns := h.clock.Now()
	s := Sample{Time: at, Ns: ns}

	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return s, fmt.Errorf("cpu: %w", err)
	}
	if len(total) > 0 {
		s.CPUPercent = total[0]
	}
	s.CPUPerCore, err = cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return s, fmt.Errorf("cpu per core: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("memory: %w", err)
	}
	s.AvailableMB = vm.Available / (1024 * 1024)

	// Disk counters are missing in some containers; rates stay zero then.
	counters, err := disk.IOCountersWithContext(ctx)
	if err == nil {
		var sum disk.IOCountersStat
		for _, c := range counters {
			sum.ReadBytes += c.ReadBytes
			sum.WriteBytes += c.WriteBytes
			sum.ReadCount += c.ReadCount
			sum.WriteCount += c.WriteCount
		}
		if !h.prevAt.IsZero() {
			if secs := at.Sub(h.prevAt).Seconds(); secs > 0 {
				s.DiskReadBytesPerSec = rate(sum.ReadBytes, h.prev.ReadBytes, secs)
				s.DiskWriteBytesPerSec = rate(sum.WriteBytes, h.prev.WriteBytes, secs)
				s.DiskReadsPerSec = rate(sum.ReadCount, h.prev.ReadCount, secs)
				s.DiskWritesPerSec = rate(sum.WriteCount, h.prev.WriteCount, secs)
			}
		}
		h.prev, h.prevAt = sum, at
	}
	return s, nil
}

func rate(cur, prev uint64, secs float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / secs
}
