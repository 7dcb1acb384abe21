package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fsbench/internal/runner"
	"fsbench/internal/stats"
	"fsbench/internal/storage"
)

type outcome struct {
	ds  *storage.RunDataset
	err error
}

// Start runs the orchestrator headless, printing a progress line until the
// run ends, then a summary.
func Start(ctx context.Context, o *runner.Orchestrator) (*storage.RunDataset, error) {
	printHeader(o.Cfg)

	done := make(chan outcome, 1)
	startTime := time.Now()
	go func() {
		ds, err := o.Run(ctx)
		done <- outcome{ds, err}
	}()

	ticker := time.NewTicker(200 * time.Millisecond) // Faster updates for progress bar
	defer ticker.Stop()

	total := len(o.Cfg.Workers)
	for {
		select {
		case ev := <-o.Updates:
			printEvent(ev)
		case <-ticker.C:
			snap := o.Snapshot()
			printProgress(snap, total, time.Since(startTime))
		case res := <-done:
			drain(o.Updates)
			printProgress(o.Snapshot(), total, time.Since(startTime))
			fmt.Println()
			if res.ds != nil {
				printSummary(res.ds, time.Since(startTime))
			}
			if res.err != nil {
				printFailure(res.err)
			}
			return res.ds, res.err
		}
	}
}

func drain(updates runner.EventChan) {
	for {
		select {
		case ev := <-updates:
			printEvent(ev)
		default:
			return
		}
	}
}

func printHeader(cfg runner.Config) {
	fmt.Printf("\n🚀 STARTING FSBENCH RUN\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("Run ID     : %s\n", cfg.RunID())
	fmt.Printf("Workers    : %d\n", len(cfg.Workers))
	if len(cfg.Workers) > 0 {
		w := cfg.Workers[0]
		fmt.Printf("Source     : %s\n", w.UnmonitoredDir)
		fmt.Printf("Target     : %s\n", w.MonitoredDir)
		fmt.Printf("Mode       : %s x %d (strategy %s)\n", w.Mode, w.Iterations, w.Strategy)
	}
	if lo, hi, ok := cfg.ThinkTime.Bounds(); ok {
		fmt.Printf("Think Time : %s .. %s\n", lo, hi)
	}
	fmt.Printf("Output     : %s\n", cfg.OutputDir)
	fmt.Printf("======================================================================\n\n")
}

func printEvent(ev runner.Event) {
	switch ev.Kind {
	case runner.EventLaunched:
		fmt.Printf("\r\033[K▶  slot %d started (%s)\n", ev.Slot, ev.UniqueID)
	case runner.EventCompleted:
		fmt.Printf("\r\033[K✅ slot %d completed (%s, %d operations)\n", ev.Slot, ev.UniqueID, ev.Records)
	case runner.EventFailed:
		fmt.Printf("\r\033[K❌ slot %d failed (%s): %v\n", ev.Slot, ev.UniqueID, ev.Err)
	}
}

func printProgress(s runner.StatsSnapshot, total int, elapsed time.Duration) {
	finished := s.Completed + s.FailedWorkers
	pct := 0.0
	if total > 0 {
		pct = float64(finished) / float64(total)
	}
	fmt.Printf("\r%s %3.0f%% | %s | Active: %2d | Ops: %s | OK: %s | Err: %s | P99: %.2fms",
		progressBar(pct, 20), pct*100,
		elapsed.Round(time.Second),
		s.Active,
		humanize.Comma(int64(s.Operations)),
		humanize.Comma(int64(s.Success)),
		humanize.Comma(int64(s.Fail)),
		s.P99Ms,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(ds *storage.RunDataset, totalTime time.Duration) {
	a := stats.Analyze(ds)

	fmt.Printf("\n📊 RUN RESULTS (%s)\n", ds.Status)
	fmt.Printf("======================================================================\n")
	fmt.Printf("Total Duration : %s\n", totalTime.Round(time.Millisecond))
	fmt.Printf("Workers        : %d merged, %d missing\n", len(ds.Workers), len(ds.MissingSlots))
	fmt.Printf("Operations     : %s\n", humanize.Comma(int64(a.Overall.Count)))
	fmt.Printf("Success        : %s\n", humanize.Comma(int64(a.Succeeded)))
	fmt.Printf("Failures       : %s\n", humanize.Comma(int64(a.Failed)))
	fmt.Printf("Bytes Touched  : %s\n", humanize.IBytes(bytesTouched(ds)))

	if len(a.ByType) > 0 {
		fmt.Printf("\n⏱️  DURATION BY OPERATION (ms)\n")
		fmt.Printf("   %-12s %8s %9s %9s %9s %9s\n", "operation", "count", "mean", "p50", "p99", "max")
		for _, s := range a.ByType {
			fmt.Printf("   %-12s %8d %9.3f %9.3f %9.3f %9.3f\n",
				s.OperationType, s.Count, s.Mean*1e3, s.P50*1e3, s.P99*1e3, s.Max*1e3)
		}
	}

	if errCounts := errorCounts(ds); len(errCounts) > 0 {
		fmt.Printf("\n❌ FAILURE SUMMARY\n")
		for _, e := range errCounts {
			fmt.Printf("   %d x %s\n", e.count, e.msg)
		}
	}
	if len(ds.MissingSlots) > 0 {
		fmt.Printf("\n⚠️  MISSING SLOTS\n")
		for _, m := range ds.MissingSlots {
			fmt.Printf("   slot %d %s: %s\n", m.Slot, m.UniqueID, m.Error)
		}
	}
	fmt.Printf("======================================================================\n")
}

func printFailure(err error) {
	if errors.Is(err, runner.ErrWorkersFailed) {
		fmt.Printf("\n⚠️  Run finished with failed workers; the merged dataset is partial.\n")
		return
	}
	fmt.Printf("\n💥 Run failed: %v\n", err)
}

func bytesTouched(ds *storage.RunDataset) uint64 {
	var n uint64
	for _, r := range ds.Records {
		if r.Success && r.SizeBytes != nil && *r.SizeBytes > 0 {
			n += uint64(*r.SizeBytes)
		}
	}
	return n
}

type errorCount struct {
	msg   string
	count int
}

// errorCounts groups failure messages by operation type, in first-seen order.
func errorCounts(ds *storage.RunDataset) []errorCount {
	index := map[string]int{}
	var out []errorCount
	for _, r := range ds.Records {
		if r.Success {
			continue
		}
		key := string(r.OperationType) + ": " + shorten(r.Error, 90)
		if i, ok := index[key]; ok {
			out[i].count++
			continue
		}
		index[key] = len(out)
		out = append(out, errorCount{msg: key, count: 1})
	}
	return out
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
