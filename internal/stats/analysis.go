package stats

import (
	"sort"
	"strconv"

	"fsbench/internal/bench"
	"fsbench/internal/storage"
)

const topSlowest = 10

// Summary describes the duration distribution of one group of records.
// Durations are in seconds; quantiles come from an HDR histogram (1us resolution).
type Summary struct {
	Instance      string
	OperationType bench.OperationType

	Count int
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	P90   float64
	P99   float64
	Max   float64
	Total float64
}

type SuccessCount struct {
	Instance  string
	Succeeded int
	Failed    int
}

// Throughput is the rate of one successful file operation.
type Throughput struct {
	GlobalOpID      string
	Instance        string
	OperationType   bench.OperationType
	SizeBytes       int64
	DurationSeconds float64
	MBPerSec        float64
}

type Interval struct {
	GlobalOpID string
	Instance   string
	IntervalNs int64
}

// Analysis is everything `fsbench analyze` derives from a merged dataset.
type Analysis struct {
	RunID   string
	Status  string
	Missing int

	Overall        Summary
	ByType         []Summary
	ByInstance     []Summary
	ByInstanceType []Summary

	Succeeded         int
	Failed            int
	SuccessByInstance []SuccessCount

	Throughput []Throughput
	Slowest    []storage.TaggedRecord
	Intervals  []Interval
}

// GlobalOpID is unique across the whole run.
func GlobalOpID(r storage.TaggedRecord) string {
	return r.Instance + "_" + strconv.Itoa(r.OperationID)
}

// group accumulates one Summary.
type group struct {
	hist  *SafeHistogram
	count int
	total float64
	min   float64
	max   float64
}

func newGroup() *group {
	return &group{hist: NewSafeHistogram()}
}

func (g *group) add(seconds float64) {
	if g.count == 0 || seconds < g.min {
		g.min = seconds
	}
	if seconds > g.max {
		g.max = seconds
	}
	g.count++
	g.total += seconds
	g.hist.RecordDuration(seconds)
}

func (g *group) summary(instance string, op bench.OperationType) Summary {
	s := Summary{Instance: instance, OperationType: op, Count: g.count}
	if g.count == 0 {
		return s
	}
	us := func(v int64) float64 { return float64(v) / 1e6 }
	s.Mean = g.total / float64(g.count)
	s.Std = g.hist.StdDev() / 1e6
	s.Min = g.min
	s.P25 = us(g.hist.ValueAtQuantile(25))
	s.P50 = us(g.hist.ValueAtQuantile(50))
	s.P75 = us(g.hist.ValueAtQuantile(75))
	s.P90 = us(g.hist.ValueAtQuantile(90))
	s.P99 = us(g.hist.ValueAtQuantile(99))
	s.Max = g.max
	s.Total = g.total
	return s
}

// Analyze aggregates a dataset. Instances keep launch order and operation
// types keep the sequential run order.
func Analyze(ds *storage.RunDataset) *Analysis {
	a := &Analysis{
		RunID:   ds.RunID,
		Status:  ds.Status,
		Missing: len(ds.MissingSlots),
	}

	overall := newGroup()
	byType := map[bench.OperationType]*group{}
	byInstance := map[string]*group{}
	byInstanceType := map[string]map[bench.OperationType]*group{}
	success := map[string]*SuccessCount{}
	var instances []string

	for _, r := range ds.Records {
		if _, ok := byInstance[r.Instance]; !ok {
			instances = append(instances, r.Instance)
			byInstance[r.Instance] = newGroup()
			byInstanceType[r.Instance] = map[bench.OperationType]*group{}
			success[r.Instance] = &SuccessCount{Instance: r.Instance}
		}
		if _, ok := byType[r.OperationType]; !ok {
			byType[r.OperationType] = newGroup()
		}
		if _, ok := byInstanceType[r.Instance][r.OperationType]; !ok {
			byInstanceType[r.Instance][r.OperationType] = newGroup()
		}

		d := r.DurationSeconds
		overall.add(d)
		byType[r.OperationType].add(d)
		byInstance[r.Instance].add(d)
		byInstanceType[r.Instance][r.OperationType].add(d)

		if r.Success {
			a.Succeeded++
			success[r.Instance].Succeeded++
		} else {
			a.Failed++
			success[r.Instance].Failed++
		}

		if r.Success && r.SizeBytes != nil && d > 0 {
			mb := float64(*r.SizeBytes) / (1024 * 1024)
			a.Throughput = append(a.Throughput, Throughput{
				GlobalOpID:      GlobalOpID(r),
				Instance:        r.Instance,
				OperationType:   r.OperationType,
				SizeBytes:       *r.SizeBytes,
				DurationSeconds: d,
				MBPerSec:        mb / d,
			})
		}

		a.Intervals = append(a.Intervals, Interval{
			GlobalOpID: GlobalOpID(r),
			Instance:   r.Instance,
			IntervalNs: r.EndTimeNs - r.StartTimeNs,
		})
	}

	a.Overall = overall.summary("", "")
	for _, op := range typeOrder(byType) {
		a.ByType = append(a.ByType, byType[op].summary("", op))
	}
	for _, inst := range instances {
		a.ByInstance = append(a.ByInstance, byInstance[inst].summary(inst, ""))
		for _, op := range typeOrder(byInstanceType[inst]) {
			a.ByInstanceType = append(a.ByInstanceType, byInstanceType[inst][op].summary(inst, op))
		}
		a.SuccessByInstance = append(a.SuccessByInstance, *success[inst])
	}

	a.Slowest = slowest(ds.Records, topSlowest)
	return a
}

// typeOrder lists the keys of m in SequentialOrder, then any unknown ones sorted.
func typeOrder(m map[bench.OperationType]*group) []bench.OperationType {
	var out []bench.OperationType
	known := map[bench.OperationType]bool{}
	for _, op := range bench.SequentialOrder {
		known[op] = true
		if _, ok := m[op]; ok {
			out = append(out, op)
		}
	}
	var rest []bench.OperationType
	for op := range m {
		if !known[op] {
			rest = append(rest, op)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

func slowest(recs []storage.TaggedRecord, n int) []storage.TaggedRecord {
	sorted := make([]storage.TaggedRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DurationSeconds > sorted[j].DurationSeconds
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
