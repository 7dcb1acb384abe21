package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fsbench/internal/bench"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsbench_operation_duration_seconds",
		Help:    "File-system operation latency",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"operation", "strategy"})

	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsbench_operations_total",
		Help: "Operations by type and outcome",
	}, []string{"operation", "outcome"})

	BytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsbench_operation_bytes_total",
		Help: "File bytes touched by successful operations",
	}, []string{"operation"})

	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsbench_workers_active",
		Help: "Workers currently running",
	})
	WorkerFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsbench_worker_faults_total",
		Help: "Workers that ended without producing an artifact",
	})
)

func init() {
	// Pre-initialize Vec metrics so they appear in /metrics output before first use.
	for _, op := range bench.SequentialOrder {
		Operations.WithLabelValues(string(op), OutcomeSuccess)
		Operations.WithLabelValues(string(op), OutcomeFailure)
	}
}

// ObserveRecord updates the operation metrics. It matches bench.Observer.
func ObserveRecord(rec bench.OperationRecord) {
	op := string(rec.OperationType)
	OperationDuration.WithLabelValues(op, rec.Strategy).Observe(rec.DurationSeconds)
	if !rec.Success {
		Operations.WithLabelValues(op, OutcomeFailure).Inc()
		return
	}
	Operations.WithLabelValues(op, OutcomeSuccess).Inc()
	if rec.SizeBytes != nil && *rec.SizeBytes > 0 {
		BytesProcessed.WithLabelValues(op).Add(float64(*rec.SizeBytes))
	}
}

// HealthCheck holds a single health check function.
type HealthCheck struct {
	Name  string
	Check func() error
}

// HealthStatus represents the health response.
type HealthStatus struct {
	Status string            `json:"status"` // "ok" or "degraded"
	Checks map[string]string `json:"checks"`
}

type healthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

var defaultHealthChecker = &healthChecker{}

func RegisterHealthCheck(name string, check func() error) {
	defaultHealthChecker.mu.Lock()
	defer defaultHealthChecker.mu.Unlock()
	defaultHealthChecker.checks = append(defaultHealthChecker.checks, HealthCheck{
		Name:  name,
		Check: check,
	})
}

func runChecks() HealthStatus {
	defaultHealthChecker.mu.RLock()
	checks := make([]HealthCheck, len(defaultHealthChecker.checks))
	copy(checks, defaultHealthChecker.checks)
	defaultHealthChecker.mu.RUnlock()

	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]string),
	}
	for _, hc := range checks {
		if err := hc.Check(); err != nil {
			status.Status = "degraded"
			status.Checks[hc.Name] = err.Error()
		} else {
			status.Checks[hc.Name] = "ok"
		}
	}
	return status
}

// HealthzHandler handles GET /healthz requests.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	status := runChecks()
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// DirHealthCheck fails while path is not a reachable directory, e.g. when a
// network share under test drops.
func DirHealthCheck(path string) func() error {
	return func() error {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}
}

// MetricsServer starts an HTTP server for /metrics and /healthz on the given addr.
// It blocks until the provided stop channel is closed, then shuts down gracefully.
func MetricsServer(addr string, stop <-chan struct{}) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", HealthzHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		return err
	}
}
