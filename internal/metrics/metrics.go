// Package metrics exposes pipeline counters and histograms on a private
// Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "phasegen"

// Metrics holds the pipeline collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	phaseOutcomes     *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	stepFailures      *prometheus.CounterVec
	placeholders      *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.phaseOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_outcomes_total",
			Help:      "Finished phases by outcome",
		},
		[]string{"phase", "outcome"},
	)
	m.stepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time including the executor call",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"phase", "step"},
	)
	m.stepFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Steps that returned an error or panicked",
		},
		[]string{"phase"},
	)
	m.placeholders = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholders_total",
			Help:      "Missing upstream values replaced by the placeholder",
		},
		[]string{"phase"},
	)
	m.persistenceErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed document writes and memory snapshots",
		},
		[]string{"target"},
	)
	reg.MustRegister(collectors.NewGoCollector())
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePhase counts a finished phase.
func (m *Metrics) ObservePhase(phase, outcome string) {
	if m == nil {
		return
	}
	m.phaseOutcomes.WithLabelValues(phase, outcome).Inc()
}

// ObserveStep records a step's duration and whether it failed.
func (m *Metrics) ObserveStep(phase, step string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(phase, step).Observe(elapsed.Seconds())
	if failed {
		m.stepFailures.WithLabelValues(phase).Inc()
	}
}

// AddPlaceholders counts placeholder substitutions.
func (m *Metrics) AddPlaceholders(phase string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.placeholders.WithLabelValues(phase).Add(float64(n))
}

// PersistenceError counts a failed write. target is "document", "memory"
// or "state".
func (m *Metrics) PersistenceError(target string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(target).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
