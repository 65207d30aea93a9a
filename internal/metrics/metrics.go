// Package metrics exposes batch progress as Prometheus metrics on a private
// registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage labels for StageDuration.
const (
	StageAssemble = "assemble"
	StageGenerate = "generate"
)

// Metrics holds the run's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	QuestionsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ContextChars   prometheus.Histogram
	PersistErrors  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		QuestionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kgrag_questions_total",
			Help: "Questions processed, by outcome",
		}, []string{"status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kgrag_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		ContextChars: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kgrag_context_chars",
			Help:    "Rendered context size in characters",
			Buckets: prometheus.LinearBuckets(250, 250, 12),
		}),
		PersistErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "kgrag_persist_errors_total",
			Help: "Failed result file or ledger writes",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordQuestion counts one question outcome.
func (m *Metrics) RecordQuestion(status string) {
	if m == nil || m.QuestionsTotal == nil {
		return
	}
	m.QuestionsTotal.WithLabelValues(status).Inc()
}

// RecordStage observes one stage duration.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil || m.StageDuration == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordContext observes a rendered context size.
func (m *Metrics) RecordContext(chars int) {
	if m == nil || m.ContextChars == nil {
		return
	}
	m.ContextChars.Observe(float64(chars))
}

// RecordPersistError counts a failed write.
func (m *Metrics) RecordPersistError() {
	if m == nil || m.PersistErrors == nil {
		return
	}
	m.PersistErrors.Inc()
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
