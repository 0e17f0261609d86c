package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records pipeline metrics into its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetchAttempts   *prometheus.CounterVec
	symbols         *prometheus.CounterVec
	refreshRuns     *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	checkpoints     prometheus.Counter
	decisions       *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sp500scope_fetch_attempts_total",
				Help: "Upstream fetch attempts by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		symbols: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sp500scope_symbols_total",
				Help: "Symbols processed per refresh by outcome",
			},
			[]string{"outcome"},
		),
		refreshRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sp500scope_refresh_runs_total",
				Help: "Refresh cycles by result",
			},
			[]string{"result"},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sp500scope_refresh_duration_seconds",
				Help:    "Duration of a full refresh cycle",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
			},
		),
		checkpoints: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sp500scope_checkpoints_total",
				Help: "Snapshot checkpoints written after fetch batches",
			},
		),
		decisions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sp500scope_decisions",
				Help: "Symbols per decision in the latest scored snapshot",
			},
			[]string{"decision"},
		),
	}
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordFetchAttempt records one upstream attempt
func (r *Recorder) RecordFetchAttempt(stage, outcome string) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(stage, outcome).Inc()
}

// RecordSymbol records how a symbol ended up in the cycle output
func (r *Recorder) RecordSymbol(outcome string) {
	if r == nil {
		return
	}
	r.symbols.WithLabelValues(outcome).Inc()
}

// RecordRefresh records a finished refresh cycle
func (r *Recorder) RecordRefresh(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.refreshRuns.WithLabelValues(result).Inc()
	r.refreshDuration.Observe(elapsed.Seconds())
}

// RecordCheckpoint records a batch checkpoint
func (r *Recorder) RecordCheckpoint() {
	if r == nil {
		return
	}
	r.checkpoints.Inc()
}

// SetDecisions replaces the decision distribution gauge
func (r *Recorder) SetDecisions(counts map[string]int) {
	if r == nil {
		return
	}
	r.decisions.Reset()
	for decision, n := range counts {
		r.decisions.WithLabelValues(decision).Set(float64(n))
	}
}
