package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fusionScore      *prometheus.GaugeVec
	sourceFailures   *prometheus.CounterVec
	alertsGenerated  *prometheus.CounterVec
	alertsDropped    *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	broadcastTotal   *prometheus.CounterVec
	broadcastReached *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	cacheErrors      *prometheus.CounterVec
}

// New creates a recorder registered on reg, or on the default registry
// when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		fusionScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finfusion_fusion_score",
				Help: "Last fused score for a symbol",
			},
			[]string{"symbol"},
		),
		sourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_source_failures_total",
				Help: "Source adapter calls that failed or timed out",
			},
			[]string{"source"},
		),
		alertsGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_alerts_generated_total",
				Help: "Alerts persisted and published",
			},
			[]string{"signal"},
		),
		alertsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_alerts_dropped_total",
				Help: "Alerts dropped after persistence retries were exhausted",
			},
			[]string{"symbol"},
		),
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_job_runs_total",
				Help: "Scheduled job runs by outcome",
			},
			[]string{"job", "result"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfusion_job_duration_seconds",
				Help:    "Duration of scheduled job runs",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job"},
		),
		broadcastTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_broadcast_messages_total",
				Help: "Messages published to broadcast channels",
			},
			[]string{"channel"},
		),
		broadcastReached: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfusion_broadcast_subscribers_reached",
				Help:    "Subscribers reached per broadcast",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"channel"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfusion_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_cache_errors_total",
				Help: "Cache backend failures by operation",
			},
			[]string{"op"},
		),
	}
}

func (r *Recorder) RecordFusionScore(symbol string, score float64) {
	r.fusionScore.WithLabelValues(symbol).Set(score)
}

func (r *Recorder) RecordSourceFailure(source string) {
	r.sourceFailures.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordAlertGenerated(signal string) {
	r.alertsGenerated.WithLabelValues(signal).Inc()
}

func (r *Recorder) RecordAlertDropped(symbol string) {
	r.alertsDropped.WithLabelValues(symbol).Inc()
}

// RecordJob records one scheduled run. result is ok, error or skipped.
func (r *Recorder) RecordJob(job, result string, seconds float64) {
	r.jobRuns.WithLabelValues(job, result).Inc()
	if result != "skipped" {
		r.jobDuration.WithLabelValues(job).Observe(seconds)
	}
}

func (r *Recorder) RecordBroadcast(channel string, delivered int) {
	r.broadcastTotal.WithLabelValues(channel).Inc()
	r.broadcastReached.WithLabelValues(channel).Observe(float64(delivered))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheError is suitable as a cache.WithErrorHook callback.
func (r *Recorder) RecordCacheError(op string) {
	r.cacheErrors.WithLabelValues(op).Inc()
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordFusionScore(string, float64) {}
func (Nop) RecordSourceFailure(string)        {}
func (Nop) RecordAlertGenerated(string)       {}
func (Nop) RecordAlertDropped(string)         {}
func (Nop) RecordJob(string, string, float64) {}
func (Nop) RecordBroadcast(string, int)       {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
