package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsDispatched    prometheus.Counter
	aggregatesEmitted *prometheus.CounterVec
	fanInLatency      *prometheus.HistogramVec
	pendingJobs       prometheus.Gauge
	staleResults      prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, *prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Gauge, prometheus.Counter) {
	jobs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_jobs_dispatched_total",
		Help: "Number of scoring jobs fanned out to specialists",
	})
	agg := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_aggregates_emitted_total",
		Help: "Number of aggregate results emitted, by outcome",
	}, []string{"outcome"})
	lat := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoring_fan_in_latency_seconds",
		Help:    "Time from job dispatch to aggregate emission",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scoring_jobs_pending",
		Help: "Number of in-flight aggregation jobs",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scoring_stale_results_total",
		Help: "Number of dimension results dropped for unknown or satisfied jobs",
	})
	return jobs, agg, lat, pending, stale
}

func init() {
	jobsDispatched, aggregatesEmitted, fanInLatency, pendingJobs, staleResults = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers orchestrator metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(jobsDispatched, aggregatesEmitted, fanInLatency, pendingJobs, staleResults)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	jobsDispatched, aggregatesEmitted, fanInLatency, pendingJobs, staleResults = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
