package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/feaslabs/feasly/core/metrics"
)

// PromSink records scoring results in Prometheus metrics.
type PromSink struct {
	aggregates *prometheus.CounterVec
	overall    *prometheus.HistogramVec
	dimensions *prometheus.HistogramVec
}

// NewPromSink registers scoring metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	aggregates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feasibility_aggregates_total",
		Help: "Total number of emitted aggregate results",
	}, []string{"outcome"})
	overall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feasibility_overall_score",
		Help:    "Distribution of overall feasibility scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"outcome"})
	dimensions := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feasibility_dimension_score",
		Help:    "Distribution of per-dimension scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}, []string{"dimension"})

	for i, c := range []prometheus.Collector{aggregates, overall, dimensions} {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				aggregates = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				overall = are.ExistingCollector.(*prometheus.HistogramVec)
			case 2:
				dimensions = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}
	return &PromSink{aggregates: aggregates, overall: overall, dimensions: dimensions}, nil
}

// RecordAggregate increments the counters for each emitted aggregate.
func (s *PromSink) RecordAggregate(recs []coremetrics.AggregateRecord) error {
	for _, r := range recs {
		s.aggregates.WithLabelValues(string(r.Outcome)).Inc()
		s.overall.WithLabelValues(string(r.Outcome)).Observe(r.Overall)
	}
	return nil
}

// RecordDimension observes each specialist score.
func (s *PromSink) RecordDimension(recs []coremetrics.DimensionRecord) error {
	for _, r := range recs {
		s.dimensions.WithLabelValues(r.Dimension.String()).Observe(r.Score)
	}
	return nil
}
