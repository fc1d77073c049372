package metrics

import coremetrics "github.com/feaslabs/feasly/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAggregate forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAggregate(recs []coremetrics.AggregateRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAggregate(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordDimension forwards dimension records when supported by the sink.
func (m *MultiSink) RecordDimension(recs []coremetrics.DimensionRecord) error {
	for _, s := range m.Sinks {
		if dr, ok := s.(coremetrics.DimensionRecorder); ok {
			if err := dr.RecordDimension(recs); err != nil {
				return err
			}
		}
	}
	return nil
}
