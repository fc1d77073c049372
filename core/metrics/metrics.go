// Package metrics defines the observability contracts for scoring activity.
// Sinks live in infra/metrics; the core only records through these interfaces.
package metrics

import (
	"time"

	"github.com/feaslabs/feasly/core/model"
)

// Outcome classifies how an aggregation job terminated.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeRejected Outcome = "rejected"
)

// AggregateRecord captures one emitted aggregate for recording.
type AggregateRecord struct {
	JobID      string
	Overall    float64
	Outcome    Outcome
	Dimensions int
	FanIn      time.Duration
	EmittedAt  time.Time
}

// DimensionRecord captures one specialist answer for recording.
type DimensionRecord struct {
	JobID      string
	Dimension  model.Dimension
	Score      float64
	Confidence float64
	ReceivedAt time.Time
}

// Sink records aggregate results for observability purposes.
type Sink interface {
	RecordAggregate(recs []AggregateRecord) error
}

// DimensionRecorder is implemented by sinks that also track per-dimension
// answers.
type DimensionRecorder interface {
	RecordDimension(recs []DimensionRecord) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordAggregate([]AggregateRecord) error { return nil }
func (NopSink) RecordDimension([]DimensionRecord) error { return nil }
