package model

import "time"

// ScoringRequest asks the orchestrator to evaluate an idea.
type ScoringRequest struct {
	Title    string                `json:"title"`
	Summary  string                `json:"summary"`
	Weights  map[Dimension]float64 `json:"weights,omitempty"`
	CorrID   string                `json:"corr_id,omitempty"`
	ReplyTo  string                `json:"reply_to"`
	Received time.Time             `json:"-"`
}

// DimensionRequest is the per-specialist fan-out message.
type DimensionRequest struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Dimension Dimension `json:"dimension"`
}

// DimensionResult is one specialist's answer. Immutable once produced.
type DimensionResult struct {
	JobID      string    `json:"job_id"`
	Dimension  Dimension `json:"dimension"`
	Score      float64   `json:"score"`      // 0..100
	Confidence float64   `json:"confidence"` // 0..1
	Rationale  string    `json:"rationale"`
}

// AggregateResult is the fan-in outcome, complete or partial.
type AggregateResult struct {
	JobID     string            `json:"job_id"`
	Overall   float64           `json:"overall"` // weighted 0..100
	Breakdown []DimensionResult `json:"breakdown"`
	Partial   bool              `json:"partial"`
	CorrID    string            `json:"corr_id,omitempty"`
}

// InvalidJobID marks a synchronous rejection of an empty title or summary.
// No job with this id ever enters the tracker.
const InvalidJobID = "invalid"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
