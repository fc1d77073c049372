// Package score holds the per-dimension scoring strategies and the specialist
// workers that run them. A strategy is an opaque collaborator: it always
// terminates within its caller's deadline and never surfaces an error to the
// orchestration layer. A strategy that cannot answer in time falls back to a
// local default instead.
package score

import (
	"context"

	"github.com/feaslabs/feasly/core/model"
)

// Strategy produces a DimensionResult for exactly one fixed dimension.
// Title and summary are non-empty; validation happens upstream.
type Strategy interface {
	Dimension() model.Dimension
	Score(ctx context.Context, title, summary string) model.DimensionResult
}

// StrategySet maps every dimension to its strategy. Construction fails unless
// all five dimensions are covered, preserving the exactly-five invariant at
// startup rather than at dispatch time.
type StrategySet map[model.Dimension]Strategy

// NewStrategySet builds the dispatch table from the given strategies.
func NewStrategySet(strategies ...Strategy) (StrategySet, error) {
	set := make(StrategySet, len(model.Dimensions))
	for _, s := range strategies {
		if _, dup := set[s.Dimension()]; dup {
			return nil, &SetError{Dimension: s.Dimension(), Reason: "duplicate strategy"}
		}
		set[s.Dimension()] = s
	}
	for _, d := range model.Dimensions {
		if _, ok := set[d]; !ok {
			return nil, &SetError{Dimension: d, Reason: "missing strategy"}
		}
	}
	return set, nil
}

// SetError reports an invalid strategy set.
type SetError struct {
	Dimension model.Dimension
	Reason    string
}

func (e *SetError) Error() string {
	return "score: " + e.Reason + " for dimension " + e.Dimension.String()
}
