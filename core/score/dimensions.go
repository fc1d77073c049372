package score

import (
	"context"

	"github.com/feaslabs/feasly/core/model"
)

// CostStrategy estimates build cost: cheaper ideas score higher, so the length
// heuristic is inverted. Implausible prerequisites carry a flat penalty.
type CostStrategy struct{}

func (CostStrategy) Dimension() model.Dimension { return model.DimCost }

func (CostStrategy) Score(_ context.Context, _, summary string) model.DimensionResult {
	score := 100 - QuickScore(summary, 0)
	rationale := "Estimated infra & staffing for MVP"
	if ContainsImplausible(summary) {
		score = model.Clamp(score-40, 0, 100)
		rationale = "Estimated infra & staffing for MVP; penalized for speculative prerequisites"
	}
	return model.DimensionResult{
		Dimension:  model.DimCost,
		Score:      score,
		Confidence: 0.6,
		Rationale:  rationale,
	}
}

// EthicsStrategy is a fixed appraisal until a harm-detection model exists.
type EthicsStrategy struct{}

func (EthicsStrategy) Dimension() model.Dimension { return model.DimEthics }

func (EthicsStrategy) Score(_ context.Context, _, _ string) model.DimensionResult {
	return model.DimensionResult{
		Dimension:  model.DimEthics,
		Score:      85,
		Confidence: 0.7,
		Rationale:  "No immediate harmful externalities detected in description",
	}
}

// MarketStrategy scores market pull from the length heuristic with a positive
// bias. Implausible deliverables fail fast with a reduced score.
type MarketStrategy struct{}

func (MarketStrategy) Dimension() model.Dimension { return model.DimMarket }

func (MarketStrategy) Score(_ context.Context, _, summary string) model.DimensionResult {
	if ContainsImplausible(summary) {
		return model.DimensionResult{
			Dimension:  model.DimMarket,
			Score:      model.Clamp(QuickScore(summary, 10)-30, 0, 100),
			Confidence: 0.55,
			Rationale:  "Clear pain point; adjusted for deliverability constraints",
		}
	}
	return model.DimensionResult{
		Dimension:  model.DimMarket,
		Score:      QuickScore(summary, 10),
		Confidence: 0.55,
		Rationale:  "Clear pain point; several adjacent use cases",
	}
}

// TechStrategy scores technical feasibility. Gated phrases collapse the score
// to a near-zero constant regardless of summary length.
type TechStrategy struct{}

func (TechStrategy) Dimension() model.Dimension { return model.DimTech }

func (TechStrategy) Score(_ context.Context, _, summary string) model.DimensionResult {
	if ContainsImplausible(summary) {
		return model.DimensionResult{
			Dimension:  model.DimTech,
			Score:      5,
			Confidence: 0.6,
			Rationale:  "Requires speculative physics/undeveloped materials",
		}
	}
	return model.DimensionResult{
		Dimension:  model.DimTech,
		Score:      QuickScore(summary, 5),
		Confidence: 0.6,
		Rationale:  "Feasible with existing OSS/APIs",
	}
}

// TimingStrategy rates how well the idea fits the current window.
type TimingStrategy struct{}

func (TimingStrategy) Dimension() model.Dimension { return model.DimTiming }

func (TimingStrategy) Score(_ context.Context, _, summary string) model.DimensionResult {
	if ContainsImplausible(summary) {
		return model.DimensionResult{
			Dimension:  model.DimTiming,
			Score:      10,
			Confidence: 0.5,
			Rationale:  "Timeline unrealistic given scientific/industrial readiness",
		}
	}
	return model.DimensionResult{
		Dimension:  model.DimTiming,
		Score:      75,
		Confidence: 0.5,
		Rationale:  "Platform & trend alignment looks favorable",
	}
}

// DefaultStrategies returns the heuristic strategy for every dimension.
func DefaultStrategies() StrategySet {
	set, err := NewStrategySet(
		CostStrategy{},
		EthicsStrategy{},
		MarketStrategy{},
		TechStrategy{},
		TimingStrategy{},
	)
	if err != nil {
		// All five are listed right above; reaching this is a programming error.
		panic(err)
	}
	return set
}
