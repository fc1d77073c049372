package model

// DefaultWeights is the fixed weight set used when a request supplies none,
// or supplies a mapping whose values do not sum to a positive number.
func DefaultWeights() map[Dimension]float64 {
	return map[Dimension]float64{
		DimCost:   0.20,
		DimEthics: 0.20,
		DimMarket: 0.25,
		DimTech:   0.20,
		DimTiming: 0.15,
	}
}

// NormalizeWeights returns a weight entry for every dimension, scaled so the
// entries sum to 1.0. Missing dimensions count as zero. An absent or
// non-positive mapping is replaced by DefaultWeights before scaling.
func NormalizeWeights(w map[Dimension]float64) map[Dimension]float64 {
	full := make(map[Dimension]float64, len(Dimensions))
	var sum float64
	for _, d := range Dimensions {
		full[d] = w[d]
		sum += w[d]
	}
	if sum <= 0 {
		full = DefaultWeights()
		sum = 0
		for _, v := range full {
			sum += v
		}
	}
	for d, v := range full {
		full[d] = v / sum
	}
	return full
}
