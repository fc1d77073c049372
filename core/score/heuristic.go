package score

import (
	"math"
	"strings"

	"github.com/feaslabs/feasly/core/model"
)

// implausibleKeywords gates ideas that depend on physics or materials nobody
// can buy yet. Matching is a case-insensitive substring test.
var implausibleKeywords = []string{
	"teleportation",
	"warp",
	"ftl",
	"faster-than-light",
	"time travel",
	"antigravity",
	"room-temperature superconductor",
	"ambient-pressure superconductor",
	"cold fusion",
	"perpetual motion",
	"instant terraforming",
	"space elevator",
}

// ContainsImplausible reports whether text mentions any gated phrase.
func ContainsImplausible(text string) bool {
	t := strings.ToLower(text)
	for _, k := range implausibleKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// QuickScore grows sublinearly with the word count of text: longer, more
// detailed descriptions read as more credible. Square-root law, clamped to
// [0,100] after the per-dimension bias is applied.
func QuickScore(text string, bias float64) float64 {
	n := len(strings.Fields(text))
	if n < 1 {
		n = 1
	}
	base := math.Min(100, 20+math.Sqrt(float64(n))*10)
	return model.Clamp(base+bias, 0, 100)
}
