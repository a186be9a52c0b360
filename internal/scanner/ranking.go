package scanner

import (
	"sort"

	"equitybot/internal/signal"
)

// TopOpportunities keeps signals with confidence >= minConfidence and strength >=
// minStrength, orders them by Score descending and returns at most topN
// (topN <= 0 keeps all). The sort is stable: equal scores keep detection order.
func TopOpportunities(signals []signal.Signal, minConfidence float64, minStrength signal.Strength, topN int) []signal.Signal {
	filtered := make([]signal.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.Confidence < minConfidence {
			continue
		}
		if sig.Strength.Ordinal() < minStrength.Ordinal() {
			continue
		}
		filtered = append(filtered, sig)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score() > filtered[j].Score()
	})
	if topN > 0 && len(filtered) > topN {
		filtered = filtered[:topN]
	}
	return filtered
}
