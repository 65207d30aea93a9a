package retrieval

import (
	"math"
	"sort"
)

// #region percentile
// Percentile returns the p-th percentile of values using linear
// interpolation between the closest ranks. Empty input gives 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// Cutoff is max(minimum similarity, percentile of scores).
func Cutoff(scores []float64, t Threshold) float64 {
	return math.Max(t.MinimumSimilarity, Percentile(scores, t.Percentile))
}

// #endregion percentile

// #region select
// selectRelevant keeps items scoring at or above cutoff. When none clear it
// the single best item is kept so the prompt never loses its context.
func selectRelevant(items []Scored, cutoff float64) []Scored {
	var kept []Scored
	for _, it := range items {
		if it.Score >= cutoff {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 && len(items) > 0 {
		kept = []Scored{best(items)}
	}
	return kept
}

// best returns the highest scoring item; the earliest wins a tie.
func best(items []Scored) Scored {
	top := items[0]
	for _, it := range items[1:] {
		if it.Score > top.Score {
			top = it
		}
	}
	return top
}

// sortByScore orders items by descending score, keeping input order on ties.
func sortByScore(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

// #endregion select
