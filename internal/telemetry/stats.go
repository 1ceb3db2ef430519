package telemetry

import (
	"math"
	"sort"
)

// ComputeScoreStats computes mean, standard deviation, and the 50th/95th
// percentiles of scores. Used while constructing a Record's per-retriever
// and fusion stats. Returns the zero value for an empty input.
func ComputeScoreStats(scores []float32) ScoreStats {
	if len(scores) == 0 {
		return ScoreStats{}
	}

	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	mean := sum / float64(len(scores))

	var varianceSum float64
	for _, s := range scores {
		diff := float64(s) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(scores)))

	sorted := make([]float32, len(scores))
	copy(sorted, scores)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return ScoreStats{
		Mean:   float32(mean),
		StdDev: float32(stdDev),
		P50:    percentile(sorted, 0.50),
		P95:    percentile(sorted, 0.95),
	}
}

// percentile returns the p-th percentile (0..1) of an already-sorted
// ascending slice using the nearest-rank method.
func percentile(sorted []float32, p float32) float32 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := int(math.Ceil(float64(p)*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
