package telemetry

import "testing"

func TestComputeScoreStats_Empty(t *testing.T) {
	stats := ComputeScoreStats(nil)
	if stats != (ScoreStats{}) {
		t.Errorf("expected zero value for empty input, got %+v", stats)
	}
}

func TestComputeScoreStats_SingleValue(t *testing.T) {
	stats := ComputeScoreStats([]float32{0.5})
	if stats.Mean != 0.5 || stats.StdDev != 0 || stats.P50 != 0.5 || stats.P95 != 0.5 {
		t.Errorf("expected mean=p50=p95=0.5, stdDev=0, got %+v", stats)
	}
}

func TestComputeScoreStats_Uniform(t *testing.T) {
	scores := []float32{1, 1, 1, 1}
	stats := ComputeScoreStats(scores)
	if stats.Mean != 1 || stats.StdDev != 0 {
		t.Errorf("expected mean=1, stdDev=0 for uniform scores, got %+v", stats)
	}
}

func TestComputeScoreStats_KnownDistribution(t *testing.T) {
	// 1..10: mean 5.5, population stddev ~2.8723.
	scores := make([]float32, 10)
	for i := range scores {
		scores[i] = float32(i + 1)
	}

	stats := ComputeScoreStats(scores)
	if diff := stats.Mean - 5.5; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected mean=5.5, got %f", stats.Mean)
	}
	if diff := stats.StdDev - 2.8723; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected stdDev~=2.8723, got %f", stats.StdDev)
	}
	// Nearest-rank P50 of 1..10 is the 5th smallest value (ceil(0.5*10)=5).
	if stats.P50 != 5 {
		t.Errorf("expected p50=5, got %f", stats.P50)
	}
	// Nearest-rank P95 of 1..10 is the 10th smallest value (ceil(0.95*10)=10).
	if stats.P95 != 10 {
		t.Errorf("expected p95=10, got %f", stats.P95)
	}
}

func TestPercentile_EmptyReturnsZero(t *testing.T) {
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("expected 0 for empty slice, got %f", got)
	}
}
