package query

import "testing"

func TestSelectMapsIntentToStrategy(t *testing.T) {
	tests := []struct {
		intent   Intent
		strategy Strategy
	}{
		{IntentNavigational, StrategySparseOnly},
		{IntentFactual, StrategyBalanced},
		{IntentExploratory, StrategyDenseHeavy},
		{IntentAnalytical, StrategyDeepRerank},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			cfg := Select(tt.intent)
			if cfg.Strategy != tt.strategy {
				t.Errorf("expected strategy %q for intent %q, got %q", tt.strategy, tt.intent, cfg.Strategy)
			}
		})
	}
}

func TestSelectSparseOnlyHasZeroDenseTopK(t *testing.T) {
	cfg := Select(IntentNavigational)
	if cfg.DenseTopK != 0 {
		t.Errorf("expected denseTopK=0 for sparse-only, got %d", cfg.DenseTopK)
	}
}

func TestAdjustEasyScalesDownAndDisablesSecondPass(t *testing.T) {
	cfg := Select(IntentAnalytical) // deep-rerank: 150/150/100, secondPass=true, 30
	adjusted := Adjust(cfg, DifficultyEasy)

	if adjusted.SparseTopK != 90 { // round(150*0.6)
		t.Errorf("expected sparseTopK=90, got %d", adjusted.SparseTopK)
	}
	if adjusted.DenseTopK != 90 {
		t.Errorf("expected denseTopK=90, got %d", adjusted.DenseTopK)
	}
	if adjusted.RerankCandidates != 60 { // round(100*0.6)
		t.Errorf("expected rerankCandidates=60, got %d", adjusted.RerankCandidates)
	}
	if adjusted.UseSecondPass {
		t.Error("expected useSecondPass=false on easy difficulty")
	}
}

func TestAdjustHardScalesUpAndEnablesSecondPass(t *testing.T) {
	cfg := Select(IntentFactual) // balanced: 80/80/30, secondPass=false
	adjusted := Adjust(cfg, DifficultyHard)

	if adjusted.SparseTopK != 120 { // round(80*1.5)
		t.Errorf("expected sparseTopK=120, got %d", adjusted.SparseTopK)
	}
	if adjusted.DenseTopK != 120 {
		t.Errorf("expected denseTopK=120, got %d", adjusted.DenseTopK)
	}
	if !adjusted.UseSecondPass {
		t.Error("expected useSecondPass=true on hard difficulty for non-sparse-only strategy")
	}
}

func TestAdjustHardNeverEnablesSecondPassForSparseOnly(t *testing.T) {
	cfg := Select(IntentNavigational)
	adjusted := Adjust(cfg, DifficultyHard)

	if adjusted.UseSecondPass {
		t.Error("expected useSecondPass to remain false for sparse-only even on hard difficulty")
	}
}

func TestAdjustHardCapsAtConfiguredMaxima(t *testing.T) {
	cfg := RetrievalConfig{
		Strategy: StrategyDeepRerank, SparseTopK: 250, DenseTopK: 250, RerankCandidates: 120,
	}
	adjusted := Adjust(cfg, DifficultyHard)

	if adjusted.SparseTopK != MaxSparseTopK {
		t.Errorf("expected sparseTopK capped at %d, got %d", MaxSparseTopK, adjusted.SparseTopK)
	}
	if adjusted.DenseTopK != MaxDenseTopK {
		t.Errorf("expected denseTopK capped at %d, got %d", MaxDenseTopK, adjusted.DenseTopK)
	}
	if adjusted.RerankCandidates != MaxRerankCandidates {
		t.Errorf("expected rerankCandidates capped at %d, got %d", MaxRerankCandidates, adjusted.RerankCandidates)
	}
}

func TestAdjustMediumIsNoOp(t *testing.T) {
	cfg := Select(IntentFactual)
	adjusted := Adjust(cfg, DifficultyMedium)

	if adjusted != cfg {
		t.Errorf("expected medium difficulty to leave config unchanged, got %+v vs %+v", adjusted, cfg)
	}
}

func TestOverrideReplacesFields(t *testing.T) {
	cfg := Select(IntentFactual)

	sw := float32(0.8)
	dw := float32(0.2)
	rc := 15
	overridden := Override(cfg, Overrides{SparseWeight: &sw, DenseWeight: &dw, RerankCandidates: &rc})

	if overridden.SparseWeight != 0.8 || overridden.DenseWeight != 0.2 || overridden.RerankCandidates != 15 {
		t.Errorf("expected overrides to apply, got %+v", overridden)
	}
}

func TestOverrideDisableRerankingZeroesCandidatesAndSecondPass(t *testing.T) {
	cfg := Select(IntentAnalytical) // deep-rerank has useSecondPass=true
	disabled := false
	overridden := Override(cfg, Overrides{EnableReranking: &disabled})

	if overridden.RerankCandidates != 0 {
		t.Errorf("expected rerankCandidates=0 when reranking disabled, got %d", overridden.RerankCandidates)
	}
	if overridden.UseSecondPass {
		t.Error("expected useSecondPass=false when reranking disabled")
	}
}

func TestBasePresetsAreNotMutatedBySelect(t *testing.T) {
	cfg := Select(IntentFactual)
	cfg.SparseTopK = 9999

	fresh := Select(IntentFactual)
	if fresh.SparseTopK == 9999 {
		t.Error("expected Select to return a copy, not a shared reference to the preset table")
	}
}
