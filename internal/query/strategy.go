package query

import "math"

// Strategy names a retrieval configuration preset.
type Strategy string

const (
	StrategySparseOnly Strategy = "sparse-only"
	StrategyBalanced    Strategy = "balanced"
	StrategyDenseHeavy  Strategy = "dense-heavy"
	StrategyDeepRerank  Strategy = "deep-rerank"
)

// Configured maxima for candidate counts after difficulty adjustment.
const (
	MaxSparseTopK       = 300
	MaxDenseTopK        = 300
	MaxRerankCandidates = 150
)

// RetrievalConfig parameterizes C4-C6: how many candidates each retriever
// pulls, how fusion weighs them, and whether/how much reranking runs.
type RetrievalConfig struct {
	Strategy             Strategy `json:"strategy"`
	SparseTopK           int      `json:"sparse_top_k"`
	DenseTopK            int      `json:"dense_top_k"`
	SparseWeight         float32  `json:"sparse_weight"`
	DenseWeight          float32  `json:"dense_weight"`
	RerankCandidates     int      `json:"rerank_candidates"`
	UseSecondPass        bool     `json:"use_second_pass"`
	SecondPassCandidates int      `json:"second_pass_candidates"`
}

// basePresets are fixed contracts; values must not be silently changed.
var basePresets = map[Strategy]RetrievalConfig{
	StrategySparseOnly: {
		Strategy: StrategySparseOnly, SparseTopK: 50, DenseTopK: 0,
		SparseWeight: 1.0, DenseWeight: 0.0, RerankCandidates: 10,
		UseSecondPass: false, SecondPassCandidates: 0,
	},
	StrategyBalanced: {
		Strategy: StrategyBalanced, SparseTopK: 80, DenseTopK: 80,
		SparseWeight: 0.5, DenseWeight: 0.5, RerankCandidates: 30,
		UseSecondPass: false, SecondPassCandidates: 0,
	},
	StrategyDenseHeavy: {
		Strategy: StrategyDenseHeavy, SparseTopK: 60, DenseTopK: 120,
		SparseWeight: 0.3, DenseWeight: 0.7, RerankCandidates: 50,
		UseSecondPass: false, SecondPassCandidates: 20,
	},
	StrategyDeepRerank: {
		Strategy: StrategyDeepRerank, SparseTopK: 150, DenseTopK: 150,
		SparseWeight: 0.4, DenseWeight: 0.6, RerankCandidates: 100,
		UseSecondPass: true, SecondPassCandidates: 30,
	},
}

// intentStrategy is the fixed intent -> base strategy mapping.
var intentStrategy = map[Intent]Strategy{
	IntentNavigational: StrategySparseOnly,
	IntentFactual:       StrategyBalanced,
	IntentExploratory:   StrategyDenseHeavy,
	IntentAnalytical:    StrategyDeepRerank,
}

// Select returns the base RetrievalConfig for an intent, a copy of the fixed
// preset table (never the table itself, so callers may mutate freely).
func Select(intent Intent) RetrievalConfig {
	strategy, ok := intentStrategy[intent]
	if !ok {
		strategy = StrategyBalanced
	}
	return basePresets[strategy]
}

// Adjust scales candidate counts by difficulty: 0.6x and forced
// useSecondPass=false on easy, 1.5x (capped by the configured maxima) and
// useSecondPass=true for any non-sparse-only strategy on hard. medium is a
// no-op.
func Adjust(cfg RetrievalConfig, difficulty Difficulty) RetrievalConfig {
	switch difficulty {
	case DifficultyEasy:
		cfg.SparseTopK = scaleCount(cfg.SparseTopK, 0.6, MaxSparseTopK)
		cfg.DenseTopK = scaleCount(cfg.DenseTopK, 0.6, MaxDenseTopK)
		cfg.RerankCandidates = scaleCount(cfg.RerankCandidates, 0.6, MaxRerankCandidates)
		cfg.SecondPassCandidates = scaleCount(cfg.SecondPassCandidates, 0.6, MaxRerankCandidates)
		cfg.UseSecondPass = false
	case DifficultyHard:
		cfg.SparseTopK = scaleCount(cfg.SparseTopK, 1.5, MaxSparseTopK)
		cfg.DenseTopK = scaleCount(cfg.DenseTopK, 1.5, MaxDenseTopK)
		cfg.RerankCandidates = scaleCount(cfg.RerankCandidates, 1.5, MaxRerankCandidates)
		cfg.SecondPassCandidates = scaleCount(cfg.SecondPassCandidates, 1.5, MaxRerankCandidates)
		if cfg.Strategy != StrategySparseOnly {
			cfg.UseSecondPass = true
		}
	}
	return cfg
}

// Overrides carries the user-supplied fields that replace strategy-derived
// values. Nil fields leave the corresponding RetrievalConfig field untouched.
type Overrides struct {
	SparseWeight     *float32
	DenseWeight      *float32
	RerankCandidates *int
	EnableReranking  *bool
}

// Override merges user-supplied fields over a RetrievalConfig. This is a
// field-by-field replace, not a free-form patch: EnableReranking=false forces
// rerankCandidates to 0 and disables the second pass outright.
func Override(cfg RetrievalConfig, o Overrides) RetrievalConfig {
	if o.SparseWeight != nil {
		cfg.SparseWeight = *o.SparseWeight
	}
	if o.DenseWeight != nil {
		cfg.DenseWeight = *o.DenseWeight
	}
	if o.RerankCandidates != nil {
		cfg.RerankCandidates = *o.RerankCandidates
	}
	if o.EnableReranking != nil && !*o.EnableReranking {
		cfg.RerankCandidates = 0
		cfg.UseSecondPass = false
	}
	return cfg
}

// scaleCount multiplies n by factor, rounds to the nearest int, and clamps
// to [0, max].
func scaleCount(n int, factor float64, max int) int {
	scaled := int(math.Round(float64(n) * factor))
	if scaled < 0 {
		return 0
	}
	if scaled > max {
		return max
	}
	return scaled
}
