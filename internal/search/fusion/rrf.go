// Package fusion provides configurable result fusion algorithms.
package fusion

import (
	"math"
	"sort"
	"strings"

	"github.com/ricesearch/rice-search/internal/qdrant"
)

const (
	// DefaultK is the RRF smoothing constant.
	// Higher values reduce the impact of rank position differences.
	DefaultK = 60

	// SymbolBonusPerToken is added per query token that exactly matches a
	// chunk symbol, capped at SymbolBonusCap.
	SymbolBonusPerToken = 0.02
	SymbolBonusCap      = 0.06

	// PathBonusPerToken is added per query token that matches a /-delimited
	// path segment (extension excluded).
	PathBonusPerToken = 0.01

	// LanguageBonus is added once if a recognized language keyword in the
	// query matches the chunk's language.
	LanguageBonus = 0.01
)

// recognizedLanguages are the keywords checked against the query text for
// the language-match bonus.
var recognizedLanguages = map[string]bool{
	"python": true, "go": true, "golang": true, "rust": true, "java": true,
	"javascript": true, "typescript": true, "c": true, "cpp": true, "c++": true,
	"csharp": true, "c#": true, "ruby": true, "php": true, "kotlin": true,
	"swift": true, "scala": true, "bash": true, "shell": true, "sql": true,
}

// RRFConfig configures Reciprocal Rank Fusion parameters.
type RRFConfig struct {
	// K is the smoothing constant (default: 60).
	// Higher values give more weight to lower-ranked results.
	K int

	// SparseWeight is the weight for sparse (BM25-like) results (0.0-1.0).
	// Default: 0.5 for equal weighting.
	SparseWeight float32

	// DenseWeight is the weight for dense (semantic) results (0.0-1.0).
	// Default: 0.5 for equal weighting.
	DenseWeight float32
}

// DefaultRRFConfig returns the default RRF configuration with equal weights.
func DefaultRRFConfig() RRFConfig {
	return RRFConfig{
		K:            DefaultK,
		SparseWeight: 0.5,
		DenseWeight:  0.5,
	}
}

// Options controls the code-aware bonus and grouping behavior of Fuse.
type Options struct {
	// GroupByFile interleaves results after scoring so that no file has
	// more than one chunk in the top 3 positions.
	GroupByFile bool
}

// ScoredResult represents a result with combined RRF score, code-aware
// bonuses, and component scores.
type ScoredResult struct {
	// Result is the original retriever result.
	Result qdrant.SearchResult

	// SparseRank is the rank in sparse-only results (1-based, 0 if not present).
	SparseRank int

	// DenseRank is the rank in dense-only results (1-based, 0 if not present).
	DenseRank int

	// SparseScore is the original sparse score from the retriever.
	SparseScore float32

	// DenseScore is the original dense score from the retriever.
	DenseScore float32

	// BaseScore is the weighted RRF score before code-aware bonuses.
	BaseScore float32

	// SymbolBonus, PathBonus, LanguageBonus are the individual bonus
	// contributions, kept separate for explainability.
	SymbolBonus   float32
	PathBonus     float32
	LanguageBonus float32

	// FinalScore is BaseScore plus bonuses, clamped to at most 2*BaseScore
	// unless ExactSymbolMatch overrides the clamp. This is the authoritative
	// pre-rerank score.
	FinalScore float32

	// ExactSymbolMatch is true when a query token exactly matched one of the
	// chunk's symbols, which overrides the final<=2*base clamp.
	ExactSymbolMatch bool
}

// Fuse combines sparse and dense results using weighted RRF plus code-aware
// bonuses, and returns them sorted by FinalScore descending with
// deterministic tie-breaking.
//
// base(doc) = sparseWeight/(k+sparseRank) + denseWeight/(k+denseRank)
// (absent legs contribute 0). Code-aware bonuses for symbol/path/language
// hits are added on top, then clamped to final <= 2*base unless the match
// includes an exact symbol hit, which overrides the clamp as an intentional
// encoding of navigational intent.
func Fuse(sparseResults, denseResults []qdrant.SearchResult, query string, cfg RRFConfig, opts Options) []ScoredResult {
	if cfg.K == 0 {
		cfg.K = DefaultK
	}
	if cfg.SparseWeight == 0 && cfg.DenseWeight == 0 {
		cfg = DefaultRRFConfig()
	}

	scores := make(map[string]*ScoredResult)

	for rank, r := range sparseResults {
		sr := getOrCreate(scores, r)
		sr.SparseRank = rank + 1
		sr.SparseScore = r.Score
		sr.BaseScore += cfg.SparseWeight / float32(cfg.K+rank+1)
	}

	for rank, r := range denseResults {
		sr := getOrCreate(scores, r)
		sr.DenseRank = rank + 1
		sr.DenseScore = r.Score
		sr.BaseScore += cfg.DenseWeight / float32(cfg.K+rank+1)
	}

	tokens := queryTokens(query)
	results := make([]ScoredResult, 0, len(scores))
	for _, sr := range scores {
		if sr.SparseRank > 0 && sr.DenseRank == 0 {
			sr.DenseScore = 0
		} else if sr.DenseRank > 0 && sr.SparseRank == 0 {
			sr.SparseScore = 0
		}
		applyBonuses(sr, tokens)
		results = append(results, *sr)
	}

	sort.Slice(results, func(i, j int) bool {
		return less(results[i], results[j])
	})

	if opts.GroupByFile {
		results = interleaveByFile(results)
	}

	return results
}

func getOrCreate(scores map[string]*ScoredResult, r qdrant.SearchResult) *ScoredResult {
	if existing, ok := scores[r.ID]; ok {
		return existing
	}
	sr := &ScoredResult{Result: r}
	scores[r.ID] = sr
	return sr
}

// applyBonuses computes and applies the symbol/path/language bonuses to sr
// and sets FinalScore.
func applyBonuses(sr *ScoredResult, tokens []string) {
	payload := sr.Result.Payload

	symbolSet := make(map[string]bool, len(payload.Symbols))
	for _, s := range payload.Symbols {
		symbolSet[strings.ToLower(s)] = true
	}

	pathSegments := pathSegmentSet(payload.Path)

	symbolHits := 0
	pathHits := 0
	languageHit := false

	for _, tok := range tokens {
		if symbolSet[tok] {
			symbolHits++
		}
		if pathSegments[tok] {
			pathHits++
		}
		if !languageHit && recognizedLanguages[tok] && strings.EqualFold(tok, payload.Language) {
			languageHit = true
		}
	}

	sr.ExactSymbolMatch = symbolHits > 0

	symbolBonus := float32(symbolHits) * SymbolBonusPerToken
	if symbolBonus > SymbolBonusCap {
		symbolBonus = SymbolBonusCap
	}
	sr.SymbolBonus = symbolBonus
	sr.PathBonus = float32(pathHits) * PathBonusPerToken
	if languageHit {
		sr.LanguageBonus = LanguageBonus
	}

	final := sr.BaseScore + sr.SymbolBonus + sr.PathBonus + sr.LanguageBonus
	if !sr.ExactSymbolMatch {
		if cap := 2 * sr.BaseScore; final > cap {
			final = cap
		}
	}
	sr.FinalScore = final
}

// queryTokens lowercases and splits query into bare alphanumeric tokens,
// used to match against symbols, path segments, and language keywords.
func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimFunc(f, func(r rune) bool {
			return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '#' || r == '+')
		})
		if trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

// pathSegmentSet splits a path on '/' (after canonicalizing separators) and
// returns the lowercase segment set, with the final segment's extension
// stripped.
func pathSegmentSet(path string) map[string]bool {
	canon := strings.ReplaceAll(path, "\\", "/")
	parts := strings.Split(canon, "/")
	set := make(map[string]bool, len(parts))
	for i, p := range parts {
		p = strings.ToLower(p)
		if i == len(parts)-1 {
			if dot := strings.LastIndex(p, "."); dot > 0 {
				p = p[:dot]
			}
		}
		if p != "" {
			set[p] = true
		}
	}
	return set
}

// less reports whether a should sort before b: higher FinalScore first, then
// lower sparseRank, then lower denseRank, then lexicographic doc_id. Absent
// ranks (0) sort as worse than any present rank.
func less(a, b ScoredResult) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	ar, br := rankOrInfinity(a.SparseRank), rankOrInfinity(b.SparseRank)
	if ar != br {
		return ar < br
	}
	ar, br = rankOrInfinity(a.DenseRank), rankOrInfinity(b.DenseRank)
	if ar != br {
		return ar < br
	}
	return a.Result.ID < b.Result.ID
}

func rankOrInfinity(rank int) int {
	if rank == 0 {
		return math.MaxInt32
	}
	return rank
}

// interleaveByFile reorders results so that no file has more than one chunk
// among the first 3 positions; positions beyond that may repeat a file.
// Relative order within a file is preserved.
func interleaveByFile(results []ScoredResult) []ScoredResult {
	if len(results) <= 1 {
		return results
	}

	used := make([]bool, len(results))
	topFiles := make(map[string]bool)
	out := make([]ScoredResult, 0, len(results))

	limit := 3
	if limit > len(results) {
		limit = len(results)
	}

	for len(out) < limit {
		picked := -1
		for i, r := range results {
			if used[i] {
				continue
			}
			if !topFiles[r.Result.Payload.Path] {
				picked = i
				break
			}
		}
		if picked == -1 {
			for i := range results {
				if !used[i] {
					picked = i
					break
				}
			}
		}
		if picked == -1 {
			break
		}
		used[picked] = true
		topFiles[results[picked].Result.Payload.Path] = true
		out = append(out, results[picked])
	}

	for i, r := range results {
		if !used[i] {
			out = append(out, r)
		}
	}

	return out
}

// FusionStats summarizes the score distribution of a fused result set, used
// both for telemetry and for the reranker's early-exit decision.
type FusionStats struct {
	TopScore    float32
	SecondScore float32
	ScoreGap    float32
	ScoreRatio  float32
}

// ScoreRatioSentinel is used for ScoreRatio when the second score is 0.
const ScoreRatioSentinel = 999

// ComputeFusionStats computes the top/second score gap and ratio used to
// drive early-exit. Results must already be sorted by FinalScore descending.
func ComputeFusionStats(results []ScoredResult) FusionStats {
	if len(results) == 0 {
		return FusionStats{}
	}
	top := results[0].FinalScore
	var second float32
	if len(results) > 1 {
		second = results[1].FinalScore
	}

	ratio := float32(ScoreRatioSentinel)
	if second != 0 {
		ratio = top / second
	}

	return FusionStats{
		TopScore:    top,
		SecondScore: second,
		ScoreGap:    top - second,
		ScoreRatio:  ratio,
	}
}
