package reranker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ricesearch/rice-search/internal/ml"
	"github.com/ricesearch/rice-search/internal/pkg/logger"
	"github.com/ricesearch/rice-search/internal/search"
)

// MultiPassReranker performs two-pass reranking with early exit optimization.
type MultiPassReranker struct {
	reranker        ml.Service
	pass1Timeout    int     // Default: 80ms
	pass2Timeout    int     // Default: 150ms
	earlyExitThresh float32 // Default: 1.5 (scoreRatio)
	earlyExitGap    float32 // Default: 0.3 (scoreGap)
	log             *logger.Logger
}

// NewMultiPassReranker creates a new multi-pass reranker.
func NewMultiPassReranker(reranker ml.Service, log *logger.Logger) *MultiPassReranker {
	return &MultiPassReranker{
		reranker:        reranker,
		pass1Timeout:    80,
		pass2Timeout:    150,
		earlyExitThresh: 1.5,
		earlyExitGap:    0.3,
		log:             log,
	}
}

// Config holds configuration for multi-pass reranking.
type Config struct {
	Pass1Timeout    int
	Pass2Timeout    int
	EarlyExitThresh float32
	EarlyExitGap    float32
}

// SetConfig updates the reranker configuration.
func (r *MultiPassReranker) SetConfig(cfg Config) {
	if cfg.Pass1Timeout > 0 {
		r.pass1Timeout = cfg.Pass1Timeout
	}
	if cfg.Pass2Timeout > 0 {
		r.pass2Timeout = cfg.Pass2Timeout
	}
	if cfg.EarlyExitThresh > 0 {
		r.earlyExitThresh = cfg.EarlyExitThresh
	}
	if cfg.EarlyExitGap > 0 {
		r.earlyExitGap = cfg.EarlyExitGap
	}
}

// RerankStats reports what happened during a Rerank call, per the
// state machine INIT -> PASS1 -> (EARLY_EXIT | PASS2) -> DONE.
type RerankStats struct {
	Pass1Applied    bool
	Pass1LatencyMs  int64
	Pass1Input      int
	Pass1Output     int
	Pass2Applied    bool
	Pass2LatencyMs  int64
	Pass2Input      int
	Pass2Output     int
	EarlyExit       bool
	EarlyExitReason string
}

// MultiPassResult contains reranked results and metadata.
type MultiPassResult struct {
	Results []search.Result
	Stats   RerankStats
}

// DistributionShape describes the score distribution pattern.
type DistributionShape string

const (
	ShapePeaked  DistributionShape = "peaked"  // One clear winner
	ShapeFlat    DistributionShape = "flat"    // All scores similar (uncertain)
	ShapeBimodal DistributionShape = "bimodal" // Mixed distribution
)

// EarlyExitSignals contains signals for early exit decision.
type EarlyExitSignals struct {
	ScoreGap           float32
	ScoreRatio         float32
	TopClusterSize     int
	DistributionShape  DistributionShape
	NormalizedVariance float32
}

// RerankParams carries the candidate-count knobs that strategy selection
// hands down for a single request.
type RerankParams struct {
	RerankCandidates     int
	UseSecondPass        bool
	SecondPassCandidates int
}

// Rerank performs multi-pass reranking with early exit.
//
// Pass 1 ("gate"): fast rerank over the top min(params.RerankCandidates,
// len(fused)) candidates, output size min(30, pass1Input). On failure or
// deadline, the fused order is used unchanged and the request is never
// failed.
//
// Early exit is evaluated on the pass-1 output: exits "peaked_distribution"
// when the shape is peaked and scoreRatio exceeds earlyExitThresh (default
// 1.5), or "high_score_gap" when scoreGap exceeds earlyExitGap (default
// 0.3). A flat distribution never exits early.
//
// Pass 2 ("precision") only runs when params.UseSecondPass and no early
// exit occurred: reranks the top min(params.SecondPassCandidates,
// len(pass1Output)) candidates of the pass-1 output. On success, the pass-2
// ordering replaces that leading prefix and the remaining pass-1 candidates
// are appended unchanged, in their pass-1 order.
func (r *MultiPassReranker) Rerank(ctx context.Context, query string, fused []search.Result, params RerankParams) (*MultiPassResult, error) {
	result := &MultiPassResult{Results: fused}

	if len(fused) == 0 {
		return result, nil
	}

	pass1Input := min(len(fused), params.RerankCandidates)
	pass1Output := min(30, pass1Input)

	pass1Start := time.Now()
	r.log.Debug("Starting pass 1 reranking", "input_count", pass1Input, "output_count", pass1Output, "timeout_ms", r.pass1Timeout)

	pass1Results, err := r.executePass(ctx, query, fused[:pass1Input], pass1Output, r.pass1Timeout)
	pass1Latency := time.Since(pass1Start).Milliseconds()

	result.Stats.Pass1LatencyMs = pass1Latency
	result.Stats.Pass1Input = pass1Input
	if err != nil {
		r.log.Warn("Pass 1 reranking failed, using fusion order", "error", err)
		result.Stats.Pass1Applied = false
		return result, nil
	}

	result.Stats.Pass1Applied = true
	result.Stats.Pass1Output = len(pass1Results)
	result.Results = pass1Results

	r.log.Debug("Pass 1 complete", "output_count", len(pass1Results), "latency_ms", pass1Latency)

	signals := analyzeDistribution(pass1Results)
	if exit, reason := r.checkEarlyExit(signals); exit {
		result.Stats.EarlyExit = true
		result.Stats.EarlyExitReason = reason
		r.log.Debug("Early exit triggered", "reason", reason, "total_latency_ms", pass1Latency)
		return result, nil
	}

	if !params.UseSecondPass {
		return result, nil
	}

	pass2Input := min(len(pass1Results), params.SecondPassCandidates)
	if pass2Input <= 0 {
		return result, nil
	}

	pass2Start := time.Now()
	r.log.Debug("Starting pass 2 reranking", "input_count", pass2Input, "timeout_ms", r.pass2Timeout)

	pass2Results, err := r.executePass(ctx, query, pass1Results[:pass2Input], pass2Input, r.pass2Timeout)
	pass2Latency := time.Since(pass2Start).Milliseconds()
	result.Stats.Pass2LatencyMs = pass2Latency
	result.Stats.Pass2Input = pass2Input

	if err != nil {
		r.log.Warn("Pass 2 reranking failed, using pass 1 ordering", "error", err)
		return result, nil
	}

	result.Stats.Pass2Applied = true
	result.Stats.Pass2Output = len(pass2Results)

	merged := make([]search.Result, 0, len(pass1Results))
	merged = append(merged, pass2Results...)
	merged = append(merged, pass1Results[pass2Input:]...)
	result.Results = merged

	r.log.Debug("Pass 2 complete", "output_count", len(pass2Results), "total_latency_ms", pass1Latency+pass2Latency)

	return result, nil
}

// executePass performs a single reranking pass with timeout, writing scores
// to RerankScore so the original fusion score on each Result is preserved
// for explainability (see the orchestrator's score-authority rule).
func (r *MultiPassReranker) executePass(
	ctx context.Context,
	query string,
	results []search.Result,
	topK int,
	timeoutMs int,
) ([]search.Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	documents := make([]string, len(results))
	for i, res := range results {
		documents[i] = res.Content
	}

	ranked, err := r.reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		return nil, fmt.Errorf("reranking failed: %w", err)
	}

	scoreMap := make(map[int]float32, len(ranked))
	for _, rr := range ranked {
		scoreMap[rr.Index] = rr.Score
	}

	reranked := make([]search.Result, len(results))
	copy(reranked, results)
	for i := range reranked {
		if score, ok := scoreMap[i]; ok {
			s := score
			reranked[i].RerankScore = &s
		}
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return rerankOrFusionScore(reranked[i]) > rerankOrFusionScore(reranked[j])
	})

	if len(reranked) > topK {
		reranked = reranked[:topK]
	}

	return reranked, nil
}

func rerankOrFusionScore(r search.Result) float32 {
	if r.RerankScore != nil {
		return *r.RerankScore
	}
	return r.Score
}

// checkEarlyExit applies the early-exit rules to pass-1 signals.
func (r *MultiPassReranker) checkEarlyExit(signals EarlyExitSignals) (bool, string) {
	if signals.DistributionShape == ShapePeaked && signals.ScoreRatio > r.earlyExitThresh {
		return true, "peaked_distribution"
	}
	if signals.DistributionShape != ShapeFlat && signals.ScoreGap > r.earlyExitGap {
		return true, "high_score_gap"
	}
	return false, ""
}

// analyzeDistribution analyzes the score distribution to determine early
// exit signals, using rerank score when present (it always is, on pass-1
// output) and falling back to the fusion score otherwise.
func analyzeDistribution(results []search.Result) EarlyExitSignals {
	if len(results) < 2 {
		return EarlyExitSignals{DistributionShape: ShapeFlat}
	}

	scores := make([]float32, len(results))
	for i, res := range results {
		scores[i] = rerankOrFusionScore(res)
	}

	top := scores[0]
	second := scores[1]

	threshold := top * 0.9
	topClusterSize := 0
	for _, s := range scores {
		if s >= threshold {
			topClusterSize++
		}
	}

	var sum float32
	for _, s := range scores {
		sum += s
	}
	mean := sum / float32(len(scores))

	var varianceSum float32
	for _, s := range scores {
		diff := s - mean
		varianceSum += diff * diff
	}
	variance := varianceSum / float32(len(scores))

	normalizedVariance := float32(0)
	if mean > 0 {
		normalizedVariance = variance / (mean * mean)
	}

	var shape DistributionShape
	switch {
	case topClusterSize == 1 && normalizedVariance > 0.1:
		shape = ShapePeaked
	case normalizedVariance < 0.05:
		shape = ShapeFlat
	default:
		shape = ShapeBimodal
	}

	scoreRatio := float32(999.0)
	if second > 0 {
		scoreRatio = top / second
	}

	return EarlyExitSignals{
		ScoreGap:           top - second,
		ScoreRatio:         scoreRatio,
		TopClusterSize:     topClusterSize,
		DistributionShape:  shape,
		NormalizedVariance: normalizedVariance,
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
