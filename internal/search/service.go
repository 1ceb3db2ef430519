// Package search provides the search service for Rice Search.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricesearch/rice-search/internal/bus"
	"github.com/ricesearch/rice-search/internal/metrics"
	"github.com/ricesearch/rice-search/internal/ml"
	"github.com/ricesearch/rice-search/internal/pkg/logger"
	"github.com/ricesearch/rice-search/internal/qdrant"
	"github.com/ricesearch/rice-search/internal/query"
	"github.com/ricesearch/rice-search/internal/search/fusion"
	"github.com/ricesearch/rice-search/internal/search/postrank"
	"github.com/ricesearch/rice-search/internal/search/reranker"
	"github.com/ricesearch/rice-search/internal/telemetry"
)

// Service provides search capabilities.
type Service struct {
	ml          ml.Service
	qdrant      *qdrant.Client
	querySvc    *query.Service
	bus         bus.Bus
	log         *logger.Logger
	cfg         Config
	postrank    *postrank.Pipeline
	reranker    *reranker.MultiPassReranker
	telemetry   *telemetry.Recorder
	metrics     *metrics.Metrics
	mu          sync.RWMutex
	monitorSvc  MonitoringService
	monitorOnce sync.Once
}

// Telemetry returns the recorder so transport adapters can read recent
// requests (e.g. the HTTP observability export) without the orchestrator
// depending on them.
func (s *Service) Telemetry() *telemetry.Recorder {
	return s.telemetry
}

// eventBusReranker routes Rerank through the service's event-bus RPC path
// while delegating every other ml.Service method straight through, so
// MultiPassReranker gets the same bus-with-direct-call-fallback behavior
// as the rest of the orchestrator without depending on *Service directly.
type eventBusReranker struct {
	svc *Service
	ml  ml.Service
}

func (e *eventBusReranker) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.ml.Embed(ctx, texts)
}

func (e *eventBusReranker) SparseEncode(ctx context.Context, texts []string) ([]ml.SparseVector, error) {
	return e.ml.SparseEncode(ctx, texts)
}

func (e *eventBusReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]ml.RankedResult, error) {
	return e.svc.rerankViaEventBus(ctx, query, documents, topK)
}

func (e *eventBusReranker) Health() ml.HealthStatus { return e.ml.Health() }
func (e *eventBusReranker) Close() error            { return e.ml.Close() }

// MonitoringService defines the interface for connection monitoring.
type MonitoringService interface {
	RecordSearch(connectionID string)
}

// Config configures the search service.
type Config struct {
	// DefaultTopK is the default number of results to return.
	DefaultTopK int

	// PrefetchMultiplier is not read by Search; per-leg candidate counts and
	// rerank candidates come from the selected retrieval strategy.
	PrefetchMultiplier int

	// EnableReranking enables neural reranking by default.
	EnableReranking bool

	// RerankTopK is the number of candidates to rerank.
	RerankTopK int

	// SparseWeight is the weight for sparse (BM25-like) results in fusion.
	SparseWeight float32

	// DenseWeight is the weight for dense (semantic) results in fusion.
	DenseWeight float32

	// Post-ranking configuration
	EnableDedup      bool
	DedupThreshold   float32
	EnableDiversity  bool
	DiversityLambda  float32
	GroupByFile      bool
	MaxChunksPerFile int
}

// DefaultConfig returns sensible search defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:        20,
		PrefetchMultiplier: 3,
		EnableReranking:    true,
		RerankTopK:         50,
		SparseWeight:       0.5,
		DenseWeight:        0.5,
		EnableDedup:        true,
		DedupThreshold:     0.85,
		EnableDiversity:    true,
		DiversityLambda:    0.7,
		GroupByFile:        false,
		MaxChunksPerFile:   3,
	}
}

// NewService creates a new search service.
// querySvc, eventBus, and metrics are optional - if nil, features are disabled.
func NewService(mlSvc ml.Service, qc *qdrant.Client, log *logger.Logger, cfg Config, querySvc *query.Service, eventBus bus.Bus, metrics *metrics.Metrics) *Service {
	if cfg.DefaultTopK == 0 {
		cfg = DefaultConfig()
	}

	// Create post-ranking pipeline
	postrankCfg := postrank.Config{
		EnableDedup:      cfg.EnableDedup,
		DedupThreshold:   cfg.DedupThreshold,
		EnableDiversity:  cfg.EnableDiversity,
		DiversityLambda:  cfg.DiversityLambda,
		GroupByFile:      cfg.GroupByFile,
		MaxChunksPerFile: cfg.MaxChunksPerFile,
	}
	postrankPipeline := postrank.NewPipeline(postrankCfg, log)

	svc := &Service{
		ml:        mlSvc,
		qdrant:    qc,
		querySvc:  querySvc,
		bus:       eventBus,
		log:       log,
		cfg:       cfg,
		postrank:  postrankPipeline,
		telemetry: telemetry.NewRecorder(0, log),
		metrics:   metrics,
	}
	svc.reranker = reranker.NewMultiPassReranker(&eventBusReranker{svc: svc, ml: mlSvc}, log)
	return svc
}

// Request represents a search request.
type Request struct {
	// Query is the search query text.
	Query string `json:"query"`

	// Store is the store to search in.
	Store string `json:"store"`

	// TopK is the number of results to return.
	TopK int `json:"top_k,omitempty"`

	// Filter constrains the search.
	Filter *Filter `json:"filter,omitempty"`

	// EnableReranking enables neural reranking.
	EnableReranking *bool `json:"enable_reranking,omitempty"`

	// RerankTopK is the number of candidates to rerank.
	RerankTopK int `json:"rerank_top_k,omitempty"`

	// IncludeContent includes full content in results.
	IncludeContent bool `json:"include_content,omitempty"`

	// SparseWeight overrides the sparse weight (0-1).
	SparseWeight *float32 `json:"sparse_weight,omitempty"`

	// DenseWeight overrides the dense weight (0-1).
	DenseWeight *float32 `json:"dense_weight,omitempty"`

	// GroupByConnection groups results by connection_id.
	GroupByConnection bool `json:"group_by_connection,omitempty"`

	// MaxChunksPerConnection limits chunks per connection when grouping (default: 3).
	MaxChunksPerConnection int `json:"max_chunks_per_connection,omitempty"`
}

// Filter defines search filters.
type Filter struct {
	// PathPrefix filters by path prefix.
	PathPrefix string `json:"path_prefix,omitempty"`

	// Languages filters by programming language.
	Languages []string `json:"languages,omitempty"`

	// ConnectionID filters by connection.
	ConnectionID string `json:"connection_id,omitempty"`
}

// Result represents a single search result.
type Result struct {
	// ID is the chunk identifier.
	ID string `json:"id"`

	// Path is the file path.
	Path string `json:"path"`

	// Language is the programming language.
	Language string `json:"language"`

	// StartLine is the starting line number.
	StartLine int `json:"start_line"`

	// EndLine is the ending line number.
	EndLine int `json:"end_line"`

	// Content is the chunk content (if requested).
	Content string `json:"content,omitempty"`

	// Symbols are the extracted symbols.
	Symbols []string `json:"symbols,omitempty"`

	// Score is the relevance score (fused or single retriever).
	Score float32 `json:"score"`

	// RerankScore is the reranker score (if reranking was applied).
	RerankScore *float32 `json:"rerank_score,omitempty"`

	// ConnectionID is the connection that indexed this chunk.
	ConnectionID string `json:"connection_id,omitempty"`

	// SparseRank is the rank in sparse-only results (1-based, 0 if manual fusion not used).
	SparseRank int `json:"sparse_rank,omitempty"`

	// DenseRank is the rank in dense-only results (1-based, 0 if manual fusion not used).
	DenseRank int `json:"dense_rank,omitempty"`

	// SparseScore is the original sparse score (0 if manual fusion not used).
	SparseScore float32 `json:"sparse_score,omitempty"`

	// DenseScore is the original dense score (0 if manual fusion not used).
	DenseScore float32 `json:"dense_score,omitempty"`

	// BaseScore is the weighted RRF score before code-aware bonuses.
	BaseScore float32 `json:"base_score,omitempty"`

	// FinalScore is the fusion score after code-aware bonuses (symbol/path/
	// language), kept alongside RerankScore for explainability even when
	// reranking produces the authoritative final order.
	FinalScore float32 `json:"final_score,omitempty"`

	// embedding carries the dense vector (when retrieved) through to the
	// post-rank pipeline's MMR diversity stage; never serialized.
	embedding []float32
}

// ConnectionGroup represents results grouped by connection.
type ConnectionGroup struct {
	// ConnectionID is the connection identifier.
	ConnectionID string `json:"connection_id"`

	// ConnectionName is the human-readable connection name (if available).
	ConnectionName string `json:"connection_name,omitempty"`

	// ResultCount is the total number of results from this connection.
	ResultCount int `json:"result_count"`

	// TopResults are the top-scoring results from this connection.
	TopResults []Result `json:"top_results"`
}

// Response represents a search response.
type Response struct {
	// Query is the original query.
	Query string `json:"query"`

	// Store is the store that was searched.
	Store string `json:"store"`

	// Results are the search results.
	Results []Result `json:"results"`

	// Total is the total number of matches (before limit).
	Total int `json:"total"`

	// Metadata contains search metadata.
	Metadata SearchMetadata `json:"metadata"`

	// ParsedQuery contains query understanding results (if available).
	ParsedQuery *query.ParsedQuery `json:"parsed_query,omitempty"`

	// ConnectionGroups contains results grouped by connection (if requested).
	ConnectionGroups []ConnectionGroup `json:"connection_groups,omitempty"`
}

// SearchMetadata contains information about how the search was performed.
type SearchMetadata struct {
	// SearchTimeMs is the total search time in milliseconds.
	SearchTimeMs int64 `json:"search_time_ms"`

	// EmbedTimeMs is the embedding generation time.
	EmbedTimeMs int64 `json:"embed_time_ms"`

	// RetrievalTimeMs is the vector search time.
	RetrievalTimeMs int64 `json:"retrieval_time_ms"`

	// RerankTimeMs is the reranking time (if applied).
	RerankTimeMs int64 `json:"rerank_time_ms,omitempty"`

	// CandidatesReranked is the number of candidates that were reranked.
	CandidatesReranked int `json:"candidates_reranked,omitempty"`

	// RerankingApplied indicates if reranking was applied.
	RerankingApplied bool `json:"reranking_applied"`
}

// Search runs the full C1-C8 pipeline: query understanding selects a
// retrieval strategy, the sparse and dense retrievers run one after the
// other (sparse first; the legs do not run concurrently), hybrid RRF fusion with code-aware bonuses combines them, a
// multi-pass reranker refines the ordering, the post-rank pipeline
// dedups/diversifies/aggregates, and a structured record is appended to
// the telemetry recorder before the response is returned. A request
// cancelled by its caller produces no telemetry entry.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.Store == "" {
		return nil, fmt.Errorf("store is required")
	}

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	topK := req.TopK
	if topK <= 0 {
		topK = cfg.DefaultTopK
	}

	// Parse query for understanding (best effort; intent/difficulty fall
	// back to neutral defaults when understanding is unavailable).
	var parsedQuery *query.ParsedQuery
	intent := query.IntentFactual
	difficulty := query.DifficultyMedium
	if s.querySvc != nil {
		parsed, err := s.querySvc.Parse(ctx, req.Query)
		if err != nil {
			s.log.Debug("Query understanding failed, continuing with raw query", "error", err)
		} else if parsed != nil {
			parsedQuery = parsed
			intent = parsed.Intent
			difficulty = parsed.Difficulty
			s.log.Debug("Query understood",
				"intent", parsed.Intent,
				"difficulty", parsed.Difficulty,
				"target", parsed.TargetType,
				"keywords", parsed.Keywords,
				"confidence", parsed.Confidence,
				"used_model", parsed.UsedModel,
			)
		}
	}

	// C3/C9: select the base strategy for this intent, scale it by
	// difficulty, then apply any explicit per-request overrides.
	retrievalCfg := query.Adjust(query.Select(intent), difficulty)
	retrievalCfg = query.Override(retrievalCfg, requestOverrides(req, cfg))

	exists, err := s.qdrant.CollectionExists(ctx, req.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to check store: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("store not found: %s", req.Store)
	}

	embedStart := time.Now()
	denseVectors, err := s.embedViaEventBus(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate dense embedding: %w", err)
	}
	sparseVectors, err := s.sparseEncodeViaEventBus(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate sparse embedding: %w", err)
	}
	embedTime := time.Since(embedStart)

	var filter *qdrant.SearchFilter
	if req.Filter != nil {
		filter = &qdrant.SearchFilter{
			PathPrefix:   req.Filter.PathPrefix,
			Languages:    req.Filter.Languages,
			ConnectionID: req.Filter.ConnectionID,
		}
	}

	// C4: retriever drivers. Each leg is sized independently by the
	// strategy (sparse-only strategies run DenseTopK=0, skipping the dense
	// leg entirely rather than issuing a wasted request).
	sparseStart := time.Now()
	var sparseResults []qdrant.SearchResult
	if retrievalCfg.SparseTopK > 0 {
		sparseResults, err = s.qdrant.SparseSearch(ctx, req.Store, qdrant.SearchRequest{
			SparseIndices: sparseVectors[0].Indices,
			SparseValues:  sparseVectors[0].Values,
			Limit:         uint64(retrievalCfg.SparseTopK),
			Filter:        filter,
			WithPayload:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("sparse search failed: %w", err)
		}
	}
	sparseTime := time.Since(sparseStart)
	if s.metrics != nil {
		s.metrics.RecordSearchStage(req.Store, "sparse", sparseTime.Milliseconds())
	}

	denseStart := time.Now()
	var denseResults []qdrant.SearchResult
	if retrievalCfg.DenseTopK > 0 {
		denseResults, err = s.qdrant.DenseSearch(ctx, req.Store, qdrant.SearchRequest{
			DenseVector: denseVectors[0],
			Limit:       uint64(retrievalCfg.DenseTopK),
			Filter:      filter,
			WithPayload: true,
			WithVectors: true,
		})
		if err != nil {
			return nil, fmt.Errorf("dense search failed: %w", err)
		}
	}
	denseTime := time.Since(denseStart)
	if s.metrics != nil {
		s.metrics.RecordSearchStage(req.Store, "dense", denseTime.Milliseconds())
	}
	retrievalTime := sparseTime + denseTime

	// C5: hybrid ranker. Qdrant's native RRF can't express the code-aware
	// symbol/path/language bonuses, so fusion always runs in-process.
	fusionCfg := fusion.RRFConfig{
		K:            fusion.DefaultK,
		SparseWeight: retrievalCfg.SparseWeight,
		DenseWeight:  retrievalCfg.DenseWeight,
	}
	fusionStart := time.Now()
	fusedResults := fusion.Fuse(sparseResults, denseResults, req.Query, fusionCfg, fusion.Options{
		GroupByFile: req.GroupByConnection,
	})
	fusionTime := time.Since(fusionStart)
	if s.metrics != nil {
		s.metrics.RecordSearchStage(req.Store, "fusion", fusionTime.Milliseconds())
	}

	results := make([]Result, len(fusedResults))
	for i, fr := range fusedResults {
		results[i] = Result{
			ID:           fr.Result.ID,
			Path:         fr.Result.Payload.Path,
			Language:     fr.Result.Payload.Language,
			StartLine:    fr.Result.Payload.StartLine,
			EndLine:      fr.Result.Payload.EndLine,
			Content:      fr.Result.Payload.Content,
			Symbols:      fr.Result.Payload.Symbols,
			Score:        fr.FinalScore,
			ConnectionID: fr.Result.Payload.ConnectionID,
			SparseRank:   fr.SparseRank,
			DenseRank:    fr.DenseRank,
			SparseScore:  fr.SparseScore,
			DenseScore:   fr.DenseScore,
			BaseScore:    fr.BaseScore,
			FinalScore:   fr.FinalScore,
			embedding:    fr.Result.DenseVector,
		}
	}
	s.log.Debug("Fused sparse and dense results",
		"strategy", retrievalCfg.Strategy,
		"sparse_weight", retrievalCfg.SparseWeight,
		"dense_weight", retrievalCfg.DenseWeight,
		"sparse_results", len(sparseResults),
		"dense_results", len(denseResults),
		"fused_results", len(fusedResults),
	)

	metadata := SearchMetadata{
		EmbedTimeMs:     embedTime.Milliseconds(),
		RetrievalTimeMs: retrievalTime.Milliseconds(),
	}

	// C6: multi-pass reranker, parameterized per request by the selected
	// strategy rather than a static service-wide setting.
	var rerankStats reranker.RerankStats
	if retrievalCfg.RerankCandidates > 0 && len(results) > 0 {
		rerankStart := time.Now()
		rerankResult, rerankErr := s.reranker.Rerank(ctx, req.Query, results, reranker.RerankParams{
			RerankCandidates:     retrievalCfg.RerankCandidates,
			UseSecondPass:        retrievalCfg.UseSecondPass,
			SecondPassCandidates: retrievalCfg.SecondPassCandidates,
		})
		if rerankErr != nil {
			s.log.Warn("Reranking failed, using fusion order", "error", rerankErr)
		} else {
			results = rerankResult.Results
			rerankStats = rerankResult.Stats
			metadata.RerankTimeMs = time.Since(rerankStart).Milliseconds()
			metadata.CandidatesReranked = rerankStats.Pass1Input
			metadata.RerankingApplied = rerankStats.Pass1Applied
			if s.metrics != nil {
				s.metrics.RecordSearchStage(req.Store, "rerank", metadata.RerankTimeMs)
			}
		}
	}

	// C7: post-rank pipeline (dedup -> MMR diversity -> file aggregation).
	withEmbeddings := make([]postrank.ResultWithEmbedding, len(results))
	for i, r := range results {
		withEmbeddings[i] = postrank.ResultWithEmbedding{
			ID:           r.ID,
			Path:         r.Path,
			Language:     r.Language,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			Content:      r.Content,
			Symbols:      r.Symbols,
			Score:        r.Score,
			RerankScore:  r.RerankScore,
			ConnectionID: r.ConnectionID,
			// Only dense-leg hits carry a vector (WithVectors was only set
			// on the dense search request); MMR treats a sparse-only hit's
			// zero vector as maximally diverse against everything else.
			Embedding: r.embedding,
		}
	}
	postRankResult, postRankErr := s.postrank.Process(ctx, withEmbeddings, topK)
	if postRankErr != nil {
		s.log.Warn("Post-rank pipeline failed, using reranked order", "error", postRankErr)
	} else {
		results = make([]Result, len(postRankResult.Results))
		for i, r := range postRankResult.Results {
			results[i] = Result{
				ID:           r.ID,
				Path:         r.Path,
				Language:     r.Language,
				StartLine:    r.StartLine,
				EndLine:      r.EndLine,
				Content:      r.Content,
				Symbols:      r.Symbols,
				Score:        r.Score,
				RerankScore:  r.RerankScore,
				ConnectionID: r.ConnectionID,
			}
		}
	}

	if !req.IncludeContent {
		for i := range results {
			results[i].Content = ""
		}
	}

	// Apply connection grouping if requested
	var connectionGroups []ConnectionGroup
	if req.GroupByConnection {
		maxPerConnection := req.MaxChunksPerConnection
		if maxPerConnection <= 0 {
			maxPerConnection = 3
		}
		connectionGroups = groupByConnection(results, maxPerConnection, s)
	}

	// Total is the count before topK limiting (but after reranking/post-rank filtering)
	totalBeforeLimit := len(results)

	// Limit to topK
	if len(results) > topK {
		results = results[:topK]
	}

	metadata.SearchTimeMs = time.Since(start).Milliseconds()

	resp := &Response{
		Query:            req.Query,
		Store:            req.Store,
		Results:          results,
		Total:            totalBeforeLimit,
		Metadata:         metadata,
		ParsedQuery:      parsedQuery,
		ConnectionGroups: connectionGroups,
	}

	// Record search activity for connection monitoring
	s.recordSearchActivity(req.Filter)

	// Publish search response event for service-wide metrics aggregation.
	s.publishSearchEvent(ctx, resp, nil)

	// A request the caller walked away from never gets a telemetry entry.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.recordTelemetry(requestID, req, retrievalCfg, intent, sparseResults, denseResults, fusedResults,
		sparseTime, denseTime, fusionTime, rerankStats, metadata, len(resp.Results))

	return resp, nil
}

// requestOverrides translates the request-level override fields into the
// strategy-selector's Overrides shape. A service-wide EnableReranking=false
// (the admin-configured default) still disables reranking unless the
// request explicitly turns it back on.
func requestOverrides(req Request, cfg Config) query.Overrides {
	var o query.Overrides
	if req.SparseWeight != nil {
		o.SparseWeight = req.SparseWeight
	}
	if req.DenseWeight != nil {
		o.DenseWeight = req.DenseWeight
	}
	if req.RerankTopK > 0 {
		candidates := req.RerankTopK
		o.RerankCandidates = &candidates
	}
	switch {
	case req.EnableReranking != nil:
		o.EnableReranking = req.EnableReranking
	case !cfg.EnableReranking:
		disabled := false
		o.EnableReranking = &disabled
	}
	return o
}

// recordTelemetry builds a structured telemetry.Record from one completed
// request and appends it to the recorder. Never called for a request the
// caller cancelled.
func (s *Service) recordTelemetry(
	requestID string,
	req Request,
	retrievalCfg query.RetrievalConfig,
	intent query.Intent,
	sparseResults, denseResults []qdrant.SearchResult,
	fusedResults []fusion.ScoredResult,
	sparseTime, denseTime, fusionTime time.Duration,
	rerankStats reranker.RerankStats,
	metadata SearchMetadata,
	resultCount int,
) {
	sparseScores := make([]float32, len(sparseResults))
	for i, r := range sparseResults {
		sparseScores[i] = r.Score
	}
	denseScores := make([]float32, len(denseResults))
	for i, r := range denseResults {
		denseScores[i] = r.Score
	}
	// fusedResults is already sorted by FinalScore descending.
	fusionScores := make([]float32, len(fusedResults))
	for i, fr := range fusedResults {
		fusionScores[i] = fr.FinalScore
	}

	sparseStats := telemetry.ComputeScoreStats(sparseScores)
	denseStats := telemetry.ComputeScoreStats(denseScores)

	var scoreGap, scoreRatio float32
	if len(fusionScores) >= 2 {
		top, second := fusionScores[0], fusionScores[1]
		scoreGap = top - second
		if second > 0 {
			scoreRatio = top / second
		} else {
			scoreRatio = 999.0
		}
	}
	var fusionTop float32
	if len(fusionScores) > 0 {
		fusionTop = fusionScores[0]
	}
	var fusionSecond float32
	if len(fusionScores) > 1 {
		fusionSecond = fusionScores[1]
	}

	rerankEnabled := retrievalCfg.RerankCandidates > 0
	rerankSkipped := !rerankEnabled || !rerankStats.Pass1Applied
	rerankSkipReason := ""
	if !rerankEnabled {
		rerankSkipReason = "reranking_disabled"
	} else if !rerankStats.Pass1Applied {
		rerankSkipReason = "pass1_failed"
	} else if rerankStats.EarlyExit {
		rerankSkipReason = "early_exit:" + rerankStats.EarlyExitReason
	}

	s.telemetry.Record(telemetry.Record{
		RequestID:   requestID,
		TimestampMs: time.Now().UnixMilli(),
		Store:       req.Store,
		Query:       req.Query,
		Intent:      string(intent),
		Strategy:    string(retrievalCfg.Strategy),
		Sparse: telemetry.RetrieverStats{
			Count:     len(sparseResults),
			LatencyMs: sparseTime.Milliseconds(),
			TopScore:  sparseStats.P95,
			StdDev:    sparseStats.StdDev,
		},
		Dense: telemetry.RetrieverStats{
			Count:     len(denseResults),
			LatencyMs: denseTime.Milliseconds(),
			TopScore:  denseStats.P95,
			StdDev:    denseStats.StdDev,
		},
		Fusion: telemetry.FusionStats{
			Count:       len(fusedResults),
			LatencyMs:   fusionTime.Milliseconds(),
			TopScore:    fusionTop,
			SecondScore: fusionSecond,
			ScoreGap:    scoreGap,
			ScoreRatio:  scoreRatio,
		},
		Rerank: telemetry.RerankStats{
			Enabled:    rerankEnabled,
			Candidates: retrievalCfg.RerankCandidates,
			LatencyMs:  metadata.RerankTimeMs,
			Skipped:    rerankSkipped,
			SkipReason: rerankSkipReason,
		},
		TotalLatMs:  metadata.SearchTimeMs,
		ResultCount: resultCount,
	})
}

// publishSearchEvent publishes a search response event to the event bus.
func (s *Service) publishSearchEvent(ctx context.Context, resp *Response, err error) {
	if s.bus == nil {
		return
	}

	payload := map[string]interface{}{
		"query":        resp.Query,
		"store":        resp.Store,
		"result_count": len(resp.Results),
		"total":        resp.Total,
		"latency_ms":   resp.Metadata.SearchTimeMs,
		"embed_ms":     resp.Metadata.EmbedTimeMs,
		"retrieval_ms": resp.Metadata.RetrievalTimeMs,
		"rerank_ms":    resp.Metadata.RerankTimeMs,
		"reranking":    resp.Metadata.RerankingApplied,
	}
	if err != nil {
		payload["error"] = err.Error()
	}

	event := bus.Event{
		Type:    bus.TopicSearchResponse,
		Source:  "search",
		Payload: payload,
	}
	if pubErr := s.bus.Publish(ctx, bus.TopicSearchResponse, event); pubErr != nil {
		s.log.Debug("Failed to publish search event", "error", pubErr)
	}
}

// SearchDenseOnly performs a dense-only (semantic) search.
func (s *Service) SearchDenseOnly(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	topK := req.TopK
	if topK <= 0 {
		topK = cfg.DefaultTopK
	}

	if req.Query == "" || req.Store == "" {
		return nil, fmt.Errorf("query and store are required")
	}

	// Generate dense embedding via event bus
	embedStart := time.Now()
	denseVectors, err := s.embedViaEventBus(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	embedTime := time.Since(embedStart)

	// Search
	searchReq := qdrant.SearchRequest{
		DenseVector: denseVectors[0],
		Limit:       uint64(topK),
		WithPayload: true,
	}

	if req.Filter != nil {
		searchReq.Filter = &qdrant.SearchFilter{
			PathPrefix:   req.Filter.PathPrefix,
			Languages:    req.Filter.Languages,
			ConnectionID: req.Filter.ConnectionID,
		}
	}

	retrievalStart := time.Now()
	qdrantResults, err := s.qdrant.DenseSearch(ctx, req.Store, searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	retrievalTime := time.Since(retrievalStart)

	results := make([]Result, len(qdrantResults))
	for i, qr := range qdrantResults {
		results[i] = Result{
			ID:           qr.ID,
			Path:         qr.Payload.Path,
			Language:     qr.Payload.Language,
			StartLine:    qr.Payload.StartLine,
			EndLine:      qr.Payload.EndLine,
			Symbols:      qr.Payload.Symbols,
			Score:        qr.Score,
			ConnectionID: qr.Payload.ConnectionID,
		}
		if req.IncludeContent {
			results[i].Content = qr.Payload.Content
		}
	}

	// Apply connection grouping if requested
	var connectionGroups []ConnectionGroup
	if req.GroupByConnection {
		maxPerConnection := req.MaxChunksPerConnection
		if maxPerConnection <= 0 {
			maxPerConnection = 3
		}
		connectionGroups = groupByConnection(results, maxPerConnection, s)
	}

	// Record search activity for connection monitoring
	s.recordSearchActivity(req.Filter)

	return &Response{
		Query:            req.Query,
		Store:            req.Store,
		Results:          results,
		Total:            len(results),
		ConnectionGroups: connectionGroups,
		Metadata: SearchMetadata{
			SearchTimeMs:    time.Since(start).Milliseconds(),
			EmbedTimeMs:     embedTime.Milliseconds(),
			RetrievalTimeMs: retrievalTime.Milliseconds(),
		},
	}, nil
}

// SearchSparseOnly performs a sparse-only (lexical) search.
func (s *Service) SearchSparseOnly(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	topK := req.TopK
	if topK <= 0 {
		topK = cfg.DefaultTopK
	}

	if req.Query == "" || req.Store == "" {
		return nil, fmt.Errorf("query and store are required")
	}

	// Generate sparse embedding via event bus
	embedStart := time.Now()
	sparseVectors, err := s.sparseEncodeViaEventBus(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate sparse embedding: %w", err)
	}
	embedTime := time.Since(embedStart)

	// Search
	searchReq := qdrant.SearchRequest{
		SparseIndices: sparseVectors[0].Indices,
		SparseValues:  sparseVectors[0].Values,
		Limit:         uint64(topK),
		WithPayload:   true,
	}

	if req.Filter != nil {
		searchReq.Filter = &qdrant.SearchFilter{
			PathPrefix:   req.Filter.PathPrefix,
			Languages:    req.Filter.Languages,
			ConnectionID: req.Filter.ConnectionID,
		}
	}

	retrievalStart := time.Now()
	qdrantResults, err := s.qdrant.SparseSearch(ctx, req.Store, searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	retrievalTime := time.Since(retrievalStart)

	results := make([]Result, len(qdrantResults))
	for i, qr := range qdrantResults {
		results[i] = Result{
			ID:           qr.ID,
			Path:         qr.Payload.Path,
			Language:     qr.Payload.Language,
			StartLine:    qr.Payload.StartLine,
			EndLine:      qr.Payload.EndLine,
			Symbols:      qr.Payload.Symbols,
			Score:        qr.Score,
			ConnectionID: qr.Payload.ConnectionID,
		}
		if req.IncludeContent {
			results[i].Content = qr.Payload.Content
		}
	}

	// Apply connection grouping if requested
	var connectionGroups []ConnectionGroup
	if req.GroupByConnection {
		maxPerConnection := req.MaxChunksPerConnection
		if maxPerConnection <= 0 {
			maxPerConnection = 3
		}
		connectionGroups = groupByConnection(results, maxPerConnection, s)
	}

	// Record search activity for connection monitoring
	s.recordSearchActivity(req.Filter)

	return &Response{
		Query:            req.Query,
		Store:            req.Store,
		Results:          results,
		Total:            len(results),
		ConnectionGroups: connectionGroups,
		Metadata: SearchMetadata{
			SearchTimeMs:    time.Since(start).Milliseconds(),
			EmbedTimeMs:     embedTime.Milliseconds(),
			RetrievalTimeMs: retrievalTime.Milliseconds(),
		},
	}, nil
}

// Similar finds similar chunks to a given chunk ID.
func (s *Service) Similar(ctx context.Context, store, chunkID string, topK int) ([]Result, error) {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	if topK <= 0 {
		topK = cfg.DefaultTopK
	}

	// For similarity, we'd need to fetch the chunk's vector and search
	// This is a simplified implementation that returns an error for now
	// A full implementation would:
	// 1. Fetch the chunk by ID
	// 2. Use its vector for similarity search
	// 3. Exclude the original chunk from results

	return nil, fmt.Errorf("similar search not yet implemented")
}

// GroupByFile groups results by file path.
func GroupByFile(results []Result, maxPerFile int) []Result {
	if maxPerFile <= 0 {
		maxPerFile = 3
	}

	fileGroups := make(map[string][]Result)
	fileOrder := make([]string, 0)

	for _, r := range results {
		if _, exists := fileGroups[r.Path]; !exists {
			fileOrder = append(fileOrder, r.Path)
		}
		fileGroups[r.Path] = append(fileGroups[r.Path], r)
	}

	var grouped []Result
	for _, path := range fileOrder {
		chunks := fileGroups[path]
		// Sort by score within file
		sort.Slice(chunks, func(i, j int) bool {
			return chunks[i].Score > chunks[j].Score
		})
		// Take top N per file
		if len(chunks) > maxPerFile {
			chunks = chunks[:maxPerFile]
		}
		grouped = append(grouped, chunks...)
	}

	return grouped
}

// groupByConnection groups results by connection_id and creates connection summaries.
func groupByConnection(results []Result, maxPerConnection int, svc *Service) []ConnectionGroup {
	if maxPerConnection <= 0 {
		maxPerConnection = 3
	}

	// Group results by connection_id
	connGroups := make(map[string][]Result)
	connOrder := make([]string, 0)

	for _, r := range results {
		connID := r.ConnectionID
		if connID == "" {
			connID = "unknown"
		}
		if _, exists := connGroups[connID]; !exists {
			connOrder = append(connOrder, connID)
		}
		connGroups[connID] = append(connGroups[connID], r)
	}

	// Build connection groups
	groups := make([]ConnectionGroup, 0, len(connGroups))
	for _, connID := range connOrder {
		chunks := connGroups[connID]

		// Sort by score within connection
		sort.Slice(chunks, func(i, j int) bool {
			return chunks[i].Score > chunks[j].Score
		})

		// Take top N per connection
		topResults := chunks
		if len(topResults) > maxPerConnection {
			topResults = chunks[:maxPerConnection]
		}

		// Try to get connection name (optional - requires connection service)
		// For now, leave empty - can be enriched by API layer if needed
		connectionName := ""

		groups = append(groups, ConnectionGroup{
			ConnectionID:   connID,
			ConnectionName: connectionName,
			ResultCount:    len(chunks),
			TopResults:     topResults,
		})
	}

	// Sort groups by total result count (descending)
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ResultCount > groups[j].ResultCount
	})

	return groups
}

// UpdateConfig updates the search configuration at runtime.
// This is called when settings are changed via the admin UI.
func (s *Service) UpdateConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.log.Info("Search config updated",
		"default_top_k", cfg.DefaultTopK,
		"enable_reranking", cfg.EnableReranking,
		"rerank_top_k", cfg.RerankTopK,
		"sparse_weight", cfg.SparseWeight,
		"dense_weight", cfg.DenseWeight,
	)
}

// GetConfig returns the current search configuration.
func (s *Service) GetConfig() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// QueryService returns the query understanding service.
// Returns nil if query understanding is not configured.
func (s *Service) QueryService() *query.Service {
	return s.querySvc
}

// SetMonitoringService sets the monitoring service for search tracking.
// This is called during server initialization after both services are created.
func (s *Service) SetMonitoringService(monSvc MonitoringService) {
	s.monitorOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.monitorSvc = monSvc
		if monSvc != nil {
			s.log.Info("Monitoring service attached to search service")
		}
	})
}

// recordSearchActivity records search activity for connection monitoring.
func (s *Service) recordSearchActivity(filter *Filter) {
	s.mu.RLock()
	monSvc := s.monitorSvc
	s.mu.RUnlock()

	if monSvc == nil {
		return
	}

	// Extract connection ID from filter
	connectionID := ""
	if filter != nil {
		connectionID = filter.ConnectionID
	}

	if connectionID != "" {
		monSvc.RecordSearch(connectionID)
	}
}

// embedViaEventBus generates embeddings using the event bus.
// Falls back to direct ML service call if event bus is unavailable.
func (s *Service) embedViaEventBus(ctx context.Context, texts []string) ([][]float32, error) {
	// If no event bus, fall back to direct call
	if s.bus == nil {
		return s.ml.Embed(ctx, texts)
	}

	// Create request event
	correlationID := fmt.Sprintf("embed-%d", time.Now().UnixNano())
	req := bus.Event{
		ID:            correlationID,
		Type:          bus.TopicEmbedRequest,
		Source:        "search",
		Timestamp:     time.Now().UnixNano(),
		CorrelationID: correlationID,
		Payload: map[string]interface{}{
			"texts": texts,
		},
	}

	// Send request and wait for response
	resp, err := s.bus.Request(ctx, bus.TopicEmbedRequest, req)
	if err != nil {
		s.log.Debug("Event bus embed request failed, falling back to direct call", "error", err)
		return s.ml.Embed(ctx, texts)
	}

	// Parse response
	embeddings, err := parseEmbedResponse(resp)
	if err != nil {
		s.log.Debug("Failed to parse embed response, falling back to direct call", "error", err)
		return s.ml.Embed(ctx, texts)
	}

	return embeddings, nil
}

// sparseEncodeViaEventBus generates sparse vectors using the event bus.
// Falls back to direct ML service call if event bus is unavailable.
func (s *Service) sparseEncodeViaEventBus(ctx context.Context, texts []string) ([]ml.SparseVector, error) {
	// If no event bus, fall back to direct call
	if s.bus == nil {
		return s.ml.SparseEncode(ctx, texts)
	}

	// Create request event
	correlationID := fmt.Sprintf("sparse-%d", time.Now().UnixNano())
	req := bus.Event{
		ID:            correlationID,
		Type:          bus.TopicSparseRequest,
		Source:        "search",
		Timestamp:     time.Now().UnixNano(),
		CorrelationID: correlationID,
		Payload: map[string]interface{}{
			"texts": texts,
		},
	}

	// Send request and wait for response
	resp, err := s.bus.Request(ctx, bus.TopicSparseRequest, req)
	if err != nil {
		s.log.Debug("Event bus sparse request failed, falling back to direct call", "error", err)
		return s.ml.SparseEncode(ctx, texts)
	}

	// Parse response
	vectors, err := parseSparseResponse(resp)
	if err != nil {
		s.log.Debug("Failed to parse sparse response, falling back to direct call", "error", err)
		return s.ml.SparseEncode(ctx, texts)
	}

	return vectors, nil
}

// rerankViaEventBus reranks documents using the event bus.
// Falls back to direct ML service call if event bus is unavailable.
func (s *Service) rerankViaEventBus(ctx context.Context, query string, documents []string, topK int) ([]ml.RankedResult, error) {
	// If no event bus, fall back to direct call
	if s.bus == nil {
		return s.ml.Rerank(ctx, query, documents, topK)
	}

	// Create request event
	correlationID := fmt.Sprintf("rerank-%d", time.Now().UnixNano())
	req := bus.Event{
		ID:            correlationID,
		Type:          bus.TopicRerankRequest,
		Source:        "search",
		Timestamp:     time.Now().UnixNano(),
		CorrelationID: correlationID,
		Payload: map[string]interface{}{
			"query":     query,
			"documents": documents,
			"top_k":     topK,
		},
	}

	// Send request and wait for response
	resp, err := s.bus.Request(ctx, bus.TopicRerankRequest, req)
	if err != nil {
		s.log.Debug("Event bus rerank request failed, falling back to direct call", "error", err)
		return s.ml.Rerank(ctx, query, documents, topK)
	}

	// Parse response
	results, err := parseRerankResponse(resp)
	if err != nil {
		s.log.Debug("Failed to parse rerank response, falling back to direct call", "error", err)
		return s.ml.Rerank(ctx, query, documents, topK)
	}

	return results, nil
}

// parseEmbedResponse extracts embeddings from an event bus response.
func parseEmbedResponse(event bus.Event) ([][]float32, error) {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid embed response payload type")
	}

	// Check for error
	if errStr, ok := payload["error"].(string); ok && errStr != "" {
		return nil, fmt.Errorf("embed error: %s", errStr)
	}

	// Extract embeddings
	embeddingsRaw, ok := payload["embeddings"]
	if !ok {
		return nil, fmt.Errorf("missing embeddings in response")
	}

	// Convert to [][]float32
	return convertToFloat32Slice2D(embeddingsRaw)
}

// parseSparseResponse extracts sparse vectors from an event bus response.
func parseSparseResponse(event bus.Event) ([]ml.SparseVector, error) {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid sparse response payload type")
	}

	// Check for error
	if errStr, ok := payload["error"].(string); ok && errStr != "" {
		return nil, fmt.Errorf("sparse error: %s", errStr)
	}

	// Extract vectors
	vectorsRaw, ok := payload["vectors"]
	if !ok {
		return nil, fmt.Errorf("missing vectors in response")
	}

	// Convert to []ml.SparseVector
	return convertToSparseVectors(vectorsRaw)
}

// parseRerankResponse extracts ranked results from an event bus response.
func parseRerankResponse(event bus.Event) ([]ml.RankedResult, error) {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid rerank response payload type")
	}

	// Check for error
	if errStr, ok := payload["error"].(string); ok && errStr != "" {
		return nil, fmt.Errorf("rerank error: %s", errStr)
	}

	// Extract results
	resultsRaw, ok := payload["results"]
	if !ok {
		return nil, fmt.Errorf("missing results in response")
	}

	// Convert to []ml.RankedResult
	return convertToRankedResults(resultsRaw)
}

// convertToFloat32Slice2D converts interface{} to [][]float32.
func convertToFloat32Slice2D(v interface{}) ([][]float32, error) {
	switch arr := v.(type) {
	case [][]float32:
		return arr, nil
	case []interface{}:
		result := make([][]float32, len(arr))
		for i, row := range arr {
			switch rowArr := row.(type) {
			case []float32:
				result[i] = rowArr
			case []interface{}:
				result[i] = make([]float32, len(rowArr))
				for j, val := range rowArr {
					switch num := val.(type) {
					case float64:
						result[i][j] = float32(num)
					case float32:
						result[i][j] = num
					default:
						return nil, fmt.Errorf("invalid embedding value type at [%d][%d]: %T", i, j, val)
					}
				}
			default:
				return nil, fmt.Errorf("invalid embedding row type at [%d]: %T", i, row)
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("invalid embeddings type: %T", v)
	}
}

// convertToSparseVectors converts interface{} to []ml.SparseVector.
func convertToSparseVectors(v interface{}) ([]ml.SparseVector, error) {
	arr, ok := v.([]interface{})
	if !ok {
		// Try direct type
		if vectors, ok := v.([]ml.SparseVector); ok {
			return vectors, nil
		}
		return nil, fmt.Errorf("invalid sparse vectors type: %T", v)
	}

	result := make([]ml.SparseVector, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid sparse vector item type at [%d]: %T", i, item)
		}

		// Extract indices
		indicesRaw, ok := m["indices"]
		if ok {
			result[i].Indices = convertToUint32Slice(indicesRaw)
		}

		// Extract values
		valuesRaw, ok := m["values"]
		if ok {
			result[i].Values = convertToFloat32Slice(valuesRaw)
		}
	}

	return result, nil
}

// convertToRankedResults converts interface{} to []ml.RankedResult.
func convertToRankedResults(v interface{}) ([]ml.RankedResult, error) {
	arr, ok := v.([]interface{})
	if !ok {
		// Try direct type
		if results, ok := v.([]ml.RankedResult); ok {
			return results, nil
		}
		return nil, fmt.Errorf("invalid ranked results type: %T", v)
	}

	result := make([]ml.RankedResult, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid ranked result item type at [%d]: %T", i, item)
		}

		if idx, ok := m["index"]; ok {
			result[i].Index = int(toFloat64(idx))
		}
		if score, ok := m["score"]; ok {
			result[i].Score = float32(toFloat64(score))
		}
	}

	return result, nil
}

// convertToUint32Slice converts interface{} to []uint32.
func convertToUint32Slice(v interface{}) []uint32 {
	switch arr := v.(type) {
	case []uint32:
		return arr
	case []interface{}:
		result := make([]uint32, len(arr))
		for i, val := range arr {
			result[i] = uint32(toFloat64(val))
		}
		return result
	default:
		return nil
	}
}

// convertToFloat32Slice converts interface{} to []float32.
func convertToFloat32Slice(v interface{}) []float32 {
	switch arr := v.(type) {
	case []float32:
		return arr
	case []interface{}:
		result := make([]float32, len(arr))
		for i, val := range arr {
			result[i] = float32(toFloat64(val))
		}
		return result
	default:
		return nil
	}
}

// toFloat64 safely converts various number types to float64.
func toFloat64(v interface{}) float64 {
	switch num := v.(type) {
	case float64:
		return num
	case float32:
		return float64(num)
	case int:
		return float64(num)
	case int32:
		return float64(num)
	case int64:
		return float64(num)
	case uint32:
		return float64(num)
	case uint64:
		return float64(num)
	default:
		return 0
	}
}
