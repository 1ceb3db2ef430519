package query

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/ricesearch/rice-search/internal/ml"
	"github.com/ricesearch/rice-search/internal/pkg/errors"
	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

var (
	// ErrModelNotEnabled is returned when model-based understanding is disabled.
	ErrModelNotEnabled = errors.New(errors.CodeMLError, "model-based query understanding not enabled")
)

// IntentEmbedding represents a pre-computed embedding for an intent.
type IntentEmbedding struct {
	Intent    Intent
	Embedding []float32
}

// canonicalIntentQueries maps intents to canonical query patterns.
var canonicalIntentQueries = map[Intent][]string{
	IntentNavigational: {
		"find function",
		"where is the code",
		"locate implementation",
		"search for method",
	},
	IntentExploratory: {
		"how does this work",
		"explain the logic",
		"what is the purpose",
		"describe the implementation",
	},
	IntentAnalytical: {
		"compare implementations",
		"difference between methods",
		"contrast approaches",
		"impact of this change",
	},
	IntentFactual: {
		"list all functions",
		"show all methods",
		"get all endpoints",
		"resolve the issue",
	},
}

// ModelBasedUnderstanding implements ML model-based query understanding.
// Uses embedding similarity to classify intent and combines with heuristic
// keyword extraction for robust query understanding.
type ModelBasedUnderstanding struct {
	mu              sync.RWMutex
	enabled         bool
	mlService       ml.Service
	intentEmbedding []IntentEmbedding
	log             *logger.Logger
}

// NewModelBasedUnderstanding creates a new model-based understanding service.
func NewModelBasedUnderstanding(log *logger.Logger) *ModelBasedUnderstanding {
	return &ModelBasedUnderstanding{
		enabled:         false,
		intentEmbedding: nil,
		log:             log,
	}
}

// Initialize initializes the model-based understanding with ML service.
// This pre-computes embeddings for canonical intent queries.
func (m *ModelBasedUnderstanding) Initialize(ctx context.Context, mlService ml.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mlService == nil {
		return errors.New(errors.CodeMLError, "ML service is required for model-based understanding")
	}

	m.mlService = mlService
	m.log.Info("Initializing model-based query understanding")

	// Pre-compute embeddings for canonical intent queries
	if err := m.precomputeIntentEmbeddings(ctx); err != nil {
		m.log.Warn("Failed to pre-compute intent embeddings, model will be disabled", "error", err)
		return err
	}

	m.log.Info("Model-based query understanding initialized successfully",
		"intent_embeddings", len(m.intentEmbedding))
	return nil
}

// precomputeIntentEmbeddings pre-computes embeddings for canonical intent queries.
func (m *ModelBasedUnderstanding) precomputeIntentEmbeddings(ctx context.Context) error {
	if m.mlService == nil {
		return errors.New(errors.CodeMLError, "ML service not set")
	}

	var allQueries []string
	var queryToIntent []Intent

	// Collect all canonical queries
	for intent, queries := range canonicalIntentQueries {
		for _, query := range queries {
			allQueries = append(allQueries, query)
			queryToIntent = append(queryToIntent, intent)
		}
	}

	if len(allQueries) == 0 {
		return errors.New(errors.CodeMLError, "no canonical intent queries defined")
	}

	// Generate embeddings for all queries
	embeddings, err := m.mlService.Embed(ctx, allQueries)
	if err != nil {
		return errors.Wrap(errors.CodeMLError, "failed to generate intent embeddings", err)
	}

	// Store embeddings with their intents
	m.intentEmbedding = make([]IntentEmbedding, len(embeddings))
	for i, embedding := range embeddings {
		m.intentEmbedding[i] = IntentEmbedding{
			Intent:    queryToIntent[i],
			Embedding: embedding,
		}
	}

	return nil
}

// Parse analyzes a query using ML model embeddings.
// Uses cosine similarity to canonical intent queries for classification.
// Returns an error when the model is disabled, not initialized or fails;
// the keyword-extraction fallback lives in Service.Parse.
func (m *ModelBasedUnderstanding) Parse(ctx context.Context, query string) (*ParsedQuery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.enabled {
		return nil, ErrModelNotEnabled
	}

	if m.mlService == nil || len(m.intentEmbedding) == 0 {
		m.log.Debug("Model-based understanding not initialized, falling back")
		return nil, ErrModelNotEnabled
	}

	// Generate embedding for the query
	embeddings, err := m.mlService.Embed(ctx, []string{query})
	if err != nil {
		m.log.Warn("Failed to generate query embedding", "error", err)
		return nil, err
	}

	if len(embeddings) == 0 {
		return nil, errors.New(errors.CodeMLError, "no embedding generated for query")
	}

	queryEmbedding := embeddings[0]

	// Classify intent using cosine similarity against canonical intent queries.
	intent, confidence := m.classifyIntent(queryEmbedding)

	// Normalize and extract keywords using the deterministic rules; the model
	// only supplies the intent, never the fingerprint or keyword extraction.
	nq, err := Normalize(query)
	if err != nil {
		return nil, err
	}
	difficulty := classifyDifficulty(nq.Normalized, strings.Fields(nq.Normalized))
	keywords := extractKeywords(nq.Normalized)
	codeTerms := extractCodeTerms(keywords)
	targetType := DetectTargetType(nq.Normalized)
	expanded := expandWithSynonyms(keywords, codeTerms)
	searchQuery := buildSearchQuery(nq.Normalized, expanded, intent)

	result := &ParsedQuery{
		Original:    query,
		Normalized:  nq.Normalized,
		Fingerprint: nq.Fingerprint,
		Keywords:    keywords,
		CodeTerms:   codeTerms,
		Intent:      intent,
		Difficulty:  difficulty,
		TargetType:  targetType,
		Expanded:    expanded,
		SearchQuery: searchQuery,
		Confidence:  confidence,
		UsedModel:   true,
	}

	m.log.Debug("Parsed query with model",
		"original", query,
		"intent", intent,
		"target", targetType,
		"keywords", len(keywords),
		"confidence", confidence,
	)

	return result, nil
}

// classifyIntent classifies query intent using cosine similarity.
func (m *ModelBasedUnderstanding) classifyIntent(queryEmbedding []float32) (Intent, float32) {
	if len(m.intentEmbedding) == 0 {
		return IntentFactual, 0.0
	}

	// Track best match for each intent type
	intentScores := make(map[Intent]float32)
	intentCounts := make(map[Intent]int)

	for _, ie := range m.intentEmbedding {
		similarity := cosineSimilarity(queryEmbedding, ie.Embedding)

		// Track max similarity for each intent
		if similarity > intentScores[ie.Intent] {
			intentScores[ie.Intent] = similarity
		}
		intentCounts[ie.Intent]++
	}

	// Find best intent
	var bestIntent Intent = IntentFactual
	var bestScore float32 = 0.0

	for intent, score := range intentScores {
		if score > bestScore {
			bestScore = score
			bestIntent = intent
		}
	}

	// Require minimum confidence threshold (0.65 is reasonable for semantic similarity)
	if bestScore < 0.65 {
		return IntentFactual, bestScore
	}

	// Convert similarity to confidence (0.65-1.0 maps to 0.7-1.0)
	confidence := 0.7 + (bestScore-0.65)*0.3/0.35
	if confidence > 1.0 {
		confidence = 1.0
	}

	return bestIntent, confidence
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// IsEnabled returns whether model-based understanding is enabled.
func (m *ModelBasedUnderstanding) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled && m.mlService != nil && len(m.intentEmbedding) > 0
}

// SetEnabled enables or disables model-based understanding.
func (m *ModelBasedUnderstanding) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = enabled
	if enabled {
		if m.mlService == nil {
			m.log.Warn("Model-based query understanding enabled but ML service not initialized")
		} else {
			m.log.Info("Model-based query understanding enabled")
		}
	} else {
		m.log.Info("Model-based query understanding disabled")
	}
}
