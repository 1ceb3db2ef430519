package query

import (
	"context"
	"testing"

	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

func TestKeywordExtractorParse(t *testing.T) {
	log := logger.Default()
	extractor := NewKeywordExtractor(log)
	ctx := context.Background()

	tests := []struct {
		name           string
		query          string
		expectedIntent Intent
		expectedTarget string
		minKeywords    int
		minConfidence  float32
	}{
		{
			name:           "navigational single identifier",
			query:          "authenticateUser",
			expectedIntent: IntentNavigational,
			expectedTarget: TargetAuth,
			minKeywords:    1,
			minConfidence:  0.3,
		},
		{
			name:           "explain how",
			query:          "how does the authentication handler work",
			expectedIntent: IntentExploratory,
			expectedTarget: TargetAuth,
			minKeywords:    2,
			minConfidence:  0.3,
		},
		{
			name:           "compare implementations",
			query:          "compare redis and memory cache implementations",
			expectedIntent: IntentAnalytical,
			expectedTarget: TargetUnknown,
			minKeywords:    3,
			minConfidence:  0.3,
		},
		{
			name:           "fix error is factual",
			query:          "fix database connection error",
			expectedIntent: IntentFactual,
			expectedTarget: TargetError,
			minKeywords:    2,
			minConfidence:  0.3,
		},
		{
			name:           "code term search",
			query:          "configuration settings",
			expectedIntent: IntentFactual,
			expectedTarget: TargetConfig,
			minKeywords:    2,
			minConfidence:  0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractor.Parse(ctx, tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Original != tt.query {
				t.Errorf("expected original %q, got %q", tt.query, result.Original)
			}

			if result.Intent != tt.expectedIntent {
				t.Errorf("expected intent %q, got %q", tt.expectedIntent, result.Intent)
			}

			if result.TargetType != tt.expectedTarget {
				t.Errorf("expected target %q, got %q", tt.expectedTarget, result.TargetType)
			}

			if len(result.Keywords) < tt.minKeywords {
				t.Errorf("expected at least %d keywords, got %d", tt.minKeywords, len(result.Keywords))
			}

			if result.Confidence < tt.minConfidence {
				t.Errorf("expected confidence >= %f, got %f", tt.minConfidence, result.Confidence)
			}

			if result.UsedModel {
				t.Error("expected UsedModel to be false")
			}

			if result.SearchQuery == "" {
				t.Error("expected non-empty search query")
			}

			if result.Fingerprint == "" {
				t.Error("expected non-empty fingerprint")
			}
		})
	}
}

func TestKeywordExtractorEmptyQuery(t *testing.T) {
	log := logger.Default()
	extractor := NewKeywordExtractor(log)
	ctx := context.Background()

	result, err := extractor.Parse(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != nil {
		t.Error("expected nil result for empty query")
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		query    string
		expected []string
		minCount int
	}{
		{
			query:    "find the authentication function",
			expected: []string{"find", "authentication", "function"},
			minCount: 3,
		},
		{
			query:    "a simple test",
			expected: []string{"simple", "test"},
			minCount: 2,
		},
		{
			query:    "how does it work",
			expected: []string{"how", "does", "work"},
			minCount: 3,
		},
		{
			query:    "getUserName function",
			expected: []string{"getusername", "get", "user", "name", "function"},
			minCount: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result := extractKeywords(tt.query)
			if len(result) < tt.minCount {
				t.Errorf("expected at least %d keywords, got %d: %v",
					tt.minCount, len(result), result)
			}
		})
	}
}

func TestExtractCodeTerms(t *testing.T) {
	tests := []struct {
		keywords []string
		minTerms int
	}{
		{
			keywords: []string{"function", "error", "handler"},
			minTerms: 2, // function and error
		},
		{
			keywords: []string{"class", "method", "variable"},
			minTerms: 2, // class and variable (method is synonym of function)
		},
		{
			keywords: []string{"test", "config", "api"},
			minTerms: 3, // all three are code terms
		},
		{
			keywords: []string{"normal", "words"},
			minTerms: 0, // no code terms
		},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			result := extractCodeTerms(tt.keywords)
			if len(result) < tt.minTerms {
				t.Errorf("expected at least %d code terms, got %d: %v", tt.minTerms, len(result), result)
			}
		})
	}
}

func TestExpandWithSynonyms(t *testing.T) {
	keywords := []string{"function", "error"}
	codeTerms := []string{"function", "error"}

	result := expandWithSynonyms(keywords, codeTerms)

	hasFunction := false
	hasError := false
	for _, term := range result {
		if term == "function" {
			hasFunction = true
		}
		if term == "error" {
			hasError = true
		}
	}

	if !hasFunction {
		t.Error("expected 'function' in expanded terms")
	}
	if !hasError {
		t.Error("expected 'error' in expanded terms")
	}

	if len(result) <= len(keywords) {
		t.Errorf("expected expansion, got %d terms (input: %d)", len(result), len(keywords))
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name       string
		normalized string
		expanded   []string
		intent     Intent
		minLength  int
	}{
		{
			name:       "navigational intent strips question",
			normalized: "where is the authenticate function",
			expanded:   []string{"authenticate", "function", "func", "method"},
			intent:     IntentNavigational,
			minLength:  10,
		},
		{
			name:       "exploratory intent keeps context",
			normalized: "how does authentication work",
			expanded:   []string{"authentication", "work"},
			intent:     IntentExploratory,
			minLength:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildSearchQuery(tt.normalized, tt.expanded, tt.intent)
			if len(result) < tt.minLength {
				t.Errorf("expected search query length >= %d, got %d: %q",
					tt.minLength, len(result), result)
			}
		})
	}
}
