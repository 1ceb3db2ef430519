// Package query provides query understanding and parsing for Rice Search.
package query

// Intent is the coarse-grained classification of a search query.
type Intent string

const (
	// IntentNavigational - the query names a specific symbol, path, or literal.
	IntentNavigational Intent = "navigational"

	// IntentFactual - a plain lookup with no special structure.
	IntentFactual Intent = "factual"

	// IntentExploratory - the query asks how/why/what something works.
	IntentExploratory Intent = "exploratory"

	// IntentAnalytical - the query asks for comparison, impact, or multi-step reasoning.
	IntentAnalytical Intent = "analytical"
)

// Difficulty estimates how much retrieval effort a query warrants.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// NormalizedQuery is the canonical form of a raw query, produced once and
// reused as the cache key for embeddings, reranking, and classification.
type NormalizedQuery struct {
	Raw         string `json:"raw"`
	Normalized  string `json:"normalized"`
	Fingerprint string `json:"fingerprint"`
}

// IntentClassification is the deterministic output of classify(NormalizedQuery).
// Signals carries the named rule weights that fired, used both to explain the
// decision and to derive Confidence as 1 - entropy(signals).
type IntentClassification struct {
	Intent     Intent             `json:"intent"`
	Difficulty Difficulty         `json:"difficulty"`
	Confidence float32            `json:"confidence"`
	Signals    map[string]float32 `json:"signals,omitempty"`
}

// ParsedQuery represents the full result of query understanding: the
// deterministic classification plus keyword/code-term extraction used to
// build the search-engine query string.
type ParsedQuery struct {
	// Original is the raw user query.
	Original string `json:"original"`

	// Normalized is the cleaned/standardized query.
	Normalized string `json:"normalized"`

	// Fingerprint is the cache key derived from Normalized.
	Fingerprint string `json:"fingerprint"`

	// Keywords are extracted important terms.
	Keywords []string `json:"keywords"`

	// CodeTerms are code-specific terms (function, class, etc).
	CodeTerms []string `json:"code_terms"`

	// Intent is the detected query intent.
	Intent Intent `json:"intent"`

	// Difficulty is the detected query difficulty.
	Difficulty Difficulty `json:"difficulty"`

	// TargetType is what the user is looking for (function, class, file, error).
	TargetType string `json:"target_type"`

	// Expanded contains synonym expansions of terms.
	Expanded []string `json:"expanded"`

	// SearchQuery is the final optimized query for search.
	SearchQuery string `json:"search_query"`

	// Confidence is how confident we are in the classification (0-1).
	Confidence float32 `json:"confidence"`

	// UsedModel indicates if ML model was used for understanding.
	UsedModel bool `json:"used_model"`
}

// TargetType constants for common code targets.
const (
	TargetFunction = "function"
	TargetClass    = "class"
	TargetVariable = "variable"
	TargetFile     = "file"
	TargetError    = "error"
	TargetTest     = "test"
	TargetConfig   = "config"
	TargetAPI      = "api"
	TargetDatabase = "database"
	TargetAuth     = "auth"
	TargetUnknown  = "unknown"
)
