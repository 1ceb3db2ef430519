package query

import (
	"math"
	"regexp"
	"strings"
)

var (
	identifierToken = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pathLikeToken   = regexp.MustCompile(`[/\\]|\.[A-Za-z0-9]{1,5}$`)
	quotedLiteral   = regexp.MustCompile(`"[^"]+"|'[^']+'`)
	prefixedToken   = regexp.MustCompile(`^(file|path|symbol):`)
)

var interrogatives = []string{"how", "where", "what", "explain", "why"}

var comparativeCues = []string{"compare", "difference", "impact", "trace", "flow", "diagram"}

var logicalConjunctions = []string{" and ", " or ", " but ", " then "}

var codeOperators = []string{"&&", "||", "==", "!=", "->", "::", "=>"}

// Classify labels a normalized query with {intent, difficulty, confidence}
// using a deterministic rule-based contract. On any internal failure the
// caller must fall back to FallbackClassification; this function itself
// never panics given a well-formed NormalizedQuery.
func Classify(nq NormalizedQuery) IntentClassification {
	text := nq.Normalized
	tokens := strings.Fields(text)

	intent, signals := classifyIntent(text, tokens)
	difficulty := classifyDifficulty(text, tokens)
	confidence := confidenceFromSignals(signals)

	return IntentClassification{
		Intent:     intent,
		Difficulty: difficulty,
		Confidence: confidence,
		Signals:    signals,
	}
}

// FallbackClassification is returned by callers when classification itself
// fails; the classifier must never abort a search.
func FallbackClassification() IntentClassification {
	return IntentClassification{
		Intent:     IntentFactual,
		Difficulty: DifficultyMedium,
		Confidence: 0.5,
	}
}

func classifyIntent(text string, tokens []string) (Intent, map[string]float32) {
	navSignal := navigationalSignal(text, tokens)
	contentWords := countContentWords(tokens)
	interrogativeHit := containsAny(text, interrogatives)
	exploratorySignal := float32(0)
	if interrogativeHit && contentWords >= 3 {
		exploratorySignal = 1
	} else if interrogativeHit {
		exploratorySignal = 0.4
	}
	comparativeHit := containsAny(text, comparativeCues)
	analyticalSignal := float32(0)
	if comparativeHit || isMultiStep(text) {
		analyticalSignal = 1
	}

	signals := map[string]float32{
		"navigational": navSignal,
		"exploratory":  exploratorySignal,
		"analytical":   analyticalSignal,
		"factual":      0.25, // baseline: factual is always a live candidate
	}

	// First match wins, in the mandatory rule order.
	switch {
	case navSignal >= 1:
		return IntentNavigational, signals
	case exploratorySignal >= 1:
		return IntentExploratory, signals
	case analyticalSignal >= 1:
		return IntentAnalytical, signals
	default:
		return IntentFactual, signals
	}
}

// navigationalSignal returns 1 if the query matches any navigational rule:
// a single identifier-like token, a path-like token, a file:/path:/symbol:
// prefix, or a quoted literal.
func navigationalSignal(text string, tokens []string) float32 {
	if len(tokens) == 1 && identifierToken.MatchString(tokens[0]) {
		return 1
	}
	if prefixedToken.MatchString(text) {
		return 1
	}
	if quotedLiteral.MatchString(text) {
		return 1
	}
	for _, t := range tokens {
		if pathLikeToken.MatchString(t) {
			return 1
		}
	}
	return 0
}

func classifyDifficulty(text string, tokens []string) Difficulty {
	interrogativeHit := containsAny(text, interrogatives)
	if len(tokens) <= 3 && !interrogativeHit {
		return DifficultyEasy
	}
	if len(tokens) >= 8 || containsAny(text, logicalConjunctions) || containsAnyLiteral(text, codeOperators) {
		return DifficultyHard
	}
	return DifficultyMedium
}

// confidenceFromSignals computes 1 - normalizedEntropy(signals), clamped to
// [0.3, 0.99]. Signal weights are normalized into a probability distribution;
// entropy is Shannon entropy in bits, normalized by log2(n) so a single
// dominant signal yields high confidence and an even spread yields low
// confidence.
func confidenceFromSignals(signals map[string]float32) float32 {
	var total float32
	for _, w := range signals {
		total += w
	}
	if total <= 0 || len(signals) < 2 {
		return 0.5
	}

	var entropy float64
	for _, w := range signals {
		if w <= 0 {
			continue
		}
		p := float64(w) / float64(total)
		entropy -= p * math.Log2(p)
	}

	maxEntropy := math.Log2(float64(len(signals)))
	normalized := float32(0)
	if maxEntropy > 0 {
		normalized = float32(entropy / maxEntropy)
	}

	confidence := 1 - normalized
	if confidence < 0.3 {
		confidence = 0.3
	}
	if confidence > 0.99 {
		confidence = 0.99
	}
	return confidence
}

func countContentWords(tokens []string) int {
	count := 0
	for _, t := range tokens {
		if stopWords[t] {
			continue
		}
		count++
	}
	return count
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func containsAnyLiteral(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func isMultiStep(text string) bool {
	return strings.Contains(text, " then ") || strings.Contains(text, "step by step") || strings.Contains(text, " after that")
}
