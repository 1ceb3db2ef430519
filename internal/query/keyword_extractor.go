package query

import (
	"context"
	"strings"
	"unicode"

	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

// stopWords are excluded from keyword extraction and from the content-word
// count used by the intent/difficulty classifier.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "will": true, "with": true,
	"i": true, "me": true, "my": true, "we": true, "you": true, "your": true,
	"this": true, "these": true, "those": true, "there": true, "their": true,
}

// KeywordExtractor implements rule-based query understanding: the
// deterministic path that Classify/Normalize always exercise, independent of
// any optional model augmentation.
type KeywordExtractor struct {
	log *logger.Logger
}

// NewKeywordExtractor creates a new keyword-based query extractor.
func NewKeywordExtractor(log *logger.Logger) *KeywordExtractor {
	return &KeywordExtractor{
		log: log,
	}
}

// Parse extracts keywords and classifies intent/difficulty using the
// deterministic rules in normalizer.go and classifier.go.
func (e *KeywordExtractor) Parse(ctx context.Context, query string) (*ParsedQuery, error) {
	if query == "" {
		return nil, nil
	}

	nq, err := Normalize(query)
	if err != nil {
		return nil, err
	}

	classification := Classify(nq)
	targetType := DetectTargetType(nq.Normalized)

	keywords := extractKeywords(nq.Normalized)
	codeTerms := extractCodeTerms(keywords)
	expanded := expandWithSynonyms(keywords, codeTerms)
	searchQuery := buildSearchQuery(nq.Normalized, expanded, classification.Intent)

	result := &ParsedQuery{
		Original:    query,
		Normalized:  nq.Normalized,
		Fingerprint: nq.Fingerprint,
		Keywords:    keywords,
		CodeTerms:   codeTerms,
		Intent:      classification.Intent,
		Difficulty:  classification.Difficulty,
		TargetType:  targetType,
		Expanded:    expanded,
		SearchQuery: searchQuery,
		Confidence:  classification.Confidence,
		UsedModel:   false,
	}

	e.log.Debug("Parsed query",
		"original", query,
		"intent", classification.Intent,
		"difficulty", classification.Difficulty,
		"target", targetType,
		"keywords", len(keywords),
		"confidence", classification.Confidence,
	)

	return result, nil
}

// extractKeywords extracts important terms from the query, splitting
// compound identifiers (camelCase, snake_case, kebab-case) so a query like
// "getUserName" also matches indexed occurrences of "get", "user", "name".
func extractKeywords(query string) []string {
	words := strings.Fields(query)
	keywords := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))

	add := func(word string) {
		if len(word) < 2 || stopWords[word] || seen[word] {
			return
		}
		seen[word] = true
		keywords = append(keywords, word)
	}

	for _, word := range words {
		word = cleanWord(word)
		if len(word) < 2 || stopWords[word] {
			continue
		}

		add(word)
		for _, part := range SplitCases(word) {
			add(part)
		}
	}

	return keywords
}

// cleanWord removes punctuation from a word.
func cleanWord(word string) string {
	var cleaned strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_' {
			cleaned.WriteRune(r)
		}
	}
	return cleaned.String()
}

// extractCodeTerms identifies code-specific terms from keywords.
func extractCodeTerms(keywords []string) []string {
	codeTerms := make([]string, 0)
	seen := make(map[string]bool)

	for _, keyword := range keywords {
		if IsCodeTerm(keyword) {
			if !seen[keyword] {
				codeTerms = append(codeTerms, keyword)
				seen[keyword] = true
			}
			continue
		}

		for term, synonyms := range CodeTerms {
			for _, syn := range synonyms {
				if keyword == syn && !seen[term] {
					codeTerms = append(codeTerms, term)
					seen[term] = true
					break
				}
			}
		}
	}

	return codeTerms
}

// expandWithSynonyms expands keywords with synonyms.
func expandWithSynonyms(keywords, codeTerms []string) []string {
	expanded := make([]string, 0)
	seen := make(map[string]bool)

	for _, kw := range keywords {
		if !seen[kw] {
			expanded = append(expanded, kw)
			seen[kw] = true
		}
	}

	for _, term := range codeTerms {
		synonyms := GetSynonyms(term)
		for _, syn := range synonyms {
			if !seen[syn] {
				expanded = append(expanded, syn)
				seen[syn] = true
			}
		}
	}

	return expanded
}

// buildSearchQuery constructs the optimized search query for the engine,
// tailored to the query's intent.
func buildSearchQuery(normalized string, expanded []string, intent Intent) string {
	switch intent {
	case IntentNavigational:
		cleaned := normalized
		patterns := []string{
			"where is ", "where are ", "find ", "locate ",
			"search for ", "look for ",
		}
		for _, pattern := range patterns {
			cleaned = strings.Replace(cleaned, pattern, "", 1)
		}
		return strings.TrimSpace(cleaned)
	case IntentExploratory:
		return normalized
	default:
		if len(expanded) > 0 {
			return strings.Join(expanded, " ")
		}
		return normalized
	}
}
