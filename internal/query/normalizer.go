package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/ricesearch/rice-search/internal/pkg/errors"
)

// MaxQueryLength is the upper bound on raw query length, enforced before
// any normalization work happens.
const MaxQueryLength = 2048

// Normalize canonicalizes raw query text for caching and downstream use.
// normalized = collapse_ws(nfc(lower(raw))); fingerprint = sha256(normalized)[:16].
// Pure; performs no I/O. Fails with InvalidQuery for empty or over-length input.
func Normalize(raw string) (NormalizedQuery, error) {
	if raw == "" {
		return NormalizedQuery{}, errors.InvalidQueryError("query must not be empty")
	}
	if len(raw) > MaxQueryLength {
		return NormalizedQuery{}, errors.InvalidQueryError("query exceeds maximum length of 2048 characters")
	}

	lowered := strings.ToLower(raw)
	nfc := norm.NFC.String(lowered)
	normalized := collapseWhitespace(nfc)

	if normalized == "" {
		return NormalizedQuery{}, errors.InvalidQueryError("query must not be empty")
	}

	return NormalizedQuery{
		Raw:         raw,
		Normalized:  normalized,
		Fingerprint: fingerprint(normalized),
	}, nil
}

// collapseWhitespace replaces runs of whitespace with a single space and trims
// leading/trailing whitespace, using unicode.IsSpace so NFC-normalized
// non-breaking variants collapse the same way as plain ASCII spaces.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimSpace(b.String())
}

// fingerprint returns the first 16 hex characters of sha256(normalized),
// used as the cache key for embeddings and reranking.
func fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
