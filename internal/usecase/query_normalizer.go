package usecase

import (
	"regexp"
	"strings"

	"github.com/catalogfill/enricher/internal/domain"
)

var multiSpacePattern = regexp.MustCompile(`\s+`)

// QueryNormalizer turns raw candidate field values into search queries
type QueryNormalizer struct{}

// NewQueryNormalizer creates a new query normalizer
func NewQueryNormalizer() *QueryNormalizer {
	return &QueryNormalizer{}
}

// Normalize trims and collapses whitespace. It returns false when the value
// is blank or a null placeholder, in which case no lookup should be made.
func (n *QueryNormalizer) Normalize(raw string) (string, bool) {
	q := strings.TrimSpace(multiSpacePattern.ReplaceAllString(raw, " "))
	if q == "" || domain.IsNullPlaceholder(q) {
		return "", false
	}
	return q, true
}

// Candidate reads field from rec and normalizes it
func (n *QueryNormalizer) Candidate(rec *domain.Record, field string) (string, bool) {
	raw, ok := rec.Get(field)
	if !ok {
		return "", false
	}
	return n.Normalize(raw)
}

// CacheKey builds the lookup cache key for a normalized query.
// Format: "lookup:{lowercased query}"
func CacheKey(query string) string {
	return "lookup:" + strings.ToLower(query)
}
