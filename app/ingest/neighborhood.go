package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics, so "Jardim Botânico" matches
// "jardim botanico" as portals spell neighborhoods inconsistently.
func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// NeighborhoodMatcher checks candidate locations against a portal's
// allow-list. An empty allow-list admits everything.
type NeighborhoodMatcher struct {
	allowed []string
}

func NewNeighborhoodMatcher(neighborhoods []string) *NeighborhoodMatcher {
	allowed := make([]string, 0, len(neighborhoods))
	for _, n := range neighborhoods {
		if folded := fold(n); folded != "" {
			allowed = append(allowed, folded)
		}
	}
	return &NeighborhoodMatcher{allowed: allowed}
}

// Matches reports whether the location text mentions any allowed
// neighborhood.
func (m *NeighborhoodMatcher) Matches(location string) bool {
	if len(m.allowed) == 0 {
		return true
	}

	haystack := fold(location)
	for _, neighborhood := range m.allowed {
		if strings.Contains(haystack, neighborhood) {
			return true
		}
	}
	return false
}
