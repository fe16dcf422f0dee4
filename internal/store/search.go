package store

import (
	"strings"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchHit is one file matching a full-text query.
type SearchHit struct {
	RecordID string `json:"id"`
	Name     string `json:"name"`
	Snippet  string `json:"snippet"`
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultSearchLimit
	case limit > maxSearchLimit:
		return maxSearchLimit
	}
	return limit
}

// ftsQuery quotes every term so user input never reaches the FTS5 query
// syntax. Terms are ANDed.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
