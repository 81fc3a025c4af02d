package index

import (
	"strings"
	"unicode/utf8"
)

// Query is a paginated search against the index.
type Query struct {
	Text  string
	Page  int
	Size  int
	Fuzzy bool
}

// Offset returns the number of entries to skip.
func (q Query) Offset() int { return q.Page * q.Size }

// Terms splits the query text on whitespace.
func (q Query) Terms() []string { return strings.Fields(q.Text) }

// Page is one page of search results.
type Page struct {
	Items      []Entry `json:"items"`
	Page       int     `json:"page"`
	Size       int     `json:"size"`
	TotalCount int     `json:"totalCount"`
}

// EmptyPage is the degraded result returned when the index cannot answer.
func EmptyPage(page, size int) Page {
	return Page{Items: []Entry{}, Page: page, Size: size}
}

// FuzzyDistance returns the edit distance tolerated for a term, scaled by its length:
// exact for up to 2 runes, 1 edit for 3-5, 2 edits beyond.
func FuzzyDistance(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
