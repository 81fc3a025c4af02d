package db

import (
	"errors"
	"strings"
)

// TextQuery is the input for a paginated FT.SEARCH.
// Query is passed verbatim; escape user input with EscapeTerm.
type TextQuery struct {
	IndexName    string
	Query        string
	Offset       int
	Limit        int
	ReturnFields []string
	SortBy       string
	SortDesc     bool
}

// Validate rejects queries FT.SEARCH would fail on.
func (q *TextQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return errors.New("index name is required")
	case strings.TrimSpace(q.Query) == "":
		return errors.New("query is required")
	case q.Offset < 0 || q.Limit < 0:
		return errors.New("offset and limit must be non-negative")
	}
	return nil
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}

// EscapeTerm escapes RediSearch query syntax characters in a single term.
func EscapeTerm(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`.`, `\.`,
	`/`, `\/`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`:`, `\:`,
	`+`, `\+`,
	`#`, `\#`,
	`&`, `\&`,
	`?`, `\?`,
)
