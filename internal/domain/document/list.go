package document

import (
	"fmt"
	"sort"
	"strings"
)

// SortField names a record attribute lists can be ordered by.
type SortField string

// Sortable fields.
const (
	SortByUploadedAt SortField = "uploadedAt"
	SortByTitle      SortField = "title"
	SortByFileSize   SortField = "fileSize"
	SortByID         SortField = "id"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ListQuery filters and orders a record listing.
// Search is a case-insensitive substring over title and extracted text.
type ListQuery struct {
	Search    string
	SortField SortField
	Direction Direction
}

// Normalize fills defaults (uploadedAt desc) and rejects unknown values.
func (q ListQuery) Normalize() (ListQuery, error) {
	q.Search = strings.TrimSpace(q.Search)
	if q.SortField == "" {
		q.SortField = SortByUploadedAt
	}
	switch q.SortField {
	case SortByUploadedAt, SortByTitle, SortByFileSize, SortByID:
	default:
		return q, fmt.Errorf("unknown sort field %q", q.SortField)
	}
	q.Direction = Direction(strings.ToLower(string(q.Direction)))
	if q.Direction == "" {
		q.Direction = Desc
	}
	if q.Direction != Asc && q.Direction != Desc {
		return q, fmt.Errorf("unknown sort direction %q", q.Direction)
	}
	return q, nil
}

// Matches reports whether r passes the search filter.
func (q ListQuery) Matches(r *Record) bool {
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	if strings.Contains(strings.ToLower(r.title), needle) {
		return true
	}
	text, _ := r.ExtractedText()
	return strings.Contains(strings.ToLower(text), needle)
}

// Apply filters and sorts records in memory. Used by stores without server-side ordering.
func (q ListQuery) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for i := range records {
		if q.Matches(&records[i]) {
			out = append(out, records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(&out[i], &out[j], q.SortField)
		if c == 0 {
			c = cmpInt(out[i].id, out[j].id)
		}
		if q.Direction == Asc {
			return c < 0
		}
		return c > 0
	})
	return out
}

func compare(a, b *Record, field SortField) int {
	switch field {
	case SortByTitle:
		return strings.Compare(strings.ToLower(a.title), strings.ToLower(b.title))
	case SortByFileSize:
		return cmpInt(a.fileSize, b.fileSize)
	case SortByID:
		return cmpInt(a.id, b.id)
	default:
		return a.uploadedAt.Compare(b.uploadedAt)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
