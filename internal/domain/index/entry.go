// Package index defines the search projection of a document record.
package index

import (
	"strconv"
	"time"

	"github.com/BenardMarashi/docmanagement/internal/domain/document"
)

// Entry is the disposable search projection of a record.
// ExtractedTextNgram always mirrors ExtractedText; it feeds the prefix analyzer.
type Entry struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	ExtractedText      string    `json:"extractedText"`
	ExtractedTextNgram string    `json:"extractedTextNgram"`
	UploadedAt         time.Time `json:"uploadedAt"`
	FileSize           int64     `json:"fileSize"`
	ContentType        string    `json:"contentType"`
}

// FromRecord projects a record into an index entry.
// Returns false when the record has no extracted text: such records must not be indexed.
func FromRecord(r *document.Record) (Entry, bool) {
	if !r.HasText() {
		return Entry{}, false
	}
	text, _ := r.ExtractedText()
	return Entry{
		ID:                 EntryID(r.ID()),
		Title:              r.Title(),
		ExtractedText:      text,
		ExtractedTextNgram: text,
		UploadedAt:         r.UploadedAt(),
		FileSize:           r.FileSize(),
		ContentType:        r.ContentType(),
	}, true
}

// EntryID is the join key between a record and its entry.
func EntryID(recordID int64) string {
	return strconv.FormatInt(recordID, 10)
}
