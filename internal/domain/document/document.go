package document

import (
	"fmt"
	"time"
)

// Record is the document metadata aggregate (immutable value object).
// The record store is the only authority for it; other components keep ids.
type Record struct {
	id          int64
	title       string
	blobHandle  string
	fileSize    int64
	contentType string
	uploadedAt  time.Time
	text        *string
}

// New validates and creates a Record that has not been persisted yet (ID 0, no text).
func New(title, blobHandle, contentType string, fileSize int64, uploadedAt time.Time) (Record, error) {
	if blobHandle == "" {
		return Record{}, fmt.Errorf("blob handle is required")
	}
	if fileSize <= 0 {
		return Record{}, fmt.Errorf("file size must be positive, got %d", fileSize)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Record{
		title:       title,
		blobHandle:  blobHandle,
		fileSize:    fileSize,
		contentType: contentType,
		uploadedAt:  uploadedAt.UTC().Truncate(time.Millisecond),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id int64, title, blobHandle, contentType string, fileSize int64,
	uploadedAt time.Time, text *string,
) Record {
	return Record{
		id: id, title: title, blobHandle: blobHandle, fileSize: fileSize,
		contentType: contentType, uploadedAt: uploadedAt, text: text,
	}
}

// ID returns the store-assigned identifier (0 before creation).
func (r *Record) ID() int64 { return r.id }

// Title returns the document title.
func (r *Record) Title() string { return r.title }

// BlobHandle returns the opaque blob store reference.
func (r *Record) BlobHandle() string { return r.blobHandle }

// FileSize returns the uploaded content size in bytes.
func (r *Record) FileSize() int64 { return r.fileSize }

// ContentType returns the uploaded content MIME type.
func (r *Record) ContentType() string { return r.contentType }

// UploadedAt returns the creation timestamp.
func (r *Record) UploadedAt() time.Time { return r.uploadedAt }

// ExtractedText returns the extracted text and whether extraction has completed.
func (r *Record) ExtractedText() (string, bool) {
	if r.text == nil {
		return "", false
	}
	return *r.text, true
}

// HasText reports whether the record carries non-empty extracted text.
func (r *Record) HasText() bool { return r.text != nil && *r.text != "" }

// WithID returns a copy carrying the store-assigned id.
func (r Record) WithID(id int64) Record {
	r.id = id
	return r
}

// WithExtractedText returns a copy with the extracted text set.
func (r Record) WithExtractedText(text string) Record {
	r.text = &text
	return r
}
