package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals bad input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrStorage signals a record or blob store failure.
	ErrStorage = errors.New("storage failure")
	// ErrQueue signals an enqueue failure after the record was persisted.
	ErrQueue = errors.New("queue failure")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document record.
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)
	// ErrBlobNotFound signals a missing blob behind a record.
	ErrBlobNotFound = fmt.Errorf("blob %w", ErrNotFound)
	// ErrTextNotReady signals that extraction has not completed yet.
	ErrTextNotReady = errors.New("extracted text not available yet")
	// ErrOCR signals a permanent extraction failure for one job.
	ErrOCR = errors.New("ocr failure")
	// ErrIndex signals a search index failure.
	ErrIndex = errors.New("search index failure")
)

// OCRKind classifies extraction failures.
type OCRKind string

// Extraction failure kinds.
const (
	OCRMissingFile      OCRKind = "missing_file"
	OCRExtractionFailed OCRKind = "extraction_failed"
	OCRUnsupportedType  OCRKind = "unsupported_type"
)

// OCRError wraps ErrOCR with the failing document and cause.
type OCRError struct {
	Kind OCRKind
	ID   int64
	Err  error
}

func (e *OCRError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s) for document %d", ErrOCR.Error(), e.Kind, e.ID)
	}
	return fmt.Sprintf("%s (%s) for document %d: %v", ErrOCR.Error(), e.Kind, e.ID, e.Err)
}

// Is matches ErrOCR so callers can test the category without the concrete type.
func (e *OCRError) Is(target error) bool { return target == ErrOCR }

func (e *OCRError) Unwrap() error { return e.Err }

// NewOCRError creates an extraction failure for a document.
func NewOCRError(kind OCRKind, id int64, err error) error {
	return &OCRError{Kind: kind, ID: id, Err: err}
}

// Validationf formats a validation error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
