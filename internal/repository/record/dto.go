package record

import (
	"fmt"
	"strconv"
	"time"

	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
)

const (
	fieldTitle       = "title"
	fieldBlobHandle  = "blobHandle"
	fieldFileSize    = "fileSize"
	fieldContentType = "contentType"
	fieldUploadedAt  = "uploadedAt"
	fieldText        = "extractedText"
)

// buildHashFields converts a record into a flat map for HSET.
// A missing extractedText field means extraction has not completed.
func buildHashFields(rec *domdoc.Record) map[string]string {
	m := map[string]string{
		fieldTitle:       rec.Title(),
		fieldBlobHandle:  rec.BlobHandle(),
		fieldFileSize:    strconv.FormatInt(rec.FileSize(), 10),
		fieldContentType: rec.ContentType(),
		fieldUploadedAt:  strconv.FormatInt(rec.UploadedAt().UnixMilli(), 10),
	}
	if text, ok := rec.ExtractedText(); ok {
		m[fieldText] = text
	}
	return m
}

// buildMutableFields returns the fields an update may touch. Text is never cleared.
func buildMutableFields(rec *domdoc.Record) map[string]string {
	m := map[string]string{fieldTitle: rec.Title()}
	if text, ok := rec.ExtractedText(); ok {
		m[fieldText] = text
	}
	return m
}

// parseHashFields converts a hash back into a record.
func parseHashFields(id int64, m map[string]string) (domdoc.Record, error) {
	size, err := strconv.ParseInt(m[fieldFileSize], 10, 64)
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("parse %s: %w", fieldFileSize, err)
	}
	ms, err := strconv.ParseInt(m[fieldUploadedAt], 10, 64)
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("parse %s: %w", fieldUploadedAt, err)
	}

	var text *string
	if v, ok := m[fieldText]; ok {
		text = &v
	}

	return domdoc.Reconstruct(
		id, m[fieldTitle], m[fieldBlobHandle], m[fieldContentType], size,
		time.UnixMilli(ms).UTC(), text,
	), nil
}
