package chi

import (
	"time"

	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
)

// ErrorCode is the machine-readable error code in API responses.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeTextNotReady       ErrorCode = "text_not_ready"
	ErrorCodePayloadTooLarge    ErrorCode = "payload_too_large"
	ErrorCodeStorageUnavailable ErrorCode = "storage_unavailable"
	ErrorCodeQueueUnavailable   ErrorCode = "queue_unavailable"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentResponse is a record as exposed by the API.
type DocumentResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	UploadedAt  time.Time `json:"uploadedAt"`
	HasText     bool      `json:"hasText"`
}

// TextResponse carries a record's extracted text.
type TextResponse struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// SearchHit is one search result.
type SearchHit struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ExtractedText string    `json:"extractedText"`
	UploadedAt    time.Time `json:"uploadedAt"`
	FileSize      int64     `json:"fileSize"`
	ContentType   string    `json:"contentType"`
}

// SearchResponse is a page of search results.
type SearchResponse struct {
	Items      []SearchHit `json:"items"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	TotalCount int         `json:"totalCount"`
}

// HealthResponse reports dependency status.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// listParams are the GET /api/documents query parameters.
type listParams struct {
	Search    string `schema:"search"`
	SortField string `schema:"sortField"`
	Sort      string `schema:"sort"`
	Direction string `schema:"direction"`
}

func (p listParams) query() domdoc.ListQuery {
	field := p.SortField
	if field == "" {
		field = p.Sort
	}
	return domdoc.ListQuery{
		Search:    p.Search,
		SortField: domdoc.SortField(field),
		Direction: domdoc.Direction(p.Direction),
	}
}

// searchParams are the GET /api/search query parameters.
type searchParams struct {
	Query string `schema:"query"`
	Page  int    `schema:"page"`
	Size  *int   `schema:"size"`
	Fuzzy bool   `schema:"fuzzy"`
}

func documentToResponse(rec *domdoc.Record) DocumentResponse {
	return DocumentResponse{
		ID:          rec.ID(),
		Title:       rec.Title(),
		ContentType: rec.ContentType(),
		FileSize:    rec.FileSize(),
		UploadedAt:  rec.UploadedAt(),
		HasText:     rec.HasText(),
	}
}

func pageToResponse(p index.Page) SearchResponse {
	items := make([]SearchHit, len(p.Items))
	for i, e := range p.Items {
		items[i] = SearchHit{
			ID:            e.ID,
			Title:         e.Title,
			ExtractedText: e.ExtractedText,
			UploadedAt:    e.UploadedAt,
			FileSize:      e.FileSize,
			ContentType:   e.ContentType,
		}
	}
	return SearchResponse{Items: items, Page: p.Page, Size: p.Size, TotalCount: p.TotalCount}
}
