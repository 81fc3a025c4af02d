package docmanagement

import (
	"io"
	"time"
)

// Document is a stored file's metadata.
type Document struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	UploadedAt  time.Time `json:"uploadedAt"`
	HasText     bool      `json:"hasText"`
}

// UploadRequest describes a file to ingest.
// ContentType and Title are optional; the server sniffs and defaults them.
type UploadRequest struct {
	Filename    string
	Content     io.Reader
	ContentType string
	Title       string
}

// SortField orders List results.
type SortField string

// Sort fields accepted by List.
const (
	SortByUploadedAt SortField = "uploadedAt"
	SortByTitle      SortField = "title"
	SortByFileSize   SortField = "fileSize"
	SortByID         SortField = "id"
)

// Direction is the sort direction.
type Direction string

// Sort directions.
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ListOptions filters and orders List. Zero values use server defaults.
type ListOptions struct {
	Search    string
	SortField SortField
	Direction Direction
}

// Download is an open file body. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
}

// SearchRequest is a full-text query. Size 0 uses the server default.
type SearchRequest struct {
	Query string
	Page  int
	Size  int
	Fuzzy bool
}

// SearchHit is one indexed document.
type SearchHit struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ExtractedText string    `json:"extractedText"`
	UploadedAt    time.Time `json:"uploadedAt"`
	FileSize      int64     `json:"fileSize"`
	ContentType   string    `json:"contentType"`
}

// SearchPage is a page of search hits.
type SearchPage struct {
	Items      []SearchHit `json:"items"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	TotalCount int         `json:"totalCount"`
}

// HealthStatus is the aggregated server health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}
