// Package chi is the HTTP API of the document pipeline.
package chi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/schema"
	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/logger"
	"github.com/BenardMarashi/docmanagement/internal/metrics"
	documentuc "github.com/BenardMarashi/docmanagement/internal/usecase/document"
	healthuc "github.com/BenardMarashi/docmanagement/internal/usecase/health"
	searchuc "github.com/BenardMarashi/docmanagement/internal/usecase/search"
)

// Documents is the record lifecycle used by the API.
type Documents interface {
	Ingest(ctx context.Context, up documentuc.Upload) (domdoc.Record, error)
	Get(ctx context.Context, id int64) (domdoc.Record, error)
	ExtractedText(ctx context.Context, id int64) (string, error)
	Download(ctx context.Context, id int64) (domdoc.Record, io.ReadCloser, error)
	List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error)
	Delete(ctx context.Context, id int64) error
	Reprocess(ctx context.Context, id int64) error
}

// Searcher runs full-text queries.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (index.Page, error)
	DefaultPageSize() int
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options tunes the HTTP layer.
type Options struct {
	MaxUploadBytes int64
}

// Server serves the document API.
type Server struct {
	documents Documents
	search    Searcher
	health    HealthChecker
	logger    *zap.Logger
	opts      Options
	decoder   *schema.Decoder
}

// NewServer creates an HTTP API server.
func NewServer(documents Documents, search Searcher, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Server{
		documents: documents,
		search:    search,
		health:    health,
		logger:    logger,
		opts:      opts,
		decoder:   decoder,
	}
}

// Routes builds the router with the middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.SearchDocuments)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.UploadDocument)
			r.Post("/upload", s.UploadDocument)
			r.Get("/", s.ListDocuments)
			r.Get("/search", s.SearchDocuments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetDocument)
				r.Delete("/", s.DeleteDocument)
				r.Get("/ocr", s.GetExtractedText)
				r.Get("/download", s.DownloadDocument)
				r.Post("/reprocess", s.ReprocessDocument)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// UploadDocument handles POST /api/documents (multipart "file", optional "title").
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
				"upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "read upload: "+err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	rec, err := s.documents.Ingest(r.Context(), documentuc.Upload{
		Content:     content,
		Filename:    header.Filename,
		ContentType: contentType,
		Title:       r.FormValue("title"),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/documents/"+strconv.FormatInt(rec.ID(), 10))
	writeJSON(w, http.StatusCreated, documentToResponse(&rec))
}

// ListDocuments handles GET /api/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var params listParams
	if err := s.decoder.Decode(&params, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid query parameters")
		return
	}

	recs, err := s.documents.List(r.Context(), params.query())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	items := make([]DocumentResponse, len(recs))
	for i := range recs {
		items[i] = documentToResponse(&recs[i])
	}
	writeJSON(w, http.StatusOK, items)
}

// GetDocument handles GET /api/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.documents.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&rec))
}

// GetExtractedText handles GET /api/documents/{id}/ocr.
func (s *Server) GetExtractedText(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	text, err := s.documents.ExtractedText(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{ID: id, Text: text})
}

// DownloadDocument handles GET /api/documents/{id}/download.
func (s *Server) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, rc, err := s.documents.Download(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", rec.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(rec.FileSize(), 10))
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": rec.BlobHandle()}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.FromContext(r.Context()).Warn("download interrupted", zap.Int64("id", id), zap.Error(err))
	}
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.documents.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReprocessDocument handles POST /api/documents/{id}/reprocess.
func (s *Server) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.documents.Reprocess(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SearchDocuments handles GET /api/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var params searchParams
	if err := s.decoder.Decode(&params, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid query parameters")
		return
	}
	size := s.search.DefaultPageSize()
	if params.Size != nil {
		size = *params.Size
	}

	page, err := s.search.Search(r.Context(), searchuc.Request{
		Query: params.Query,
		Page:  params.Page,
		Size:  size,
		Fuzzy: params.Fuzzy,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		handleDomainError(w, r, domain.Validationf("invalid document id %q", raw))
		return 0, false
	}
	return id, true
}
