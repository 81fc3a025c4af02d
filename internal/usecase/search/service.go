// Package search serves full-text queries over the document index.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/metrics"
)

// Request is a search request as received from callers.
type Request struct {
	Query string
	Page  int
	Size  int
	Fuzzy bool
}

// Service validates requests and degrades to an empty page when the index cannot answer.
type Service struct {
	index           Index
	defaultPageSize int
	maxPageSize     int
	logger          *zap.Logger
}

// New creates a search service. idx is typically the retrying index capability.
func New(idx Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		index:           idx,
		defaultPageSize: 10,
		maxPageSize:     100,
		logger:          logger,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// DefaultPageSize is applied by callers when the request omits a size.
func (s *Service) DefaultPageSize() int { return s.defaultPageSize }

// Search runs the query. Only validation errors are returned.
func (s *Service) Search(ctx context.Context, req Request) (index.Page, error) {
	q, err := s.validate(req)
	if err != nil {
		return index.Page{}, err
	}

	page, err := s.index.Search(ctx, q)
	if err != nil {
		metrics.SearchDegradedTotal.Inc()
		s.logger.Error("search degraded to empty page",
			zap.String("query", q.Text),
			zap.Bool("fuzzy", q.Fuzzy),
			zap.Error(err),
		)
		return index.EmptyPage(q.Page, q.Size), nil
	}
	if page.Items == nil {
		page.Items = []index.Entry{}
	}
	return page, nil
}

func (s *Service) validate(req Request) (index.Query, error) {
	text := strings.TrimSpace(req.Query)
	switch {
	case text == "":
		return index.Query{}, domain.Validationf("query must not be empty")
	case req.Page < 0:
		return index.Query{}, domain.Validationf("page must be >= 0, got %d", req.Page)
	case req.Size <= 0:
		return index.Query{}, domain.Validationf("size must be > 0, got %d", req.Size)
	case req.Size > s.maxPageSize:
		return index.Query{}, domain.Validationf("size must be <= %d, got %d", s.maxPageSize, req.Size)
	}
	return index.Query{Text: text, Page: req.Page, Size: req.Size, Fuzzy: req.Fuzzy}, nil
}
