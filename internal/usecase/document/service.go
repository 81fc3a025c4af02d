// Package document coordinates uploads and the record lifecycle.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/metrics"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// Upload is an incoming file.
type Upload struct {
	Content     []byte
	Filename    string
	ContentType string
	Title       string
}

// Service ingests uploads and serves records.
type Service struct {
	records Records
	blobs   Blobs
	queue   Queue
	index   IndexRemover
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a document service. idx may be nil when the process has no index access.
func New(records Records, blobs Blobs, q Queue, idx IndexRemover, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: records,
		blobs:   blobs,
		queue:   q,
		index:   idx,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest stores the file, creates its record and schedules extraction.
// The record is persisted before the job is enqueued. An enqueue failure leaves the record in place
// without extracted text; Reprocess recovers it.
func (s *Service) Ingest(ctx context.Context, up Upload) (domdoc.Record, error) {
	if len(up.Content) == 0 {
		metrics.DocumentsIngestedTotal.WithLabelValues("invalid").Inc()
		return domdoc.Record{}, domain.Validationf("file is empty")
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(up.Content)
	}
	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = up.Filename
	}

	handle, err := s.blobs.Put(ctx, up.Filename, up.Content)
	if err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("storage_error").Inc()
		return domdoc.Record{}, fmt.Errorf("%w: store blob: %w", domain.ErrStorage, err)
	}

	rec, err := domdoc.New(title, handle, contentType, int64(len(up.Content)), s.now())
	if err != nil {
		s.discardBlob(ctx, handle)
		return domdoc.Record{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	created, err := s.records.Create(ctx, &rec)
	if err != nil {
		s.discardBlob(ctx, handle)
		metrics.DocumentsIngestedTotal.WithLabelValues("storage_error").Inc()
		return domdoc.Record{}, fmt.Errorf("%w: create record: %w", domain.ErrStorage, err)
	}

	log := s.logger.With(zap.Int64("id", created.ID()), zap.String("blob", handle))
	if err := s.queue.Enqueue(ctx, created.ID()); err != nil {
		metrics.DocumentsIngestedTotal.WithLabelValues("queue_error").Inc()
		log.Error("enqueue extraction job failed, record left without text", zap.Error(err))
		return domdoc.Record{}, fmt.Errorf("%w: enqueue document %d: %w", domain.ErrQueue, created.ID(), err)
	}

	if err := s.queue.DocumentChanged(ctx, created.ID(), queue.ReasonCreated); err != nil {
		log.Warn("change notification failed", zap.Error(err))
	}

	metrics.DocumentsIngestedTotal.WithLabelValues("accepted").Inc()
	log.Info("document ingested",
		zap.String("content_type", created.ContentType()),
		zap.Int64("size", created.FileSize()),
	)
	return created, nil
}

func (s *Service) discardBlob(ctx context.Context, handle string) {
	if err := s.blobs.Delete(ctx, handle); err != nil && !errors.Is(err, domain.ErrBlobNotFound) {
		s.logger.Warn("orphan blob left behind", zap.String("blob", handle), zap.Error(err))
	}
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id int64) (domdoc.Record, error) {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("get document %d: %w", id, err)
	}
	return rec, nil
}

// ExtractedText returns the record's text or domain.ErrTextNotReady.
func (s *Service) ExtractedText(ctx context.Context, id int64) (string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	text, ok := rec.ExtractedText()
	if !ok {
		return "", fmt.Errorf("document %d: %w", id, domain.ErrTextNotReady)
	}
	return text, nil
}

// Download returns the record and its file content. The caller closes the reader.
func (s *Service) Download(ctx context.Context, id int64) (domdoc.Record, io.ReadCloser, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return domdoc.Record{}, nil, err
	}
	rc, err := s.blobs.Open(ctx, rec.BlobHandle())
	if err != nil {
		return domdoc.Record{}, nil, fmt.Errorf("open blob for document %d: %w", id, err)
	}
	return rec, rc, nil
}

// List returns records matching q.
func (s *Service) List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	recs, err := s.records.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", domain.ErrStorage, err)
	}
	return recs, nil
}

// Delete removes the record, then its blob and index entry.
// Only the record removal is reported; the rest is logged.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}

	log := s.logger.With(zap.Int64("id", id))
	if err := s.blobs.Delete(ctx, rec.BlobHandle()); err != nil && !errors.Is(err, domain.ErrBlobNotFound) {
		log.Warn("blob delete failed", zap.String("blob", rec.BlobHandle()), zap.Error(err))
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, index.EntryID(id)); err != nil {
			log.Error("index delete failed", zap.Error(err))
		}
	}
	log.Info("document deleted")
	return nil
}

// Reprocess schedules extraction again for an existing record.
func (s *Service) Reprocess(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, id); err != nil {
		return fmt.Errorf("%w: enqueue document %d: %w", domain.ErrQueue, id, err)
	}
	s.logger.Info("document requeued", zap.Int64("id", id))
	return nil
}
