// Package indexing keeps the search index in step with the record store.
package indexing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

const reloadBackoff = 2 * time.Second

// Synchronizer projects records into the index. Index failures are logged, never returned.
type Synchronizer struct {
	index   Index
	records RecordReader
	logger  *zap.Logger
}

// NewSynchronizer creates a synchronizer. records is only needed by Run.
func NewSynchronizer(idx Index, records RecordReader, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{index: idx, records: records, logger: logger}
}

// Sync upserts the record's entry. Records without extracted text are skipped.
func (s *Synchronizer) Sync(ctx context.Context, rec *domdoc.Record) {
	s.upsert(ctx, rec)
}

// upsert reports whether an entry was written.
func (s *Synchronizer) upsert(ctx context.Context, rec *domdoc.Record) bool {
	entry, ok := index.FromRecord(rec)
	if !ok {
		s.logger.Debug("record has no text, not indexed", zap.Int64("id", rec.ID()))
		return false
	}
	if err := s.index.Upsert(ctx, entry); err != nil {
		s.logger.Error("index sync failed", zap.Int64("id", rec.ID()), zap.Error(err))
		return false
	}
	s.logger.Debug("record indexed", zap.Int64("id", rec.ID()))
	return true
}

// recheck removes an entry written for a record deleted while the upsert was in flight.
// Deletes remove the record before the entry: if the record is still present here, the
// delete's own entry removal comes after this upsert.
func (s *Synchronizer) recheck(ctx context.Context, id int64) {
	_, err := s.records.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("record deleted during sync, removing entry", zap.Int64("id", id))
		s.Remove(ctx, id)
	}
}

// Remove deletes the record's entry.
func (s *Synchronizer) Remove(ctx context.Context, id int64) {
	if err := s.index.Delete(ctx, index.EntryID(id)); err != nil {
		s.logger.Error("index remove failed", zap.Int64("id", id), zap.Error(err))
	}
}

// Run consumes change events until ctx is done.
func (s *Synchronizer) Run(ctx context.Context, src ChangeSource) error {
	s.logger.Info("index synchronizer started")
	return src.ConsumeChanges(ctx, s.Handle)
}

// Handle processes one change event.
// Malformed events are terminated; a failed record read is redelivered; everything else is acked.
func (s *Synchronizer) Handle(ctx context.Context, msg queue.Message) {
	ev, err := queue.DecodeChange(msg.Data())
	if err != nil {
		s.logger.Error("malformed change event", zap.ByteString("payload", msg.Data()), zap.Error(err))
		_ = msg.Term()
		return
	}

	rec, err := s.records.FindByID(ctx, ev.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.Remove(ctx, ev.ID)
	case err != nil:
		s.logger.Warn("reload record failed",
			zap.Int64("id", ev.ID),
			zap.Uint64("attempt", msg.NumDelivered()),
			zap.Error(err),
		)
		_ = msg.Nak(reloadBackoff)
		return
	default:
		if s.upsert(ctx, &rec) {
			s.recheck(ctx, ev.ID)
		}
	}

	if err := msg.Ack(); err != nil {
		s.logger.Warn("ack change event failed", zap.Int64("id", ev.ID), zap.Error(err))
	}
}
