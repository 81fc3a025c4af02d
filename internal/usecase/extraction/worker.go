// Package extraction runs the asynchronous text extraction worker.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	"github.com/BenardMarashi/docmanagement/internal/extract"
	"github.com/BenardMarashi/docmanagement/internal/metrics"
	"github.com/BenardMarashi/docmanagement/internal/queue"
	"github.com/BenardMarashi/docmanagement/internal/retry"
)

// Job outcomes, also used as metric labels.
const (
	outcomeExtracted    = "extracted"
	outcomeSkipped      = "skipped"
	outcomeDropped      = "dropped"
	outcomeRetried      = "retried"
	outcomeDeadLettered = "dead_lettered"
)

// Options tunes the worker.
type Options struct {
	Concurrency   int
	MaxDeliveries int
	// SkipExtracted acks jobs whose record already has text.
	SkipExtracted bool
	// Backoff gives the redelivery delay after a failed delivery.
	Backoff retry.Policy
}

// Worker consumes extraction jobs.
type Worker struct {
	records   Records
	blobs     Blobs
	extractor Extractor
	notifier  Notifier
	opts      Options
	logger    *zap.Logger
}

// New creates a worker.
func New(records Records, blobs Blobs, extractor Extractor, notifier Notifier, opts Options, logger *zap.Logger) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxDeliveries < 1 {
		opts.MaxDeliveries = 5
	}
	if opts.Backoff.BaseDelay <= 0 {
		opts.Backoff = retry.Policy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		records:   records,
		blobs:     blobs,
		extractor: extractor,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
	}
}

// Run consumes jobs until ctx is done, handling up to Concurrency jobs at once.
// In-flight jobs finish before Run returns.
func (w *Worker) Run(ctx context.Context, jobs Jobs) error {
	pool, err := ants.NewPool(w.opts.Concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		stopped bool
	)
	w.logger.Info("extraction worker started", zap.Int("concurrency", w.opts.Concurrency))

	err = jobs.ConsumeJobs(ctx, func(ctx context.Context, msg queue.Message) {
		// Consumers may still call back after ConsumeJobs returned; those jobs go back to the queue.
		mu.Lock()
		if stopped {
			mu.Unlock()
			_ = msg.Nak(0)
			return
		}
		wg.Add(1)
		mu.Unlock()

		submitErr := pool.Submit(func() {
			defer wg.Done()
			w.Handle(ctx, jobs, msg)
		})
		if submitErr != nil {
			wg.Done()
			w.logger.Warn("worker pool rejected job", zap.Error(submitErr))
			_ = msg.Nak(w.opts.Backoff.Delay(1))
		}
	})
	mu.Lock()
	stopped = true
	mu.Unlock()
	wg.Wait()
	w.logger.Info("extraction worker stopped")
	return err
}

// Handle settles one job message.
func (w *Worker) Handle(ctx context.Context, jobs Jobs, msg queue.Message) {
	start := time.Now()
	defer func() { metrics.JobDuration.Observe(time.Since(start).Seconds()) }()

	attempt := msg.NumDelivered()
	id, err := queue.DecodeJob(msg.Data())
	if err != nil {
		w.logger.Error("malformed job payload", zap.ByteString("payload", msg.Data()), zap.Error(err))
		w.deadLetter(ctx, jobs, msg, err)
		return
	}
	log := w.logger.With(zap.Int64("id", id), zap.Uint64("attempt", attempt))
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			w.fail(ctx, jobs, msg, log, fmt.Errorf("panic: %v", r))
		}
	}()

	outcome, err := w.process(ctx, id)
	switch {
	case err == nil:
		w.ack(msg, log)
		metrics.JobsProcessedTotal.WithLabelValues(outcome).Inc()
		log.Info("job done", zap.String("outcome", outcome), zap.Duration("duration", time.Since(start)))

	case errors.Is(err, domain.ErrDocumentNotFound):
		log.Warn("record gone, dropping job")
		w.ack(msg, log)
		metrics.JobsProcessedTotal.WithLabelValues(outcomeDropped).Inc()

	case isPermanent(err):
		log.Error("job cannot succeed, not retrying", zap.Error(err))
		w.deadLetter(ctx, jobs, msg, err)

	default:
		w.fail(ctx, jobs, msg, log, err)
	}
}

// fail redelivers msg with backoff, or dead-letters it on its last delivery.
func (w *Worker) fail(ctx context.Context, jobs Jobs, msg queue.Message, log *zap.Logger, err error) {
	attempt := msg.NumDelivered()
	if attempt >= uint64(w.opts.MaxDeliveries) {
		log.Error("job failed on last delivery", zap.Int("max_deliveries", w.opts.MaxDeliveries), zap.Error(err))
		w.deadLetter(ctx, jobs, msg, err)
		return
	}
	delay := w.opts.Backoff.Delay(int(attempt))
	log.Warn("job failed, redelivering", zap.Duration("backoff", delay), zap.Error(err))
	if nakErr := msg.Nak(delay); nakErr != nil {
		log.Warn("nak failed", zap.Error(nakErr))
	}
	metrics.JobsProcessedTotal.WithLabelValues(outcomeRetried).Inc()
}

// Process runs the extraction steps for one record.
func (w *Worker) Process(ctx context.Context, id int64) error {
	_, err := w.process(ctx, id)
	return err
}

func (w *Worker) process(ctx context.Context, id int64) (string, error) {
	rec, err := w.records.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load record %d: %w", id, err)
	}
	if w.opts.SkipExtracted && rec.HasText() {
		return outcomeSkipped, nil
	}

	content, err := w.readBlob(ctx, rec.BlobHandle())
	if errors.Is(err, domain.ErrBlobNotFound) {
		return "", domain.NewOCRError(domain.OCRMissingFile, id, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read blob %s: %w", domain.ErrStorage, rec.BlobHandle(), err)
	}

	text, err := w.extractor.Extract(ctx, content, rec.ContentType())
	if errors.Is(err, extract.ErrUnsupportedType) {
		return "", domain.NewOCRError(domain.OCRUnsupportedType, id, err)
	}
	if err != nil {
		return "", domain.NewOCRError(domain.OCRExtractionFailed, id, err)
	}

	updated := rec.WithExtractedText(text)
	if err := w.records.Update(ctx, &updated); err != nil {
		return "", fmt.Errorf("update record %d: %w", id, err)
	}

	if err := w.notifier.DocumentChanged(ctx, id, queue.ReasonExtracted); err != nil {
		w.logger.Warn("change notification failed, index will catch up on the next change",
			zap.Int64("id", id), zap.Error(err))
	}
	return outcomeExtracted, nil
}

func (w *Worker) readBlob(ctx context.Context, handle string) ([]byte, error) {
	rc, err := w.blobs.Open(ctx, handle)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (w *Worker) ack(msg queue.Message, log *zap.Logger) {
	if err := msg.Ack(); err != nil {
		log.Warn("ack failed", zap.Error(err))
	}
}

// deadLetter parks the payload and stops redelivery. If parking fails the message is
// redelivered instead so it is not lost.
func (w *Worker) deadLetter(ctx context.Context, jobs Jobs, msg queue.Message, cause error) {
	if err := jobs.DeadLetter(ctx, msg.Data(), msg.NumDelivered(), cause); err != nil {
		w.logger.Error("dead letter publish failed", zap.Error(err))
		_ = msg.Nak(w.opts.Backoff.Delay(int(msg.NumDelivered())))
		return
	}
	_ = msg.Term()
	metrics.JobsProcessedTotal.WithLabelValues(outcomeDeadLettered).Inc()
}

// isPermanent reports failures that no redelivery can fix.
func isPermanent(err error) bool {
	var ocrErr *domain.OCRError
	if !errors.As(err, &ocrErr) {
		return false
	}
	return ocrErr.Kind == domain.OCRMissingFile || ocrErr.Kind == domain.OCRUnsupportedType
}
