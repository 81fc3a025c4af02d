package indexing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/metrics"
	"github.com/BenardMarashi/docmanagement/internal/retry"
)

// Retrying decorates an Index with a retry policy and a per-attempt timeout.
// Errors it returns wrap domain.ErrIndex.
type Retrying struct {
	inner   Index
	policy  retry.Policy
	timeout time.Duration
	logger  *zap.Logger
}

// NewRetrying wraps inner. timeout <= 0 disables the per-attempt bound.
func NewRetrying(inner Index, policy retry.Policy, timeout time.Duration, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{inner: inner, policy: policy, timeout: timeout, logger: logger}
}

// Upsert implements Index.
func (r *Retrying) Upsert(ctx context.Context, e index.Entry) error {
	return r.do(ctx, "upsert", e.ID, func(ctx context.Context) error {
		return r.inner.Upsert(ctx, e)
	})
}

// Delete implements Index.
func (r *Retrying) Delete(ctx context.Context, id string) error {
	return r.do(ctx, "delete", id, func(ctx context.Context) error {
		return r.inner.Delete(ctx, id)
	})
}

// Search implements Index.
func (r *Retrying) Search(ctx context.Context, q index.Query) (index.Page, error) {
	var page index.Page
	err := r.do(ctx, "search", "", func(ctx context.Context) error {
		p, err := r.inner.Search(ctx, q)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

func (r *Retrying) do(ctx context.Context, op, id string, fn func(ctx context.Context) error) error {
	p := r.policy
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.IndexRetriesTotal.WithLabelValues(op).Inc()
		r.logger.Warn("index call failed, retrying",
			zap.String("op", op),
			zap.String("id", id),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	}

	err := retry.Do(ctx, p, func(ctx context.Context) error {
		if r.timeout <= 0 {
			return fn(ctx)
		}
		actx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return fn(actx)
	})
	if err == nil {
		metrics.IndexOperationsTotal.WithLabelValues(op, "success").Inc()
		return nil
	}

	status := "permanent"
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		status = "exhausted"
	}
	metrics.IndexOperationsTotal.WithLabelValues(op, status).Inc()
	return fmt.Errorf("%w: %s: %w", domain.ErrIndex, op, err)
}
