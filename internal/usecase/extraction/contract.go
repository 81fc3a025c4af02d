package extraction

import (
	"context"
	"io"

	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// Records reads and updates document records.
type Records interface {
	FindByID(ctx context.Context, id int64) (domdoc.Record, error)
	Update(ctx context.Context, rec *domdoc.Record) error
}

// Blobs opens stored file content.
type Blobs interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

// Extractor turns file content into text.
type Extractor interface {
	Extract(ctx context.Context, content []byte, contentType string) (string, error)
}

// Notifier announces record changes to the index side.
type Notifier interface {
	DocumentChanged(ctx context.Context, id int64, reason queue.ChangeReason) error
}

// Jobs is the job subject: consumption and dead-lettering.
type Jobs interface {
	ConsumeJobs(ctx context.Context, h queue.Handler) error
	DeadLetter(ctx context.Context, payload []byte, deliveries uint64, cause error) error
}
