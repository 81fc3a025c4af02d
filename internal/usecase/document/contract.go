package document

import (
	"context"
	"io"

	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// Records is the authoritative record store.
type Records interface {
	Create(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error)
	FindByID(ctx context.Context, id int64) (domdoc.Record, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error)
}

// Blobs stores uploaded file content under opaque handles.
type Blobs interface {
	Put(ctx context.Context, filename string, content []byte) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// Queue hands work to the extraction worker and the index synchronizer.
type Queue interface {
	Enqueue(ctx context.Context, id int64) error
	DocumentChanged(ctx context.Context, id int64, reason queue.ChangeReason) error
}

// IndexRemover drops a record's projection from the search index.
type IndexRemover interface {
	Delete(ctx context.Context, id string) error
}
