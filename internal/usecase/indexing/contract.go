package indexing

import (
	"context"

	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// Index is the search index capability shared by the synchronizer, the query service and deletes.
type Index interface {
	Upsert(ctx context.Context, e index.Entry) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q index.Query) (index.Page, error)
}

// RecordReader loads the authoritative record for a change event.
type RecordReader interface {
	FindByID(ctx context.Context, id int64) (domdoc.Record, error)
}

// ChangeSource delivers change events.
type ChangeSource interface {
	ConsumeChanges(ctx context.Context, h queue.Handler) error
}
