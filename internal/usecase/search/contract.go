package search

import (
	"context"

	"github.com/BenardMarashi/docmanagement/internal/domain/index"
)

// Index answers paginated text queries.
type Index interface {
	Search(ctx context.Context, q index.Query) (index.Page, error)
}
