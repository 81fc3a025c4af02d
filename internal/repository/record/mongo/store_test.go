package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
)

func TestDocMapping_RoundTrip(t *testing.T) {
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	rec, err := domdoc.New("scan", "h", "image/png", 12, at)
	require.NoError(t, err)
	rec = rec.WithID(4).WithExtractedText("Test OCR")

	doc := toDoc(&rec)
	assert.Equal(t, int64(4), doc.ID)
	require.NotNil(t, doc.ExtractedText)

	back := fromDoc(&doc)
	text, ok := back.ExtractedText()
	assert.True(t, ok)
	assert.Equal(t, "Test OCR", text)
	assert.True(t, back.UploadedAt().Equal(at))
}

func TestUpdateFor_KeepsTextWhenAbsent(t *testing.T) {
	rec := domdoc.Reconstruct(1, "t", "h", "text/plain", 1, time.Now(), nil)

	set := updateFor(&rec)["$set"].(bson.M)
	_, hasText := set["extractedText"]
	assert.False(t, hasText)
	assert.Equal(t, "t", set["title"])
}

func TestListFilter(t *testing.T) {
	assert.Empty(t, listFilter(domdoc.ListQuery{}))

	f := listFilter(domdoc.ListQuery{Search: "a.b"})
	or := f["$or"].(bson.A)
	require.Len(t, or, 2)
	title := or[0].(bson.M)["title"].(bson.M)
	assert.Equal(t, `a\.b`, title["$regex"])
	assert.Equal(t, "i", title["$options"])
}

func TestListSort(t *testing.T) {
	q, err := domdoc.ListQuery{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "uploadedAt", Value: -1}, {Key: "_id", Value: -1}}, listSort(q))

	q, err = domdoc.ListQuery{SortField: domdoc.SortByID, Direction: domdoc.Asc}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, listSort(q))
}

// TestStore_Integration runs against a live server when MONGO_TEST_URI is set.
func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()

	dbName := "docmanagement_test_" + time.Now().Format("150405")
	store, err := Connect(ctx, uri, dbName, "documents")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.client.Database(dbName).Drop(ctx)
		_ = store.Close(ctx)
	})

	rec, err := domdoc.New("Elastic Test Document", "h", "text/plain", 3, time.Now())
	require.NoError(t, err)
	created, err := store.Create(ctx, &rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID())

	withText := created.WithExtractedText("Sample OCR")
	require.NoError(t, store.Update(ctx, &withText))

	got, err := store.FindByID(ctx, created.ID())
	require.NoError(t, err)
	assert.True(t, got.HasText())

	list, err := store.List(ctx, domdoc.ListQuery{Search: "sample"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, created.ID()))
	assert.ErrorIs(t, store.Delete(ctx, created.ID()), domain.ErrDocumentNotFound)
}
