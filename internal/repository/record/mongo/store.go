// Package mongo stores document records in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
)

const countersCollection = "counters"

// recordDoc is the stored shape of a record.
type recordDoc struct {
	ID            int64     `bson:"_id"`
	Title         string    `bson:"title"`
	BlobHandle    string    `bson:"blobHandle"`
	FileSize      int64     `bson:"fileSize"`
	ContentType   string    `bson:"contentType"`
	UploadedAt    time.Time `bson:"uploadedAt"`
	ExtractedText *string   `bson:"extractedText,omitempty"`
}

// Store is the MongoDB-backed record store.
type Store struct {
	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
}

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if clientOpts.ConnectTimeout == nil {
		clientOpts.SetConnectTimeout(10 * time.Second)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:   client,
		records:  db.Collection(collection),
		counters: db.Collection(countersCollection),
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Create takes the next id from the counters collection and inserts the record.
func (s *Store) Create(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return domdoc.Record{}, err
	}

	created := rec.WithID(id)
	if _, err := s.records.InsertOne(ctx, toDoc(&created)); err != nil {
		return domdoc.Record{}, fmt.Errorf("insert document %d: %w", id, err)
	}
	return created, nil
}

// FindByID returns a record or domain.ErrDocumentNotFound.
func (s *Store) FindByID(ctx context.Context, id int64) (domdoc.Record, error) {
	var doc recordDoc
	err := s.records.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domdoc.Record{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("find document %d: %w", id, err)
	}
	return fromDoc(&doc), nil
}

// Update sets the title and, when present, the extracted text.
func (s *Store) Update(ctx context.Context, rec *domdoc.Record) error {
	res, err := s.records.UpdateOne(ctx, bson.M{"_id": rec.ID()}, updateFor(rec))
	if err != nil {
		return fmt.Errorf("update document %d: %w", rec.ID(), err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.records.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List filters with a case-insensitive regex and sorts server-side.
func (s *Store) List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	cur, err := s.records.Find(ctx, listFilter(q), options.Find().SetSort(listSort(q)))
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cur.Close(ctx)

	out := []domdoc.Record{}
	for cur.Next(ctx) {
		var doc recordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, fromDoc(&doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.records.Name()},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next document id: %w", err)
	}
	return counter.Seq, nil
}

func toDoc(rec *domdoc.Record) recordDoc {
	doc := recordDoc{
		ID:          rec.ID(),
		Title:       rec.Title(),
		BlobHandle:  rec.BlobHandle(),
		FileSize:    rec.FileSize(),
		ContentType: rec.ContentType(),
		UploadedAt:  rec.UploadedAt(),
	}
	if text, ok := rec.ExtractedText(); ok {
		doc.ExtractedText = &text
	}
	return doc
}

func fromDoc(doc *recordDoc) domdoc.Record {
	return domdoc.Reconstruct(
		doc.ID, doc.Title, doc.BlobHandle, doc.ContentType, doc.FileSize,
		doc.UploadedAt.UTC(), doc.ExtractedText,
	)
}

func updateFor(rec *domdoc.Record) bson.M {
	set := bson.M{"title": rec.Title()}
	if text, ok := rec.ExtractedText(); ok {
		set["extractedText"] = text
	}
	return bson.M{"$set": set}
}

func listFilter(q domdoc.ListQuery) bson.M {
	if q.Search == "" {
		return bson.M{}
	}
	re := bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"extractedText": re},
	}}
}

func listSort(q domdoc.ListQuery) bson.D {
	dir := -1
	if q.Direction == domdoc.Asc {
		dir = 1
	}
	field := string(q.SortField)
	if q.SortField == domdoc.SortByID {
		field = "_id"
	}
	sort := bson.D{{Key: field, Value: dir}}
	if field != "_id" {
		sort = append(sort, bson.E{Key: "_id", Value: dir})
	}
	return sort
}
