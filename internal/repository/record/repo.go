// Package record stores document records as Redis hashes.
package record

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
)

// store is the consumer interface for records (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetIfExists(ctx context.Context, key string, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Repo is the Redis-backed record store.
type Repo struct {
	store  store
	prefix string
}

// New creates a record repository. keyPrefix namespaces every key, e.g. "docs:".
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Create assigns the next id from a counter and stores the record.
func (r *Repo) Create(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error) {
	id, err := r.store.Incr(ctx, r.seqKey())
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("next record id: %w", err)
	}

	created := rec.WithID(id)
	key := r.recordKey(id)
	if err := r.store.HSet(ctx, key, buildHashFields(&created)); err != nil {
		return domdoc.Record{}, fmt.Errorf("hset %s: %w", key, err)
	}
	return created, nil
}

// FindByID returns a record or domain.ErrDocumentNotFound.
func (r *Repo) FindByID(ctx context.Context, id int64) (domdoc.Record, error) {
	key := r.recordKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domdoc.Record{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domdoc.Record{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, m)
}

// Update writes the mutable fields of an existing record. Missing record: domain.ErrDocumentNotFound.
func (r *Repo) Update(ctx context.Context, rec *domdoc.Record) error {
	key := r.recordKey(rec.ID())
	ok, err := r.store.HSetIfExists(ctx, key, buildMutableFields(rec))
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	if !ok {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a record. Missing record: domain.ErrDocumentNotFound.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	key := r.recordKey(id)
	existed, err := r.store.Del(ctx, key)
	if err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	if !existed {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List loads every record and filters/sorts in memory.
func (r *Repo) List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	keys, err := r.store.Scan(ctx, r.prefix+"record:*")
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	if len(keys) == 0 {
		return []domdoc.Record{}, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	records := make([]domdoc.Record, 0, len(keys))
	for i, m := range maps {
		if len(m) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		id, ok := r.idFromKey(keys[i])
		if !ok {
			continue
		}
		rec, err := parseHashFields(id, m)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}
	return q.Apply(records), nil
}

// Ping checks the backing store.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Repo) recordKey(id int64) string {
	return r.prefix + "record:" + strconv.FormatInt(id, 10)
}

func (r *Repo) seqKey() string {
	return r.prefix + "seq:record"
}

func (r *Repo) idFromKey(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, r.prefix+"record:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
