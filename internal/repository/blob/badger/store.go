// Package badger stores blobs in an embedded BadgerDB.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	"github.com/BenardMarashi/docmanagement/internal/repository/blob"
)

const keyPrefix = "blob:"

// zapAdapter adapts zap to badger.Logger.
type zapAdapter struct {
	log *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, items ...any)   { a.log.Errorf(msg, items...) }
func (a *zapAdapter) Warningf(msg string, items ...any) { a.log.Warnf(msg, items...) }
func (a *zapAdapter) Infof(msg string, items ...any)    { a.log.Debugf(msg, items...) }
func (a *zapAdapter) Debugf(msg string, items ...any)   { a.log.Debugf(msg, items...) }

// Store keeps blob content as values keyed by handle.
type Store struct {
	db *badger.DB
}

// Open opens a BadgerDB at dir. An empty dir with inMemory=true is used by tests.
func Open(dir string, inMemory bool, logger *zap.Logger) (*Store, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = &zapAdapter{log: logger.Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores content under a fresh handle and returns it.
func (s *Store) Put(ctx context.Context, filename string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := blob.NewHandle(filename)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(handle), content)
	})
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w", handle, err)
	}
	return handle, nil
}

// Open returns a reader over the blob or domain.ErrBlobNotFound.
func (s *Store) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(handle))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", handle, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob. Missing blob: domain.ErrBlobNotFound.
func (s *Store) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(handle)); err != nil {
			return err
		}
		return txn.Delete(key(handle))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", handle, err)
	}
	return nil
}

// Ping reports an error once the database is closed.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return nil
}

func key(handle string) []byte {
	return []byte(keyPrefix + handle)
}
