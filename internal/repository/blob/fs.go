package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BenardMarashi/docmanagement/internal/domain"
)

// FS stores blobs as files in a single directory.
type FS struct {
	dir string
}

// NewFS creates the directory if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &FS{dir: dir}, nil
}

// Put writes content under a fresh handle and returns it.
func (s *FS) Put(ctx context.Context, filename string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := NewHandle(filename)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := io.Copy(tmp, bytes.NewReader(content)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob %s: %w", handle, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob %s: %w", handle, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, handle)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename blob %s: %w", handle, err)
	}
	return handle, nil
}

// Open returns a reader for the blob or domain.ErrBlobNotFound.
func (s *FS) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidHandle(handle) {
		return nil, domain.ErrBlobNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, handle))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", handle, err)
	}
	return f, nil
}

// Delete removes the blob. Missing blob: domain.ErrBlobNotFound.
func (s *FS) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidHandle(handle) {
		return domain.ErrBlobNotFound
	}
	err := os.Remove(filepath.Join(s.dir, handle))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("remove blob %s: %w", handle, err)
	}
	return nil
}

// Ping checks that the directory is still reachable.
func (s *FS) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat upload dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
