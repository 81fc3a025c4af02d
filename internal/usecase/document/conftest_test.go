package document

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// --- Mocks ---

type mockRecords struct {
	mu       sync.Mutex
	nextID   int64
	records  map[int64]domdoc.Record
	createFn func(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error)
	listFn   func(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error)
}

func newRecords() *mockRecords {
	return &mockRecords{records: make(map[int64]domdoc.Record)}
}

func (m *mockRecords) Create(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error) {
	if m.createFn != nil {
		return m.createFn(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := rec.WithID(m.nextID)
	m.records[created.ID()] = created
	return created, nil
}

func (m *mockRecords) FindByID(_ context.Context, id int64) (domdoc.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domdoc.Record{}, domain.ErrDocumentNotFound
	}
	return rec, nil
}

func (m *mockRecords) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockRecords) List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domdoc.Record, 0, len(m.records))
	for _, r := range m.records {
		all = append(all, r)
	}
	return q.Apply(all), nil
}

type mockBlobs struct {
	content  map[string][]byte
	deleted  []string
	putFn    func(ctx context.Context, filename string, content []byte) (string, error)
	deleteFn func(ctx context.Context, handle string) error
}

func newBlobs() *mockBlobs {
	return &mockBlobs{content: make(map[string][]byte)}
}

func (m *mockBlobs) Put(ctx context.Context, filename string, content []byte) (string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, filename, content)
	}
	handle := "h_" + filename
	m.content[handle] = content
	return handle, nil
}

func (m *mockBlobs) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	b, ok := m.content[handle]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *mockBlobs) Delete(ctx context.Context, handle string) error {
	m.deleted = append(m.deleted, handle)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, handle)
	}
	if _, ok := m.content[handle]; !ok {
		return domain.ErrBlobNotFound
	}
	delete(m.content, handle)
	return nil
}

type change struct {
	id     int64
	reason queue.ChangeReason
}

type mockQueue struct {
	enqueued   []int64
	changes    []change
	enqueueErr error
	changeErr  error
}

func (m *mockQueue) Enqueue(_ context.Context, id int64) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, id)
	return nil
}

func (m *mockQueue) DocumentChanged(_ context.Context, id int64, reason queue.ChangeReason) error {
	m.changes = append(m.changes, change{id: id, reason: reason})
	return m.changeErr
}

type mockIndex struct {
	deleted []string
	err     error
}

func (m *mockIndex) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}
