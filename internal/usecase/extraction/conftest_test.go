package extraction

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/BenardMarashi/docmanagement/internal/domain"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// --- Mocks ---

type mockRecords struct {
	mu       sync.Mutex
	records  map[int64]domdoc.Record
	updates  []domdoc.Record
	findFn   func(ctx context.Context, id int64) (domdoc.Record, error)
	updateFn func(ctx context.Context, rec *domdoc.Record) error
}

func newRecords(recs ...domdoc.Record) *mockRecords {
	m := &mockRecords{records: make(map[int64]domdoc.Record)}
	for _, r := range recs {
		m.records[r.ID()] = r
	}
	return m
}

func (m *mockRecords) FindByID(ctx context.Context, id int64) (domdoc.Record, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domdoc.Record{}, domain.ErrDocumentNotFound
	}
	return rec, nil
}

func (m *mockRecords) Update(ctx context.Context, rec *domdoc.Record) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, *rec)
	m.records[rec.ID()] = *rec
	return nil
}

func (m *mockRecords) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

type mockBlobs struct {
	content map[string][]byte
	openFn  func(ctx context.Context, handle string) (io.ReadCloser, error)
}

func (m *mockBlobs) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if m.openFn != nil {
		return m.openFn(ctx, handle)
	}
	b, ok := m.content[handle]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type mockExtractor struct {
	mu        sync.Mutex
	calls     int
	extractFn func(ctx context.Context, content []byte, contentType string) (string, error)
}

func (m *mockExtractor) Extract(ctx context.Context, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.extractFn != nil {
		return m.extractFn(ctx, content, contentType)
	}
	return "text of " + string(content), nil
}

type notification struct {
	id     int64
	reason queue.ChangeReason
}

type mockNotifier struct {
	mu    sync.Mutex
	sent  []notification
	errFn func() error
}

func (m *mockNotifier) DocumentChanged(_ context.Context, id int64, reason queue.ChangeReason) error {
	m.mu.Lock()
	m.sent = append(m.sent, notification{id: id, reason: reason})
	m.mu.Unlock()
	if m.errFn != nil {
		return m.errFn()
	}
	return nil
}

type deadLetter struct {
	payload    []byte
	deliveries uint64
	cause      error
}

type mockJobs struct {
	dead      []deadLetter
	deadErr   error
	consumeFn func(ctx context.Context, h queue.Handler) error
}

func (m *mockJobs) ConsumeJobs(ctx context.Context, h queue.Handler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, h)
	}
	return nil
}

func (m *mockJobs) DeadLetter(_ context.Context, payload []byte, deliveries uint64, cause error) error {
	m.dead = append(m.dead, deadLetter{payload: payload, deliveries: deliveries, cause: cause})
	return m.deadErr
}

type fakeMsg struct {
	data      []byte
	delivered uint64
	acked     bool
	termed    bool
	naked     bool
	nakDelay  time.Duration
}

func jobMsg(id int64, delivered uint64) *fakeMsg {
	return &fakeMsg{data: queue.EncodeJob(id), delivered: delivered}
}

func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) NumDelivered() uint64 { return m.delivered }

func (m *fakeMsg) Ack() error {
	m.acked = true
	return nil
}

func (m *fakeMsg) Term() error {
	m.termed = true
	return nil
}

func (m *fakeMsg) Nak(d time.Duration) error {
	m.naked, m.nakDelay = true, d
	return nil
}

var _ queue.Message = (*fakeMsg)(nil)

func uploaded(id int64, handle string) domdoc.Record {
	return domdoc.Reconstruct(id, "scan", handle, "image/png", 4,
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), nil)
}
