package indexing

import (
	"context"
	"sync"
	"time"

	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/queue"
	"github.com/BenardMarashi/docmanagement/internal/retry"
)

// --- Mocks ---

type mockIndex struct {
	mu       sync.Mutex
	upserts  []index.Entry
	deletes  []string
	upsertFn func(ctx context.Context, e index.Entry) error
	deleteFn func(ctx context.Context, id string) error
	searchFn func(ctx context.Context, q index.Query) (index.Page, error)
}

func (m *mockIndex) Upsert(ctx context.Context, e index.Entry) error {
	m.mu.Lock()
	m.upserts = append(m.upserts, e)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, e)
	}
	return nil
}

func (m *mockIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, id)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIndex) Search(ctx context.Context, q index.Query) (index.Page, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return index.EmptyPage(q.Page, q.Size), nil
}

type mockRecords struct {
	findFn func(ctx context.Context, id int64) (domdoc.Record, error)
}

func (m *mockRecords) FindByID(ctx context.Context, id int64) (domdoc.Record, error) {
	return m.findFn(ctx, id)
}

type fakeMsg struct {
	data      []byte
	delivered uint64
	acked     bool
	termed    bool
	naked     bool
	nakDelay  time.Duration
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

// fakeSleep records requested delays without waiting.
type fakeSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSleep) sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	return nil
}

func testPolicy(fs *fakeSleep) retry.Policy {
	p := retry.Default()
	p.Sleep = fs.sleep
	return p
}

func textRecord(id int64, text string) domdoc.Record {
	rec := domdoc.Reconstruct(id, "Elastic Test Document", "h", "text/plain", 10,
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), nil)
	if text == "" {
		return rec
	}
	return rec.WithExtractedText(text)
}
