// Package memory is an in-process queue.Broker for tests and single-binary runs.
// Messages do not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BenardMarashi/docmanagement/internal/queue"
)

const defaultAckWait = 2 * time.Minute

// Broker keeps one FIFO per subject. Every consumer of a subject competes for its messages.
// A delivered message that is not settled within the ack wait is delivered again.
type Broker struct {
	mu      sync.Mutex
	topics  map[string]*topic
	closed  bool
	done    chan struct{}
	ackWait time.Duration
}

// Option configures a Broker.
type Option func(*Broker)

// WithAckWait sets how long a delivery may stay unsettled before redelivery.
func WithAckWait(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.ackWait = d
		}
	}
}

type topic struct {
	pending []*message
	notify  chan struct{}
}

// New creates an empty broker.
func New(opts ...Option) *Broker {
	b := &Broker{topics: make(map[string]*topic), done: make(chan struct{}), ackWait: defaultAckWait}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Broker) topic(subject string) *topic {
	t, ok := b.topics[subject]
	if !ok {
		t = &topic{notify: make(chan struct{}, 1)}
		b.topics[subject] = t
	}
	return t
}

// Publish appends data to subject.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := append([]byte(nil), data...)
	return b.push(subject, &message{broker: b, subject: subject, data: payload})
}

func (b *Broker) push(subject string, m *message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return queue.ErrClosed
	}
	t := b.topic(subject)
	t.pending = append(t.pending, m)
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *Broker) pop(subject string) (*message, <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topic(subject)
	if len(t.pending) == 0 {
		return nil, t.notify, b.closed
	}
	m := t.pending[0]
	t.pending[0] = nil
	t.pending = t.pending[1:]
	m.delivered++
	m.timer = time.AfterFunc(b.ackWait, m.expire)
	return m, t.notify, b.closed
}

// Consume delivers messages to h one at a time until ctx is done or the broker closes.
func (b *Broker) Consume(ctx context.Context, subject, _ string, h queue.Handler) error {
	for {
		m, notify, closed := b.pop(subject)
		if closed {
			return nil
		}
		if m != nil {
			h(ctx, m)
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case <-notify:
		}
	}
}

// Pending returns the number of messages waiting for delivery on subject.
func (b *Broker) Pending(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topic(subject).pending)
}

// Ping fails once the broker is closed.
func (b *Broker) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return queue.ErrClosed
	}
	return nil
}

// Close stops all consumers. Pending messages are dropped.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

type message struct {
	broker    *Broker
	subject   string
	data      []byte
	delivered uint64
	timer     *time.Timer

	once sync.Once
}

func (m *message) Data() []byte { return m.data }

func (m *message) NumDelivered() uint64 { return m.delivered }

func (m *message) Ack() error {
	m.settle(nil)
	return nil
}

func (m *message) Term() error {
	m.settle(nil)
	return nil
}

// Nak requeues the message after delay.
func (m *message) Nak(delay time.Duration) error {
	var err error
	m.settle(func() {
		next := m.next()
		if delay <= 0 {
			err = m.broker.push(m.subject, next)
			return
		}
		time.AfterFunc(delay, func() { _ = m.broker.push(m.subject, next) })
	})
	return err
}

// settle stops the ack timer and runs fn once. Settling after the ack wait expired is a no-op.
func (m *message) settle(fn func()) {
	m.once.Do(func() {
		if m.timer != nil {
			m.timer.Stop()
		}
		if fn != nil {
			fn()
		}
	})
}

// expire redelivers a message nobody settled in time.
func (m *message) expire() {
	m.once.Do(func() { _ = m.broker.push(m.subject, m.next()) })
}

func (m *message) next() *message {
	return &message{broker: m.broker, subject: m.subject, data: m.data, delivered: m.delivered}
}

var _ queue.Broker = (*Broker)(nil)
