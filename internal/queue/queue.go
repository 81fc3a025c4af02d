// Package queue carries extraction jobs and record change events over durable subjects.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a broker that has been closed.
var ErrClosed = errors.New("queue closed")

// Message is one delivery of a published payload.
// The handler must settle it with exactly one of Ack, Nak or Term.
type Message interface {
	Data() []byte
	// NumDelivered is 1 on first delivery.
	NumDelivered() uint64
	Ack() error
	// Nak asks for redelivery after delay.
	Nak(delay time.Duration) error
	// Term stops redelivery for good.
	Term() error
}

// Handler processes one message.
type Handler func(ctx context.Context, msg Message)

// Broker is a durable at-least-once transport.
type Broker interface {
	Publish(ctx context.Context, subject string, data []byte) error
	// Consume delivers messages of subject to h until ctx is done.
	// Consumers sharing a durable name compete for messages.
	Consume(ctx context.Context, subject, durable string, h Handler) error
	Ping(ctx context.Context) error
	Close() error
}

// Subjects names the subjects derived from a prefix.
type Subjects struct {
	Jobs       string
	Changes    string
	DeadLetter string
}

// SubjectsFor derives subjects from prefix, e.g. "docs" gives docs.jobs, docs.changes, docs.jobs.dead.
func SubjectsFor(prefix string) Subjects {
	return Subjects{
		Jobs:       prefix + ".jobs",
		Changes:    prefix + ".changes",
		DeadLetter: prefix + ".jobs.dead",
	}
}

// Durable consumer names.
const (
	ExtractionConsumer = "extraction-worker"
	IndexingConsumer   = "index-synchronizer"
)
