package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Client binds a Broker to the document subjects.
type Client struct {
	broker   Broker
	subjects Subjects
}

// NewClient creates a client publishing under prefix.
func NewClient(b Broker, prefix string) *Client {
	return &Client{broker: b, subjects: SubjectsFor(prefix)}
}

// Subjects returns the subjects in use.
func (c *Client) Subjects() Subjects { return c.subjects }

// Enqueue publishes an extraction job for id.
func (c *Client) Enqueue(ctx context.Context, id int64) error {
	if err := c.broker.Publish(ctx, c.subjects.Jobs, EncodeJob(id)); err != nil {
		return fmt.Errorf("enqueue job %d: %w", id, err)
	}
	return nil
}

// DocumentChanged publishes a change event for id.
func (c *Client) DocumentChanged(ctx context.Context, id int64, reason ChangeReason) error {
	data, err := EncodeChange(ChangeEvent{ID: id, Reason: reason})
	if err != nil {
		return err
	}
	if err := c.broker.Publish(ctx, c.subjects.Changes, data); err != nil {
		return fmt.Errorf("publish change %d: %w", id, err)
	}
	return nil
}

// DeadLetter parks a job payload that exhausted its deliveries or could not be parsed.
func (c *Client) DeadLetter(ctx context.Context, payload []byte, deliveries uint64, cause error) error {
	dl := DeadLetter{
		Subject:    c.subjects.Jobs,
		Payload:    string(payload),
		Deliveries: deliveries,
		FailedAt:   time.Now().UTC(),
	}
	if cause != nil {
		dl.Error = cause.Error()
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := c.broker.Publish(ctx, c.subjects.DeadLetter, data); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

// ConsumeJobs delivers extraction jobs to h until ctx is done.
func (c *Client) ConsumeJobs(ctx context.Context, h Handler) error {
	return c.broker.Consume(ctx, c.subjects.Jobs, ExtractionConsumer, h)
}

// ConsumeChanges delivers change events to h until ctx is done.
func (c *Client) ConsumeChanges(ctx context.Context, h Handler) error {
	return c.broker.Consume(ctx, c.subjects.Changes, IndexingConsumer, h)
}

// Ping checks the broker connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.broker.Ping(ctx)
}
