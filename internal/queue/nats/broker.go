// Package nats implements queue.Broker on NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// Config describes the stream backing every document subject.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	AckWait       time.Duration
	Replicas      int
}

// jetStreamNew is a variable to allow swapping jetstream.New in tests.
var jetStreamNew = func(nc *nats.Conn) (jetstream.JetStream, error) {
	return jetstream.New(nc)
}

// Broker publishes to and consumes from one work-queue stream.
type Broker struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    Config
	logger *zap.Logger
}

// Connect dials NATS and ensures the stream exists.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Broker, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("docmanagement"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	js, err := jetStreamNew(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	b := NewFromJS(js, cfg, logger)
	b.nc = nc
	if err := b.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

// NewFromJS creates a broker over an existing JetStream context.
func NewFromJS(js jetstream.JetStream, cfg Config, logger *zap.Logger) *Broker {
	if cfg.Stream == "" {
		cfg.Stream = "DOCUMENTS"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "docs"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 2 * time.Minute
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{js: js, cfg: cfg, logger: logger}
}

// StreamConfig returns the stream definition: file-backed, work-queue retention over prefix.>.
func (b *Broker) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:      b.cfg.Stream,
		Subjects:  []string{b.cfg.SubjectPrefix + ".>"},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		Replicas:  b.cfg.Replicas,
	}
}

// EnsureStream creates or updates the stream.
func (b *Broker) EnsureStream(ctx context.Context) error {
	if _, err := b.js.CreateOrUpdateStream(ctx, b.StreamConfig()); err != nil {
		return fmt.Errorf("ensure stream %s: %w", b.cfg.Stream, err)
	}
	return nil
}

// Publish stores data on subject and waits for the stream ack.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := b.js.Publish(ctx, subject, data,
		jetstream.WithExpectStream(b.cfg.Stream),
		jetstream.WithRetryAttempts(3),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// ConsumerConfig returns the durable pull consumer for subject.
// Redelivery is unlimited here; handlers cap it with NumDelivered.
func (b *Broker) ConsumerConfig(subject, durable string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.cfg.AckWait,
		MaxDeliver:    -1,
		FilterSubject: subject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
}

// Consume delivers messages to h until ctx is done. h runs on the consume goroutine.
func (b *Broker) Consume(ctx context.Context, subject, durable string, h queue.Handler) error {
	cons, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.Stream, b.ConsumerConfig(subject, durable))
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", durable, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		h(ctx, &message{msg: msg, logger: b.logger})
	})
	if err != nil {
		return fmt.Errorf("start consumer %s: %w", durable, err)
	}
	b.logger.Info("consumer started", zap.String("subject", subject), zap.String("durable", durable))

	<-ctx.Done()
	cc.Stop()
	b.logger.Info("consumer stopped", zap.String("durable", durable))
	return nil
}

// Ping checks the connection and the stream.
func (b *Broker) Ping(ctx context.Context) error {
	if b.nc != nil && !b.nc.IsConnected() {
		return errors.New("nats not connected")
	}
	if _, err := b.js.Stream(ctx, b.cfg.Stream); err != nil {
		return fmt.Errorf("stream %s: %w", b.cfg.Stream, err)
	}
	return nil
}

// Close drains the connection.
func (b *Broker) Close() error {
	if b.nc == nil {
		return nil
	}
	return b.nc.Drain()
}

// message adapts jetstream.Msg to queue.Message.
type message struct {
	msg    jetstream.Msg
	logger *zap.Logger
}

func (m *message) Data() []byte { return m.msg.Data() }

func (m *message) NumDelivered() uint64 {
	md, err := m.msg.Metadata()
	if err != nil {
		m.logger.Warn("message metadata unavailable", zap.Error(err))
		return 1
	}
	return md.NumDelivered
}

func (m *message) Ack() error { return m.msg.Ack() }

func (m *message) Nak(delay time.Duration) error {
	if delay <= 0 {
		return m.msg.Nak()
	}
	return m.msg.NakWithDelay(delay)
}

func (m *message) Term() error { return m.msg.Term() }

var _ queue.Broker = (*Broker)(nil)
