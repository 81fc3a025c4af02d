package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/queue"
)

// --- Mocks ---

type MockJetStream struct {
	mock.Mock
	jetstream.JetStream
}

func (m *MockJetStream) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.Stream), args.Error(1)
}

func (m *MockJetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	args := m.Called(ctx, stream, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.Consumer), args.Error(1)
}

func (m *MockJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jetstream.PubAck), args.Error(1)
}

func (m *MockJetStream) Stream(ctx context.Context, name string) (jetstream.Stream, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.Stream), args.Error(1)
}

type MockStream struct {
	mock.Mock
	jetstream.Stream
}

type MockConsumer struct {
	mock.Mock
	jetstream.Consumer
	handlers chan jetstream.MessageHandler
}

func (m *MockConsumer) Consume(handler jetstream.MessageHandler, opts ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	if m.handlers != nil {
		m.handlers <- handler
	}
	args := m.Called(handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.ConsumeContext), args.Error(1)
}

type MockConsumeContext struct {
	mock.Mock
	jetstream.ConsumeContext
}

func (m *MockConsumeContext) Stop() {
	m.Called()
}

type MockMsg struct {
	mock.Mock
	jetstream.Msg
}

func (m *MockMsg) Data() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockMsg) Metadata() (*jetstream.MsgMetadata, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jetstream.MsgMetadata), args.Error(1)
}

func (m *MockMsg) Ack() error {
	return m.Called().Error(0)
}

func (m *MockMsg) Nak() error {
	return m.Called().Error(0)
}

func (m *MockMsg) NakWithDelay(delay time.Duration) error {
	return m.Called(delay).Error(0)
}

func (m *MockMsg) Term() error {
	return m.Called().Error(0)
}

// --- Tests ---

func TestNewFromJS_Defaults(t *testing.T) {
	b := NewFromJS(&MockJetStream{}, Config{}, nil)

	sc := b.StreamConfig()
	assert.Equal(t, "DOCUMENTS", sc.Name)
	assert.Equal(t, []string{"docs.>"}, sc.Subjects)
	assert.Equal(t, jetstream.WorkQueuePolicy, sc.Retention)
	assert.Equal(t, jetstream.FileStorage, sc.Storage)

	cc := b.ConsumerConfig("docs.jobs", "extraction-worker")
	assert.Equal(t, jetstream.AckExplicitPolicy, cc.AckPolicy)
	assert.Equal(t, 2*time.Minute, cc.AckWait)
	assert.Equal(t, "docs.jobs", cc.FilterSubject)
	assert.Equal(t, -1, cc.MaxDeliver)
}

func TestEnsureStream_Error(t *testing.T) {
	js := &MockJetStream{}
	b := NewFromJS(js, Config{}, nil)
	js.On("CreateOrUpdateStream", mock.Anything, b.StreamConfig()).Return(nil, errors.New("no jetstream"))

	err := b.EnsureStream(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure stream DOCUMENTS")
}

func TestPublish(t *testing.T) {
	js := &MockJetStream{}
	b := NewFromJS(js, Config{}, nil)
	js.On("Publish", mock.Anything, "docs.jobs", []byte("5")).Return(&jetstream.PubAck{Stream: "DOCUMENTS"}, nil).Once()
	js.On("Publish", mock.Anything, "docs.jobs", []byte("6")).Return(nil, errors.New("timeout")).Once()

	require.NoError(t, b.Publish(context.Background(), "docs.jobs", []byte("5")))
	assert.Error(t, b.Publish(context.Background(), "docs.jobs", []byte("6")))
	js.AssertExpectations(t)
}

func TestConsume_DispatchesUntilCancelled(t *testing.T) {
	js := &MockJetStream{}
	cons := &MockConsumer{handlers: make(chan jetstream.MessageHandler, 1)}
	cc := &MockConsumeContext{}
	b := NewFromJS(js, Config{}, nil)

	js.On("CreateOrUpdateConsumer", mock.Anything, "DOCUMENTS", b.ConsumerConfig("docs.jobs", "w")).Return(cons, nil)
	cons.On("Consume", mock.Anything).Return(cc, nil)
	cc.On("Stop").Return()

	msg := &MockMsg{}
	msg.On("Data").Return([]byte("9"))
	msg.On("Metadata").Return(&jetstream.MsgMetadata{NumDelivered: 3}, nil)
	msg.On("NakWithDelay", time.Second).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan queue.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- b.Consume(ctx, "docs.jobs", "w", func(_ context.Context, m queue.Message) {
			got <- m
		})
	}()

	var handler jetstream.MessageHandler
	select {
	case handler = <-cons.handlers:
	case <-time.After(time.Second):
		t.Fatal("consumer was not started")
	}
	handler(msg)

	m := <-got
	assert.Equal(t, []byte("9"), m.Data())
	assert.Equal(t, uint64(3), m.NumDelivered())
	require.NoError(t, m.Nak(time.Second))

	cancel()
	require.NoError(t, <-done)
	cc.AssertCalled(t, "Stop")
	msg.AssertExpectations(t)
}

func TestConsume_ConsumerError(t *testing.T) {
	js := &MockJetStream{}
	b := NewFromJS(js, Config{}, nil)
	js.On("CreateOrUpdateConsumer", mock.Anything, "DOCUMENTS", mock.Anything).Return(nil, errors.New("bad config"))

	err := b.Consume(context.Background(), "docs.jobs", "w", nil)
	assert.ErrorContains(t, err, "create consumer w")
}

func TestMessage_NumDeliveredFallback(t *testing.T) {
	msg := &MockMsg{}
	msg.On("Metadata").Return(nil, errors.New("not a jetstream message"))
	msg.On("Nak").Return(nil)

	m := &message{msg: msg, logger: zap.NewNop()}
	assert.Equal(t, uint64(1), m.NumDelivered())
	require.NoError(t, m.Nak(0))
	msg.AssertCalled(t, "Nak")
}
