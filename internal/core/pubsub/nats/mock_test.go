package nats

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/mock"
)

type mockJetStream struct {
	mock.Mock

	mu       sync.Mutex
	optCount []int
}

func (m *mockJetStream) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	args := m.Called(ctx, cfg)
	s, _ := args.Get(0).(jetstream.Stream)
	return s, args.Error(1)
}

func (m *mockJetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	args := m.Called(ctx, stream, cfg)
	c, _ := args.Get(0).(jetstream.Consumer)
	return c, args.Error(1)
}

func (m *mockJetStream) PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.mu.Lock()
	m.optCount = append(m.optCount, len(opts))
	m.mu.Unlock()

	args := m.Called(ctx, msg)
	ack, _ := args.Get(0).(*jetstream.PubAck)
	return ack, args.Error(1)
}

// publishOptCounts lists how many publish options each PublishMsg call got.
func (m *mockJetStream) publishOptCounts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.optCount...)
}

// fakeConsumer captures the handler passed to Consume.
type fakeConsumer struct {
	jetstream.Consumer
	mock.Mock
	handlers chan jetstream.MessageHandler
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{handlers: make(chan jetstream.MessageHandler, 1)}
}

func (f *fakeConsumer) Consume(handler jetstream.MessageHandler, _ ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	args := f.Called(handler)
	select {
	case f.handlers <- handler:
	default:
	}
	cc, _ := args.Get(0).(jetstream.ConsumeContext)
	return cc, args.Error(1)
}

type fakeConsumeContext struct {
	jetstream.ConsumeContext
	mock.Mock
}

func (f *fakeConsumeContext) Stop() { f.Called() }

// fakeMsg implements the jetstream.Msg methods the provider touches.
type fakeMsg struct {
	jetstream.Msg
	mock.Mock
	subject string
	data    []byte
	headers nats.Header
}

func newFakeMsg(subject string, data []byte) *fakeMsg {
	return &fakeMsg{subject: subject, data: data}
}

func (f *fakeMsg) Data() []byte                  { return f.data }
func (f *fakeMsg) Subject() string               { return f.subject }
func (f *fakeMsg) Headers() nats.Header          { return f.headers }
func (f *fakeMsg) Ack() error                    { return f.Called().Error(0) }
func (f *fakeMsg) Nak() error                    { return f.Called().Error(0) }
func (f *fakeMsg) TermWithReason(r string) error { return f.Called(r).Error(0) }

func (f *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	args := f.Called()
	md, _ := args.Get(0).(*jetstream.MsgMetadata)
	return md, args.Error(1)
}

// fakeConn is a conn whose JetStream result is fixed by the test.
type fakeConn struct {
	js     JetStream
	jsErr  error
	closed bool
}

func (c *fakeConn) JetStream() (JetStream, error) { return c.js, c.jsErr }
func (c *fakeConn) Close()                        { c.closed = true }
