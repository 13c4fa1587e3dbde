// Package testing has in-process fakes for the pubsub interfaces.
package testing

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

var (
	_ pubsub.Publisher = (*MockPublisher)(nil)
	_ pubsub.Consumer  = (*MockConsumer)(nil)
	_ pubsub.Message   = (*MockMessage)(nil)
)

// MockPublisher keeps a copy of every message it accepts.
type MockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.OutboundMessage
	err      error
}

func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

func (p *MockPublisher) Publish(_ context.Context, msg pubsub.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	msg.Data = append([]byte(nil), msg.Data...)
	msg.Headers = maps.Clone(msg.Headers)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *MockPublisher) Close() error { return nil }

// Messages returns the accepted messages in publish order.
func (p *MockPublisher) Messages() []pubsub.OutboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubsub.OutboundMessage(nil), p.messages...)
}

// SetError makes every later Publish fail with err; nil restores success.
func (p *MockPublisher) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type settlement int

const (
	pending settlement = iota
	acked
	naked
	termed
)

// MockMessage records how it was settled.
type MockMessage struct {
	subject string
	data    []byte

	mu         sync.Mutex
	headers    map[string]string
	delivered  uint64
	state      settlement
	naks       int
	termReason string
}

// NewMockMessage returns a first delivery of data on subject.
func NewMockMessage(subject string, data []byte) *MockMessage {
	return &MockMessage{subject: subject, data: data, headers: map[string]string{}, delivered: 1}
}

func (m *MockMessage) WithHeader(key, value string) *MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
	return m
}

// WithDeliveries sets the delivery count reported by Metadata.
func (m *MockMessage) WithDeliveries(n uint64) *MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = n
	return m
}

func (m *MockMessage) Data() []byte    { return m.data }
func (m *MockMessage) Subject() string { return m.subject }

func (m *MockMessage) Header(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers[key]
}

func (m *MockMessage) settle(s settlement, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	if s == naked {
		m.naks++
	}
	if s == termed {
		m.termReason = reason
	}
	return nil
}

func (m *MockMessage) Ack() error                         { return m.settle(acked, "") }
func (m *MockMessage) Nak() error                         { return m.settle(naked, "") }
func (m *MockMessage) Term() error                        { return m.settle(termed, "") }
func (m *MockMessage) TermWithReason(reason string) error { return m.settle(termed, reason) }

func (m *MockMessage) Metadata() (pubsub.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pubsub.MessageMetadata{NumDelivered: m.delivered, Timestamp: time.Now(), Subject: m.subject}, nil
}

func (m *MockMessage) is(s settlement) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == s
}

func (m *MockMessage) IsAcked() bool  { return m.is(acked) }
func (m *MockMessage) IsNaked() bool  { return m.is(naked) }
func (m *MockMessage) IsTermed() bool { return m.is(termed) }
func (m *MockMessage) Settled() bool  { return !m.is(pending) }

func (m *MockMessage) NakCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.naks
}

func (m *MockMessage) TermReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.termReason
}

// MockConsumer hands messages passed to Send to its current subscriber.
type MockConsumer struct {
	mu  sync.Mutex
	ch  chan pubsub.Message
	err error
}

func NewMockConsumer() *MockConsumer { return &MockConsumer{} }

// Subscribe replaces any earlier subscription. The channel closes when ctx ends.
func (c *MockConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}

	ch := make(chan pubsub.Message, 100)
	c.ch = ch
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.ch == ch {
			close(ch)
			c.ch = nil
		}
	}()
	return ch, nil
}

// IsStarted reports whether a subscription is active.
func (c *MockConsumer) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch != nil
}

// Send reports false when nothing is subscribed.
func (c *MockConsumer) Send(msg pubsub.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == nil {
		return false
	}
	c.ch <- msg
	return true
}

// SetError makes Subscribe fail with err.
func (c *MockConsumer) SetError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
