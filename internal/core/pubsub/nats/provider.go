package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

var errNotConnected = errors.New("NATS not connected, call Connect first")

var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// Provider shares one NATS connection between every publisher and consumer
// it creates.
type Provider struct {
	url  string
	name string
	dial func(url string, opts ...nats.Option) (conn, error)

	mu   sync.Mutex
	conn conn
	js   JetStream
}

// NewProvider targets the server at url. name identifies the client in NATS
// monitoring.
func NewProvider(url, name string) *Provider {
	return &Provider{url: url, name: name, dial: dialNATS}
}

// Connect dials the server with unlimited reconnects and opens JetStream.
// The dial timeout follows ctx's deadline when it has one.
func (p *Provider) Connect(ctx context.Context) error {
	logger := slog.With("url", p.url)
	opts := []nats.Option{
		nats.Name(p.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) { logger.Info("NATS reconnected") }),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	c, err := p.dial(p.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}
	js, err := c.JetStream()
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	p.mu.Lock()
	p.conn, p.js = c, js
	p.mu.Unlock()
	logger.Info("Connected to NATS")
	return nil
}

func (p *Provider) jetStream() (JetStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.js == nil {
		return nil, errNotConnected
	}
	return p.js, nil
}

func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	js, err := p.jetStream()
	if err != nil {
		return nil, err
	}
	return NewPublisher(js, opts)
}

func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	js, err := p.jetStream()
	if err != nil {
		return nil, err
	}
	return NewConsumer(js, opts)
}

// Close drops the connection. It is safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		slog.Info("NATS connection closed", "url", p.url)
	}
	p.conn, p.js = nil, nil
	return nil
}
