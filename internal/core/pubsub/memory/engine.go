package memory

import (
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

var _ pubsub.Provider = (*Engine)(nil)

// Engine is the standalone-mode broker. Messages published while no
// subscription matches wait in a bounded backlog, oldest dropped first, and
// are replayed to the first subscriber whose pattern matches.
type Engine struct {
	broker *broker
}

type Option func(*Engine)

// WithBacklogLimit bounds the backlog; non-positive values are ignored.
func WithBacklogLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.broker.backlogLimit = n
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{broker: newBroker(DefaultBacklogLimit)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &publisher{broker: e.broker, opts: opts}, nil
}

func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &consumer{broker: e.broker, opts: opts.WithDefaults()}, nil
}

// Backlog reports how many messages are waiting for a subscriber.
func (e *Engine) Backlog() int { return e.broker.backlogLen() }

// Close ends every subscription and discards the backlog.
func (e *Engine) Close() error { return e.broker.close() }

func (e *Engine) IsClosed() bool { return e.broker.isClosed() }
