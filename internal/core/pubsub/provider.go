package pubsub

import (
	"context"
	"io"
)

// Provider creates publishers and consumers on one broker connection and
// owns that connection.
type Provider interface {
	io.Closer
	NewPublisher(opts PublisherOptions) (Publisher, error)
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable providers must be connected before NewPublisher or NewConsumer.
type Connectable interface {
	Connect(ctx context.Context) error
}
