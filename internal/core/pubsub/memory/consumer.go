package memory

import (
	"context"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

type consumer struct {
	broker *broker
	opts   pubsub.ConsumerOptions
}

// Subscribe claims the consumer's filter pattern until ctx ends. Only one
// live subscription per pattern is allowed.
func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	ch, unsubscribe, err := c.broker.subscribe(ctx, c.opts.Filter(), c.opts.ChannelBufSize)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return ch, nil
}
