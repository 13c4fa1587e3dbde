package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

const defaultDurable = "consumer"

type jetStreamConsumer struct {
	js   JetStream
	opts pubsub.ConsumerOptions
}

// NewConsumer binds a durable pull consumer with explicit acks to StreamName.
func NewConsumer(js JetStream, opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	switch {
	case js == nil:
		return nil, errors.New("jetstream cannot be nil")
	case opts.StreamName == "":
		return nil, errors.New("stream name is required")
	}
	if opts.ConsumerName == "" {
		opts.ConsumerName = defaultDurable
	}
	return &jetStreamConsumer{js: js, opts: opts.WithDefaults()}, nil
}

func (c *jetStreamConsumer) consumerConfig() jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       c.opts.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: c.opts.Filter(),
		AckWait:       c.opts.AckWait,
		MaxDeliver:    c.opts.MaxDeliver,
		MaxAckPending: c.opts.MaxAckPending,
	}
}

// Subscribe ensures the stream and consumer exist and starts pulling.
// Deliveries that arrive after ctx ends are Nak'ed back to the stream.
func (c *jetStreamConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	stream := jetstream.StreamConfig{
		Name:     c.opts.StreamName,
		Subjects: []string{c.opts.StreamName + ".>"},
		Storage:  storageType(c.opts.Storage),
	}
	if err := ensureStream(ctx, c.js, stream); err != nil {
		return nil, err
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, c.consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	out := make(chan pubsub.Message, c.opts.ChannelBufSize)
	var stopped atomic.Bool

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if stopped.Load() {
			_ = msg.Nak()
			return
		}
		select {
		case out <- WrapMessage(msg):
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		close(out)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	logger := slog.With("stream", c.opts.StreamName, "consumer", c.opts.ConsumerName)
	logger.Info("Consumer subscribed", "filter", c.opts.Filter())

	go func() {
		<-ctx.Done()
		stopped.Store(true)
		cc.Stop()
		close(out)
		logger.Info("Consumer stopped")
	}()
	return out, nil
}
