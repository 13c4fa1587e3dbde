package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

type jetStreamPublisher struct {
	js   JetStream
	opts pubsub.PublisherOptions
}

// NewPublisher returns a JetStream publisher. With a StreamName the stream is
// reconciled first so it captures every subject under the publish prefix.
func NewPublisher(js JetStream, opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if js == nil {
		return nil, errors.New("jetstream cannot be nil")
	}
	if opts.StreamName != "" {
		root := opts.StreamName
		if opts.SubjectPrefix != "" {
			root = opts.SubjectPrefix
		}
		err := ensureStream(context.Background(), js, jetstream.StreamConfig{
			Name:       opts.StreamName,
			Subjects:   []string{root + ".>"},
			Storage:    storageType(opts.Storage),
			MaxAge:     opts.MaxAge,
			Duplicates: opts.Window(),
		})
		if err != nil {
			return nil, err
		}
	}
	return &jetStreamPublisher{js: js, opts: opts}, nil
}

// Publish sends msg with its headers. MsgID travels as Nats-Msg-Id so the
// stream discards repeats inside its duplicate window.
func (p *jetStreamPublisher) Publish(ctx context.Context, msg pubsub.OutboundMessage) error {
	subject := p.opts.FullSubject(msg.Subject)

	out := nats.NewMsg(subject)
	out.Data = msg.Data
	for k, v := range msg.Headers {
		out.Header.Set(k, v)
	}

	var opts []jetstream.PublishOpt
	if msg.MsgID != "" {
		opts = append(opts, jetstream.WithMsgID(msg.MsgID))
	}
	if p.opts.RetryAttempts > 0 {
		opts = append(opts, jetstream.WithRetryAttempts(p.opts.RetryAttempts))
	}

	if _, err := p.js.PublishMsg(ctx, out, opts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the Provider.
func (p *jetStreamPublisher) Close() error { return nil }
