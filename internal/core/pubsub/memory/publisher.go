package memory

import (
	"context"
	"sync/atomic"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

type publisher struct {
	broker *broker
	opts   pubsub.PublisherOptions
	closed atomic.Bool
}

// Publish routes msg to matching subscriptions. A MsgID seen inside the
// duplicate window is accepted and dropped, matching JetStream.
func (p *publisher) Publish(ctx context.Context, msg pubsub.OutboundMessage) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}
	if p.broker.duplicate(msg.MsgID, p.opts.Window()) {
		return nil
	}
	if err := p.broker.publish(ctx, p.opts.FullSubject(msg.Subject), msg.Data, msg.Headers); err != nil {
		p.broker.forget(msg.MsgID)
		return err
	}
	return nil
}

func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}
