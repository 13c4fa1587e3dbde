package memory

import (
	"sync/atomic"
	"time"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

// delivery is one attempt at handing a published message to a subscriber.
// Nak settles it and queues a fresh delivery with the attempt count bumped.
type delivery struct {
	subject     string
	data        []byte
	headers     map[string]string
	publishedAt time.Time
	attempt     uint64

	// sub is nil while the message waits in the backlog.
	sub     *subscription
	settled atomic.Bool
}

var _ pubsub.Message = (*delivery)(nil)

func (d *delivery) Data() []byte                  { return d.data }
func (d *delivery) Subject() string               { return d.subject }
func (d *delivery) Header(key string) string      { return d.headers[key] }
func (d *delivery) Ack() error                    { return d.settle() }
func (d *delivery) Term() error                   { return d.settle() }
func (d *delivery) TermWithReason(_ string) error { return d.Term() }

func (d *delivery) settle() error {
	d.settled.Store(true)
	return nil
}

func (d *delivery) Nak() error {
	if d.settled.Swap(true) || d.sub == nil {
		return nil
	}
	next := &delivery{
		subject:     d.subject,
		data:        d.data,
		headers:     d.headers,
		publishedAt: d.publishedAt,
		attempt:     d.attempt + 1,
		sub:         d.sub,
	}
	go d.sub.redeliver(next)
	return nil
}

func (d *delivery) Metadata() (pubsub.MessageMetadata, error) {
	return pubsub.MessageMetadata{
		NumDelivered: d.attempt,
		Timestamp:    d.publishedAt,
		Subject:      d.subject,
		Stream:       "memory",
	}, nil
}
