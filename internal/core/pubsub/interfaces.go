// Package pubsub abstracts the durable message channel between the trip
// write path and the cache projector. Two providers exist: JetStream for
// distributed deployments and an in-process engine for standalone mode.
package pubsub

import (
	"context"
	"time"
)

// Message is one delivery of a published message. Exactly one of Ack, Nak or
// Term settles it; later calls are no-ops on the in-memory provider.
type Message interface {
	Data() []byte
	Subject() string
	// Header returns the first value for key, or "".
	Header(key string) string

	Ack() error
	// Nak asks for immediate redelivery.
	Nak() error
	// Term drops the message without redelivery.
	Term() error
	TermWithReason(reason string) error

	Metadata() (MessageMetadata, error)
}

type MessageMetadata struct {
	NumDelivered uint64
	Timestamp    time.Time
	Subject      string
	Stream       string
	Consumer     string
}

// OutboundMessage is handed to Publisher.Publish. Subject is relative to the
// publisher's SubjectPrefix.
type OutboundMessage struct {
	Subject string
	Data    []byte
	// MsgID is used for broker-side deduplication within DuplicateWindow.
	MsgID   string
	Headers map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, msg OutboundMessage) error
	Close() error
}

// Consumer delivers messages on a channel that closes when ctx ends.
// The receiver settles every message it takes off the channel.
type Consumer interface {
	Subscribe(ctx context.Context) (<-chan Message, error)
}
