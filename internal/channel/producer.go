// Package channel implements the ordered change channel: a producer that
// partitions change events by trip number, a consumer that processes each
// partition sequentially, and the dead-letter path for poison messages.
package channel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/events"
)

// Message header names.
const (
	HeaderEventType   = "Trip-Event-Type"
	HeaderChangeType  = "Trip-Change-Type"
	HeaderTripID      = "Trip-Id"
	HeaderTripNumber  = "Trip-Number"
	HeaderContentType = "Content-Type"
	HeaderReason      = "Trip-DeadLetter-Reason"

	EventTypeTripChanged = "TripChanged"
	ContentTypeJSON      = "application/json"
)

// Sender hands change events to the ordered channel.
type Sender interface {
	Send(ctx context.Context, ev *events.ChangeEvent) error
}

// Producer publishes change events, one subject per trip.
type Producer struct {
	pub           pubsub.Publisher
	subjectPrefix string
}

var _ Sender = (*Producer)(nil)

// NewProducer creates a Producer. subjectPrefix is relative to the
// publisher's own prefix, e.g. "changes" for TRIPS.changes.<partition>.
func NewProducer(pub pubsub.Publisher, subjectPrefix string) *Producer {
	return &Producer{pub: pub, subjectPrefix: subjectPrefix}
}

// PartitionToken encodes a trip number into a single subject token.
func PartitionToken(tripNumber string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(tripNumber))
}

// DecodePartitionToken reverses PartitionToken.
func DecodePartitionToken(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid partition token %q: %w", token, err)
	}
	return string(b), nil
}

// Subject returns the subject, relative to the publisher prefix, for a trip.
func (p *Producer) Subject(tripNumber string) string {
	if p.subjectPrefix == "" {
		return PartitionToken(tripNumber)
	}
	return p.subjectPrefix + "." + PartitionToken(tripNumber)
}

// Send publishes ev. Events with an unknown change type are still sent so
// that the consumer can dead-letter them.
func (p *Producer) Send(ctx context.Context, ev *events.ChangeEvent) error {
	if ev == nil || strings.TrimSpace(ev.TripNumber) == "" {
		return fmt.Errorf("%w: trip number is required", events.ErrMalformedEvent)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	return p.pub.Publish(ctx, pubsub.OutboundMessage{
		Subject: p.Subject(ev.TripNumber),
		Data:    data,
		MsgID:   ev.MessageID(),
		Headers: map[string]string{
			HeaderEventType:   EventTypeTripChanged,
			HeaderChangeType:  string(ev.ChangeType),
			HeaderTripID:      ev.TripID,
			HeaderTripNumber:  ev.TripNumber,
			HeaderContentType: ContentTypeJSON,
		},
	})
}
