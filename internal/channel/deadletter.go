package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/metrics"
)

// Dead-letter reasons.
const (
	ReasonParseError        = "ParseError"
	ReasonUnknownChangeType = "UnknownChangeType"
	ReasonProcessingError   = "ProcessingError"
)

// DeadLetterError marks a handler failure that must not be retried.
type DeadLetterError struct {
	Reason string
	Err    error
}

func (e *DeadLetterError) Error() string {
	return e.Reason + ": " + e.Err.Error()
}

func (e *DeadLetterError) Unwrap() error { return e.Err }

// DeadLetter wraps err with a dead-letter reason.
func DeadLetter(reason string, err error) error {
	return &DeadLetterError{Reason: reason, Err: err}
}

// ReasonOf returns the dead-letter reason carried by err, or ProcessingError.
func ReasonOf(err error) string {
	var dl *DeadLetterError
	if errors.As(err, &dl) {
		return dl.Reason
	}
	return ReasonProcessingError
}

// Record is the JSON body published to the dead-letter stream.
type Record struct {
	Reason         string    `json:"reason"`
	Description    string    `json:"description"`
	Subject        string    `json:"subject"`
	TripNumber     string    `json:"tripNumber,omitempty"`
	NumDelivered   uint64    `json:"numDelivered"`
	Payload        string    `json:"payload"`
	DeadLetteredAt time.Time `json:"deadLetteredAt"`
}

// DeadLetterSink moves a message out of the main stream.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, msg pubsub.Message, reason, description string) error
}

// DeadLetterer republishes poison messages to the dead-letter stream and
// terminates them on the source stream.
type DeadLetterer struct {
	pub pubsub.Publisher
	now func() time.Time
}

var _ DeadLetterSink = (*DeadLetterer)(nil)

// NewDeadLetterer creates a DeadLetterer. The publisher's prefix must be the
// dead-letter stream.
func NewDeadLetterer(pub pubsub.Publisher) *DeadLetterer {
	return &DeadLetterer{pub: pub, now: time.Now}
}

// DeadLetter publishes a Record for msg under <reason>, then terminates msg.
// If the record cannot be published msg is left unsettled and the error is
// returned so the caller can Nak it.
func (d *DeadLetterer) DeadLetter(ctx context.Context, msg pubsub.Message, reason, description string) error {
	var delivered uint64
	if md, err := msg.Metadata(); err == nil {
		delivered = md.NumDelivered
	}

	rec := Record{
		Reason:         reason,
		Description:    description,
		Subject:        msg.Subject(),
		TripNumber:     msg.Header(HeaderTripNumber),
		NumDelivered:   delivered,
		Payload:        string(msg.Data()),
		DeadLetteredAt: d.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter record: %w", err)
	}

	err = d.pub.Publish(ctx, pubsub.OutboundMessage{
		Subject: reason,
		Data:    data,
		Headers: map[string]string{
			HeaderReason:      reason,
			HeaderTripNumber:  rec.TripNumber,
			HeaderContentType: ContentTypeJSON,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish dead-letter record: %w", err)
	}

	metrics.DeadLettered.WithLabelValues(reason).Inc()
	slog.Warn("Message dead-lettered",
		"reason", reason,
		"subject", rec.Subject,
		"trip_number", rec.TripNumber,
		"description", description)

	if err := msg.TermWithReason(reason); err != nil {
		slog.Error("Failed to terminate dead-lettered message", "subject", rec.Subject, "error", err)
	}
	return nil
}
