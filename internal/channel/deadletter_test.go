package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pubsubtesting "github.com/syntrixbase/tripsync/internal/core/pubsub/testing"
)

func TestReasonOf(t *testing.T) {
	base := errors.New("bad json")

	err := DeadLetter(ReasonParseError, base)
	assert.Equal(t, ReasonParseError, ReasonOf(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "ParseError: bad json", err.Error())

	wrapped := fmt.Errorf("projector: %w", DeadLetter(ReasonUnknownChangeType, base))
	assert.Equal(t, ReasonUnknownChangeType, ReasonOf(wrapped))

	assert.Equal(t, ReasonProcessingError, ReasonOf(errors.New("redis timeout")))
}

func TestDeadLetterer_PublishesRecordAndTerminates(t *testing.T) {
	pub := pubsubtesting.NewMockPublisher()
	dl := NewDeadLetterer(pub)
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	dl.now = func() time.Time { return fixed }

	msg := tripMessage("TRIP-100", `{"changeType":"Unknown"}`).WithDeliveries(2)
	require.NoError(t, dl.DeadLetter(context.Background(), msg, ReasonUnknownChangeType, "unknown change type"))

	assert.True(t, msg.IsTermed())
	assert.Equal(t, ReasonUnknownChangeType, msg.TermReason())

	published := pub.Messages()
	require.Len(t, published, 1)
	assert.Equal(t, ReasonUnknownChangeType, published[0].Subject)
	assert.Equal(t, ReasonUnknownChangeType, published[0].Headers[HeaderReason])
	assert.Equal(t, "TRIP-100", published[0].Headers[HeaderTripNumber])

	var rec Record
	require.NoError(t, json.Unmarshal(published[0].Data, &rec))
	assert.Equal(t, Record{
		Reason:         ReasonUnknownChangeType,
		Description:    "unknown change type",
		Subject:        msg.Subject(),
		TripNumber:     "TRIP-100",
		NumDelivered:   2,
		Payload:        `{"changeType":"Unknown"}`,
		DeadLetteredAt: fixed,
	}, rec)
}

func TestDeadLetterer_KeepsNonJSONPayload(t *testing.T) {
	pub := pubsubtesting.NewMockPublisher()
	dl := NewDeadLetterer(pub)

	msg := pubsubtesting.NewMockMessage("TRIPS.changes.x", []byte("{not json"))
	require.NoError(t, dl.DeadLetter(context.Background(), msg, ReasonParseError, "bad"))

	var rec Record
	require.NoError(t, json.Unmarshal(pub.Messages()[0].Data, &rec))
	assert.Equal(t, "{not json", rec.Payload)
	assert.Empty(t, rec.TripNumber)
}

func TestDeadLetterer_PublishFailureLeavesMessageUnsettled(t *testing.T) {
	pub := pubsubtesting.NewMockPublisher()
	pub.SetError(errors.New("stream unavailable"))
	dl := NewDeadLetterer(pub)

	msg := tripMessage("T1", "{}")
	err := dl.DeadLetter(context.Background(), msg, ReasonProcessingError, "boom")

	assert.ErrorContains(t, err, "failed to publish dead-letter record")
	assert.False(t, msg.Settled())
}
