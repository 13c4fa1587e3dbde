package channel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/core/pubsub/memory"
	pubsubtesting "github.com/syntrixbase/tripsync/internal/core/pubsub/testing"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/pkg/model"
)

func TestPartitionToken(t *testing.T) {
	for _, n := range []string{"TRIP-100", "trip 7/ä.>*", ""} {
		token := PartitionToken(n)
		assert.NotContains(t, token, ".")
		assert.NotContains(t, token, "*")
		assert.NotContains(t, token, ">")

		back, err := DecodePartitionToken(token)
		require.NoError(t, err)
		assert.Equal(t, n, back)
	}

	_, err := DecodePartitionToken("!!")
	assert.Error(t, err)
}

func TestProducer_Send(t *testing.T) {
	pub := pubsubtesting.NewMockPublisher()
	p := NewProducer(pub, "changes")

	trip := model.NewTrip("TRIP-100", time.Time{}, "d1", "v1")
	ev := events.NewChangeEvent(trip, events.ChangeInsert)
	require.NoError(t, p.Send(context.Background(), ev))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]

	assert.Equal(t, "changes."+PartitionToken("TRIP-100"), msg.Subject)
	assert.Equal(t, ev.MessageID(), msg.MsgID)
	assert.Equal(t, map[string]string{
		HeaderEventType:   EventTypeTripChanged,
		HeaderChangeType:  "Insert",
		HeaderTripID:      trip.ID,
		HeaderTripNumber:  "TRIP-100",
		HeaderContentType: ContentTypeJSON,
	}, msg.Headers)

	decoded, err := events.Decode(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, int64(1), decoded.Version)
	assert.Equal(t, events.ChangeInsert, decoded.ChangeType)
}

func TestProducer_SendRejectsMissingTripNumber(t *testing.T) {
	p := NewProducer(pubsubtesting.NewMockPublisher(), "changes")

	assert.ErrorIs(t, p.Send(context.Background(), nil), events.ErrMalformedEvent)
	assert.ErrorIs(t, p.Send(context.Background(), &events.ChangeEvent{ChangeType: events.ChangeDelete}), events.ErrMalformedEvent)
}

func TestProducer_SendPropagatesPublishError(t *testing.T) {
	pub := pubsubtesting.NewMockPublisher()
	pub.SetError(errors.New("nats down"))
	p := NewProducer(pub, "")

	ev := &events.ChangeEvent{TripNumber: "T1", ChangeType: events.ChangeDelete}
	assert.Error(t, p.Send(context.Background(), ev))
	assert.Equal(t, PartitionToken("T1"), p.Subject("T1"))
}

func TestProducer_MemoryEngineRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	engine := memory.New()
	defer engine.Close()

	pub, err := engine.NewPublisher(cfg.PublisherOptions())
	require.NoError(t, err)
	p := NewProducer(pub, cfg.SubjectPrefix)

	trip := model.NewTrip("TRIP-100", time.Time{}, "d1", "v1")
	ev := events.NewChangeEvent(trip, events.ChangeInsert)
	require.NoError(t, p.Send(context.Background(), ev))
	// Republishing the same logical change is dropped by message id.
	require.NoError(t, p.Send(context.Background(), ev))

	consumer, err := engine.NewConsumer(cfg.ConsumerOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := consumer.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, "TRIPS.changes."+PartitionToken("TRIP-100"), msg.Subject())
		assert.Equal(t, "TRIP-100", msg.Header(HeaderTripNumber))

		var got events.ChangeEvent
		require.NoError(t, json.Unmarshal(msg.Data(), &got))
		assert.Equal(t, ev.TripID, got.TripID)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	select {
	case msg := <-ch:
		t.Fatalf("duplicate delivered: %s", msg.Subject())
	case <-time.After(50 * time.Millisecond):
	}
}
