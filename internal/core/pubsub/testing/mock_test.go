package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

func TestMockPublisher(t *testing.T) {
	pub := NewMockPublisher()
	data := []byte(`{"tripNumber":"T1"}`)
	headers := map[string]string{"Trip-Number": "T1"}

	require.NoError(t, pub.Publish(context.Background(), pubsub.OutboundMessage{
		Subject: "changes.T1", Data: data, MsgID: "m1", Headers: headers,
	}))
	data[0] = 'X'
	headers["Trip-Number"] = "T2"

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"tripNumber":"T1"}`, string(msgs[0].Data))
	assert.Equal(t, "T1", msgs[0].Headers["Trip-Number"])

	pub.SetError(errors.New("stream unavailable"))
	assert.Error(t, pub.Publish(context.Background(), pubsub.OutboundMessage{Subject: "changes.T1"}))
	assert.Len(t, pub.Messages(), 1)

	pub.SetError(nil)
	assert.NoError(t, pub.Publish(context.Background(), pubsub.OutboundMessage{Subject: "changes.T1"}))
	assert.NoError(t, pub.Close())
}

func TestMockMessage_Settlement(t *testing.T) {
	msg := NewMockMessage("TRIPS.changes.T1", nil).WithHeader("Trip-Number", "T1").WithDeliveries(3)
	assert.Equal(t, "T1", msg.Header("Trip-Number"))
	assert.False(t, msg.Settled())

	md, err := msg.Metadata()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), md.NumDelivered)

	require.NoError(t, msg.Nak())
	require.NoError(t, msg.Nak())
	assert.True(t, msg.IsNaked())
	assert.Equal(t, 2, msg.NakCount())

	require.NoError(t, msg.TermWithReason("ProcessingError"))
	assert.True(t, msg.IsTermed())
	assert.False(t, msg.IsNaked())
	assert.Equal(t, "ProcessingError", msg.TermReason())

	require.NoError(t, msg.Ack())
	assert.True(t, msg.IsAcked())
	assert.True(t, msg.Settled())
}

func TestMockConsumer(t *testing.T) {
	c := NewMockConsumer()
	assert.False(t, c.IsStarted())
	assert.False(t, c.Send(NewMockMessage("a", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsStarted())

	msg := NewMockMessage("TRIPS.changes.T1", []byte("x"))
	require.True(t, c.Send(msg))
	assert.Same(t, msg, <-ch)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !c.Send(msg) }, time.Second, 5*time.Millisecond)
	assert.False(t, c.IsStarted())

	c.SetError(errors.New("no stream"))
	_, err = c.Subscribe(context.Background())
	assert.Error(t, err)
}
