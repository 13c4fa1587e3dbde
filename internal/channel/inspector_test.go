package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/core/pubsub/memory"
	pubsubtesting "github.com/syntrixbase/tripsync/internal/core/pubsub/testing"
)

func TestInspector_RingBuffer(t *testing.T) {
	i := NewInspector(nil, 2)
	assert.Empty(t, i.Records())

	i.add(Record{Reason: "a"})
	assert.Equal(t, []string{"a"}, reasons(i.Records()))

	i.add(Record{Reason: "b"})
	i.add(Record{Reason: "c"})
	assert.Equal(t, []string{"c", "b"}, reasons(i.Records()))
	assert.Equal(t, uint64(3), i.Total())

	assert.Equal(t, 500, NewInspector(nil, 0).limit)
}

func TestInspector_ConsumesDeadLetterStream(t *testing.T) {
	cfg := DefaultConfig()
	engine := memory.New()
	defer engine.Close()

	pub, err := engine.NewPublisher(cfg.DeadLetterPublisherOptions())
	require.NoError(t, err)
	dl := NewDeadLetterer(pub)

	src := tripMessage("TRIP-9", "{bad")
	require.NoError(t, dl.DeadLetter(context.Background(), src, ReasonParseError, "invalid payload"))

	// A foreign message on the stream is terminated and skipped.
	require.NoError(t, pub.Publish(context.Background(), pubsub.OutboundMessage{Subject: "junk", Data: []byte("nope")}))

	consumer, err := engine.NewConsumer(cfg.DeadLetterConsumerOptions())
	require.NoError(t, err)
	inspector := NewInspector(consumer, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inspector.Start(ctx) }()

	assert.Eventually(t, func() bool { return inspector.Total() == 1 }, time.Second, 5*time.Millisecond)
	recs := inspector.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, ReasonParseError, recs[0].Reason)
	assert.Equal(t, "TRIP-9", recs[0].TripNumber)
	assert.Equal(t, "{bad", recs[0].Payload)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("inspector did not stop")
	}
}

func TestInspector_SubscribeError(t *testing.T) {
	mc := pubsubtesting.NewMockConsumer()
	mc.SetError(assert.AnError)
	assert.Error(t, NewInspector(mc, 1).Start(context.Background()))
}

func reasons(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Reason
	}
	return out
}
