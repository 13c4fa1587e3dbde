package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(nil, pubsub.ConsumerOptions{StreamName: "TRIPS"})
	assert.ErrorContains(t, err, "jetstream cannot be nil")

	_, err = NewConsumer(new(mockJetStream), pubsub.ConsumerOptions{})
	assert.ErrorContains(t, err, "stream name is required")
}

func TestNewConsumer_ConsumerConfig(t *testing.T) {
	c, err := NewConsumer(new(mockJetStream), pubsub.ConsumerOptions{StreamName: "TRIPS_DLQ"})
	require.NoError(t, err)

	cfg := c.(*jetStreamConsumer).consumerConfig()
	assert.Equal(t, defaultDurable, cfg.Durable)
	assert.Equal(t, "TRIPS_DLQ.>", cfg.FilterSubject)
	assert.Equal(t, pubsub.DefaultAckWait, cfg.AckWait)
	assert.Equal(t, pubsub.DefaultMaxAckPending, cfg.MaxAckPending)
	assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
}

func TestSubscribe_DeliversUntilCanceled(t *testing.T) {
	js := new(mockJetStream)
	cons := newFakeConsumer()
	cc := new(fakeConsumeContext)

	js.On("CreateOrUpdateStream", mock.Anything, mock.MatchedBy(func(cfg jetstream.StreamConfig) bool {
		return cfg.Name == "TRIPS" && cfg.Subjects[0] == "TRIPS.>" && cfg.Storage == jetstream.FileStorage
	})).Return(nil, nil)
	js.On("CreateOrUpdateConsumer", mock.Anything, "TRIPS", mock.MatchedBy(func(cfg jetstream.ConsumerConfig) bool {
		return cfg.Durable == "trip-cache-projector" &&
			cfg.FilterSubject == "TRIPS.changes.>" &&
			cfg.MaxDeliver == 5 &&
			cfg.AckWait == 10*time.Second
	})).Return(cons, nil)
	cons.On("Consume", mock.Anything).Return(cc, nil)
	cc.On("Stop").Return()

	c, err := NewConsumer(js, pubsub.ConsumerOptions{
		StreamName:    "TRIPS",
		ConsumerName:  "trip-cache-projector",
		FilterSubject: "TRIPS.changes.>",
		Storage:       pubsub.FileStorage,
		AckWait:       10 * time.Second,
		MaxDeliver:    5,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)
	handler := <-cons.handlers

	raw := newFakeMsg("TRIPS.changes.T1", []byte(`{"tripNumber":"T1"}`))
	raw.headers = nats.Header{}
	raw.headers.Set("Trip-Number", "T1")
	raw.On("TermWithReason", "ParseError").Return(nil)
	handler(raw)

	select {
	case msg := <-ch:
		assert.Equal(t, "TRIPS.changes.T1", msg.Subject())
		assert.Equal(t, "T1", msg.Header("Trip-Number"))
		assert.Empty(t, msg.Header("Trip-Change-Type"))
		require.NoError(t, msg.TermWithReason("ParseError"))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	late := newFakeMsg("TRIPS.changes.T1", nil)
	late.On("Nak").Return(nil)
	handler(late)

	late.AssertCalled(t, "Nak")
	cc.AssertCalled(t, "Stop")
	raw.AssertExpectations(t)
}

func TestSubscribe_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(js *mockJetStream)
		wantErr string
	}{
		{
			name: "stream",
			setup: func(js *mockJetStream) {
				js.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(nil, errors.New("insufficient resources"))
			},
			wantErr: "failed to ensure stream TRIPS",
		},
		{
			name: "consumer",
			setup: func(js *mockJetStream) {
				js.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(nil, nil)
				js.On("CreateOrUpdateConsumer", mock.Anything, "TRIPS", mock.Anything).Return(nil, errors.New("boom"))
			},
			wantErr: "failed to create consumer",
		},
		{
			name: "consume",
			setup: func(js *mockJetStream) {
				cons := newFakeConsumer()
				cons.On("Consume", mock.Anything).Return(nil, errors.New("consume failed"))
				js.On("CreateOrUpdateStream", mock.Anything, mock.Anything).Return(nil, nil)
				js.On("CreateOrUpdateConsumer", mock.Anything, "TRIPS", mock.Anything).Return(cons, nil)
			},
			wantErr: "failed to start consumer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			js := new(mockJetStream)
			tt.setup(js)

			c, err := NewConsumer(js, pubsub.ConsumerOptions{StreamName: "TRIPS"})
			require.NoError(t, err)
			_, err = c.Subscribe(context.Background())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWrapMessage_Metadata(t *testing.T) {
	raw := newFakeMsg("TRIPS.changes.T1", nil)
	raw.On("Metadata").Return(&jetstream.MsgMetadata{
		NumDelivered: 3,
		Stream:       "TRIPS",
		Consumer:     "trip-cache-projector",
	}, nil).Once()
	raw.On("Metadata").Return(nil, errors.New("not a jetstream message")).Once()

	msg := WrapMessage(raw)
	md, err := msg.Metadata()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), md.NumDelivered)
	assert.Equal(t, "TRIPS", md.Stream)
	assert.Equal(t, "TRIPS.changes.T1", md.Subject)

	_, err = msg.Metadata()
	assert.Error(t, err)
}
