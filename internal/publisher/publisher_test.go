package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/pkg/model"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*events.ChangeEvent
	ctxErr []error
	err    error
	block  bool
}

func (s *recordingSink) record(ctx context.Context, ev *events.ChangeEvent) error {
	if s.block {
		<-ctx.Done()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.ctxErr = append(s.ctxErr, ctx.Err())
	return s.err
}

func (s *recordingSink) Send(ctx context.Context, ev *events.ChangeEvent) error {
	return s.record(ctx, ev)
}

func (s *recordingSink) Notify(ctx context.Context, ev *events.ChangeEvent) error {
	return s.record(ctx, ev)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func sampleEvent() *events.ChangeEvent {
	return events.NewChangeEvent(model.NewTrip("T1", time.Time{}, "d", "v"), events.ChangeInsert)
}

// flush waits for every queued event to reach the sinks.
func flush(t *testing.T, p *Publisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
}

func TestPublisher_DeliversToBothSinks(t *testing.T) {
	ch := &recordingSink{}
	fan := &recordingSink{}
	p := New(ch, fan)

	ev := sampleEvent()
	p.Publish(context.Background(), ev)
	flush(t, p)

	require.Equal(t, 1, ch.count())
	require.Equal(t, 1, fan.count())
	assert.Same(t, ev, ch.events[0])
	assert.Same(t, ev, fan.events[0])
}

func TestPublisher_SinkFailureIsSwallowed(t *testing.T) {
	ch := &recordingSink{err: errors.New("nats down")}
	fan := &recordingSink{}
	p := New(ch, fan)

	assert.NotPanics(t, func() { p.Publish(context.Background(), sampleEvent()) })
	flush(t, p)
	assert.Equal(t, 1, ch.count())
	assert.Equal(t, 1, fan.count(), "fanout still notified after channel failure")
}

func TestPublisher_DetachedFromCallerCancellation(t *testing.T) {
	ch := &recordingSink{}
	p := New(ch, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, sampleEvent())
	flush(t, p)

	require.Equal(t, 1, ch.count())
	assert.NoError(t, ch.ctxErr[0])
}

func TestPublisher_BoundedTimeout(t *testing.T) {
	ch := &recordingSink{block: true}
	p := New(ch, nil, WithTimeout(20*time.Millisecond))

	p.Publish(context.Background(), sampleEvent())
	flush(t, p)

	require.Equal(t, 1, ch.count())
	assert.ErrorIs(t, ch.ctxErr[0], context.DeadlineExceeded)
}

func TestPublisher_NilSinksAndEvent(t *testing.T) {
	p := New(nil, nil)
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), sampleEvent())
		p.Publish(context.Background(), nil)
	})
	flush(t, p)
}

func TestPublisher_StalledSinksDoNotBlockCaller(t *testing.T) {
	ch := &recordingSink{block: true}
	fan := &recordingSink{block: true}
	p := New(ch, fan, WithTimeout(300*time.Millisecond), WithWorkers(1), WithQueueSize(2))

	start := time.Now()
	for range 10 {
		p.Publish(context.Background(), sampleEvent())
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	flush(t, p)
	assert.GreaterOrEqual(t, ch.count(), 1)
	assert.Equal(t, ch.count(), fan.count())
}

func TestPublisher_KeepsOrderPerTrip(t *testing.T) {
	ch := &recordingSink{}
	p := New(ch, nil, WithWorkers(4))

	trip := model.NewTrip("T1", time.Time{}, "d", "v")
	var want []int64
	for range 50 {
		trip.UpdateStatus(model.StatusInProgress)
		want = append(want, trip.Version)
		p.Publish(context.Background(), events.NewChangeEvent(trip, events.ChangeUpdate))
	}
	flush(t, p)

	var got []int64
	for _, ev := range ch.events {
		got = append(got, ev.Version)
	}
	assert.Equal(t, want, got)
}

func TestPublisher_PublishAfterCloseIsDropped(t *testing.T) {
	ch := &recordingSink{}
	p := New(ch, nil)
	flush(t, p)

	assert.NotPanics(t, func() { p.Publish(context.Background(), sampleEvent()) })
	assert.Equal(t, 0, ch.count())
	assert.NoError(t, p.Close(context.Background()))
}

func TestPublisher_CloseHonorsContext(t *testing.T) {
	ch := &recordingSink{block: true}
	p := New(ch, nil, WithTimeout(time.Second))
	p.Publish(context.Background(), sampleEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)

	require.Eventually(t, func() bool { return ch.count() == 1 }, 5*time.Second, 10*time.Millisecond)
}
