package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/pkg/model"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)
	require.Eventually(t, func() bool { return hub.Done() != nil }, time.Second, 5*time.Millisecond)
	t.Cleanup(cancel)
	return hub, cancel
}

func tripEvent(number, status string) *events.ChangeEvent {
	trip := model.NewTrip(number, time.Time{}, "driver-1", "vehicle-1")
	trip.UpdateStatus(status)
	return events.NewChangeEvent(trip, events.ChangeUpdate)
}

func registeredClient(t *testing.T, hub *Hub, bufSize int) *Client {
	t.Helper()
	c := newClient(hub, nil, bufSize)
	require.True(t, hub.Register(c))
	return c
}

func recvEvent(t *testing.T, c *Client) EventPayload {
	t.Helper()
	select {
	case msg := <-c.send:
		require.Equal(t, TypeEvent, msg.Type)
		var payload EventPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return EventPayload{}
	}
}

func expectNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %s", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversToGroupMembersOnly(t *testing.T) {
	hub, _ := startHub(t)

	member := registeredClient(t, hub, 4)
	other := registeredClient(t, hub, 4)
	require.NoError(t, member.join(GroupName("T1"), ""))
	require.NoError(t, other.join(GroupName("T2"), ""))

	require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusStarted)))

	payload := recvEvent(t, member)
	assert.Equal(t, "trip-T1", payload.Group)
	assert.Equal(t, "T1", payload.Event.TripNumber)
	assert.Equal(t, model.StatusStarted, payload.Event.Status)
	expectNoMessage(t, other)
}

func TestHub_PreservesOrderPerClient(t *testing.T) {
	hub, _ := startHub(t)
	c := registeredClient(t, hub, 8)
	require.NoError(t, c.join(GroupName("T1"), ""))

	statuses := []string{model.StatusStarted, model.StatusInProgress, model.StatusCompleted}
	for _, s := range statuses {
		require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", s)))
	}
	for _, s := range statuses {
		assert.Equal(t, s, recvEvent(t, c).Event.Status)
	}
}

func TestHub_Filter(t *testing.T) {
	hub, _ := startHub(t)
	c := registeredClient(t, hub, 4)
	require.NoError(t, c.join(GroupName("T1"), `event.status == "Completed"`))

	require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusStarted)))
	require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusCompleted)))

	assert.Equal(t, model.StatusCompleted, recvEvent(t, c).Event.Status)
	expectNoMessage(t, c)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub, _ := startHub(t)
	slow := registeredClient(t, hub, 1)
	fast := registeredClient(t, hub, 4)
	require.NoError(t, slow.join(GroupName("T1"), ""))
	require.NoError(t, fast.join(GroupName("T1"), ""))

	require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusStarted)))
	require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusCompleted)))

	assert.Equal(t, model.StatusStarted, recvEvent(t, slow).Event.Status)
	expectNoMessage(t, slow)

	assert.Equal(t, model.StatusStarted, recvEvent(t, fast).Event.Status)
	assert.Equal(t, model.StatusCompleted, recvEvent(t, fast).Event.Status)
}

func TestHub_LeaveAndUnregister(t *testing.T) {
	hub, _ := startHub(t)
	c := registeredClient(t, hub, 4)
	require.NoError(t, c.join(GroupName("T1"), ""))
	require.NoError(t, c.join(GroupName("T2"), ""))
	assert.ElementsMatch(t, []string{"trip-T1", "trip-T2"}, c.Groups())

	c.leave(GroupName("T1"))
	assert.Equal(t, 0, hub.GroupSize("trip-T1"))
	assert.Equal(t, 1, hub.GroupSize("trip-T2"))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.GroupSize("trip-T2"))

	_, ok := <-c.send
	assert.False(t, ok, "send channel closed")

	hub.Unregister(c)
	assert.Error(t, c.join(GroupName("T3"), ""))
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	hub, _ := startHub(t)
	c := newClient(hub, nil, 1)
	assert.False(t, hub.Join(c, "trip-T1"))
	assert.Error(t, c.join("trip-T1", ""))
	assert.Empty(t, c.Groups())
}

func TestHub_InvalidFilterRejected(t *testing.T) {
	hub, _ := startHub(t)
	c := registeredClient(t, hub, 1)
	assert.Error(t, c.join(GroupName("T1"), "event.status =="))
	assert.Equal(t, 0, hub.GroupSize("trip-T1"))
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	c := registeredClient(t, hub, 1)

	cancel()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-c.send
	assert.False(t, ok)

	assert.ErrorIs(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusStarted)), ErrHubStopped)
	assert.False(t, hub.Register(newClient(hub, nil, 1)))
}

func TestHub_NotifyHonorsContext(t *testing.T) {
	hub := NewHub() // not running

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.Notify(ctx, tripEvent("T1", model.StatusStarted)), context.DeadlineExceeded)
}
