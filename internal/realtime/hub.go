package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/internal/metrics"
)

// ErrHubStopped is returned by Notify once the hub has shut down.
var ErrHubStopped = errors.New("realtime hub stopped")

// Hub tracks connected clients and their group memberships and pushes each
// change event to the members of the event's trip group.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Group name -> members.
	groups map[string]map[*Client]struct{}

	broadcast chan *events.ChangeEvent

	mu      sync.RWMutex
	stopped bool

	runCtx   context.Context
	runCtxMu sync.RWMutex
}

// NewHub creates a Hub. Events are delivered once Run is started.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		groups:    make(map[string]map[*Client]struct{}),
		broadcast: make(chan *events.ChangeEvent),
	}
}

// Run delivers broadcasts until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.setRunCtx(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdownClients()
			return
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for name, members := range h.groups {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
	client.close()
	metrics.FanoutClients.Dec()
}

func (h *Hub) deliver(ev *events.ChangeEvent) {
	group := GroupName(ev.TripNumber)
	msg := BaseMessage{Type: TypeEvent, Payload: mustMarshal(EventPayload{Group: group, Event: ev})}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.groups[group] {
		if !client.accepts(group, ev) {
			metrics.FanoutDeliveries.WithLabelValues(metrics.ResultFilter).Inc()
			continue
		}
		if client.trySend(msg) {
			metrics.FanoutDeliveries.WithLabelValues(metrics.ResultOK).Inc()
		} else {
			metrics.FanoutDeliveries.WithLabelValues(metrics.ResultDropped).Inc()
			slog.Warn("Realtime client buffer full, event dropped", "client_id", client.id, "group", group)
		}
	}
}

// Join adds client to group. The client must be registered.
func (h *Hub) Join(client *Client, group string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return false
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[client] = struct{}{}
	return true
}

// Leave removes client from group.
func (h *Hub) Leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// GroupSize returns the number of members of group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Notify queues ev for delivery. It blocks until the hub accepts the event,
// ctx is done or the hub stops.
func (h *Hub) Notify(ctx context.Context, ev *events.ChangeEvent) error {
	select {
	case <-h.Done():
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.Done():
		return ErrHubStopped
	}
}

// Register adds a client. It returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	if !h.clients[client] {
		h.clients[client] = true
		metrics.FanoutClients.Inc()
	}
	return true
}

// Unregister removes a client from the hub and its groups and closes its
// send channel.
func (h *Hub) Unregister(client *Client) {
	h.remove(client)
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setRunCtx(ctx context.Context) {
	h.runCtxMu.Lock()
	h.runCtx = ctx
	h.runCtxMu.Unlock()
}

// Done is closed when the hub's Run context ends. It is nil before Run.
func (h *Hub) Done() <-chan struct{} {
	h.runCtxMu.RLock()
	defer h.runCtxMu.RUnlock()
	if h.runCtx == nil {
		return nil
	}
	return h.runCtx.Done()
}

func (h *Hub) shutdownClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
		metrics.FanoutClients.Dec()
	}
	h.groups = make(map[string]map[*Client]struct{})
}
