package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/syntrixbase/tripsync/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 16 * 1024
)

// Send pings to peer with this period. Must be less than pongWait.
var pingPeriod = (pongWait * 9) / 10

// Client is one realtime connection, WebSocket or SSE.
type Client struct {
	id  string
	hub *Hub

	// nil for SSE clients.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan BaseMessage

	mu      sync.Mutex
	filters map[string]cel.Program // joined group -> optional filter
	closed  bool
}

func newClient(hub *Hub, conn *websocket.Conn, bufSize int) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan BaseMessage, bufSize),
		filters: make(map[string]cel.Program),
	}
}

// trySend queues msg without blocking. It reports false if the buffer is
// full or the client is closed.
func (c *Client) trySend(msg BaseMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) accepts(group string, ev *events.ChangeEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prg, ok := c.filters[group]
	if !ok {
		return false
	}
	return matches(prg, ev)
}

// join compiles the optional filter and adds the client to group.
// Joining a group again replaces its filter.
func (c *Client) join(group, filter string) error {
	prg, err := compileFilter(filter)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.filters[group] = prg
	c.mu.Unlock()

	if !c.hub.Join(c, group) {
		c.mu.Lock()
		delete(c.filters, group)
		c.mu.Unlock()
		return fmt.Errorf("client is not connected")
	}
	return nil
}

func (c *Client) leave(group string) {
	c.hub.Leave(c, group)
	c.mu.Lock()
	delete(c.filters, group)
	c.mu.Unlock()
}

// Groups returns the groups the client has joined.
func (c *Client) Groups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.filters))
	for g := range c.filters {
		out = append(out, g)
	}
	return out
}

func (c *Client) replyError(id, code, message string) {
	c.trySend(BaseMessage{ID: id, Type: TypeError, Payload: mustMarshal(ErrorPayload{Code: code, Message: message})})
}

func (c *Client) handleMessage(msg BaseMessage) {
	switch msg.Type {
	case TypeJoin, TypeLeave:
		var payload GroupPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.replyError(msg.ID, "bad_request", "invalid payload")
			return
		}
		if err := payload.validate(); err != nil {
			c.replyError(msg.ID, "bad_request", err.Error())
			return
		}

		if msg.Type == TypeLeave {
			c.leave(payload.Group)
			slog.Debug("Realtime client left group", "client_id", c.id, "group", payload.Group)
			c.trySend(BaseMessage{ID: msg.ID, Type: TypeLeaveAck})
			return
		}

		if err := c.join(payload.Group, payload.Filter); err != nil {
			c.replyError(msg.ID, "invalid_filter", err.Error())
			return
		}
		slog.Debug("Realtime client joined group", "client_id", c.id, "group", payload.Group, "filtered", payload.Filter != "")
		c.trySend(BaseMessage{ID: msg.ID, Type: TypeJoinAck})
	default:
		c.replyError(msg.ID, "unknown_type", "unsupported message type: "+msg.Type)
	}
}

// readPump pumps messages from the websocket connection to the hub.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket connection closed unexpectedly", "client_id", c.id, "error", err)
			}
			return
		}

		var msg BaseMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.replyError("", "bad_request", "invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
