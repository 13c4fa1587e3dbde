package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/pkg/model"
)

func TestCheckAllowedOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		host    string
		cfg     Config
		allowed bool
	}{
		{"empty origin", "", "example.com", Config{}, true},
		{"same host", "http://example.com:3000", "example.com:8080", Config{}, true},
		{"different host", "http://evil.com", "example.com", Config{}, false},
		{"invalid origin", "://invalid", "example.com", Config{}, false},
		{"dev localhost", "http://localhost:5173", "api.example.com", Config{AllowDevOrigin: true}, true},
		{"localhost without dev", "http://localhost:5173", "api.example.com", Config{}, false},
		{"configured", "https://app.example.org/", "api.example.com", Config{AllowedOrigins: []string{"https://app.example.org"}}, true},
		{"wildcard", "https://any.example.net", "api.example.com", Config{AllowedOrigins: []string{"*"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAllowedOrigin(tt.origin, tt.host, tt.cfg)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestServer_SSE_RequiresTrip(t *testing.T) {
	hub, _ := startHub(t)
	srv := NewServer(hub, Config{})

	rec := httptest.NewRecorder()
	srv.HandleSSE(rec, httptest.NewRequest(http.MethodGet, "/realtime/sse", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.HandleSSE(rec, httptest.NewRequest(http.MethodGet, "/realtime/sse?trip=T1&filter=event.(", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/realtime/sse?trip=T1", nil)
	req.Header.Set("Origin", "http://evil.com")
	rec = httptest.NewRecorder()
	srv.HandleSSE(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_SSE_StreamsEvents(t *testing.T) {
	hub, _ := startHub(t)
	srv := NewServer(hub, Config{HeartbeatInterval: time.Hour})
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleSSE))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"?trip=T1&trip=T2", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.GroupSize("trip-T2") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Notify(ctx, tripEvent("T2", model.StatusCompleted)))

	var data string
	for data == "" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	var msg BaseMessage
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, TypeEvent, msg.Type)
	var payload EventPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "trip-T2", payload.Group)
	assert.Equal(t, model.StatusCompleted, payload.Event.Status)

	cancel()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_WebSocket(t *testing.T) {
	hub, _ := startHub(t)
	srv := NewServer(hub, Config{})
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(BaseMessage{ID: "j1", Type: TypeJoin, Payload: json.RawMessage(`{"group":"trip-T1"}`)}))

	var ack BaseMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, TypeJoinAck, ack.Type)
	assert.Equal(t, "j1", ack.ID)

	require.NoError(t, hub.Notify(context.Background(), tripEvent("T1", model.StatusStarted)))

	var msg BaseMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeEvent, msg.Type)
	var payload EventPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "T1", payload.Event.TripNumber)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_WebSocket_RejectsForeignOrigin(t *testing.T) {
	hub, _ := startHub(t)
	srv := NewServer(hub, Config{})
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.com")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
