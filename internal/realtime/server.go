// Package realtime pushes trip change events to live subscribers over
// WebSocket and Server-Sent Events. Subscribers join groups named
// trip-<tripNumber>; delivery is best-effort.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Server exposes the hub over HTTP.
type Server struct {
	hub      *Hub
	cfg      Config
	upgrader websocket.Upgrader
}

// NewServer creates a Server for hub.
func NewServer(hub *Hub, cfg Config) *Server {
	cfg.ApplyDefaults()
	s := &Server{hub: hub, cfg: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkAllowedOrigin(r.Header.Get("Origin"), r.Host, s.cfg) == nil
		},
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub { return s.hub }

// HandleWS upgrades the request; the client then sends join and leave messages.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := newClient(s.hub, conn, s.cfg.SendBuffer)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	slog.Debug("WebSocket client connected", "client_id", client.id)

	go client.writePump()
	go client.readPump()
}

// HandleSSE streams events for the trips named by repeated ?trip= params,
// optionally narrowed by a CEL ?filter=.
func (s *Server) HandleSSE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	origin := r.Header.Get("Origin")
	if err := checkAllowedOrigin(origin, r.Host, s.cfg); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	trips := r.URL.Query()["trip"]
	if len(trips) == 0 {
		http.Error(w, "at least one trip parameter is required", http.StatusBadRequest)
		return
	}
	filter := r.URL.Query().Get("filter")
	if _, err := compileFilter(filter); err != nil {
		http.Error(w, "invalid filter: "+err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	client := newClient(s.hub, nil, s.cfg.SendBuffer)
	if !s.hub.Register(client) {
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.Unregister(client)

	for _, trip := range trips {
		if err := client.join(GroupName(trip), filter); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := newHeartbeat(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case message, ok := <-client.send:
			if !ok {
				return
			}
			data, err := json.Marshal(message)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", message.Type, data); err != nil {
				slog.Warn("SSE write failed", "client_id", client.id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// checkAllowedOrigin admits requests without an Origin, same-host origins,
// localhost in dev mode, and configured origins.
func checkAllowedOrigin(origin, reqHost string, cfg Config) error {
	if origin == "" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return errors.New("origin not allowed")
	}

	originHost := strings.Split(parsed.Host, ":")[0]
	reqHostPart := strings.Split(reqHost, ":")[0]
	if strings.EqualFold(originHost, reqHostPart) {
		return nil
	}

	if cfg.AllowDevOrigin && (originHost == "localhost" || originHost == "127.0.0.1") {
		return nil
	}

	trimmed := strings.TrimRight(origin, "/")
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), trimmed) {
			return nil
		}
	}
	return errors.New("origin not allowed")
}
