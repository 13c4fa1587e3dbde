// Package gateway mounts the HTTP surface on a ServeMux: the trips REST API,
// the change feed webhook and the realtime endpoints.
package gateway

import (
	"net/http"

	"github.com/syntrixbase/tripsync/internal/gateway/config"
	"github.com/syntrixbase/tripsync/internal/gateway/rest"
	"github.com/syntrixbase/tripsync/internal/realtime"
)

type Server struct {
	rest     *rest.Handler
	realtime *realtime.Server
}

// ServerOption enables an optional route group or overrides request limits.
type ServerOption func(*[]rest.HandlerOption)

// WithRelay mounts relay at POST /api/relay/events.
func WithRelay(relay http.Handler) ServerOption {
	return func(o *[]rest.HandlerOption) { *o = append(*o, rest.WithRelay(relay)) }
}

// WithDeadLetters serves the inspector's records at GET /api/deadletters.
func WithDeadLetters(dl rest.DeadLetters) ServerOption {
	return func(o *[]rest.HandlerOption) { *o = append(*o, rest.WithDeadLetters(dl)) }
}

func WithGatewayConfig(cfg config.GatewayConfig) ServerOption {
	return func(o *[]rest.HandlerOption) { *o = append(*o, rest.WithConfig(cfg)) }
}

// NewServer wires the API for trips. rt is nil on processes that do not
// serve realtime clients.
func NewServer(trips rest.TripService, rt *realtime.Server, opts ...ServerOption) *Server {
	var handlerOpts []rest.HandlerOption
	for _, opt := range opts {
		opt(&handlerOpts)
	}
	return &Server{rest: rest.NewHandler(trips, handlerOpts...), realtime: rt}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.rest.RegisterRoutes(mux)
	if s.realtime == nil {
		return
	}
	mux.HandleFunc("GET /realtime/ws", s.realtime.HandleWS)
	mux.HandleFunc("GET /realtime/sse", s.realtime.HandleSSE)
}
