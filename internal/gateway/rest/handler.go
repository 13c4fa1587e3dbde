// Package rest exposes trips over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/gateway/config"
	"github.com/syntrixbase/tripsync/internal/store"
	"github.com/syntrixbase/tripsync/internal/tripservice"
	"github.com/syntrixbase/tripsync/pkg/model"
)

// TripService is the subset of tripservice.Service the handlers call.
type TripService interface {
	Create(ctx context.Context, req tripservice.CreateRequest) (*model.Trip, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.Trip, error)
	Update(ctx context.Context, id, status, driverID, vehicleID string) (*model.Trip, error)
	Complete(ctx context.Context, id string) (*model.Trip, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Trip, error)
	GetByNumber(ctx context.Context, tripNumber string) (*model.Trip, error)
	GetAll(ctx context.Context, opts store.ListOptions) ([]*model.Trip, error)
}

// DeadLetters exposes recently dead-lettered messages.
type DeadLetters interface {
	Records() []channel.Record
	Total() uint64
}

var _ TripService = (*tripservice.Service)(nil)

type Handler struct {
	trips       TripService
	relay       http.Handler
	deadLetters DeadLetters
	cfg         config.GatewayConfig
	startedAt   time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRelay mounts the change-feed webhook.
func WithRelay(relay http.Handler) HandlerOption {
	return func(h *Handler) { h.relay = relay }
}

// WithDeadLetters enables the dead-letter listing.
func WithDeadLetters(dl DeadLetters) HandlerOption {
	return func(h *Handler) { h.deadLetters = dl }
}

// WithConfig overrides the gateway limits.
func WithConfig(cfg config.GatewayConfig) HandlerOption {
	return func(h *Handler) {
		cfg.ApplyDefaults()
		h.cfg = cfg
	}
}

func NewHandler(trips TripService, opts ...HandlerOption) *Handler {
	if trips == nil {
		panic("trip service cannot be nil")
	}
	h := &Handler{trips: trips, cfg: config.DefaultGatewayConfig(), startedAt: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// APIError represents a structured error response
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []ValidationError `json:"fields,omitempty"`
}

// Error codes
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodePreconditionFailed = "PRECONDITION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeCanceled           = "CANCELED"
	ErrCodeUnavailable        = "UNAVAILABLE"
)

// StatusClientClosedRequest is returned when the client went away mid-request.
const StatusClientClosedRequest = 499

// writeError writes a structured JSON error response
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

// writeInternalError writes an internal error response, but first checks if the error
// is due to client cancellation (returns 499 instead of 500).
func writeInternalError(w http.ResponseWriter, err error, message string) {
	if model.IsCanceled(err) {
		writeError(w, StatusClientClosedRequest, ErrCodeCanceled, "Request canceled")
		return
	}
	slog.Error(message, "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// writeStoreError maps repository errors to responses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Trip not found")
	case errors.Is(err, model.ErrExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "Trip number already exists")
	case errors.Is(err, model.ErrPreconditionFailed):
		writeError(w, http.StatusConflict, ErrCodeConflict, "Trip was modified concurrently")
	case errors.Is(err, model.ErrInvalidTrip):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		writeInternalError(w, err, "Internal storage error")
	}
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

// maxBodySize wraps a handler with request body size limiting
func maxBodySize(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

// withTimeout wraps a handler with a context timeout
func withTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	timeout := h.cfg.RequestTimeout
	body := h.cfg.MaxBodyBytes

	// Reads
	mux.HandleFunc("GET /api/trips", withTimeout(h.handleListTrips, timeout))
	mux.HandleFunc("GET /api/trips/{id}", withTimeout(h.handleGetTrip, timeout))
	mux.HandleFunc("GET /api/trips/number/{tripNumber}", withTimeout(h.handleGetTripByNumber, timeout))

	// Mutations
	mux.HandleFunc("POST /api/trips", withTimeout(maxBodySize(h.handleCreateTrip, body), timeout))
	mux.HandleFunc("PUT /api/trips/{id}/status", withTimeout(maxBodySize(h.handleUpdateStatus, body), timeout))
	mux.HandleFunc("PUT /api/trips/{id}/complete", withTimeout(h.handleCompleteTrip, timeout))
	mux.HandleFunc("DELETE /api/trips/{id}", withTimeout(h.handleDeleteTrip, timeout))

	// Change feed webhook; the relay limits its own body size.
	if h.relay != nil {
		mux.Handle("POST /api/relay/events", http.TimeoutHandler(h.relay, timeout, "relay timed out"))
	}

	if h.deadLetters != nil {
		mux.HandleFunc("GET /api/deadletters", h.handleListDeadLetters)
	}

	// Health Check (no auth, minimal timeout)
	mux.HandleFunc("GET /health", withTimeout(h.handleHealth, 5*time.Second))
}
