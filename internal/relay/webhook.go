// Package relay turns database change notifications into trip change events
// on the ordered channel. Rows arrive either as a webhook batch of
// change-feed envelopes or from a MongoDB change stream.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const sourceWebhook = "webhook"

// BatchResult summarizes one webhook batch.
type BatchResult struct {
	Forwarded int `json:"forwarded"`
	Skipped   int `json:"skipped"`
}

// Webhook receives batches of change-feed envelopes.
type Webhook struct {
	sender channel.Sender
	cfg    Config
	logger *slog.Logger
}

// NewWebhook creates a Webhook that forwards trip rows to sender.
func NewWebhook(sender channel.Sender, cfg Config) *Webhook {
	cfg.ApplyDefaults()
	return &Webhook{
		sender: sender,
		cfg:    cfg,
		logger: slog.Default().With("component", "relay", "source", sourceWebhook),
	}
}

// ServeHTTP handles POST batches. A subscription validation handshake is
// answered with its code and nothing is forwarded.
func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.Webhook.MaxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusRequestEntityTooLarge)
		return
	}

	batch, err := parseBatch(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, env := range batch {
		if env.IsValidation() {
			h.answerValidation(w, env)
			return
		}
	}

	result, err := h.Process(r.Context(), batch)
	if err != nil {
		h.logger.Error("Failed to forward change batch", "error", err, "forwarded", result.Forwarded)
		http.Error(w, "failed to forward changes", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (h *Webhook) answerValidation(w http.ResponseWriter, env *events.Envelope) {
	var data events.ValidationData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.ValidationCode == "" {
		http.Error(w, "missing validationCode", http.StatusBadRequest)
		return
	}
	h.logger.Info("Answered subscription validation")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events.ValidationResponse{ValidationResponse: data.ValidationCode})
}

// Process converts a batch to change events and forwards them. Malformed
// rows and rows of other tables are skipped. Rows for the same trip are
// sent in batch order; different trips are sent concurrently.
func (h *Webhook) Process(ctx context.Context, batch []*events.Envelope) (BatchResult, error) {
	var result BatchResult
	var order []string
	byTrip := make(map[string][]*events.ChangeEvent)

	for _, env := range batch {
		ev, err := h.toEvent(env)
		if err != nil {
			result.Skipped++
			metrics.RelayRows.WithLabelValues(sourceWebhook, metrics.ResultSkipped).Inc()
			h.logger.Warn("Skipping change row", "event_type", env.EventType, "error", err)
			continue
		}
		if _, ok := byTrip[ev.TripNumber]; !ok {
			order = append(order, ev.TripNumber)
		}
		byTrip[ev.TripNumber] = append(byTrip[ev.TripNumber], ev)
	}

	counts := make([]int, len(order))
	g, gctx := errgroup.WithContext(ctx)
	if h.cfg.Webhook.MaxConcurrency > 0 {
		g.SetLimit(h.cfg.Webhook.MaxConcurrency)
	}
	for i, trip := range order {
		evs := byTrip[trip]
		g.Go(func() error {
			for _, ev := range evs {
				if err := h.sender.Send(gctx, ev); err != nil {
					metrics.RelayRows.WithLabelValues(sourceWebhook, metrics.ResultError).Inc()
					return fmt.Errorf("trip %s: %w", ev.TripNumber, err)
				}
				metrics.RelayRows.WithLabelValues(sourceWebhook, metrics.ResultOK).Inc()
				counts[i]++
			}
			return nil
		})
	}
	err := g.Wait()
	for _, n := range counts {
		result.Forwarded += n
	}
	return result, err
}

// errOtherTable marks rows from tables the relay does not own.
var errOtherTable = errors.New("row is not from the trips table")

func (h *Webhook) toEvent(env *events.Envelope) (*events.ChangeEvent, error) {
	var feed events.ChangeFeedData
	if err := json.Unmarshal(env.Data, &feed); err == nil {
		isFeed := feed.TableName != "" || strings.HasSuffix(env.EventType, events.DatabaseChangeEventSuffix)
		if isFeed && !strings.EqualFold(feed.TableName, h.cfg.Table) {
			return nil, fmt.Errorf("%w: %q", errOtherTable, feed.TableName)
		}
	}
	return events.DecodeEnvelope(env)
}

// parseBatch accepts a JSON array of envelopes or a single envelope.
func parseBatch(body []byte) ([]*events.Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '{' {
		var env events.Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("invalid envelope: %w", err)
		}
		return []*events.Envelope{&env}, nil
	}
	var batch []*events.Envelope
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	out := batch[:0]
	for _, env := range batch {
		if env != nil {
			out = append(out, env)
		}
	}
	return out, nil
}
