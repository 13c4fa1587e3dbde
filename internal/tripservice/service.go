// Package tripservice owns trip mutations and the cache-first read path.
package tripservice

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/syntrixbase/tripsync/internal/cache"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/internal/metrics"
	"github.com/syntrixbase/tripsync/internal/store"
	"github.com/syntrixbase/tripsync/pkg/model"
)

// Publisher receives the change event of every committed mutation.
type Publisher interface {
	Publish(ctx context.Context, ev *events.ChangeEvent)
}

// CreateRequest describes a new trip.
type CreateRequest struct {
	TripNumber string
	StartTime  time.Time
	DriverID   string
	VehicleID  string
}

// Service mutates trips in the primary store, emits one change event per
// mutation and serves reads from the cache with store fallback.
type Service struct {
	repo      store.Repository
	cache     cache.Store
	publisher Publisher
	logger    *slog.Logger
}

// New creates a Service. cache may be nil, in which case reads go to the store.
func New(repo store.Repository, cacheStore cache.Store, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		cache:     cacheStore,
		publisher: publisher,
		logger:    slog.Default().With("component", "tripservice"),
	}
}

// Create stores a new trip and emits an Insert.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Trip, error) {
	trip := model.NewTrip(req.TripNumber, req.StartTime, req.DriverID, req.VehicleID)
	if err := trip.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, trip); err != nil {
		return nil, err
	}
	s.emit(ctx, trip, events.ChangeInsert)
	return trip, nil
}

// UpdateStatus changes only the status.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*model.Trip, error) {
	return s.mutate(ctx, id, func(t *model.Trip) { t.UpdateStatus(status) })
}

// Update changes the status and any non-empty driver or vehicle reference.
func (s *Service) Update(ctx context.Context, id, status, driverID, vehicleID string) (*model.Trip, error) {
	return s.mutate(ctx, id, func(t *model.Trip) { t.Update(status, driverID, vehicleID) })
}

// Complete marks the trip Completed.
func (s *Service) Complete(ctx context.Context, id string) (*model.Trip, error) {
	return s.mutate(ctx, id, func(t *model.Trip) { t.Complete() })
}

// Delete removes the trip and emits a Delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	trip, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, trip, events.ChangeDelete)
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, apply func(*model.Trip)) (*model.Trip, error) {
	trip, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := trip.Version
	apply(trip)
	if err := s.repo.Update(ctx, trip, expected); err != nil {
		return nil, err
	}
	s.emit(ctx, trip, events.ChangeUpdate)
	return trip, nil
}

func (s *Service) emit(ctx context.Context, trip *model.Trip, changeType events.ChangeType) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, events.NewChangeEvent(trip, changeType))
}

// GetByID reads a trip by id. The cache is keyed by trip number, so it
// serves only trips it can find in a full listing.
func (s *Service) GetByID(ctx context.Context, id string) (*model.Trip, error) {
	if trips := s.cachedList(ctx, "get_by_id"); len(trips) > 0 {
		for _, t := range trips {
			if t.ID == id {
				metrics.CacheReads.WithLabelValues("get_by_id", metrics.ResultHit).Inc()
				return t, nil
			}
		}
	}
	metrics.CacheReads.WithLabelValues("get_by_id", metrics.ResultMiss).Inc()
	return s.repo.Get(ctx, id)
}

// GetByNumber reads a trip by number, cache first.
func (s *Service) GetByNumber(ctx context.Context, tripNumber string) (*model.Trip, error) {
	if s.cache != nil {
		trip, err := s.cache.Get(ctx, tripNumber)
		switch {
		case err == nil && trip != nil:
			metrics.CacheReads.WithLabelValues("get_by_number", metrics.ResultHit).Inc()
			return trip, nil
		case err != nil && !errors.Is(err, cache.ErrMiss):
			metrics.CacheReads.WithLabelValues("get_by_number", metrics.ResultError).Inc()
			s.logger.Warn("Cache read failed, falling back to store", "trip_number", tripNumber, "error", err)
		default:
			metrics.CacheReads.WithLabelValues("get_by_number", metrics.ResultMiss).Inc()
		}
	}
	return s.repo.GetByNumber(ctx, tripNumber)
}

// GetAll lists trips, cache first. An empty cache falls back to the store.
func (s *Service) GetAll(ctx context.Context, opts store.ListOptions) ([]*model.Trip, error) {
	if trips := s.cachedList(ctx, "get_all"); len(trips) > 0 {
		metrics.CacheReads.WithLabelValues("get_all", metrics.ResultHit).Inc()
		return filterTrips(trips, opts), nil
	}
	metrics.CacheReads.WithLabelValues("get_all", metrics.ResultMiss).Inc()
	return s.repo.List(ctx, opts)
}

func (s *Service) cachedList(ctx context.Context, op string) []*model.Trip {
	if s.cache == nil {
		return nil
	}
	trips, err := s.cache.ListAll(ctx)
	if err != nil {
		metrics.CacheReads.WithLabelValues(op, metrics.ResultError).Inc()
		s.logger.Warn("Cache list failed, falling back to store", "op", op, "error", err)
		return nil
	}
	return trips
}

func filterTrips(trips []*model.Trip, opts store.ListOptions) []*model.Trip {
	slices.SortFunc(trips, func(a, b *model.Trip) int { return strings.Compare(a.TripNumber, b.TripNumber) })
	out := make([]*model.Trip, 0, len(trips))
	for _, t := range trips {
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		out = append(out, t)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}
