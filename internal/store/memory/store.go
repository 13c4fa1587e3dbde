// Package memory is an in-process trip repository for standalone mode and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/syntrixbase/tripsync/internal/store"
	"github.com/syntrixbase/tripsync/pkg/model"
)

func byNumber(a, b *model.Trip) bool {
	return a.TripNumber < b.TripNumber
}

// Store keeps trips in a btree ordered by trip number, with an id index.
type Store struct {
	mu    sync.RWMutex
	trips *btree.BTreeG[*model.Trip]
	ids   map[string]string // id -> trip number
}

var _ store.Repository = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		trips: btree.NewG[*model.Trip](16, byNumber),
		ids:   make(map[string]string),
	}
}

func (s *Store) Create(ctx context.Context, trip *model.Trip) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	if err := trip.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[trip.ID]; ok {
		return model.ErrExists
	}
	if s.trips.Has(&model.Trip{TripNumber: trip.TripNumber}) {
		return model.ErrExists
	}
	s.trips.ReplaceOrInsert(trip.Clone())
	s.ids[trip.ID] = trip.TripNumber
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.byID(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	return trip.Clone(), nil
}

func (s *Store) GetByNumber(ctx context.Context, tripNumber string) (*model.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips.Get(&model.Trip{TripNumber: tripNumber})
	if !ok {
		return nil, model.ErrNotFound
	}
	return trip.Clone(), nil
}

func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]*model.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Trip, 0)
	s.trips.Ascend(func(trip *model.Trip) bool {
		if opts.Status != "" && trip.Status != opts.Status {
			return true
		}
		out = append(out, trip.Clone())
		return opts.Limit <= 0 || len(out) < opts.Limit
	})
	return out, nil
}

func (s *Store) Update(ctx context.Context, trip *model.Trip, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID(trip.ID)
	if !ok {
		return model.ErrNotFound
	}
	if current.Version != expectedVersion || current.TripNumber != trip.TripNumber {
		return model.ErrPreconditionFailed
	}
	s.trips.ReplaceOrInsert(trip.Clone())
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	number, ok := s.ids[id]
	if !ok {
		return model.ErrNotFound
	}
	s.trips.Delete(&model.Trip{TripNumber: number})
	delete(s.ids, id)
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) byID(id string) (*model.Trip, bool) {
	number, ok := s.ids[id]
	if !ok {
		return nil, false
	}
	return s.trips.Get(&model.Trip{TripNumber: number})
}
