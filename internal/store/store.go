// Package store defines the primary trip repository, the source of truth
// behind the cache.
package store

import (
	"context"

	"github.com/syntrixbase/tripsync/pkg/model"
)

// ListOptions narrows List results.
type ListOptions struct {
	Status string // exact match; empty means any
	Limit  int    // <= 0 means no limit
}

// Repository persists trips.
//
// Create fails with model.ErrExists when the trip number is taken.
// Get, GetByNumber, Update and Delete return model.ErrNotFound for unknown ids.
// Update replaces the stored trip only if its version still equals
// expectedVersion, and returns model.ErrPreconditionFailed otherwise.
type Repository interface {
	Create(ctx context.Context, trip *model.Trip) error
	Get(ctx context.Context, id string) (*model.Trip, error)
	GetByNumber(ctx context.Context, tripNumber string) (*model.Trip, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Trip, error)
	Update(ctx context.Context, trip *model.Trip, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
