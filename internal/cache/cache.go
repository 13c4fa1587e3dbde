// Package cache holds the read-side projection of trips: a TTL-tiered
// key/value store keyed by trip number.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/syntrixbase/tripsync/pkg/model"
)

// KeyPrefix prefixes every trip key.
const KeyPrefix = "trip:"

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Key returns the cache key for a trip number.
func Key(tripNumber string) string {
	return KeyPrefix + tripNumber
}

// Backend is a raw byte store with per-key expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Scan returns the values of all live keys with the given prefix.
	Scan(ctx context.Context, prefix string) ([][]byte, error)
	Close() error
}

// Store is the trip-level cache contract used by the projector and the read path.
type Store interface {
	Get(ctx context.Context, tripNumber string) (*model.Trip, error)
	Set(ctx context.Context, trip *model.Trip, ttl time.Duration) error
	Remove(ctx context.Context, tripNumber string) error
	ListAll(ctx context.Context) ([]*model.Trip, error)
	TTLFor(status string) time.Duration
}

// Cache stores trips as JSON in a Backend and applies the TTL policy.
type Cache struct {
	backend Backend
	policy  TTLPolicy
}

var _ Store = (*Cache)(nil)

// New creates a Cache over the given backend.
func New(backend Backend, policy TTLPolicy) *Cache {
	return &Cache{backend: backend, policy: policy}
}

// Get returns the cached trip or ErrMiss.
func (c *Cache) Get(ctx context.Context, tripNumber string) (*model.Trip, error) {
	raw, err := c.backend.Get(ctx, Key(tripNumber))
	if err != nil {
		return nil, err
	}
	var trip model.Trip
	if err := json.Unmarshal(raw, &trip); err != nil {
		return nil, fmt.Errorf("decode cached trip %s: %w", tripNumber, err)
	}
	return &trip, nil
}

// Set replaces the entry for the trip. A non-positive ttl selects the tier
// for the trip's status.
func (c *Cache) Set(ctx context.Context, trip *model.Trip, ttl time.Duration) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.policy.For(trip.Status)
	}
	raw, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("encode trip %s: %w", trip.TripNumber, err)
	}
	return c.backend.Set(ctx, Key(trip.TripNumber), raw, ttl)
}

// Remove deletes the entry. A missing entry is not an error.
func (c *Cache) Remove(ctx context.Context, tripNumber string) error {
	err := c.backend.Delete(ctx, Key(tripNumber))
	if errors.Is(err, ErrMiss) {
		return nil
	}
	return err
}

// ListAll returns every cached trip. Undecodable entries are skipped.
func (c *Cache) ListAll(ctx context.Context) ([]*model.Trip, error) {
	values, err := c.backend.Scan(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	trips := make([]*model.Trip, 0, len(values))
	for _, raw := range values {
		var trip model.Trip
		if err := json.Unmarshal(raw, &trip); err != nil {
			continue
		}
		trips = append(trips, &trip)
	}
	return trips, nil
}

// TTLFor returns the expiry tier for a status.
func (c *Cache) TTLFor(status string) time.Duration {
	return c.policy.For(status)
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// TTLPolicy maps trip statuses to expiry tiers.
type TTLPolicy struct {
	Default   time.Duration `yaml:"default"`
	Active    time.Duration `yaml:"active"`
	Completed time.Duration `yaml:"completed"`
	// List bounds how long expired entries may linger before a sweep.
	List time.Duration `yaml:"list"`
}

// DefaultTTLPolicy returns the standard tiers.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Default:   24 * time.Hour,
		Active:    time.Hour,
		Completed: 72 * time.Hour,
		List:      30 * time.Minute,
	}
}

// For returns the tier for the given status, ignoring case.
func (p TTLPolicy) For(status string) time.Duration {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "created", "started", "in-progress":
		return p.Active
	case "completed", "cancelled":
		return p.Completed
	default:
		return p.Default
	}
}
