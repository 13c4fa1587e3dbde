package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/cache"
	"github.com/syntrixbase/tripsync/internal/cache/memory"
	"github.com/syntrixbase/tripsync/pkg/model"
)

func newCache(t *testing.T) (*cache.Cache, *memory.Store) {
	backend := memory.New(0)
	t.Cleanup(func() { _ = backend.Close() })
	return cache.New(backend, cache.DefaultTTLPolicy()), backend
}

func TestKey(t *testing.T) {
	assert.Equal(t, "trip:TRIP-100", cache.Key("TRIP-100"))
	assert.NotEqual(t, cache.Key("t1"), cache.Key("T1"))
}

func TestTTLPolicy_For(t *testing.T) {
	p := cache.DefaultTTLPolicy()

	tests := []struct {
		status string
		want   time.Duration
	}{
		{"Created", p.Active},
		{"started", p.Active},
		{"In-Progress", p.Active},
		{"Completed", p.Completed},
		{"CANCELLED", p.Completed},
		{"Xyz", p.Default},
		{"", p.Default},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, p.For(tt.status))
		})
	}

	assert.Equal(t, time.Hour, p.Active)
	assert.Equal(t, 72*time.Hour, p.Completed)
	assert.Equal(t, 24*time.Hour, p.Default)
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	trip := model.NewTrip("TRIP-1", time.Time{}, "d1", "v1")
	require.NoError(t, c.Set(ctx, trip, 0))

	got, err := c.Get(ctx, "TRIP-1")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)
	assert.Equal(t, trip.Version, got.Version)
	assert.True(t, trip.LastModified.Equal(got.LastModified))

	_, err = c.Get(ctx, "TRIP-2")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestCache_SetIsIdempotent(t *testing.T) {
	c, backend := newCache(t)
	ctx := context.Background()

	trip := model.NewTrip("TRIP-1", time.Time{}, "d1", "v1")
	require.NoError(t, c.Set(ctx, trip, 0))
	first, err := backend.Get(ctx, cache.Key("TRIP-1"))
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, trip, 0))
	second, err := backend.Get(ctx, cache.Key("TRIP-1"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Len())
}

func TestCache_SetRejectsInvalidTrip(t *testing.T) {
	c, _ := newCache(t)
	err := c.Set(context.Background(), &model.Trip{Status: "Created"}, 0)
	assert.ErrorIs(t, err, model.ErrInvalidTrip)
}

func TestCache_Remove(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, model.NewTrip("TRIP-1", time.Time{}, "", ""), 0))
	require.NoError(t, c.Remove(ctx, "TRIP-1"))
	require.NoError(t, c.Remove(ctx, "TRIP-1"))

	_, err := c.Get(ctx, "TRIP-1")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestCache_ListAll(t *testing.T) {
	c, backend := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, model.NewTrip("TRIP-1", time.Time{}, "", ""), 0))
	require.NoError(t, c.Set(ctx, model.NewTrip("TRIP-2", time.Time{}, "", ""), 0))
	require.NoError(t, backend.Set(ctx, "trip:broken", []byte("{not json"), time.Hour))
	require.NoError(t, backend.Set(ctx, "session:1", []byte("{}"), time.Hour))

	trips, err := c.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, "TRIP-1", trips[0].TripNumber)
	assert.Equal(t, "TRIP-2", trips[1].TripNumber)
}

func TestCache_GetCorruptEntry(t *testing.T) {
	c, backend := newCache(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "trip:T1", []byte("{"), time.Hour))
	_, err := c.Get(ctx, "T1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, cache.ErrMiss))
}

func TestCache_ExplicitTTL(t *testing.T) {
	c, backend := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, model.NewTrip("TRIP-1", time.Time{}, "", ""), time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, err := backend.Get(ctx, "trip:TRIP-1")
	assert.ErrorIs(t, err, cache.ErrMiss)
}
