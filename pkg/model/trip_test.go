package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrip(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	trip := NewTrip("TRIP-100", start, "driver-1", "vehicle-1")

	assert.NotEmpty(t, trip.ID)
	assert.Equal(t, "TRIP-100", trip.TripNumber)
	assert.Equal(t, StatusCreated, trip.Status)
	assert.Equal(t, start, trip.StartTime)
	assert.Nil(t, trip.EndTime)
	assert.Equal(t, int64(1), trip.Version)
	assert.False(t, trip.LastModified.IsZero())
}

func TestNewTrip_DefaultStartTime(t *testing.T) {
	trip := NewTrip("TRIP-1", time.Time{}, "", "")
	assert.False(t, trip.StartTime.IsZero())
}

func TestTrip_MutationsAdvanceVersionAndTimestamp(t *testing.T) {
	trip := NewTrip("TRIP-1", time.Time{}, "d1", "v1")

	steps := []struct {
		name   string
		mutate func(*Trip)
	}{
		{"update status", func(tr *Trip) { tr.UpdateStatus(StatusStarted) }},
		{"update", func(tr *Trip) { tr.Update(StatusInProgress, "d2", "") }},
		{"complete", func(tr *Trip) { tr.Complete() }},
		{"correction after complete", func(tr *Trip) { tr.UpdateStatus(StatusCancelled) }},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			prevVersion := trip.Version
			prevModified := trip.LastModified

			step.mutate(trip)

			assert.Equal(t, prevVersion+1, trip.Version)
			assert.True(t, trip.LastModified.After(prevModified))
		})
	}
}

func TestTrip_Update_KeepsReferencesWhenEmpty(t *testing.T) {
	trip := NewTrip("TRIP-1", time.Time{}, "d1", "v1")

	trip.Update(StatusStarted, "", "v2")

	assert.Equal(t, StatusStarted, trip.Status)
	assert.Equal(t, "d1", trip.DriverID)
	assert.Equal(t, "v2", trip.VehicleID)
}

func TestTrip_Complete(t *testing.T) {
	trip := NewTrip("TRIP-1", time.Time{}, "d1", "v1")
	trip.Complete()

	require.NotNil(t, trip.EndTime)
	assert.Equal(t, StatusCompleted, trip.Status)
	assert.Equal(t, trip.LastModified, *trip.EndTime)
}

func TestTrip_Validate(t *testing.T) {
	var nilTrip *Trip
	assert.ErrorIs(t, nilTrip.Validate(), ErrInvalidTrip)
	assert.ErrorIs(t, (&Trip{Status: "Created"}).Validate(), ErrInvalidTrip)
	assert.ErrorIs(t, (&Trip{TripNumber: "T1"}).Validate(), ErrInvalidTrip)
	assert.NoError(t, (&Trip{TripNumber: "T1", Status: "Created"}).Validate())
}

func TestTrip_Clone(t *testing.T) {
	trip := NewTrip("TRIP-1", time.Time{}, "d1", "v1")
	trip.Complete()

	c := trip.Clone()
	require.NotSame(t, trip, c)
	require.NotSame(t, trip.EndTime, c.EndTime)
	assert.Equal(t, trip, c)

	var nilTrip *Trip
	assert.Nil(t, nilTrip.Clone())
}
