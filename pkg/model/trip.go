package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known trip statuses. The set is open; any other token is stored as-is.
const (
	StatusCreated    = "Created"
	StatusStarted    = "Started"
	StatusInProgress = "In-Progress"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

// Trip is the authoritative trip record owned by the primary store.
type Trip struct {
	ID           string     `json:"id" bson:"_id" db:"id"`
	TripNumber   string     `json:"tripNumber" bson:"trip_number" db:"trip_number"`
	Status       string     `json:"status" bson:"status" db:"status"`
	StartTime    time.Time  `json:"startTime" bson:"start_time" db:"start_time"`
	EndTime      *time.Time `json:"endTime" bson:"end_time,omitempty" db:"end_time"`
	DriverID     string     `json:"driverId" bson:"driver_id" db:"driver_id"`
	VehicleID    string     `json:"vehicleId" bson:"vehicle_id" db:"vehicle_id"`
	LastModified time.Time  `json:"lastModified" bson:"last_modified" db:"last_modified"`
	Version      int64      `json:"version" bson:"version" db:"version"`
}

// NewTrip creates a trip in the Created status at version 1.
// A zero start time defaults to now.
func NewTrip(tripNumber string, startTime time.Time, driverID, vehicleID string) *Trip {
	now := time.Now().UTC()
	if startTime.IsZero() {
		startTime = now
	}
	return &Trip{
		ID:           uuid.NewString(),
		TripNumber:   tripNumber,
		Status:       StatusCreated,
		StartTime:    startTime.UTC(),
		DriverID:     driverID,
		VehicleID:    vehicleID,
		LastModified: now,
		Version:      1,
	}
}

// Validate checks the fields every stored trip must carry.
func (t *Trip) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil trip", ErrInvalidTrip)
	}
	if strings.TrimSpace(t.TripNumber) == "" {
		return fmt.Errorf("%w: trip number is required", ErrInvalidTrip)
	}
	if strings.TrimSpace(t.Status) == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidTrip)
	}
	return nil
}

// Update changes the status and, when non-empty, the driver and vehicle references.
func (t *Trip) Update(status, driverID, vehicleID string) {
	t.Status = status
	if driverID != "" {
		t.DriverID = driverID
	}
	if vehicleID != "" {
		t.VehicleID = vehicleID
	}
	t.touch()
}

// UpdateStatus changes only the status.
func (t *Trip) UpdateStatus(status string) {
	t.Status = status
	t.touch()
}

// Complete moves the trip to Completed and fixes its end time.
// Later corrections are still accepted by Update and UpdateStatus.
func (t *Trip) Complete() {
	t.Status = StatusCompleted
	t.touch()
	end := t.LastModified
	t.EndTime = &end
}

// touch bumps the version and moves lastModified strictly forward.
func (t *Trip) touch() {
	now := time.Now().UTC()
	if !now.After(t.LastModified) {
		now = t.LastModified.Add(time.Microsecond)
	}
	t.LastModified = now
	t.Version++
}

// Clone returns a deep copy of the trip.
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	c := *t
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return &c
}
