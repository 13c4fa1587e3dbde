package rest

import (
	"time"

	"github.com/syntrixbase/tripsync/pkg/model"
)

// CreateTripRequest is the body of POST /api/trips.
type CreateTripRequest struct {
	TripNumber string     `json:"tripNumber" validate:"required,max=255"`
	StartTime  *time.Time `json:"startTime"`
	DriverID   string     `json:"driverId" validate:"max=255"`
	VehicleID  string     `json:"vehicleId" validate:"max=255"`
}

// UpdateStatusRequest is the body of PUT /api/trips/{id}/status.
type UpdateStatusRequest struct {
	Status    string `json:"status" validate:"required,max=64"`
	DriverID  string `json:"driverId" validate:"max=255"`
	VehicleID string `json:"vehicleId" validate:"max=255"`
}

// ListTripsQuery is decoded from the GET /api/trips query string.
type ListTripsQuery struct {
	Status string `schema:"status" validate:"max=64"`
	Limit  int    `schema:"limit" validate:"gte=0"`
}

// TripListResponse wraps list results.
type TripListResponse struct {
	Trips []*model.Trip `json:"trips"`
	Count int           `json:"count"`
}
