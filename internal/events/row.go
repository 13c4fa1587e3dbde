package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/syntrixbase/tripsync/pkg/model"
)

// Row is a trip table row as carried by a database change feed.
// Only TripNumber and Status are required.
type Row struct {
	ID           string     `json:"id" bson:"_id"`
	TripNumber   string     `json:"tripNumber" bson:"trip_number"`
	Status       string     `json:"status" bson:"status"`
	StartTime    time.Time  `json:"startTime" bson:"start_time"`
	EndTime      *time.Time `json:"endTime" bson:"end_time"`
	DriverID     string     `json:"driverId" bson:"driver_id"`
	VehicleID    string     `json:"vehicleId" bson:"vehicle_id"`
	LastModified time.Time  `json:"lastModified" bson:"last_modified"`
	Version      int64      `json:"version" bson:"version"`
}

// FromRow builds a change event from a change-feed row. A row without a
// version gets its lastModified time in microseconds as the version, so
// later rows for the same trip still order after earlier ones.
func FromRow(operation string, row Row) (*ChangeEvent, error) {
	if strings.TrimSpace(row.TripNumber) == "" {
		return nil, fmt.Errorf("%w: row missing trip number", ErrMalformedEvent)
	}
	if strings.TrimSpace(row.Status) == "" {
		return nil, fmt.Errorf("%w: row %s missing status", ErrMalformedEvent, row.TripNumber)
	}

	lastModified := row.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now().UTC()
	}
	version := row.Version
	if version <= 0 {
		version = lastModified.UnixMicro()
	}

	trip := &model.Trip{
		ID:           row.ID,
		TripNumber:   row.TripNumber,
		Status:       row.Status,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		DriverID:     row.DriverID,
		VehicleID:    row.VehicleID,
		LastModified: lastModified,
		Version:      version,
	}
	return NewChangeEvent(trip, ParseChangeType(operation)), nil
}
