package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/tripsync/pkg/model"
)

const (
	// EnvelopeDataVersion is the schema version stamped on published envelopes.
	EnvelopeDataVersion = "1.0"
	// EventTypePrefix prefixes the change type in envelope event types ("Trip.Update").
	EventTypePrefix = "Trip."
	// ValidationEventSuffix marks subscription handshake messages.
	ValidationEventSuffix = ".SubscriptionValidationEvent"
	// DatabaseChangeEventSuffix marks change-feed notifications.
	DatabaseChangeEventSuffix = ".DatabaseChange"
)

// Envelope is the change-feed style wrapper: a typed event with a separate data payload.
type Envelope struct {
	ID          string          `json:"id,omitempty"`
	Subject     string          `json:"subject,omitempty"`
	EventType   string          `json:"eventType"`
	EventTime   time.Time       `json:"eventTime,omitempty"`
	DataVersion string          `json:"dataVersion,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// IsValidation reports whether the envelope is a subscription handshake.
func (e *Envelope) IsValidation() bool {
	return strings.HasSuffix(e.EventType, ValidationEventSuffix)
}

// ValidationData is the payload of a subscription handshake.
type ValidationData struct {
	ValidationCode string `json:"validationCode"`
	ValidationURL  string `json:"validationUrl,omitempty"`
}

// ValidationResponse is the synchronous answer to a handshake.
type ValidationResponse struct {
	ValidationResponse string `json:"validationResponse"`
}

// TripEventData is the flat payload of a published trip envelope.
type TripEventData struct {
	TripID       string     `json:"tripId"`
	TripNumber   string     `json:"tripNumber"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	DriverID     string     `json:"driverId"`
	VehicleID    string     `json:"vehicleId"`
	LastModified time.Time  `json:"lastModified"`
	Version      int64      `json:"version"`
	ChangeType   ChangeType `json:"changeType"`
	Timestamp    int64      `json:"timestamp,omitempty"`
}

// ChangeFeedData is the payload of a database change-feed notification.
type ChangeFeedData struct {
	Operation string          `json:"operation"`
	TableName string          `json:"tableName"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps a change event for publishing to envelope-speaking subscribers.
func NewEnvelope(ev *ChangeEvent) (*Envelope, error) {
	data := TripEventData{
		TripID:       ev.TripID,
		TripNumber:   ev.TripNumber,
		Status:       ev.Status,
		LastModified: ev.LastModified,
		Version:      ev.Version,
		ChangeType:   ev.ChangeType,
		Timestamp:    ev.Timestamp,
	}
	if ev.Trip != nil {
		data.StartTime = ev.Trip.StartTime
		data.EndTime = ev.Trip.EndTime
		data.DriverID = ev.Trip.DriverID
		data.VehicleID = ev.Trip.VehicleID
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:          uuid.NewString(),
		Subject:     "trips/" + ev.TripNumber,
		EventType:   EventTypePrefix + string(ev.ChangeType),
		EventTime:   time.Now().UTC(),
		DataVersion: EnvelopeDataVersion,
		Data:        raw,
	}, nil
}

// toChangeEvent rebuilds the canonical event from a flat trip payload.
// The change type falls back to the envelope's event type suffix.
func (d *TripEventData) toChangeEvent(eventType string) *ChangeEvent {
	changeType := d.ChangeType
	if changeType == "" {
		changeType = ParseChangeType(strings.TrimPrefix(eventType, EventTypePrefix))
	} else {
		changeType = ParseChangeType(string(changeType))
	}

	ev := &ChangeEvent{
		TripID:       d.TripID,
		TripNumber:   d.TripNumber,
		Status:       d.Status,
		LastModified: d.LastModified,
		Version:      d.Version,
		ChangeType:   changeType,
		Timestamp:    d.Timestamp,
	}
	if changeType != ChangeDelete {
		ev.Trip = &model.Trip{
			ID:           d.TripID,
			TripNumber:   d.TripNumber,
			Status:       d.Status,
			StartTime:    d.StartTime,
			EndTime:      d.EndTime,
			DriverID:     d.DriverID,
			VehicleID:    d.VehicleID,
			LastModified: d.LastModified,
			Version:      d.Version,
		}
	}
	return ev
}
