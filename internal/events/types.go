// Package events defines the canonical trip change event shared by every hop
// of the propagation pipeline, plus the envelope shapes it travels in.
package events

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syntrixbase/tripsync/pkg/model"
	"github.com/zeebo/blake3"
)

var (
	// ErrMalformedEvent is returned when a payload cannot be turned into a change event.
	ErrMalformedEvent = errors.New("malformed change event")
	// ErrUnknownChangeType is returned for events whose change type is not Insert, Update or Delete.
	ErrUnknownChangeType = errors.New("unknown change type")
)

// ChangeType is the kind of mutation a change event describes.
type ChangeType string

const (
	ChangeInsert  ChangeType = "Insert"
	ChangeUpdate  ChangeType = "Update"
	ChangeDelete  ChangeType = "Delete"
	ChangeUnknown ChangeType = "Unknown"
)

// ParseChangeType maps an operation name to a ChangeType, ignoring case.
// Change stream "replace" operations are treated as updates.
func ParseChangeType(op string) ChangeType {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "insert":
		return ChangeInsert
	case "update", "replace":
		return ChangeUpdate
	case "delete":
		return ChangeDelete
	default:
		return ChangeUnknown
	}
}

// IsValid reports whether c is one of Insert, Update or Delete.
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	default:
		return false
	}
}

// ChangeEvent is the immutable record of one trip mutation.
// Routing fields are duplicated at the top level so consumers can filter
// without touching the snapshot.
type ChangeEvent struct {
	Trip         *model.Trip `json:"trip"`
	TripID       string      `json:"tripId"`
	TripNumber   string      `json:"tripNumber"`
	Status       string      `json:"status"`
	LastModified time.Time   `json:"lastModified"`
	Version      int64       `json:"version"`
	ChangeType   ChangeType  `json:"changeType"`
	Timestamp    int64       `json:"timestamp,omitempty"` // Unix milliseconds
}

// NewChangeEvent builds an event from the post-mutation trip state.
// Delete events carry identifying fields only.
func NewChangeEvent(trip *model.Trip, changeType ChangeType) *ChangeEvent {
	ev := &ChangeEvent{
		TripID:       trip.ID,
		TripNumber:   trip.TripNumber,
		Status:       trip.Status,
		LastModified: trip.LastModified,
		Version:      trip.Version,
		ChangeType:   changeType,
		Timestamp:    time.Now().UnixMilli(),
	}
	if changeType != ChangeDelete {
		ev.Trip = trip.Clone()
	}
	return ev
}

// Validate checks that the event can be applied to the cache.
func (e *ChangeEvent) Validate() error {
	if strings.TrimSpace(e.TripNumber) == "" {
		return fmt.Errorf("%w: trip number is required", ErrMalformedEvent)
	}
	if !e.ChangeType.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownChangeType, e.ChangeType)
	}
	if e.ChangeType != ChangeDelete && e.Trip == nil {
		return fmt.Errorf("%w: %s event without trip snapshot", ErrMalformedEvent, e.ChangeType)
	}
	return nil
}

// Snapshot returns a copy of the embedded trip with routing fields filled in
// where the snapshot left them empty.
func (e *ChangeEvent) Snapshot() *model.Trip {
	if e.Trip == nil {
		return nil
	}
	t := e.Trip.Clone()
	if t.ID == "" {
		t.ID = e.TripID
	}
	if t.TripNumber == "" {
		t.TripNumber = e.TripNumber
	}
	if t.Status == "" {
		t.Status = e.Status
	}
	if t.Version == 0 {
		t.Version = e.Version
	}
	if t.LastModified.IsZero() {
		t.LastModified = e.LastModified
	}
	return t
}

// MessageID returns a deterministic id for the logical change, used for
// publish deduplication: hex(blake3(tripNumber/version/changeType)[:16]).
func (e *ChangeEvent) MessageID() string {
	key := e.TripNumber + "/" + strconv.FormatInt(e.Version, 10) + "/" + string(e.ChangeType)
	hash := blake3.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16])
}
