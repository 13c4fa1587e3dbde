package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Decode parses a change message in either accepted wire shape.
//
// A payload carrying both eventType and data is read as an envelope; its data is
// either a change-feed record (operation, tableName, row) or a flat trip payload.
// Anything else is read as a flat ChangeEvent. Field names match case-insensitively.
// The returned event is not validated; callers decide what to do with unknown
// change types.
func Decode(payload []byte) (*ChangeEvent, error) {
	var probe struct {
		EventType string          `json:"eventType"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if probe.EventType != "" && !isEmptyJSON(probe.Data) {
		return DecodeEnvelope(&Envelope{EventType: probe.EventType, Data: probe.Data})
	}

	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.TripNumber == "" && ev.Trip != nil {
		ev.TripNumber = ev.Trip.TripNumber
	}
	if ev.TripNumber == "" {
		return nil, fmt.Errorf("%w: trip number is required", ErrMalformedEvent)
	}
	ev.ChangeType = ParseChangeType(string(ev.ChangeType))
	return &ev, nil
}

// DecodeEnvelope converts an already parsed envelope to a change event.
func DecodeEnvelope(env *Envelope) (*ChangeEvent, error) {
	if env.IsValidation() {
		return nil, fmt.Errorf("%w: subscription validation is not a change", ErrMalformedEvent)
	}

	var body struct {
		TripEventData
		Operation string          `json:"operation"`
		TableName string          `json:"tableName"`
		Row       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if body.Operation != "" || !isEmptyJSON(body.Row) {
		var row Row
		if err := json.Unmarshal(body.Row, &row); err != nil {
			return nil, fmt.Errorf("%w: row: %v", ErrMalformedEvent, err)
		}
		return FromRow(body.Operation, row)
	}

	if strings.TrimSpace(body.TripNumber) == "" {
		return nil, fmt.Errorf("%w: trip number is required", ErrMalformedEvent)
	}
	return body.TripEventData.toChangeEvent(env.EventType), nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
