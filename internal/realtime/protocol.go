package realtime

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/syntrixbase/tripsync/internal/events"
)

// Message types
const (
	TypeJoin     = "join"
	TypeJoinAck  = "join_ack"
	TypeLeave    = "leave"
	TypeLeaveAck = "leave_ack"
	TypeEvent    = "event"
	TypeError    = "error"
)

// GroupPrefix prefixes every trip group name.
const GroupPrefix = "trip-"

// GroupName returns the fanout group for a trip number.
func GroupName(tripNumber string) string {
	return GroupPrefix + tripNumber
}

// BaseMessage is the envelope for all messages
type BaseMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// GroupPayload is the argument of join and leave. It may also be sent as a
// bare JSON string holding the group name.
type GroupPayload struct {
	Group  string `json:"group"`
	Filter string `json:"filter,omitempty"` // CEL over `event`, join only
}

// UnmarshalJSON accepts either "trip-T1" or {"group": "trip-T1", ...}.
func (p *GroupPayload) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		p.Group = name
		return nil
	}
	type plain GroupPayload
	return json.Unmarshal(data, (*plain)(p))
}

func (p GroupPayload) validate() error {
	if strings.TrimSpace(p.Group) == "" {
		return errors.New("group is required")
	}
	return nil
}

// EventPayload (Server -> Client)
type EventPayload struct {
	Group string              `json:"group"`
	Event *events.ChangeEvent `json:"event"`
}

// ErrorPayload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustMarshal(v interface{}) []byte {
	b, _ := json.Marshal(v) // internal types only
	return b
}
