// Package ws implements the realtime channel: the websocket endpoint, the
// per-user connection hub and the JSON message protocol.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Inbound message types. Outbound types live in the service package next to
// their payloads, since the coordinator decides what gets broadcast.
const (
	MsgAuthenticate = "authenticate"
	MsgTimerStart   = "timer:start"
	MsgTimerStop    = "timer:stop"
	MsgUpdateStart  = "timer:update-start"
	MsgRequestState = "timer:request-state"

	// MsgError goes only to the originating connection, never broadcast.
	MsgError = "timer:error"
)

// Frame is the wire envelope for every message in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthenticatePayload carries the handshake. The timezone is optional and
// only affects how conflict messages are rendered; a bad value falls back
// to UTC.
type AuthenticatePayload struct {
	Token    string `json:"token"`
	Timezone string `json:"timezone,omitempty"`
}

// StartPayload requests tracking of a task.
type StartPayload struct {
	TaskID uuid.UUID `json:"taskId"`
}

// StopPayload requests finalization. TaskID and the client-computed duration
// are advisory; the server recomputes from its own start instant.
type StopPayload struct {
	TaskID          uuid.UUID `json:"taskId"`
	DurationSeconds int64     `json:"duration,omitempty"`
}

// UpdateStartPayload shifts the running timer's start.
type UpdateStartPayload struct {
	TaskID       uuid.UUID `json:"taskId"`
	NewStartTime time.Time `json:"newStartTime"`
}

// ErrorPayload reports a failed action to the connection that requested it.
type ErrorPayload struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Encode marshals a frame with the given payload.
func Encode(typ string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", typ, err)
		}
		data = b
	}
	return json.Marshal(Frame{Type: typ, Data: data})
}

// DecodeData unmarshals a frame's data into v.
func (f *Frame) DecodeData(v any) error {
	if len(f.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", f.Type, err)
	}
	return nil
}
