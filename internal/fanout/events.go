// internal/fanout/events.go
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventMatchUpdate = "match-update"
	EventMatchStatus = "match-status"
	EventRoomUpdate  = "room-update"
	EventChatMessage = "chat-message"
	EventError       = "error"
)

// Event is the envelope every room subscriber receives.
type Event struct {
	Type      string          `json:"type"`
	MatchCode string          `json:"matchCode"`
	Version   int64           `json:"version,omitempty"`
	Action    string          `json:"action,omitempty"`
	Actor     *uuid.UUID      `json:"actor,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	At        int64           `json:"at"`
}

// NewEvent builds an envelope for code with data marshalled into the payload.
func NewEvent(typ, code string, at time.Time, data any) (Event, error) {
	ev := Event{Type: typ, MatchCode: code, At: at.UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return ev, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// Publisher delivers an event to every subscriber of the event's room. It carries no authority:
// callers publish only after the underlying change is durable.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RoomUpdate is the payload of room-update events.
type RoomUpdate struct {
	Members []uuid.UUID `json:"members"`
	Joined  *uuid.UUID  `json:"joined,omitempty"`
	Left    *uuid.UUID  `json:"left,omitempty"`
}

// ChatMessage is the payload of chat-message events.
type ChatMessage struct {
	From uuid.UUID `json:"from"`
	Text string    `json:"text"`
}

// MaxChatLength caps the characters of one chat message.
const MaxChatLength = 500
