package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ActionRecord is one committed match transition as logged for the historian.
type ActionRecord struct {
	MatchCode string          `json:"match_code"`
	Version   int64           `json:"version"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}
