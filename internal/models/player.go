package models

import "github.com/google/uuid"

// TurnPlayer is one participant's standing in a turn_passing match.
type TurnPlayer struct {
	ID           uuid.UUID `json:"id"`
	Alive        bool      `json:"alive"`
	CorrectCount int       `json:"correctCount"`

	// ElapsedMs is the cumulative time this player held the object before acting or expiring.
	ElapsedMs int64 `json:"elapsedMs"`
}

// PlayerScore is one participant's cumulative result in a quiz_buzz match.
type PlayerScore struct {
	ID      uuid.UUID `json:"id"`
	Points  int       `json:"points"`
	Correct int       `json:"correct"`
	Wrong   int       `json:"wrong"`
}
