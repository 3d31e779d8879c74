// internal/models/match.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchMode selects the rule set that governs in-match actions. Immutable after creation.
type MatchMode string

const (
	ModeQuizBuzz    MatchMode = "quiz_buzz"
	ModeTurnPassing MatchMode = "turn_passing"
)

// Valid reports whether the mode is one the coordinator knows how to run.
func (m MatchMode) Valid() bool {
	return m == ModeQuizBuzz || m == ModeTurnPassing
}

// MaxPlayers returns the participant ceiling for the mode.
func (m MatchMode) MaxPlayers() int {
	if m == ModeQuizBuzz {
		return 2
	}
	return 8
}

// MatchStatus is the lifecycle position of a match.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusActive    MatchStatus = "active"
	StatusCompleted MatchStatus = "completed"
	StatusDeclined  MatchStatus = "declined"
)

// Terminal reports whether no further transition is possible.
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined
}

// Match is a single contest instance between fixed participants under one mode.
type Match struct {
	Code string    `json:"code"`
	Mode MatchMode `json:"mode"`

	// Participants is ordered; index 0 is the challenger (host).
	Participants []uuid.UUID `json:"participants"`
	// Accepted holds the invitees that have accepted so far.
	Accepted []uuid.UUID `json:"accepted,omitempty"`

	Status  MatchStatus `json:"status"`
	Version int64       `json:"version"`

	Topic         string `json:"topic,omitempty"`
	Certification string `json:"certification,omitempty"`
	QuestionCount int    `json:"questionCount"`

	State    MatchState `json:"state"`
	WinnerID *uuid.UUID `json:"winnerId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MatchState is the mode-specific payload. At most one field is set, and only after start.
type MatchState struct {
	TurnPassing *TurnPassingState `json:"turnPassing,omitempty"`
	QuizBuzz    *BuzzRaceState    `json:"quizBuzz,omitempty"`
}

// Started reports whether the mode state has been materialized.
func (s MatchState) Started() bool {
	return s.TurnPassing != nil || s.QuizBuzz != nil
}

// Host returns the challenger, who is the only participant allowed to start the match.
func (m *Match) Host() uuid.UUID {
	if len(m.Participants) == 0 {
		return uuid.Nil
	}
	return m.Participants[0]
}

// IsParticipant reports whether id is one of the fixed participants.
func (m *Match) IsParticipant(id uuid.UUID) bool {
	for _, p := range m.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Invitees returns every participant except the host.
func (m *Match) Invitees() []uuid.UUID {
	if len(m.Participants) < 2 {
		return nil
	}
	return m.Participants[1:]
}

// HasAccepted reports whether the invitee already accepted.
func (m *Match) HasAccepted(id uuid.UUID) bool {
	for _, a := range m.Accepted {
		if a == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can derive a new snapshot without aliasing the old one.
func (m Match) Clone() Match {
	out := m
	out.Participants = append([]uuid.UUID(nil), m.Participants...)
	if m.Accepted != nil {
		out.Accepted = append([]uuid.UUID(nil), m.Accepted...)
	}
	if m.WinnerID != nil {
		w := *m.WinnerID
		out.WinnerID = &w
	}
	if m.State.TurnPassing != nil {
		tp := m.State.TurnPassing.Clone()
		out.State.TurnPassing = &tp
	}
	if m.State.QuizBuzz != nil {
		qb := m.State.QuizBuzz.Clone()
		out.State.QuizBuzz = &qb
	}
	return out
}
