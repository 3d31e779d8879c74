package models

import "github.com/google/uuid"

// TurnPassingState is the hot-potato payload. Exactly one alive player holds the object while the
// match is active; HolderID is nil once the match completes.
type TurnPassingState struct {
	Items  []Question `json:"items"`
	Cursor int        `json:"cursor"`

	HolderID           *uuid.UUID `json:"holderId,omitempty"`
	// PrevHolderID is whoever gave up the object at the last hand-off.
	PrevHolderID       *uuid.UUID `json:"prevHolderId,omitempty"`
	DeadlineEpochMs    int64      `json:"deadlineEpochMs"`
	HoldStartedEpochMs int64      `json:"holdStartedEpochMs"`
	WindowMs           int64      `json:"windowMs"`
	Eliminations       int        `json:"eliminations"`

	Players []TurnPlayer `json:"players"`
}

// Player returns a pointer into Players for id, or nil.
func (s *TurnPassingState) Player(id uuid.UUID) *TurnPlayer {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// AlivePlayers returns the ids of players still in the game, in participant order.
func (s *TurnPassingState) AlivePlayers() []uuid.UUID {
	var out []uuid.UUID
	for _, p := range s.Players {
		if p.Alive {
			out = append(out, p.ID)
		}
	}
	return out
}

// HandedOff reports whether id gave up the object at the last hand-off.
func (s *TurnPassingState) HandedOff(id uuid.UUID) bool {
	return s.PrevHolderID != nil && *s.PrevHolderID == id
}

// IsHolder reports whether id currently holds the object.
func (s *TurnPassingState) IsHolder(id uuid.UUID) bool {
	return s.HolderID != nil && *s.HolderID == id
}

// Exhausted reports whether every question has been consumed.
func (s *TurnPassingState) Exhausted() bool {
	return s.Cursor >= len(s.Items)
}

func (s TurnPassingState) Clone() TurnPassingState {
	out := s
	out.Items = append([]Question(nil), s.Items...)
	out.Players = append([]TurnPlayer(nil), s.Players...)
	if s.HolderID != nil {
		h := *s.HolderID
		out.HolderID = &h
	}
	if s.PrevHolderID != nil {
		prev := *s.PrevHolderID
		out.PrevHolderID = &prev
	}
	return out
}

// BuzzRaceState is the quiz_buzz payload. BuzzedBy is claimed at most once per cursor.
type BuzzRaceState struct {
	Items    []Question    `json:"items"`
	Cursor   int           `json:"cursor"`
	BuzzedBy *uuid.UUID    `json:"buzzedBy,omitempty"`
	Scores   []PlayerScore `json:"scores"`
}

// Score returns a pointer into Scores for id, or nil.
func (s *BuzzRaceState) Score(id uuid.UUID) *PlayerScore {
	for i := range s.Scores {
		if s.Scores[i].ID == id {
			return &s.Scores[i]
		}
	}
	return nil
}

// Exhausted reports whether every question has been consumed.
func (s *BuzzRaceState) Exhausted() bool {
	return s.Cursor >= len(s.Items)
}

func (s BuzzRaceState) Clone() BuzzRaceState {
	out := s
	out.Items = append([]Question(nil), s.Items...)
	out.Scores = append([]PlayerScore(nil), s.Scores...)
	if s.BuzzedBy != nil {
		b := *s.BuzzedBy
		out.BuzzedBy = &b
	}
	return out
}
