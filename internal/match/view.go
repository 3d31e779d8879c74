package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// QuestionView is the current question without its answer key.
type QuestionView struct {
	Index      int      `json:"index"`
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Topic      string   `json:"topic,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// PlayerView is one participant's standing from the viewer's perspective.
type PlayerView struct {
	PlayerID     uuid.UUID `json:"playerId"`
	IsYou        bool      `json:"isYou"`
	IsHost       bool      `json:"isHost"`
	Accepted     bool      `json:"accepted"`
	Alive        *bool     `json:"alive,omitempty"`
	IsHolder     bool      `json:"isHolder,omitempty"`
	CorrectCount int       `json:"correctCount"`
	Points       *int      `json:"points,omitempty"`
	ElapsedMs    int64     `json:"elapsedMs,omitempty"`
}

// MatchView is the authoritative snapshot resolved for a single caller.
type MatchView struct {
	Code       string             `json:"code"`
	Mode       models.MatchMode   `json:"mode"`
	Status     models.MatchStatus `json:"status"`
	Version    int64              `json:"version"`
	MyPlayerID uuid.UUID          `json:"myPlayerId"`
	HostID     uuid.UUID          `json:"hostId"`

	Started        bool          `json:"started"`
	Cursor         int           `json:"cursor"`
	TotalQuestions int           `json:"totalQuestions"`
	Question       *QuestionView `json:"question,omitempty"`

	HolderID        *uuid.UUID `json:"holderId,omitempty"`
	IAmHolder       bool       `json:"iAmHolder"`
	DeadlineEpochMs int64      `json:"deadlineEpochMs,omitempty"`
	WindowMs        int64      `json:"windowMs,omitempty"`

	// HoldExpired means the deadline passed but the elimination is not committed yet. The holder
	// is shown eliminated; the next action (or explode) commits it and picks the new holder.
	HoldExpired bool `json:"holdExpired,omitempty"`

	BuzzedBy   *uuid.UUID `json:"buzzedBy,omitempty"`
	ICanBuzz   bool       `json:"iCanBuzz"`
	ICanAnswer bool       `json:"iCanAnswer"`

	WinnerID *uuid.UUID `json:"winnerId,omitempty"`
	IWon     bool       `json:"iWon"`
	Draw     bool       `json:"draw"`

	ServerTimeMs int64        `json:"serverTimeMs"`
	Players      []PlayerView `json:"players"`
}

// ViewFor builds the caller-relative snapshot. Answer keys are never included.
func ViewFor(m models.Match, viewer uuid.UUID, now time.Time) MatchView {
	v := MatchView{
		Code:         m.Code,
		Mode:         m.Mode,
		Status:       m.Status,
		Version:      m.Version,
		MyPlayerID:   viewer,
		HostID:       m.Host(),
		Started:      m.State.Started(),
		WinnerID:     m.WinnerID,
		ServerTimeMs: now.UnixMilli(),
	}
	if m.Status == models.StatusCompleted {
		v.IWon = m.WinnerID != nil && *m.WinnerID == viewer
		v.Draw = m.WinnerID == nil
	}

	for i, id := range m.Participants {
		v.Players = append(v.Players, PlayerView{
			PlayerID: id,
			IsYou:    id == viewer,
			IsHost:   i == 0,
			Accepted: i == 0 || m.HasAccepted(id) || m.Status != models.StatusPending,
		})
	}

	switch {
	case m.State.TurnPassing != nil:
		st := m.State.TurnPassing
		v.Cursor, v.TotalQuestions = st.Cursor, len(st.Items)
		v.Question = questionAt(st.Items, st.Cursor)
		v.HolderID = st.HolderID
		v.IAmHolder = st.IsHolder(viewer)
		v.DeadlineEpochMs = st.DeadlineEpochMs
		v.WindowMs = st.WindowMs
		for i := range v.Players {
			if p := st.Player(v.Players[i].PlayerID); p != nil {
				alive := p.Alive
				v.Players[i].Alive = &alive
				v.Players[i].CorrectCount = p.CorrectCount
				v.Players[i].ElapsedMs = p.ElapsedMs
				v.Players[i].IsHolder = st.IsHolder(p.ID)
			}
		}
		if m.Status == models.StatusActive && st.HolderID != nil && now.UnixMilli() >= st.DeadlineEpochMs {
			projectExpiry(&v, *st.HolderID)
		}
	case m.State.QuizBuzz != nil:
		st := m.State.QuizBuzz
		v.Cursor, v.TotalQuestions = st.Cursor, len(st.Items)
		v.Question = questionAt(st.Items, st.Cursor)
		v.BuzzedBy = st.BuzzedBy
		live := m.Status == models.StatusActive && !st.Exhausted()
		v.ICanBuzz = live && st.BuzzedBy == nil
		v.ICanAnswer = live && st.BuzzedBy != nil && *st.BuzzedBy == viewer
		for i := range v.Players {
			if s := st.Score(v.Players[i].PlayerID); s != nil {
				pts := s.Points
				v.Players[i].Points = &pts
				v.Players[i].CorrectCount = s.Correct
			}
		}
	}
	if m.Status != models.StatusActive {
		v.Question = nil
	}
	return v
}

// projectExpiry shows the overdue holder as eliminated without choosing a successor.
func projectExpiry(v *MatchView, holder uuid.UUID) {
	v.HoldExpired = true
	v.HolderID = nil
	v.IAmHolder = false
	for i := range v.Players {
		if v.Players[i].PlayerID == holder {
			dead := false
			v.Players[i].Alive = &dead
			v.Players[i].IsHolder = false
		}
	}
}

func questionAt(items []models.Question, cursor int) *QuestionView {
	if cursor < 0 || cursor >= len(items) {
		return nil
	}
	q := items[cursor]
	return &QuestionView{
		Index:      cursor,
		ID:         q.ID,
		Text:       q.Text,
		Options:    append([]string(nil), q.Options...),
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
	}
}
