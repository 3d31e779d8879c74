package match

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// accept records an invitee's acceptance; the match goes active once every invitee accepted.
func accept(m models.Match, actor uuid.UUID, env Env) (Outcome, error) {
	if m.Status != models.StatusPending {
		return Outcome{}, Reject(InvalidMatchStatus, "cannot accept a match that is %s", m.Status)
	}
	if actor == m.Host() {
		return Outcome{}, Reject(NotAuthorizedForAction, "challenger cannot accept their own challenge")
	}
	if m.HasAccepted(actor) {
		return Outcome{Match: m}, nil
	}

	next := m.Clone()
	next.Accepted = append(next.Accepted, actor)
	if len(next.Accepted) == len(next.Invitees()) {
		next.Status = models.StatusActive
	}
	return commit(next, env, Delta{Action: ActionAccept, Actor: actorRef(actor)}), nil
}

func decline(m models.Match, actor uuid.UUID, env Env) (Outcome, error) {
	if m.Status != models.StatusPending {
		return Outcome{}, Reject(InvalidMatchStatus, "cannot decline a match that is %s", m.Status)
	}
	if actor == m.Host() {
		return Outcome{}, Reject(NotAuthorizedForAction, "only an invited participant may decline")
	}

	next := m.Clone()
	next.Status = models.StatusDeclined
	return commit(next, env, Delta{Action: ActionDecline, Actor: actorRef(actor)}), nil
}

// start materializes the mode state exactly once. A repeated start is a no-op success.
func start(m models.Match, actor uuid.UUID, p Payload, env Env) (Outcome, error) {
	if m.Status != models.StatusActive {
		return Outcome{}, Reject(InvalidMatchStatus, "cannot start a match that is %s", m.Status)
	}
	if actor != m.Host() {
		return Outcome{}, Reject(NotAuthorizedForAction, "only the host may start the match")
	}
	if m.State.Started() {
		return Outcome{Match: m}, nil
	}

	items := playable(p.Questions)
	if len(items) == 0 {
		return Outcome{}, Reject(QuestionSupplyUnavailable, "no playable questions supplied")
	}
	if m.QuestionCount > 0 && len(items) > m.QuestionCount {
		items = items[:m.QuestionCount]
	}

	next := m.Clone()
	switch m.Mode {
	case models.ModeTurnPassing:
		st := &models.TurnPassingState{Items: items}
		for _, id := range m.Participants {
			st.Players = append(st.Players, models.TurnPlayer{ID: id, Alive: true})
		}
		holder := m.Participants[env.pick(len(m.Participants))]
		st.HolderID = &holder
		armFuse(st, env, env.Rules.HoldWindow)
		next.State.TurnPassing = st
	case models.ModeQuizBuzz:
		st := &models.BuzzRaceState{Items: items}
		for _, id := range m.Participants {
			st.Scores = append(st.Scores, models.PlayerScore{ID: id})
		}
		next.State.QuizBuzz = st
	default:
		return Outcome{}, Reject(InvalidPayload, "unsupported mode %q", m.Mode)
	}
	return commit(next, env, Delta{Action: ActionStart, Actor: actorRef(actor)}), nil
}

// Abandon forces a live match into its terminal state after every participant left the room:
// pending becomes declined, active becomes completed without a winner. Terminal matches report
// false so repeated notifications are harmless.
func Abandon(m models.Match, env Env) (Outcome, bool) {
	next := m.Clone()
	switch m.Status {
	case models.StatusPending:
		next.Status = models.StatusDeclined
	case models.StatusActive:
		complete(&next, nil)
	default:
		return Outcome{Match: m}, false
	}
	return commit(next, env, Delta{Action: ActionAbandon}), true
}

// complete moves the match to completed and sets the winner exactly once. A nil winner is a draw.
func complete(m *models.Match, winner *uuid.UUID) {
	m.Status = models.StatusCompleted
	m.WinnerID = winner
	if st := m.State.TurnPassing; st != nil {
		st.HolderID = nil
		st.DeadlineEpochMs = 0
	}
	if st := m.State.QuizBuzz; st != nil {
		st.BuzzedBy = nil
	}
}

func playable(qs []models.Question) []models.Question {
	out := make([]models.Question, 0, len(qs))
	for _, q := range qs {
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out
}
