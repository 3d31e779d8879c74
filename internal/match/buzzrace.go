package match

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// buzz claims the right to answer the current question. The first claim per cursor wins; every
// later claim is rejected regardless of who sends it.
func buzz(m models.Match, actor uuid.UUID, p Payload, env Env) (Outcome, error) {
	st := m.State.QuizBuzz
	if p.Cursor != nil && *p.Cursor != st.Cursor {
		return Outcome{}, Reject(AlreadyClaimed, "question %d is already resolved", *p.Cursor)
	}
	if st.BuzzedBy != nil {
		return Outcome{}, Reject(AlreadyClaimed, "question %d already claimed by %s", st.Cursor, *st.BuzzedBy)
	}

	next := m.Clone()
	next.State.QuizBuzz.BuzzedBy = &actor
	return commit(next, env, Delta{Action: ActionBuzz, Actor: actorRef(actor)}), nil
}

func answer(m models.Match, actor uuid.UUID, p Payload, env Env) (Outcome, error) {
	st := m.State.QuizBuzz
	if p.Cursor != nil && *p.Cursor != st.Cursor {
		return Outcome{}, Reject(AlreadyClaimed, "question %d is already resolved", *p.Cursor)
	}
	if st.BuzzedBy == nil || *st.BuzzedBy != actor {
		return Outcome{}, Reject(NotAuthorizedForAction, "only the player who buzzed may answer")
	}
	if p.AnswerIndex == nil {
		return Outcome{}, Reject(InvalidPayload, "answer requires an answerIndex")
	}

	next := m.Clone()
	ns := next.State.QuizBuzz
	correct := ns.Items[ns.Cursor].IsCorrect(*p.AnswerIndex)
	sc := ns.Score(actor)
	if correct {
		sc.Points += env.Rules.BuzzCorrectPoints
		sc.Correct++
	} else {
		sc.Points += env.Rules.BuzzWrongPoints
		sc.Wrong++
	}
	ns.Cursor++
	ns.BuzzedBy = nil
	if ns.Exhausted() {
		complete(&next, topScorer(ns))
	}
	return commit(next, env, Delta{Action: ActionAnswer, Actor: actorRef(actor), Correct: &correct}), nil
}

// topScorer returns the unique highest scorer, or nil for a draw.
func topScorer(st *models.BuzzRaceState) *uuid.UUID {
	var best *models.PlayerScore
	tied := false
	for i := range st.Scores {
		s := &st.Scores[i]
		switch {
		case best == nil || s.Points > best.Points:
			best, tied = s, false
		case s.Points == best.Points:
			tied = true
		}
	}
	if best == nil || tied {
		return nil
	}
	id := best.ID
	return &id
}
