package match

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// Validate evaluates one requested action against a snapshot. It is synchronous, performs no I/O
// and never mutates m. Every failure it returns is a *Rejection.
func Validate(m models.Match, actor uuid.UUID, action Action, p Payload, env Env) (Outcome, error) {
	if actor == uuid.Nil {
		return Outcome{}, Reject(NotAuthenticated, "no caller identity")
	}
	if !m.IsParticipant(actor) {
		return Outcome{}, Reject(NotParticipant, "caller is not part of match %s", m.Code)
	}
	if m.Status.Terminal() {
		return Outcome{}, Reject(InvalidMatchStatus, "match finished (%s)", m.Status)
	}

	switch action {
	case ActionAccept:
		return accept(m, actor, env)
	case ActionDecline:
		return decline(m, actor, env)
	case ActionStart:
		return start(m, actor, p, env)
	}

	mode := action.Mode()
	if mode == "" {
		return Outcome{}, Reject(InvalidPayload, "unknown action %q", action)
	}
	if mode != m.Mode {
		return Outcome{}, Reject(InvalidPayload, "action %s is not part of mode %s", action, m.Mode)
	}
	if m.Status != models.StatusActive {
		return Outcome{}, Reject(InvalidMatchStatus, "match is %s", m.Status)
	}
	if !m.State.Started() {
		return Outcome{}, Reject(InvalidMatchStatus, "match has not been started")
	}

	switch action {
	case ActionPass:
		return pass(m, actor, p, env)
	case ActionWrong:
		return wrong(m, actor, p, env)
	case ActionExplode, ActionExpire:
		out, _ := Expire(m, env)
		return out, nil
	case ActionBuzz:
		return buzz(m, actor, p, env)
	case ActionAnswer:
		return answer(m, actor, p, env)
	}
	return Outcome{}, Reject(InvalidPayload, "unknown action %q", action)
}

// Apply evaluates the lazy expiry check first and then the requested action against the
// post-expiry snapshot. Each returned outcome is one version to commit, in order. Steps may be
// non-empty even when err is set: an expiry that fired is committed on its own.
func Apply(m models.Match, actor uuid.UUID, action Action, p Payload, env Env) ([]Outcome, error) {
	if !m.IsParticipant(actor) {
		_, err := Validate(m, actor, action, p, env)
		return nil, err
	}

	var steps []Outcome
	if exp, fired := Expire(m, env); fired {
		steps = append(steps, exp)
		if action == ActionPass || action == ActionWrong {
			if exp.Delta.Eliminated != nil && *exp.Delta.Eliminated == actor {
				return steps, Reject(StaleHolder, "hold expired before %s arrived", action)
			}
		}
		if action == ActionExplode || action == ActionExpire {
			return steps, nil
		}
		m = exp.Match
	}

	out, err := Validate(m, actor, action, p, env)
	if err != nil {
		return steps, err
	}
	if out.Changed {
		steps = append(steps, out)
	}
	return steps, nil
}

// commit stamps next as the successor version of its predecessor and completes the delta from
// the resulting state.
func commit(next models.Match, env Env, d Delta) Outcome {
	next.Version++
	next.UpdatedAt = env.Now
	d.Status = next.Status
	d.WinnerID = next.WinnerID

	if st := next.State.TurnPassing; st != nil {
		c := st.Cursor
		d.Cursor = &c
		d.HolderID = st.HolderID
		d.DeadlineEpochMs = st.DeadlineEpochMs
		d.WindowMs = st.WindowMs
	}
	if st := next.State.QuizBuzz; st != nil {
		c := st.Cursor
		d.Cursor = &c
		d.BuzzedBy = st.BuzzedBy
	}
	return Outcome{Match: next, Changed: true, Delta: d}
}

func actorRef(id uuid.UUID) *uuid.UUID {
	return &id
}
