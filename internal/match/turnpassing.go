package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// pass hands the object to targetId after the holder answered the current question correctly.
// The server grades answerIndex; an incorrect grade is applied as wrong() so the answer key cannot
// be probed through rejected passes. The target is checked before grading for the same reason.
func pass(m models.Match, actor uuid.UUID, p Payload, env Env) (Outcome, error) {
	st := m.State.TurnPassing
	if err := checkHolder(st, actor, ActionPass, p); err != nil {
		return Outcome{}, err
	}
	if p.TargetID == nil {
		return Outcome{}, Reject(InvalidTarget, "pass requires a targetId")
	}
	target := *p.TargetID
	if target == actor {
		return Outcome{}, Reject(InvalidTarget, "cannot pass to yourself")
	}
	tp := st.Player(target)
	if tp == nil {
		return Outcome{}, Reject(InvalidTarget, "target %s is not a participant", target)
	}
	if !tp.Alive {
		return Outcome{}, Reject(InvalidTarget, "target %s has been eliminated", target)
	}
	if p.AnswerIndex == nil {
		return Outcome{}, Reject(InvalidPayload, "pass requires an answerIndex")
	}

	if !st.Items[st.Cursor].IsCorrect(*p.AnswerIndex) {
		return keep(m, actor, env, false), nil
	}

	next := m.Clone()
	ns := next.State.TurnPassing
	holder := ns.Player(actor)
	holder.CorrectCount++
	holder.ElapsedMs += heldFor(ns, env)
	ns.Cursor++
	prev := actor
	ns.PrevHolderID = &prev
	ns.HolderID = &target
	armFuse(ns, env, env.Rules.HoldWindow)
	if ns.Exhausted() {
		complete(&next, exhaustionWinner(ns))
	}
	correct := true
	return commit(next, env, Delta{Action: ActionPass, Actor: actorRef(actor), Correct: &correct}), nil
}

// wrong consumes the current question while the holder keeps the object with a full window.
func wrong(m models.Match, actor uuid.UUID, p Payload, env Env) (Outcome, error) {
	if err := checkHolder(m.State.TurnPassing, actor, ActionWrong, p); err != nil {
		return Outcome{}, err
	}
	return keep(m, actor, env, true), nil
}

func keep(m models.Match, actor uuid.UUID, env Env, explicit bool) Outcome {
	next := m.Clone()
	ns := next.State.TurnPassing
	ns.Player(actor).ElapsedMs += heldFor(ns, env)
	ns.Cursor++
	armFuse(ns, env, env.Rules.HoldWindow)
	if ns.Exhausted() {
		complete(&next, exhaustionWinner(ns))
	}
	d := Delta{Action: ActionWrong, Actor: actorRef(actor)}
	if !explicit {
		correct := false
		d.Correct = &correct
	}
	return commit(next, env, d)
}

// Expire eliminates the holder once the server deadline has passed. It reports false when the
// match is not a running turn_passing game or the deadline is still ahead; cursor never moves.
func Expire(m models.Match, env Env) (Outcome, bool) {
	st := m.State.TurnPassing
	if m.Status != models.StatusActive || st == nil || st.HolderID == nil {
		return Outcome{Match: m}, false
	}
	if env.nowMs() < st.DeadlineEpochMs {
		return Outcome{Match: m}, false
	}

	next := m.Clone()
	ns := next.State.TurnPassing
	eliminated := *ns.HolderID
	loser := ns.Player(eliminated)
	loser.Alive = false
	loser.ElapsedMs += ns.WindowMs
	ns.Eliminations++
	ns.PrevHolderID = &eliminated

	alive := ns.AlivePlayers()
	if len(alive) <= 1 {
		var winner *uuid.UUID
		if len(alive) == 1 {
			winner = &alive[0]
		}
		complete(&next, winner)
	} else {
		holder := alive[env.pick(len(alive))]
		ns.HolderID = &holder
		armFuse(ns, env, escalated(env.Rules))
	}
	return commit(next, env, Delta{Action: ActionExpire, Eliminated: &eliminated}), true
}

// checkHolder is the shared predicate chain for pass and wrong.
func checkHolder(st *models.TurnPassingState, actor uuid.UUID, action Action, p Payload) error {
	if p.Cursor != nil && *p.Cursor != st.Cursor {
		return Reject(StaleHolder, "%s targets question %d but the match is on %d", action, *p.Cursor, st.Cursor)
	}
	if st.IsHolder(actor) {
		return nil
	}
	if pl := st.Player(actor); pl != nil && !pl.Alive {
		return Reject(StaleHolder, "hold already expired for %s", actor)
	}
	if st.HandedOff(actor) {
		return Reject(StaleHolder, "%s already handed the object off", actor)
	}
	return Reject(NotAuthorizedForAction, "only the current holder may %s", action)
}

// exhaustionWinner picks the alive player with the most correct answers; ties go to the lowest
// cumulative hold time, and a remaining tie is a draw.
func exhaustionWinner(st *models.TurnPassingState) *uuid.UUID {
	var best *models.TurnPlayer
	tied := false
	for i := range st.Players {
		p := &st.Players[i]
		if !p.Alive {
			continue
		}
		switch {
		case best == nil:
			best, tied = p, false
		case p.CorrectCount > best.CorrectCount:
			best, tied = p, false
		case p.CorrectCount == best.CorrectCount:
			if p.ElapsedMs < best.ElapsedMs {
				best, tied = p, false
			} else if p.ElapsedMs == best.ElapsedMs {
				tied = true
			}
		}
	}
	if best == nil || tied {
		return nil
	}
	id := best.ID
	return &id
}

func armFuse(st *models.TurnPassingState, env Env, window time.Duration) {
	now := env.nowMs()
	st.WindowMs = window.Milliseconds()
	st.HoldStartedEpochMs = now
	st.DeadlineEpochMs = now + st.WindowMs
}

func heldFor(st *models.TurnPassingState, env Env) int64 {
	held := env.nowMs() - st.HoldStartedEpochMs
	if held < 0 {
		return 0
	}
	if held > st.WindowMs {
		return st.WindowMs
	}
	return held
}

// escalated returns the post-elimination window, which is always shorter than the hold window.
func escalated(r Rules) time.Duration {
	if r.EscalatedWindow <= 0 || r.EscalatedWindow >= r.HoldWindow {
		return r.HoldWindow / 2
	}
	return r.EscalatedWindow
}
