package match

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passCorrectly has the current holder pass to target with the right answer.
func passCorrectly(t *testing.T, m models.Match, target uuid.UUID, env Env) models.Match {
	t.Helper()
	st := m.State.TurnPassing
	require.NotNil(t, st.HolderID)
	key := st.Items[st.Cursor].CorrectIndex
	out, err := Validate(m, *st.HolderID, ActionPass, Payload{TargetID: &target, AnswerIndex: &key}, env)
	require.NoError(t, err)
	require.True(t, out.Changed)
	return out.Match
}

func other(m models.Match, id uuid.UUID) uuid.UUID {
	for _, p := range m.Participants {
		if p != id {
			return p
		}
	}
	return uuid.Nil
}

func TestTurnPassing_TimeoutOnLastQuestionBeatsCorrectCount(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	a := m.Host()
	b := other(m, a)

	now := t0
	for i := 0; i < 4; i++ {
		now = now.Add(2 * time.Second)
		holder := *m.State.TurnPassing.HolderID
		m = passCorrectly(t, m, other(m, holder), envAt(now))
	}
	st := m.State.TurnPassing
	require.Equal(t, 4, st.Cursor)
	require.Equal(t, a, *st.HolderID)
	require.Equal(t, models.StatusActive, m.Status)

	late := envAt(now.Add(16 * time.Second))
	steps, err := Apply(m, b, ActionExplode, Payload{}, late)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	final := steps[0].Match
	assert.Equal(t, models.StatusCompleted, final.Status)
	require.NotNil(t, final.WinnerID)
	assert.Equal(t, b, *final.WinnerID)
	assert.Equal(t, 4, final.State.TurnPassing.Cursor, "expiry never consumes a question")
	assert.Nil(t, final.State.TurnPassing.HolderID)
	assert.Equal(t, a, *steps[0].Delta.Eliminated)
}

func TestTurnPassing_ExhaustionByCorrectPasses(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	a := m.Host()
	b := other(m, a)

	// a answers 3 (q0, q2, q4) and b answers 2 (q1, q3).
	now := t0
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		holder := *m.State.TurnPassing.HolderID
		m = passCorrectly(t, m, other(m, holder), envAt(now))
	}

	assert.Equal(t, models.StatusCompleted, m.Status)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, a, *m.WinnerID)
	assert.Equal(t, 3, m.State.TurnPassing.Player(a).CorrectCount)
	assert.Equal(t, 2, m.State.TurnPassing.Player(b).CorrectCount)
}

func TestTurnPassing_EqualCorrectCountFallsBackToHoldTime(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 4)
	a := m.Host()
	b := other(m, a)

	// a holds 1s each time, b holds 3s; both answer two questions.
	now := t0
	for i := 0; i < 4; i++ {
		holder := *m.State.TurnPassing.HolderID
		if holder == a {
			now = now.Add(time.Second)
		} else {
			now = now.Add(3 * time.Second)
		}
		m = passCorrectly(t, m, other(m, holder), envAt(now))
	}

	require.Equal(t, models.StatusCompleted, m.Status)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, a, *m.WinnerID)
	assert.Equal(t, int64(2000), m.State.TurnPassing.Player(a).ElapsedMs)
	assert.Equal(t, int64(6000), m.State.TurnPassing.Player(b).ElapsedMs)
}

func TestTurnPassing_FullTieIsDraw(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 2)
	now := t0
	for i := 0; i < 2; i++ {
		now = now.Add(time.Second)
		holder := *m.State.TurnPassing.HolderID
		m = passCorrectly(t, m, other(m, holder), envAt(now))
	}
	assert.Equal(t, models.StatusCompleted, m.Status)
	assert.Nil(t, m.WinnerID)
}

func TestPass_InvalidTargets(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 3, 5)
	holder := m.Host()
	key := m.State.TurnPassing.Items[0].CorrectIndex
	stranger := uuid.New()

	cases := map[string]*uuid.UUID{
		"missing":         nil,
		"self":            &holder,
		"non participant": &stranger,
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			before := m.Clone()
			_, err := Validate(m, holder, ActionPass, Payload{TargetID: target, AnswerIndex: &key}, envAt(t0))
			requireKind(t, err, InvalidTarget)
			assert.Equal(t, before, m)
		})
	}

	t.Run("eliminated", func(t *testing.T) {
		// The host times out; the next holder tries to pass back to them.
		steps, err := Apply(m, m.Participants[1], ActionExplode, Payload{}, envAt(t0.Add(15*time.Second)))
		require.NoError(t, err)
		require.Len(t, steps, 1)
		next := steps[0].Match
		nh := *next.State.TurnPassing.HolderID
		k := next.State.TurnPassing.Items[0].CorrectIndex
		_, err = Validate(next, nh, ActionPass, Payload{TargetID: &holder, AnswerIndex: &k}, envAt(t0.Add(16*time.Second)))
		requireKind(t, err, InvalidTarget)
	})
}

func TestPass_RequiresAnswerIndex(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	target := m.Participants[1]
	_, err := Validate(m, m.Host(), ActionPass, Payload{TargetID: &target}, envAt(t0))
	requireKind(t, err, InvalidPayload)
}

func TestPass_IncorrectAnswerActsAsWrong(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	target := m.Participants[1]
	bad := m.State.TurnPassing.Items[0].CorrectIndex + 1

	now := t0.Add(4 * time.Second)
	out, err := Validate(m, m.Host(), ActionPass, Payload{TargetID: &target, AnswerIndex: &bad}, envAt(now))
	require.NoError(t, err)

	st := out.Match.State.TurnPassing
	assert.Equal(t, m.Host(), *st.HolderID, "holder keeps the object")
	assert.Equal(t, 1, st.Cursor)
	assert.Equal(t, now.UnixMilli()+15_000, st.DeadlineEpochMs)
	assert.Equal(t, 0, st.Player(m.Host()).CorrectCount)
	assert.Equal(t, ActionWrong, out.Delta.Action)
	require.NotNil(t, out.Delta.Correct)
	assert.False(t, *out.Delta.Correct)
}

func TestWrong_KeepsHolderAndResetsFuse(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	now := t0.Add(10 * time.Second)

	out, err := Validate(m, m.Host(), ActionWrong, Payload{}, envAt(now))
	require.NoError(t, err)
	st := out.Match.State.TurnPassing
	assert.Equal(t, m.Host(), *st.HolderID)
	assert.Equal(t, 1, st.Cursor)
	assert.Equal(t, now.UnixMilli()+15_000, st.DeadlineEpochMs)
	assert.Equal(t, int64(10_000), st.Player(m.Host()).ElapsedMs)
	assert.Nil(t, out.Delta.Correct)
}

func TestHolderChecks(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	b := m.Participants[1]
	host := m.Host()

	_, err := Validate(m, b, ActionWrong, Payload{}, envAt(t0))
	requireKind(t, err, NotAuthorizedForAction)

	_, err = Validate(m, b, ActionPass, Payload{TargetID: &host, AnswerIndex: intp(0)}, envAt(t0))
	requireKind(t, err, NotAuthorizedForAction)

	// A second pass for a question that already moved on is stale.
	next := passCorrectly(t, m, b, envAt(t0.Add(time.Second)))
	_, err = Validate(next, b, ActionWrong, Payload{Cursor: intp(0)}, envAt(t0.Add(time.Second)))
	requireKind(t, err, StaleHolder)
}

func TestPass_RepeatedByFormerHolderIsStale(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 3, 5)
	holder := *m.State.TurnPassing.HolderID
	var first, second uuid.UUID
	for _, id := range m.Participants {
		switch {
		case id == holder:
		case first == uuid.Nil:
			first = id
		default:
			second = id
		}
	}
	key := m.State.TurnPassing.Items[0].CorrectIndex
	env := envAt(t0.Add(time.Second))

	next := passCorrectly(t, m, first, env)
	assert.True(t, next.State.TurnPassing.HandedOff(holder))

	// Same request replayed without a cursor after the hand-off landed.
	_, err := Validate(next, holder, ActionPass, Payload{TargetID: &second, AnswerIndex: &key}, env)
	requireKind(t, err, StaleHolder)
	_, err = Validate(next, holder, ActionWrong, Payload{}, env)
	requireKind(t, err, StaleHolder)

	// A player who never held the object is still simply not allowed.
	_, err = Validate(next, second, ActionWrong, Payload{}, env)
	requireKind(t, err, NotAuthorizedForAction)
}

func TestApply_StaleHolderAfterDeadline(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 3, 5)
	holder := m.Host()
	target := m.Participants[1]
	key := m.State.TurnPassing.Items[0].CorrectIndex

	steps, err := Apply(m, holder, ActionPass, Payload{TargetID: &target, AnswerIndex: &key}, envAt(t0.Add(20*time.Second)))
	requireKind(t, err, StaleHolder)
	require.Len(t, steps, 1, "the expiry is still committed")

	st := steps[0].Match.State.TurnPassing
	assert.False(t, st.Player(holder).Alive)
	assert.Equal(t, 0, st.Cursor)
	assert.Equal(t, m.Version+1, steps[0].Match.Version)

	// The eliminated player is told the hold is stale from now on.
	_, err = Validate(steps[0].Match, holder, ActionWrong, Payload{}, envAt(t0.Add(21*time.Second)))
	requireKind(t, err, StaleHolder)
}

func TestApply_ExpiryThenAction(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 3, 5)
	late := envAt(t0.Add(15 * time.Second))

	// The host expires; the first alive player becomes holder and acts in the same request.
	next := m.Participants[1]
	steps, err := Apply(m, next, ActionWrong, Payload{}, late)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, ActionExpire, steps[0].Delta.Action)
	assert.Equal(t, ActionWrong, steps[1].Delta.Action)
	assert.Equal(t, m.Version+2, steps[1].Match.Version)
	assert.Equal(t, 1, steps[1].Match.State.TurnPassing.Cursor)
}

func TestApply_ExplodeBeforeDeadlineIsNoop(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 5)
	steps, err := Apply(m, m.Participants[1], ActionExplode, Payload{}, envAt(t0.Add(5*time.Second)))
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestExpire_EscalatesWindow(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 3, 5)
	now := t0.Add(15 * time.Second)

	out, fired := Expire(m, envAt(now))
	require.True(t, fired)
	st := out.Match.State.TurnPassing
	assert.Equal(t, models.StatusActive, out.Match.Status)
	assert.Equal(t, 1, st.Eliminations)
	require.NotNil(t, st.HolderID)
	assert.Equal(t, m.Participants[1], *st.HolderID)
	assert.Equal(t, int64(10_000), st.WindowMs)
	assert.Equal(t, now.UnixMilli()+10_000, st.DeadlineEpochMs)
	assert.Less(t, st.WindowMs, DefaultRules().HoldWindow.Milliseconds())
	assert.Equal(t, int64(15_000), st.Player(m.Host()).ElapsedMs)

	// A correct pass restores the full window.
	m2 := passCorrectly(t, out.Match, m.Participants[2], envAt(now.Add(time.Second)))
	assert.Equal(t, int64(15_000), m2.State.TurnPassing.WindowMs)
}

func TestExpire_SingleHolderInvariant(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 4, 8)
	now := t0
	for m.Status == models.StatusActive {
		st := m.State.TurnPassing
		require.NotNil(t, st.HolderID)
		require.True(t, st.Player(*st.HolderID).Alive, "holder must be alive")
		now = time.UnixMilli(st.DeadlineEpochMs)
		out, fired := Expire(m, envAt(now))
		require.True(t, fired)
		require.Equal(t, st.Cursor, out.Match.State.TurnPassing.Cursor)
		m = out.Match
	}
	assert.Equal(t, 3, m.State.TurnPassing.Eliminations)
	require.NotNil(t, m.WinnerID)
	assert.Len(t, m.State.TurnPassing.AlivePlayers(), 1)
	assert.Equal(t, m.State.TurnPassing.AlivePlayers()[0], *m.WinnerID)
}

func TestEscalatedWindowClamp(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, 10*time.Second, escalated(r))

	r.EscalatedWindow = r.HoldWindow
	assert.Equal(t, r.HoldWindow/2, escalated(r))

	r.EscalatedWindow = 0
	assert.Equal(t, r.HoldWindow/2, escalated(r))
}
