package match

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewFor_NeverLeaksAnswerKey(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 3)
	v := ViewFor(m, m.Host(), t0)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctIndex")
	require.NotNil(t, v.Question)
	assert.Equal(t, "q0", v.Question.ID)
	assert.Equal(t, 3, v.TotalQuestions)
}

func TestViewFor_TurnPassingPerspective(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 2, 3)
	host, guest := m.Participants[0], m.Participants[1]

	hv := ViewFor(m, host, t0)
	gv := ViewFor(m, guest, t0)
	assert.True(t, hv.IAmHolder)
	assert.False(t, gv.IAmHolder)
	assert.Equal(t, guest, gv.MyPlayerID)
	assert.Equal(t, m.State.TurnPassing.DeadlineEpochMs, gv.DeadlineEpochMs)

	require.Len(t, gv.Players, 2)
	assert.True(t, gv.Players[0].IsHolder)
	assert.True(t, gv.Players[1].IsYou)
	require.NotNil(t, gv.Players[1].Alive)
	assert.True(t, *gv.Players[1].Alive)
}

func TestViewFor_OverdueHolderShownEliminated(t *testing.T) {
	m := startedMatch(t, models.ModeTurnPassing, 3, 3)
	holder := *m.State.TurnPassing.HolderID

	before := ViewFor(m, holder, t0.Add(time.Second))
	assert.False(t, before.HoldExpired)
	assert.True(t, before.IAmHolder)

	after := ViewFor(m, holder, time.UnixMilli(m.State.TurnPassing.DeadlineEpochMs))
	assert.True(t, after.HoldExpired)
	assert.False(t, after.IAmHolder)
	assert.Nil(t, after.HolderID)
	for _, p := range after.Players {
		assert.False(t, p.IsHolder)
		require.NotNil(t, p.Alive)
		assert.Equal(t, p.PlayerID != holder, *p.Alive)
	}
	assert.Equal(t, m.Version, after.Version)
	assert.True(t, m.State.TurnPassing.Player(holder).Alive, "the stored match is untouched")
}

func TestViewFor_BuzzPerspective(t *testing.T) {
	m := startedMatch(t, models.ModeQuizBuzz, 2, 3)
	a, b := m.Participants[0], m.Participants[1]

	assert.True(t, ViewFor(m, b, t0).ICanBuzz)

	out, err := Validate(m, a, ActionBuzz, Payload{}, envAt(t0))
	require.NoError(t, err)
	av := ViewFor(out.Match, a, t0)
	bv := ViewFor(out.Match, b, t0)
	assert.True(t, av.ICanAnswer)
	assert.False(t, bv.ICanAnswer)
	assert.False(t, bv.ICanBuzz)
}

func TestViewFor_Completed(t *testing.T) {
	m := startedMatch(t, models.ModeQuizBuzz, 2, 1)
	m = buzzAndAnswer(t, m, m.Host(), true)

	v := ViewFor(m, m.Host(), t0)
	assert.True(t, v.IWon)
	assert.False(t, v.Draw)
	assert.Nil(t, v.Question)
	assert.False(t, ViewFor(m, m.Participants[1], t0).IWon)
}
