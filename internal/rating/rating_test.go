package rating

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandings_TurnPassingWinnerOnTop(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	m := models.Match{
		Participants: []uuid.UUID{a, b, c},
		Status:       models.StatusCompleted,
		WinnerID:     &c,
		State: models.MatchState{TurnPassing: &models.TurnPassingState{Players: []models.TurnPlayer{
			{ID: a, Alive: false, CorrectCount: 4},
			{ID: b, Alive: false, CorrectCount: 1},
			{ID: c, Alive: true, CorrectCount: 2},
		}}},
	}

	fr := RankFractions(Standings(m))
	assert.Equal(t, 1.0, fr[c])
	assert.Equal(t, 0.5, fr[a])
	assert.Equal(t, 0.0, fr[b])
}

func TestRankFractions_TiesShare(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	fr := RankFractions(map[uuid.UUID]float64{a: 3, b: 3})
	assert.Equal(t, 0.5, fr[a])
	assert.Equal(t, 0.5, fr[b])
}

func TestFinalize_BuzzRace(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	m := models.Match{
		Mode:         models.ModeQuizBuzz,
		Participants: []uuid.UUID{a, b},
		Status:       models.StatusCompleted,
		WinnerID:     &b,
		State: models.MatchState{QuizBuzz: &models.BuzzRaceState{Scores: []models.PlayerScore{
			{ID: a, Points: 1}, {ID: b, Points: 3},
		}}},
	}

	out := Finalize(m, []models.PlayerRating{
		models.NewPlayerRating(a, m.Mode),
		models.NewPlayerRating(b, m.Mode),
	})
	require.Len(t, out, 2)
	assert.Less(t, out[0].Rating, 1500)
	assert.Greater(t, out[1].Rating, 1500)
}
