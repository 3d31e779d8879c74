package rating

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// Standings scores every participant of a completed match; higher is better. The winner always
// ranks alone at the top. Below that, turn_passing survivors outrank eliminated players and
// correct answers break the rest; quiz_buzz uses points.
func Standings(m models.Match) map[uuid.UUID]float64 {
	scores := make(map[uuid.UUID]float64, len(m.Participants))
	for _, id := range m.Participants {
		scores[id] = 0
	}

	switch {
	case m.State.TurnPassing != nil:
		for _, p := range m.State.TurnPassing.Players {
			s := float64(p.CorrectCount)
			if p.Alive {
				s += 1000
			}
			scores[p.ID] = s
		}
	case m.State.QuizBuzz != nil:
		for _, p := range m.State.QuizBuzz.Scores {
			scores[p.ID] = float64(p.Points)
		}
	}

	if m.WinnerID != nil {
		top := 0.0
		for _, s := range scores {
			if s > top {
				top = s
			}
		}
		scores[*m.WinnerID] = top + 1
	}
	return scores
}

// RankFractions converts raw standings into results in [0..1]: best rank gets 1.0, worst 0.0,
// and tied players share the fraction of their average rank.
func RankFractions(scores map[uuid.UUID]float64) map[uuid.UUID]float64 {
	type entry struct {
		id    uuid.UUID
		score float64
	}
	arr := make([]entry, 0, len(scores))
	for id, s := range scores {
		arr = append(arr, entry{id, s})
	}
	sort.Slice(arr, func(i, j int) bool {
		return arr[i].score > arr[j].score
	})

	out := make(map[uuid.UUID]float64, len(arr))
	if len(arr) == 1 {
		out[arr[0].id] = 1
		return out
	}
	i := 0
	for i < len(arr) {
		j := i + 1
		for j < len(arr) && arr[j].score == arr[i].score {
			j++
		}
		// players i..j-1 are tied
		avgRank := float64(i+(j-1)) / 2
		fr := 1.0 - (avgRank / float64(len(arr)-1))
		for k := i; k < j; k++ {
			out[arr[k].id] = fr
		}
		i = j
	}
	return out
}

// Finalize rates a completed match. current holds each participant's rating for the match mode;
// players without a record should be passed as models.NewPlayerRating.
func Finalize(m models.Match, current []models.PlayerRating) []models.PlayerRating {
	fracs := RankFractions(Standings(m))
	scores := make([]float64, len(current))
	for i, p := range current {
		scores[i] = fracs[p.PlayerID]
	}
	return UpdateGroup(current, scores)
}
