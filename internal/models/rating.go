package models

import "github.com/google/uuid"

const (
	DefaultRating     = 1500
	DefaultDeviation  = 350.0
	DefaultVolatility = 0.06
)

// PlayerRating is a player's Glicko-2 standing for one match mode.
type PlayerRating struct {
	PlayerID   uuid.UUID `json:"playerId"`
	Mode       MatchMode `json:"mode"`
	Rating     int       `json:"rating"`
	Deviation  float64   `json:"deviation"`
	Volatility float64   `json:"volatility"`
	Matches    int       `json:"matches"`
}

// NewPlayerRating returns the starting rating for a player who has never played the mode.
func NewPlayerRating(id uuid.UUID, mode MatchMode) PlayerRating {
	return PlayerRating{
		PlayerID:   id,
		Mode:       mode,
		Rating:     DefaultRating,
		Deviation:  DefaultDeviation,
		Volatility: DefaultVolatility,
	}
}
