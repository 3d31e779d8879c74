package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/certarena/internal/models"
)

// LoadRatings returns the rating of each player for mode, in the order of ids. Players without a
// row get the starting rating.
func LoadRatings(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, mode models.MatchMode) ([]models.PlayerRating, error) {
	q := `
		SELECT player_id, rating, deviation, volatility, matches
		FROM player_ratings
		WHERE mode = $1 AND player_id = ANY($2)
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, q, mode, ids)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	found := make(map[uuid.UUID]models.PlayerRating, len(ids))
	for rows.Next() {
		r := models.PlayerRating{Mode: mode}
		if err := rows.Scan(&r.PlayerID, &r.Rating, &r.Deviation, &r.Volatility, &r.Matches); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		found[r.PlayerID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.PlayerRating, len(ids))
	for i, id := range ids {
		if r, ok := found[id]; ok {
			out[i] = r
		} else {
			out[i] = models.NewPlayerRating(id, mode)
		}
	}
	return out, nil
}

// SaveRating upserts a player's rating and logs the change to rating_history.
func SaveRating(ctx context.Context, tx pgx.Tx, matchCode string, oldRating int, r models.PlayerRating) error {
	upsert := `
		INSERT INTO player_ratings (player_id, mode, rating, deviation, volatility, matches, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (player_id, mode)
		DO UPDATE SET rating = $3, deviation = $4, volatility = $5, matches = $6, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, upsert, r.PlayerID, r.Mode, r.Rating, r.Deviation, r.Volatility, r.Matches); err != nil {
		return fmt.Errorf("upsert rating %s: %w", r.PlayerID, err)
	}
	hist := `
		INSERT INTO rating_history (player_id, match_code, mode, old_rating, new_rating)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, hist, r.PlayerID, matchCode, r.Mode, oldRating, r.Rating); err != nil {
		return fmt.Errorf("insert rating history %s: %w", r.PlayerID, err)
	}
	return nil
}

// GetRating returns one player's rating for mode.
func GetRating(ctx context.Context, db Querier, id uuid.UUID, mode models.MatchMode) (models.PlayerRating, error) {
	r := models.NewPlayerRating(id, mode)
	q := `SELECT rating, deviation, volatility, matches FROM player_ratings WHERE player_id = $1 AND mode = $2`
	err := db.QueryRow(ctx, q, id, mode).Scan(&r.Rating, &r.Deviation, &r.Volatility, &r.Matches)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return r, fmt.Errorf("get rating %s: %w", id, err)
	}
	return r, nil
}
