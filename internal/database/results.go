package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/jason-s-yu/certarena/internal/rating"
)

// Querier is the read surface shared by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Results records finished matches and rates their players.
type Results struct {
	pool *pgxpool.Pool
}

func NewResults(pool *pgxpool.Pool) *Results {
	return &Results{pool: pool}
}

// RecordMatch persists per-player standings of a completed match and applies the Glicko-2
// update in one transaction. Matches that never started have no standings and are skipped.
func (r *Results) RecordMatch(ctx context.Context, m models.Match) error {
	if m.Status != models.StatusCompleted || !m.State.Started() {
		return nil
	}
	standings := rating.Standings(m)

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, id := range m.Participants {
			didWin := m.WinnerID != nil && *m.WinnerID == id
			q := `
				INSERT INTO match_results (match_code, player_id, score, did_win)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (match_code, player_id)
				DO UPDATE SET score = $3, did_win = $4
			`
			if _, err := tx.Exec(ctx, q, m.Code, id, standings[id], didWin); err != nil {
				return fmt.Errorf("insert result %s: %w", id, err)
			}
		}

		current, err := LoadRatings(ctx, tx, m.Participants, m.Mode)
		if err != nil {
			return err
		}
		updated := rating.Finalize(m, current)
		for i, u := range updated {
			if err := SaveRating(ctx, tx, m.Code, current[i].Rating, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record match %s: %w", m.Code, err)
	}
	return nil
}

// Rating returns the caller's current rating for mode, or the starting rating if unrated.
func (r *Results) Rating(ctx context.Context, id uuid.UUID, mode models.MatchMode) (models.PlayerRating, error) {
	return GetRating(ctx, r.pool, id, mode)
}
