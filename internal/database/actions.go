package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/certarena/internal/models"
)

// InsertActions writes a batch of logged transitions in one transaction. Replays of the same
// (match, version) pair are ignored, so the queue may deliver at least once.
func InsertActions(ctx context.Context, pool *pgxpool.Pool, batch []models.ActionRecord) error {
	if len(batch) == 0 {
		return nil
	}
	q := `
		INSERT INTO match_actions (match_code, version, actor_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_code, version) DO NOTHING
	`
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, rec := range batch {
			payload := rec.Payload
			if len(payload) == 0 {
				payload = []byte("{}")
			}
			b.Queue(q, rec.MatchCode, rec.Version, rec.ActorID, rec.Action, payload, time.UnixMilli(rec.Timestamp))
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return fmt.Errorf("insert %d actions: %w", len(batch), err)
	}
	return nil
}
