// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/certarena/internal/models"
)

// Querier is the subset of pgxpool.Pool (and pgx.Tx) the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists matches in the matches table. Concurrent writers are fenced by the
// version column: an update only lands if the row still carries the version the caller read.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const matchColumns = `code, mode, participants, accepted, status, version, state,
	COALESCE(winner_id::text, ''), topic, certification, question_count, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, m models.Match) error {
	row, err := encodeRow(m)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO matches (code, mode, participants, accepted, status, version, state,
			winner_id, topic, certification, question_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.Exec(ctx, q,
		m.Code, m.Mode, row.participants, row.accepted, m.Status, m.Version, row.state,
		m.WinnerID, m.Topic, m.Certification, m.QuestionCount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, m.Code)
		}
		return fmt.Errorf("insert match %s: %w", m.Code, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, code string) (models.Match, error) {
	row := s.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE code = $1`, code)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Match{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		return models.Match{}, fmt.Errorf("load match %s: %w", code, err)
	}
	return m, nil
}

func (s *PostgresStore) Update(ctx context.Context, m models.Match, expected int64) error {
	row, err := encodeRow(m)
	if err != nil {
		return err
	}
	q := `
		UPDATE matches
		SET accepted = $3, status = $4, version = $5, state = $6, winner_id = $7, updated_at = $8
		WHERE code = $1 AND version = $2
	`
	tag, err := s.db.Exec(ctx, q,
		m.Code, expected, row.accepted, m.Status, m.Version, row.state, m.WinnerID, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update match %s: %w", m.Code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a moved version.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE code = $1)`, m.Code).Scan(&exists); err != nil {
		return fmt.Errorf("update match %s: %w", m.Code, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, m.Code)
	}
	return fmt.Errorf("%w: %s expected %d", ErrVersionConflict, m.Code, expected)
}

func (s *PostgresStore) ListForPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Match, error) {
	needle, err := json.Marshal([]uuid.UUID{playerID})
	if err != nil {
		return nil, err
	}
	q := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE participants @> $1::jsonb AND status IN ('pending', 'active')
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, q, needle)
	if err != nil {
		return nil, fmt.Errorf("list matches for %s: %w", playerID, err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type encoded struct {
	participants []byte
	accepted     []byte
	state        []byte
}

func encodeRow(m models.Match) (encoded, error) {
	var (
		e   encoded
		err error
	)
	if e.participants, err = json.Marshal(m.Participants); err != nil {
		return e, fmt.Errorf("marshal participants: %w", err)
	}
	accepted := m.Accepted
	if accepted == nil {
		accepted = []uuid.UUID{}
	}
	if e.accepted, err = json.Marshal(accepted); err != nil {
		return e, fmt.Errorf("marshal accepted: %w", err)
	}
	if e.state, err = json.Marshal(m.State); err != nil {
		return e, fmt.Errorf("marshal state: %w", err)
	}
	return e, nil
}

func scanMatch(row pgx.Row) (models.Match, error) {
	var (
		m                             models.Match
		participants, accepted, state []byte
		winner                        string
	)
	err := row.Scan(
		&m.Code, &m.Mode, &participants, &accepted, &m.Status, &m.Version, &state,
		&winner, &m.Topic, &m.Certification, &m.QuestionCount, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(participants, &m.Participants); err != nil {
		return m, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(accepted, &m.Accepted); err != nil {
		return m, fmt.Errorf("decode accepted: %w", err)
	}
	if len(m.Accepted) == 0 {
		m.Accepted = nil
	}
	if err := json.Unmarshal(state, &m.State); err != nil {
		return m, fmt.Errorf("decode state: %w", err)
	}
	if winner != "" {
		id, err := uuid.Parse(winner)
		if err != nil {
			return m, fmt.Errorf("decode winner: %w", err)
		}
		m.WinnerID = &id
	}
	return m, nil
}
