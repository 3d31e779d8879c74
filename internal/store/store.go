// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

var (
	// ErrNotFound means no match exists for the code.
	ErrNotFound = errors.New("store: match not found")
	// ErrVersionConflict means the stored version moved past the one the caller read.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicateCode means a match with the same code already exists.
	ErrDuplicateCode = errors.New("store: duplicate match code")
)

// Store is the durable home of match snapshots, addressed only by code. Snapshots returned by Get
// are independent copies; mutating them never affects the stored record.
type Store interface {
	Create(ctx context.Context, m models.Match) error
	Get(ctx context.Context, code string) (models.Match, error)
	// Update replaces the record iff its current version equals expected. m.Version must be the
	// successor version.
	Update(ctx context.Context, m models.Match, expected int64) error
	// ListForPlayer returns the non-terminal matches a player participates in, newest first.
	ListForPlayer(ctx context.Context, playerID uuid.UUID) ([]models.Match, error)
}
