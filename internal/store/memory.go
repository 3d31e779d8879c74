// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// MemoryStore keeps matches in a map. Suitable for a single instance and for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]models.Match
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matches: make(map[string]models.Match)}
}

func (s *MemoryStore) Create(_ context.Context, m models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.Code]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, m.Code)
	}
	s.matches[m.Code] = m.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, code string) (models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[code]
	if !ok {
		return models.Match{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return m.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, m models.Match, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.matches[m.Code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, m.Code)
	}
	if cur.Version != expected {
		return fmt.Errorf("%w: %s at %d, expected %d", ErrVersionConflict, m.Code, cur.Version, expected)
	}
	s.matches[m.Code] = m.Clone()
	return nil
}

func (s *MemoryStore) ListForPlayer(_ context.Context, playerID uuid.UUID) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match
	for _, m := range s.matches {
		if !m.Status.Terminal() && m.IsParticipant(playerID) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
