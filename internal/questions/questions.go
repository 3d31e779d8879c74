// internal/questions/questions.go
package questions

import (
	"context"
	"errors"

	"github.com/jason-s-yu/certarena/internal/models"
)

// ErrUnavailable means no playable question set could be obtained.
var ErrUnavailable = errors.New("questions: supply unavailable")

// Request describes the question set a match needs.
type Request struct {
	Topic         string           `json:"topic,omitempty"`
	Certification string           `json:"certification,omitempty"`
	Count         int              `json:"count"`
	Mode          models.MatchMode `json:"mode"`
}

// Supplier produces a fresh, ordered question set. Implementations return ErrUnavailable (possibly
// wrapped) when they cannot.
type Supplier interface {
	Fetch(ctx context.Context, req Request) ([]models.Question, error)
}

// Playable drops questions that cannot be graded.
func Playable(qs []models.Question) []models.Question {
	out := make([]models.Question, 0, len(qs))
	for _, q := range qs {
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out
}
