// internal/questions/bank.go
package questions

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/jason-s-yu/certarena/internal/models"
	"gopkg.in/yaml.v3"
)

// Bank serves question sets from a static YAML file, for local play and tests.
//
//	questions:
//	  - id: s3-1
//	    text: Which storage class ...
//	    options: [A, B, C, D]
//	    correctIndex: 2
//	    topic: s3
type Bank struct {
	mu    sync.Mutex
	items []models.Question
	rng   *rand.Rand
}

type bankFile struct {
	Questions []models.Question `yaml:"questions"`
}

// LoadBank parses path and keeps only playable questions.
func LoadBank(path string, seed int64) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return NewBank(f.Questions, seed), nil
}

func NewBank(items []models.Question, seed int64) *Bank {
	return &Bank{items: Playable(items), rng: rand.New(rand.NewSource(seed))}
}

// Fetch returns up to req.Count shuffled questions matching the topic (all topics when empty).
func (b *Bank) Fetch(_ context.Context, req Request) ([]models.Question, error) {
	var pool []models.Question
	for _, q := range b.items {
		if req.Topic == "" || strings.EqualFold(q.Topic, req.Topic) {
			pool = append(pool, q)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no questions for topic %q", ErrUnavailable, req.Topic)
	}

	b.mu.Lock()
	b.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	b.mu.Unlock()

	if req.Count > 0 && len(pool) > req.Count {
		pool = pool[:req.Count]
	}
	return pool, nil
}
