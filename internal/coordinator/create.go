package coordinator

import (
	"context"
	"errors"
	"fmt"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/guard"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/jason-s-yu/certarena/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	maxCodeAttempts  = 5
	maxQuestionCount = 50
)

// CreateRequest describes a new challenge.
type CreateRequest struct {
	OpponentIDs   []uuid.UUID
	Mode          models.MatchMode
	Topic         string
	Certification string
	QuestionCount int

	// AutoStart creates the match already accepted and started, for matchmade games.
	AutoStart bool
}

func newMatchCode() string {
	return petname.Generate(3, "-")
}

// Create registers a new match with the caller as host.
func (c *Coordinator) Create(ctx context.Context, host uuid.UUID, req CreateRequest) (Result, error) {
	if host == uuid.Nil {
		return Result{}, match.Reject(match.NotAuthenticated, "no caller identity")
	}
	participants, err := validateCreate(host, &req, c.settings.QuestionCount)
	if err != nil {
		return Result{}, err
	}

	var qs []models.Question
	if req.AutoStart {
		if qs, err = c.fetchQuestions(ctx, req.Mode, req.Topic, req.Certification, req.QuestionCount); err != nil {
			return Result{}, err
		}
	}

	now := c.clock.Now()
	m := models.Match{
		Mode:          req.Mode,
		Participants:  participants,
		Status:        models.StatusPending,
		Version:       1,
		Topic:         req.Topic,
		Certification: req.Certification,
		QuestionCount: req.QuestionCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.AutoStart {
		m.Status = models.StatusActive
		m.Accepted = append([]uuid.UUID(nil), participants[1:]...)
	}

	if err := c.insert(ctx, &m); err != nil {
		return Result{}, err
	}
	c.logger.WithFields(logrus.Fields{
		"match":   m.Code,
		"mode":    m.Mode,
		"host":    host,
		"players": len(participants),
	}).Info("match created")

	if !req.AutoStart {
		return Result{Match: m, Viewer: host}, nil
	}
	return c.startCreated(ctx, host, m.Code, qs)
}

func (c *Coordinator) startCreated(ctx context.Context, host uuid.UUID, code string, qs []models.Question) (Result, error) {
	release, err := c.guard.Acquire(ctx, guard.Key(code))
	if err != nil {
		return Result{}, err
	}
	defer release()

	m, err := c.load(ctx, code)
	if err != nil {
		return Result{}, err
	}
	out, err := match.Validate(m, host, match.ActionStart, match.Payload{Questions: qs}, c.env())
	if err != nil {
		return Result{Match: m, Viewer: host}, err
	}
	final, err := c.commit(ctx, m, []match.Outcome{out})
	return Result{Match: final, Steps: []match.Outcome{out}, Viewer: host}, err
}

func (c *Coordinator) insert(ctx context.Context, m *models.Match) error {
	for i := 0; i < maxCodeAttempts; i++ {
		m.Code = c.codes()
		err := c.store.Create(ctx, *m)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateCode) {
			return fmt.Errorf("create match: %w", err)
		}
	}
	return fmt.Errorf("create match: no free code after %d attempts", maxCodeAttempts)
}

// validateCreate normalizes req and returns the ordered participant list.
func validateCreate(host uuid.UUID, req *CreateRequest, defaultCount int) ([]uuid.UUID, error) {
	if !req.Mode.Valid() {
		return nil, match.Reject(match.InvalidPayload, "unknown mode %q", req.Mode)
	}
	if len(req.OpponentIDs) == 0 {
		return nil, match.Reject(match.InvalidPayload, "at least one opponent is required")
	}

	participants := []uuid.UUID{host}
	seen := map[uuid.UUID]bool{host: true}
	for _, id := range req.OpponentIDs {
		if id == uuid.Nil {
			return nil, match.Reject(match.InvalidPayload, "opponent id is empty")
		}
		if id == host {
			return nil, match.Reject(match.InvalidPayload, "cannot challenge yourself")
		}
		if seen[id] {
			return nil, match.Reject(match.InvalidPayload, "opponent %s listed twice", id)
		}
		seen[id] = true
		participants = append(participants, id)
	}

	if req.Mode == models.ModeQuizBuzz && len(participants) != 2 {
		return nil, match.Reject(match.InvalidPayload, "quiz_buzz is played by exactly two players")
	}
	if len(participants) > req.Mode.MaxPlayers() {
		return nil, match.Reject(match.InvalidPayload, "%s allows at most %d players", req.Mode, req.Mode.MaxPlayers())
	}

	if req.QuestionCount == 0 {
		req.QuestionCount = defaultCount
	}
	if req.QuestionCount < 1 || req.QuestionCount > maxQuestionCount {
		return nil, match.Reject(match.InvalidPayload, "questionCount must be between 1 and %d", maxQuestionCount)
	}
	return participants, nil
}
