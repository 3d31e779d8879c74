// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/fanout"
	"github.com/jason-s-yu/certarena/internal/guard"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/jason-s-yu/certarena/internal/questions"
	"github.com/jason-s-yu/certarena/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ActionLog receives every committed transition, for the historian.
type ActionLog interface {
	Append(ctx context.Context, rec models.ActionRecord) error
}

// ResultRecorder persists results and ratings of completed matches.
type ResultRecorder interface {
	RecordMatch(ctx context.Context, m models.Match) error
}

// Settings are the coordinator's tunables.
type Settings struct {
	Rules         match.Rules
	QuestionCount int
	AbandonGrace  time.Duration
	SweepInterval time.Duration
}

// Coordinator runs every state change of a match through the same cycle: acquire the per-code
// lock, load the snapshot, evaluate, persist each resulting version, publish. Nothing is published
// before it is durable and no state lives outside the store.
type Coordinator struct {
	store     store.Store
	guard     guard.Guard
	publisher fanout.Publisher
	questions questions.Supplier
	clock     clockwork.Clock
	logger    *logrus.Logger
	settings  Settings

	actions ActionLog
	results ResultRecorder
	codes   func() string

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Coordinator)

func WithActionLog(l ActionLog) Option {
	return func(c *Coordinator) { c.actions = l }
}

func WithResultRecorder(r ResultRecorder) Option {
	return func(c *Coordinator) { c.results = r }
}

// WithSeed makes the uniform holder choice reproducible.
func WithSeed(seed int64) Option {
	return func(c *Coordinator) { c.rng = rand.New(rand.NewSource(seed)) }
}

// WithCodeGenerator replaces the petname code generator.
func WithCodeGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.codes = gen }
}

func New(
	st store.Store,
	g guard.Guard,
	pub fanout.Publisher,
	qs questions.Supplier,
	clock clockwork.Clock,
	logger *logrus.Logger,
	settings Settings,
	opts ...Option,
) *Coordinator {
	if settings.QuestionCount <= 0 {
		settings.QuestionCount = 5
	}
	c := &Coordinator{
		store:     st,
		guard:     g,
		publisher: pub,
		questions: qs,
		clock:     clock,
		logger:    logger,
		settings:  settings,
		codes:     newMatchCode,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result is the outcome of an accepted action: the latest committed snapshot and every version
// committed on the way there.
type Result struct {
	Match  models.Match
	Steps  []match.Outcome
	Viewer uuid.UUID
}

// View resolves the snapshot for the acting caller.
func (r Result) View(now time.Time) match.MatchView {
	return match.ViewFor(r.Match, r.Viewer, now)
}

func (c *Coordinator) env() match.Env {
	return match.Env{
		Now:   c.clock.Now(),
		Rules: c.settings.Rules,
		Pick: func(n int) int {
			c.rngMu.Lock()
			defer c.rngMu.Unlock()
			return c.rng.Intn(n)
		},
	}
}

// Act validates and applies one action. Rejections come back as *match.Rejection; anything else
// is an infrastructure failure. When the lazy expiry check fired, its version is committed and
// published even if the requested action is then rejected.
func (c *Coordinator) Act(ctx context.Context, actor uuid.UUID, code string, action match.Action, p match.Payload) (Result, error) {
	if actor == uuid.Nil {
		return Result{}, match.Reject(match.NotAuthenticated, "no caller identity")
	}

	if action == match.ActionStart {
		qs, err := c.prepareStart(ctx, actor, code)
		if err != nil {
			return Result{}, err
		}
		p.Questions = qs
	}

	release, err := c.guard.Acquire(ctx, guard.Key(code))
	if err != nil {
		return Result{}, err
	}
	defer release()

	m, err := c.load(ctx, code)
	if err != nil {
		return Result{}, err
	}

	steps, rerr := match.Apply(m, actor, action, p, c.env())
	final, err := c.commit(ctx, m, steps)
	res := Result{Match: final, Steps: steps, Viewer: actor}
	if err != nil {
		return res, err
	}

	log := c.logger.WithFields(logrus.Fields{
		"match":   code,
		"actor":   actor,
		"action":  action,
		"version": final.Version,
	})
	if rerr != nil {
		log.WithField("reason", match.KindOf(rerr)).Debug("action rejected")
		return res, rerr
	}
	log.Debug("action applied")
	return res, nil
}

// prepareStart fetches the question set before the lock is taken so a slow generator never holds
// the match. Requests that would be rejected or are idempotent skip the fetch.
func (c *Coordinator) prepareStart(ctx context.Context, actor uuid.UUID, code string) ([]models.Question, error) {
	m, err := c.load(ctx, code)
	if err != nil {
		return nil, err
	}
	out, err := match.Validate(m, actor, match.ActionStart, match.Payload{}, c.env())
	if err == nil && !out.Changed {
		return nil, nil
	}
	if match.KindOf(err) != match.QuestionSupplyUnavailable {
		return nil, err
	}
	return c.fetchQuestions(ctx, m.Mode, m.Topic, m.Certification, m.QuestionCount)
}

func (c *Coordinator) fetchQuestions(ctx context.Context, mode models.MatchMode, topic, cert string, count int) ([]models.Question, error) {
	qs, err := c.questions.Fetch(ctx, questions.Request{
		Topic:         topic,
		Certification: cert,
		Count:         count,
		Mode:          mode,
	})
	if err != nil {
		c.logger.WithError(err).WithField("topic", topic).Warn("question supply failed")
		return nil, match.Reject(match.QuestionSupplyUnavailable, "question supply unavailable")
	}
	return qs, nil
}

func (c *Coordinator) load(ctx context.Context, code string) (models.Match, error) {
	m, err := c.store.Get(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return m, match.Reject(match.MatchNotFound, "no match with code %s", code)
	}
	if err != nil {
		return m, fmt.Errorf("load match %s: %w", code, err)
	}
	return m, nil
}

// commit persists each step as its own version, then publishes it. The caller holds the lock.
func (c *Coordinator) commit(ctx context.Context, m models.Match, steps []match.Outcome) (models.Match, error) {
	cur := m
	for _, step := range steps {
		if err := c.store.Update(ctx, step.Match, cur.Version); err != nil {
			return cur, fmt.Errorf("persist %s v%d: %w", cur.Code, step.Match.Version, err)
		}
		cur = step.Match
		c.announce(ctx, step)
		c.logAction(ctx, step)
		if step.Terminated() {
			c.recordResult(ctx, step.Match)
		}
	}
	return cur, nil
}

// Snapshot returns the caller-relative view of a match.
func (c *Coordinator) Snapshot(ctx context.Context, actor uuid.UUID, code string) (match.MatchView, error) {
	if actor == uuid.Nil {
		return match.MatchView{}, match.Reject(match.NotAuthenticated, "no caller identity")
	}
	m, err := c.load(ctx, code)
	if err != nil {
		return match.MatchView{}, err
	}
	if !m.IsParticipant(actor) {
		return match.MatchView{}, match.Reject(match.NotParticipant, "caller is not part of match %s", code)
	}
	return match.ViewFor(m, actor, c.clock.Now()), nil
}

// ListOpen returns the caller's pending and active matches.
func (c *Coordinator) ListOpen(ctx context.Context, actor uuid.UUID) ([]match.MatchView, error) {
	if actor == uuid.Nil {
		return nil, match.Reject(match.NotAuthenticated, "no caller identity")
	}
	ms, err := c.store.ListForPlayer(ctx, actor)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	out := make([]match.MatchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, match.ViewFor(m, actor, now))
	}
	return out, nil
}

// Abandon terminates a live match whose room emptied. It reports false for unknown or already
// terminal matches.
func (c *Coordinator) Abandon(ctx context.Context, code string) (bool, error) {
	release, err := c.guard.Acquire(ctx, guard.Key(code))
	if err != nil {
		return false, err
	}
	defer release()

	m, err := c.load(ctx, code)
	if match.KindOf(err) == match.MatchNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	out, ok := match.Abandon(m, c.env())
	if !ok {
		return false, nil
	}
	if _, err := c.commit(ctx, m, []match.Outcome{out}); err != nil {
		return false, err
	}
	c.logger.WithFields(logrus.Fields{"match": code, "status": out.Match.Status}).Info("match abandoned")
	return true, nil
}
