package match

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/models"
)

// Action names a requested transition.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionStart   Action = "start"

	// turn_passing
	ActionPass    Action = "pass"
	ActionWrong   Action = "wrong"
	ActionExplode Action = "explode"
	ActionExpire  Action = "expire"

	// quiz_buzz
	ActionBuzz   Action = "buzz"
	ActionAnswer Action = "answer"

	// internal
	ActionAbandon Action = "abandon"
)

// Mode returns the mode an in-match action belongs to, or "" for lifecycle actions.
func (a Action) Mode() models.MatchMode {
	switch a {
	case ActionPass, ActionWrong, ActionExplode, ActionExpire:
		return models.ModeTurnPassing
	case ActionBuzz, ActionAnswer:
		return models.ModeQuizBuzz
	}
	return ""
}

// Payload carries the optional arguments of an action.
type Payload struct {
	TargetID    *uuid.UUID `json:"targetId,omitempty"`
	AnswerIndex *int       `json:"answerIndex,omitempty"`

	// Cursor is the question index the client believes it is acting on.
	Cursor *int `json:"cursor,omitempty"`

	// Questions is filled by the coordinator for start; clients never send it.
	Questions []models.Question `json:"-"`
}

// Rules are the tunable parameters of the mode engines.
type Rules struct {
	HoldWindow        time.Duration
	EscalatedWindow   time.Duration
	BuzzCorrectPoints int
	BuzzWrongPoints   int
}

// DefaultRules mirrors the defaults in config.
func DefaultRules() Rules {
	return Rules{
		HoldWindow:        15 * time.Second,
		EscalatedWindow:   10 * time.Second,
		BuzzCorrectPoints: 1,
		BuzzWrongPoints:   0,
	}
}

// Env is the deterministic context of one evaluation: the server clock reading, the rules and
// the source of uniform choice.
type Env struct {
	Now   time.Time
	Rules Rules
	Pick  func(n int) int
}

// NewEnv builds an Env whose Pick draws from r.
func NewEnv(now time.Time, rules Rules, r *rand.Rand) Env {
	return Env{Now: now, Rules: rules, Pick: r.Intn}
}

func (e Env) nowMs() int64 {
	return e.Now.UnixMilli()
}

func (e Env) pick(n int) int {
	if e.Pick == nil || n <= 1 {
		return 0
	}
	return e.Pick(n)
}

// Delta is the compact description of an accepted transition that the fanout publishes.
type Delta struct {
	Action Action             `json:"action"`
	Actor  *uuid.UUID         `json:"actor,omitempty"`
	Status models.MatchStatus `json:"status"`

	Cursor          *int       `json:"cursor,omitempty"`
	HolderID        *uuid.UUID `json:"holderId,omitempty"`
	DeadlineEpochMs int64      `json:"deadlineEpochMs,omitempty"`
	WindowMs        int64      `json:"windowMs,omitempty"`
	BuzzedBy        *uuid.UUID `json:"buzzedBy,omitempty"`
	Eliminated      *uuid.UUID `json:"eliminated,omitempty"`
	Correct         *bool      `json:"correct,omitempty"`
	WinnerID        *uuid.UUID `json:"winnerId,omitempty"`
}

// Outcome is the result of one accepted evaluation. When Changed is false the action was an
// idempotent no-op and Match equals the input snapshot.
type Outcome struct {
	Match   models.Match
	Changed bool
	Delta   Delta
}

// Terminated reports whether this outcome moved the match into a terminal status.
func (o Outcome) Terminated() bool {
	return o.Changed && o.Match.Status.Terminal()
}
