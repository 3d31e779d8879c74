package coordinator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/fanout"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusChange is the payload of match-status events.
type StatusChange struct {
	Status   models.MatchStatus `json:"status"`
	WinnerID *uuid.UUID         `json:"winnerId,omitempty"`
}

// announce publishes a committed step to the room. Failures are logged: the change is already
// durable and clients recover through the snapshot.
func (c *Coordinator) announce(ctx context.Context, step match.Outcome) {
	m := step.Match
	at := c.clock.Now()
	log := c.logger.WithFields(logrus.Fields{"match": m.Code, "version": m.Version})

	ev, err := fanout.NewEvent(fanout.EventMatchUpdate, m.Code, at, step.Delta)
	if err != nil {
		log.WithError(err).Error("failed to build match update")
		return
	}
	ev.Version = m.Version
	ev.Action = string(step.Delta.Action)
	ev.Actor = step.Delta.Actor
	if err := c.publisher.Publish(ctx, ev); err != nil {
		log.WithError(err).Warn("failed to publish match update")
	}

	if !step.Terminated() {
		return
	}
	ev, err = fanout.NewEvent(fanout.EventMatchStatus, m.Code, at, StatusChange{Status: m.Status, WinnerID: m.WinnerID})
	if err != nil {
		log.WithError(err).Error("failed to build status change")
		return
	}
	ev.Version = m.Version
	ev.Action = string(step.Delta.Action)
	if err := c.publisher.Publish(ctx, ev); err != nil {
		log.WithError(err).Warn("failed to publish status change")
	}
}

func (c *Coordinator) logAction(ctx context.Context, step match.Outcome) {
	if c.actions == nil {
		return
	}
	payload, err := json.Marshal(step.Delta)
	if err != nil {
		return
	}
	rec := models.ActionRecord{
		MatchCode: step.Match.Code,
		Version:   step.Match.Version,
		ActorID:   step.Delta.Actor,
		Action:    string(step.Delta.Action),
		Payload:   payload,
		Timestamp: step.Match.UpdatedAt.UnixMilli(),
	}
	if err := c.actions.Append(ctx, rec); err != nil {
		c.logger.WithError(err).WithField("match", rec.MatchCode).Warn("failed to log action")
	}
}

func (c *Coordinator) recordResult(ctx context.Context, m models.Match) {
	if c.results == nil {
		return
	}
	// Rating is best effort and must not outlive the request context's cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.results.RecordMatch(ctx, m); err != nil {
		c.logger.WithError(err).WithField("match", m.Code).Error("failed to record match result")
	}
}

// Chat relays a participant's message to the room. Messages are not persisted.
func (c *Coordinator) Chat(ctx context.Context, actor uuid.UUID, code, text string) error {
	if actor == uuid.Nil {
		return match.Reject(match.NotAuthenticated, "no caller identity")
	}
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > fanout.MaxChatLength {
		return match.Reject(match.InvalidPayload, "chat message must be 1-%d characters", fanout.MaxChatLength)
	}
	m, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if !m.IsParticipant(actor) {
		return match.Reject(match.NotParticipant, "caller is not part of match %s", code)
	}

	ev, err := fanout.NewEvent(fanout.EventChatMessage, code, c.clock.Now(), fanout.ChatMessage{From: actor, Text: text})
	if err != nil {
		return err
	}
	ev.Actor = &actor
	return c.publisher.Publish(ctx, ev)
}
