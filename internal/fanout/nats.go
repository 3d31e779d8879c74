// internal/fanout/nats.go
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectPrefix namespaces match events on the NATS bus.
const SubjectPrefix = "certarena.match."

// Subject returns the NATS subject for a match room.
func Subject(code string) string {
	return SubjectPrefix + code
}

type wireEvent struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Bridge relays events between instances. Publish delivers locally first and then forwards to
// NATS; the relay feeds every other instance's hub and skips messages this instance sent.
type Bridge struct {
	nc       *nats.Conn
	hub      *Hub
	instance string
	logger   *logrus.Logger
	sub      *nats.Subscription
}

// ConnectNATS dials url with reconnect handlers wired to logger.
func ConnectNATS(url string, logger *logrus.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("certarena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.WithError(err).Error("NATS error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func NewBridge(nc *nats.Conn, hub *Hub, logger *logrus.Logger) *Bridge {
	return &Bridge{
		nc:       nc,
		hub:      hub,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Start subscribes to every match subject.
func (b *Bridge) Start() error {
	sub, err := b.nc.Subscribe(SubjectPrefix+"*", b.relay)
	if err != nil {
		return fmt.Errorf("subscribe %s*: %w", SubjectPrefix, err)
	}
	b.sub = sub
	return nil
}

func (b *Bridge) relay(msg *nats.Msg) {
	var w wireEvent
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		b.logger.WithError(err).WithField("subject", msg.Subject).Warn("dropping malformed event")
		return
	}
	if w.Origin == b.instance {
		return
	}
	_ = b.hub.Publish(context.Background(), w.Event)
}

func (b *Bridge) Publish(ctx context.Context, ev Event) error {
	if err := b.hub.Publish(ctx, ev); err != nil {
		return err
	}
	data, err := json.Marshal(wireEvent{Origin: b.instance, Event: ev})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.nc.Publish(Subject(ev.MatchCode), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(ev.MatchCode), err)
	}
	return nil
}

// Close stops relaying and drains the connection.
func (b *Bridge) Close() error {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	return b.nc.Drain()
}
