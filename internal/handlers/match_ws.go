// internal/handlers/match_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/fanout"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	wsSubprotocol = "match"
	wsWriteWait   = 5 * time.Second
)

// RoomMessage is an inbound frame on the match socket.
type RoomMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// handleMatchWS joins the caller to the match room. The first frame is the caller's full snapshot;
// afterwards the socket carries room events in publish order. Clients drop updates whose version
// is not newer than the snapshot.
func (s *APIServer) handleMatchWS(w http.ResponseWriter, r *http.Request) {
	actor, err := s.caller(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	code, err := requiredPath(r, "code")
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	// Membership is checked before the upgrade so refusals are plain HTTP errors.
	if _, err := s.coord.Snapshot(r.Context(), actor, code); err != nil {
		writeError(w, s.logger, r, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.WithError(err).WithField("match", code).Warn("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected server exit")

	if c.Subprotocol() != wsSubprotocol {
		c.Close(BadSubprotocolError, "client must use the 'match' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.rooms.Join(code, actor)
	defer s.rooms.Leave(sub)

	view, err := s.coord.Snapshot(ctx, actor, code)
	if err != nil {
		c.Close(websocket.StatusInternalError, "failed to load match")
		return
	}
	snapshot, err := fanout.NewEvent(fanout.EventMatchUpdate, code, s.clock.Now(), view)
	if err == nil {
		snapshot.Version = view.Version
		snapshot.Action = "snapshot"
		s.send(ctx, c, snapshot)
	}

	go s.pump(ctx, cancel, c, sub)
	err = s.readRoomMessages(ctx, c, actor, code)

	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
	c.Close(websocket.StatusNormalClosure, "")
}

// pump forwards room events to the socket until the connection ends or the hub drops the
// subscriber.
func (s *APIServer) pump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, sub *fanout.Subscriber) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.Events():
			if err := s.send(ctx, c, ev); err != nil {
				return
			}
		case <-sub.Done():
			// Dropped by the hub; the client must resync from a fresh snapshot.
			c.Close(SlowConsumerError, "fell behind, reconnect to resync")
			return
		}
	}
}

func (s *APIServer) readRoomMessages(ctx context.Context, c *websocket.Conn, actor uuid.UUID, code string) error {
	log := s.logger.WithFields(logrus.Fields{"match": code, "player": actor})
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, c, code, match.Reject(match.InvalidPayload, "invalid JSON frame"))
			continue
		}

		switch msg.Type {
		case "chat":
			err = s.coord.Chat(ctx, actor, code, msg.Text)
		case "ping-deadline":
			// The client saw the deadline pass; the lazy expiry check does the rest.
			_, err = s.coord.Act(ctx, actor, code, match.ActionExplode, match.Payload{})
		case "ping":
			err = s.send(ctx, c, fanout.Event{Type: "pong", MatchCode: code, At: s.clock.Now().UnixMilli()})
		default:
			err = match.Reject(match.InvalidPayload, "unknown frame type %q", msg.Type)
		}
		if err != nil {
			log.WithError(err).WithField("frame", msg.Type).Debug("frame refused")
			s.sendError(ctx, c, code, err)
		}
	}
}

func (s *APIServer) send(ctx context.Context, c *websocket.Conn, ev fanout.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteWait)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

func (s *APIServer) sendError(ctx context.Context, c *websocket.Conn, code string, err error) {
	_, errCode := StatusFor(err)
	body := ErrorResponse{Error: errCode}
	if r, ok := match.AsRejection(err); ok {
		body.Message = r.Message
	}
	ev, mErr := fanout.NewEvent(fanout.EventError, code, s.clock.Now(), body)
	if mErr != nil {
		return
	}
	_ = s.send(ctx, c, ev)
}
