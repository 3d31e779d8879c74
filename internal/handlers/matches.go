// internal/handlers/matches.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/coordinator"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/models"
)

// CreateMatchRequest is the body of POST /matches. opponentId is the common single-opponent form;
// opponentIds extends it for larger turn_passing games.
type CreateMatchRequest struct {
	OpponentID    *uuid.UUID       `json:"opponentId,omitempty"`
	OpponentIDs   []uuid.UUID      `json:"opponentIds,omitempty"`
	Mode          models.MatchMode `json:"mode"`
	Topic         string           `json:"topic,omitempty"`
	Certification string           `json:"certification,omitempty"`
	QuestionCount int              `json:"questionCount,omitempty"`
	AutoStart     bool             `json:"autoStart,omitempty"`
}

type CreateMatchResponse struct {
	MatchCode string             `json:"matchCode"`
	Status    models.MatchStatus `json:"status"`
	Version   int64              `json:"version"`
	Match     match.MatchView    `json:"match"`
}

// PatchMatchRequest is the body of PATCH /matches/{code}.
type PatchMatchRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type chatData struct {
	Text string `json:"text"`
}

// ModeActionRequest is the body of POST /matches/{code}/{mode}.
type ModeActionRequest struct {
	Action      string     `json:"action"`
	TargetID    *uuid.UUID `json:"targetId,omitempty"`
	AnswerIndex *int       `json:"answerIndex,omitempty"`
	Cursor      *int       `json:"cursor,omitempty"`
}

func (s *APIServer) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	actor, err := s.caller(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	var req CreateMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, s.logger, r, err)
		return
	}

	opponents := req.OpponentIDs
	if req.OpponentID != nil {
		opponents = append([]uuid.UUID{*req.OpponentID}, opponents...)
	}
	res, err := s.coord.Create(r.Context(), actor, coordinator.CreateRequest{
		OpponentIDs:   opponents,
		Mode:          req.Mode,
		Topic:         req.Topic,
		Certification: req.Certification,
		QuestionCount: req.QuestionCount,
		AutoStart:     req.AutoStart,
	})
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateMatchResponse{
		MatchCode: res.Match.Code,
		Status:    res.Match.Status,
		Version:   res.Match.Version,
		Match:     res.View(s.clock.Now()),
	})
}

func (s *APIServer) handleListMatches(w http.ResponseWriter, r *http.Request) {
	actor, err := s.caller(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	views, err := s.coord.ListOpen(r.Context(), actor)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": views})
}

func (s *APIServer) handleGetMatch(w http.ResponseWriter, r *http.Request) {
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
	view, err := s.coord.Snapshot(r.Context(), actor, code)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePatchMatch covers the lifecycle actions and room chat.
func (s *APIServer) handlePatchMatch(w http.ResponseWriter, r *http.Request) {
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
	var req PatchMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, s.logger, r, err)
		return
	}

	switch action := match.Action(req.Action); action {
	case match.ActionAccept, match.ActionDecline, match.ActionStart:
		s.act(w, r, actor, code, action, match.Payload{})
	case "chat":
		var data chatData
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &data); err != nil {
				writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "chat data must be {\"text\": ...}"))
				return
			}
		}
		if err := s.coord.Chat(r.Context(), actor, code, data.Text); err != nil {
			writeError(w, s.logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "unsupported action %q", req.Action))
	}
}

// handleModeAction covers the in-match actions. The mode segment must agree with both the action
// and the match.
func (s *APIServer) handleModeAction(w http.ResponseWriter, r *http.Request) {
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
	mode := models.MatchMode(r.PathValue("mode"))
	if !mode.Valid() {
		writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "unknown mode %q", mode))
		return
	}
	var req ModeActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, s.logger, r, err)
		return
	}

	action := match.Action(req.Action)
	switch {
	case action == match.ActionStart:
		view, err := s.coord.Snapshot(r.Context(), actor, code)
		if err != nil {
			writeError(w, s.logger, r, err)
			return
		}
		if view.Mode != mode {
			writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "match %s is %s, not %s", code, view.Mode, mode))
			return
		}
	case action == match.ActionExpire:
		writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "expire is not a client action; use explode"))
		return
	case action.Mode() != mode:
		writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "action %q is not part of %s", req.Action, mode))
		return
	}

	s.act(w, r, actor, code, action, match.Payload{
		TargetID:    req.TargetID,
		AnswerIndex: req.AnswerIndex,
		Cursor:      req.Cursor,
	})
}

func (s *APIServer) act(w http.ResponseWriter, r *http.Request, actor uuid.UUID, code string, action match.Action, p match.Payload) {
	res, err := s.coord.Act(r.Context(), actor, code, action, p)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.View(s.clock.Now()))
}
