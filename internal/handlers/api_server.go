// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/auth"
	"github.com/jason-s-yu/certarena/internal/coordinator"
	"github.com/jason-s-yu/certarena/internal/fanout"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/middleware"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Rooms is the local membership surface of the fanout hub.
type Rooms interface {
	Join(code string, playerID uuid.UUID) *fanout.Subscriber
	Leave(s *fanout.Subscriber)
}

// RatingReader serves persisted ratings. Without one every player reports the starting rating.
type RatingReader interface {
	Rating(ctx context.Context, id uuid.UUID, mode models.MatchMode) (models.PlayerRating, error)
}

// APIServer is the request gateway: it resolves the caller, translates requests into coordinator
// calls and renders snapshots. It holds no match state.
type APIServer struct {
	coord   *coordinator.Coordinator
	rooms   Rooms
	ratings RatingReader
	clock   clockwork.Clock
	logger  *logrus.Logger

	secureCookies  bool
	originPatterns []string
}

func NewAPIServer(coord *coordinator.Coordinator, rooms Rooms, clock clockwork.Clock, logger *logrus.Logger) *APIServer {
	return &APIServer{
		coord:  coord,
		rooms:  rooms,
		clock:  clock,
		logger: logger,
	}
}

// WithRatings enables GET /ratings/{mode} against persisted ratings.
func (s *APIServer) WithRatings(r RatingReader) *APIServer {
	s.ratings = r
	return s
}

// WithSecureCookies marks issued session cookies Secure.
func (s *APIServer) WithSecureCookies(secure bool) *APIServer {
	s.secureCookies = secure
	return s
}

// WithOrigins sets the host patterns allowed to open match sockets from a browser.
func (s *APIServer) WithOrigins(patterns []string) *APIServer {
	s.originPatterns = patterns
	return s
}

// Routes registers every endpoint and wraps the mux in request logging.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /session/guest", s.handleGuestSession)
	mux.HandleFunc("GET /ratings/{mode}", s.handleRating)

	mux.HandleFunc("POST /matches", s.handleCreateMatch)
	mux.HandleFunc("GET /matches", s.handleListMatches)
	mux.HandleFunc("GET /matches/{code}", s.handleGetMatch)
	mux.HandleFunc("PATCH /matches/{code}", s.handlePatchMatch)
	mux.HandleFunc("POST /matches/{code}/{mode}", s.handleModeAction)
	mux.HandleFunc("GET /matches/{code}/ws", s.handleMatchWS)

	return middleware.LogMiddleware(s.logger)(mux)
}

// caller resolves the authenticated player, mapping every auth failure to NotAuthenticated.
func (s *APIServer) caller(r *http.Request) (uuid.UUID, error) {
	id, err := auth.PlayerFromRequest(r)
	if err != nil {
		return uuid.Nil, match.Reject(match.NotAuthenticated, "%v", err)
	}
	return id, nil
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"serverTimeMs": s.clock.Now().UnixMilli(),
	})
}

// handleGuestSession issues a token for a fresh player id. It stands in for the real identity
// provider in development and tests.
func (s *APIServer) handleGuestSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	token, err := auth.CreateJWT(id)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	http.SetCookie(w, auth.SessionCookie(token, s.secureCookies))
	s.logger.WithField("player", id).Debug("guest session issued")
	writeJSON(w, http.StatusCreated, map[string]any{
		"playerId": id,
		"token":    token,
	})
}

func (s *APIServer) handleRating(w http.ResponseWriter, r *http.Request) {
	actor, err := s.caller(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	mode := models.MatchMode(r.PathValue("mode"))
	if !mode.Valid() {
		writeError(w, s.logger, r, match.Reject(match.InvalidPayload, "unknown mode %q", mode))
		return
	}
	if s.ratings == nil {
		writeJSON(w, http.StatusOK, models.NewPlayerRating(actor, mode))
		return
	}
	rt, err := s.ratings.Rating(r.Context(), actor, mode)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}
