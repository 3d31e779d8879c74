// internal/handlers/matches_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/certarena/internal/auth"
	"github.com/jason-s-yu/certarena/internal/coordinator"
	"github.com/jason-s-yu/certarena/internal/fanout"
	"github.com/jason-s-yu/certarena/internal/guard"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/jason-s-yu/certarena/internal/questions"
	"github.com/jason-s-yu/certarena/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler http.Handler
	hub     *fanout.Hub
	clock   *clockwork.FakeClock
	store   *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	items := make([]models.Question, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, models.Question{
			ID:           fmt.Sprintf("s3-%d", i),
			Text:         "Which storage class fits infrequent access?",
			Options:      []string{"Standard", "Standard-IA", "Glacier", "One Zone"},
			CorrectIndex: 1,
			Topic:        "s3",
		})
	}

	f := &fixture{
		clock: clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000)),
		store: store.NewMemoryStore(),
	}
	f.hub = fanout.NewHub(f.clock, logger)
	coord := coordinator.New(f.store, guard.NewKeyedMutex(time.Second), f.hub, questions.NewBank(items, 1), f.clock, logger,
		coordinator.Settings{Rules: match.DefaultRules(), QuestionCount: 5, AbandonGrace: time.Minute, SweepInterval: time.Minute},
		coordinator.WithSeed(3))
	f.handler = NewAPIServer(coord, f.hub, f.clock, logger).WithOrigins([]string{"*"}).Routes()
	return f
}

func tokenFor(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := auth.CreateJWT(id)
	require.NoError(t, err)
	return token
}

// do runs a request as id (uuid.Nil sends no credentials) and decodes the JSON response into out.
func (f *fixture) do(t *testing.T, id uuid.UUID, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if id != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, id))
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func (f *fixture) createAccepted(t *testing.T, mode models.MatchMode, host, opponent uuid.UUID) string {
	t.Helper()
	var created CreateMatchResponse
	code := f.do(t, host, "POST", "/matches", map[string]any{"opponentId": opponent, "mode": mode, "topic": "s3"}, &created)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, http.StatusOK, f.do(t, opponent, "PATCH", "/matches/"+created.MatchCode, map[string]any{"action": "accept"}, nil))
	return created.MatchCode
}

func TestCreateMatch(t *testing.T) {
	f := newFixture(t)
	host, opponent := uuid.New(), uuid.New()

	var created CreateMatchResponse
	code := f.do(t, host, "POST", "/matches", map[string]any{"opponentId": opponent, "mode": "quiz_buzz"}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Len(t, strings.Split(created.MatchCode, "-"), 3, "petname code")
	assert.Equal(t, host, created.Match.MyPlayerID)

	var e ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, f.do(t, uuid.Nil, "POST", "/matches", map[string]any{"opponentId": opponent, "mode": "quiz_buzz"}, &e))
	assert.Equal(t, "not_authenticated", e.Error)

	assert.Equal(t, http.StatusBadRequest, f.do(t, host, "POST", "/matches", map[string]any{"opponentId": host, "mode": "quiz_buzz"}, &e))
	assert.Equal(t, "invalid_payload", e.Error)
}

func TestAccept_ChallengerRejectedOverHTTP(t *testing.T) {
	f := newFixture(t)
	host, opponent := uuid.New(), uuid.New()

	var created CreateMatchResponse
	require.Equal(t, http.StatusCreated, f.do(t, host, "POST", "/matches", map[string]any{"opponentId": opponent, "mode": "turn_passing"}, &created))

	var e ErrorResponse
	assert.Equal(t, http.StatusForbidden, f.do(t, host, "PATCH", "/matches/"+created.MatchCode, map[string]any{"action": "accept"}, &e))
	assert.Equal(t, "not_authorized_for_action", e.Error)

	var view match.MatchView
	require.Equal(t, http.StatusOK, f.do(t, host, "GET", "/matches/"+created.MatchCode, nil, &view))
	assert.Equal(t, models.StatusPending, view.Status)
}

func TestGetMatch_Errors(t *testing.T) {
	f := newFixture(t)
	host, opponent := uuid.New(), uuid.New()
	code := f.createAccepted(t, models.ModeQuizBuzz, host, opponent)

	var e ErrorResponse
	assert.Equal(t, http.StatusNotFound, f.do(t, host, "GET", "/matches/missing-match-code", nil, &e))
	assert.Equal(t, "match_not_found", e.Error)

	assert.Equal(t, http.StatusForbidden, f.do(t, uuid.New(), "GET", "/matches/"+code, nil, &e))
	assert.Equal(t, "not_participant", e.Error)
}

func TestBuzzRaceOverHTTP(t *testing.T) {
	f := newFixture(t)
	host, opponent := uuid.New(), uuid.New()
	code := f.createAccepted(t, models.ModeQuizBuzz, host, opponent)
	path := "/matches/" + code + "/quiz_buzz"

	var e ErrorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, host, "POST", "/matches/"+code+"/turn_passing", map[string]any{"action": "start"}, &e))
	assert.Equal(t, "invalid_payload", e.Error, "mode segment must match the match")

	var view match.MatchView
	require.Equal(t, http.StatusOK, f.do(t, host, "POST", path, map[string]any{"action": "start"}, &view))
	assert.True(t, view.Started)
	require.NotNil(t, view.Question)
	assert.NotContains(t, mustJSON(t, view), "correctIndex")

	require.Equal(t, http.StatusOK, f.do(t, opponent, "POST", path, map[string]any{"action": "buzz", "cursor": 0}, &view))
	assert.True(t, view.ICanAnswer)

	assert.Equal(t, http.StatusBadRequest, f.do(t, host, "POST", path, map[string]any{"action": "buzz", "cursor": 0}, &e))
	assert.Equal(t, "already_claimed", e.Error)

	assert.Equal(t, http.StatusBadRequest, f.do(t, host, "POST", path, map[string]any{"action": "pass"}, &e))
	assert.Equal(t, "invalid_payload", e.Error)

	require.Equal(t, http.StatusOK, f.do(t, opponent, "POST", path, map[string]any{"action": "answer", "cursor": 0, "answerIndex": 1}, &view))
	assert.Equal(t, 1, view.Cursor)
}

func TestRepeatedPassOverHTTP(t *testing.T) {
	f := newFixture(t)
	host, opponent := uuid.New(), uuid.New()
	code := f.createAccepted(t, models.ModeTurnPassing, host, opponent)
	path := "/matches/" + code + "/turn_passing"

	var view match.MatchView
	require.Equal(t, http.StatusOK, f.do(t, host, "POST", path, map[string]any{"action": "start"}, &view))
	require.NotNil(t, view.HolderID)
	holder := *view.HolderID
	target := opponent
	if holder == opponent {
		target = host
	}

	body := map[string]any{"action": "pass", "targetId": target, "answerIndex": 1}
	require.Equal(t, http.StatusOK, f.do(t, holder, "POST", path, body, &view))
	assert.Equal(t, 1, view.Cursor)

	var e ErrorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, holder, "POST", path, body, &e))
	assert.Equal(t, "stale_holder", e.Error)
}

func TestPatchMatch_Chat(t *testing.T) {
	f := newFixture(t)
	host, opponent := uuid.New(), uuid.New()
	code := f.createAccepted(t, models.ModeQuizBuzz, host, opponent)

	sub := f.hub.Join(code, opponent)
	defer f.hub.Leave(sub)
	<-sub.Events() // own room-update

	assert.Equal(t, http.StatusNoContent, f.do(t, host, "PATCH", "/matches/"+code, map[string]any{"action": "chat", "data": map[string]string{"text": "gl hf"}}, nil))
	ev := <-sub.Events()
	assert.Equal(t, fanout.EventChatMessage, ev.Type)

	var e ErrorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, host, "PATCH", "/matches/"+code, map[string]any{"action": "chat", "data": map[string]string{"text": strings.Repeat("x", 501)}}, &e))
	assert.Equal(t, http.StatusBadRequest, f.do(t, host, "PATCH", "/matches/"+code, map[string]any{"action": "teleport"}, &e))
}

func TestGuestSessionAndRating(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("POST", "/session/guest", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var session struct {
		PlayerID uuid.UUID `json:"playerId"`
		Token    string    `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)

	req = httptest.NewRequest("GET", "/ratings/quiz_buzz", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rt models.PlayerRating
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rt))
	assert.Equal(t, session.PlayerID, rt.PlayerID)
	assert.Equal(t, models.DefaultRating, rt.Rating)
}

func TestStatusFor(t *testing.T) {
	cases := map[match.RejectionKind]int{
		match.NotAuthenticated:          http.StatusUnauthorized,
		match.NotParticipant:            http.StatusForbidden,
		match.NotAuthorizedForAction:    http.StatusForbidden,
		match.MatchNotFound:             http.StatusNotFound,
		match.InvalidMatchStatus:        http.StatusBadRequest,
		match.InvalidTarget:             http.StatusBadRequest,
		match.InvalidPayload:            http.StatusBadRequest,
		match.AlreadyClaimed:            http.StatusBadRequest,
		match.StaleHolder:               http.StatusBadRequest,
		match.QuestionSupplyUnavailable: http.StatusInternalServerError,
	}
	for kind, want := range cases {
		status, code := StatusFor(match.Reject(kind, "x"))
		assert.Equal(t, want, status, kind)
		assert.Equal(t, string(kind), code)
	}

	status, code := StatusFor(fmt.Errorf("wrapped: %w", guard.ErrLockTimeout))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "match_busy", code)

	status, code = StatusFor(io.ErrUnexpectedEOF)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)
}

func TestMatchWS_SnapshotThenUpdates(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	host, opponent := uuid.New(), uuid.New()
	code := f.createAccepted(t, models.ModeQuizBuzz, host, opponent)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tokenFor(t, opponent))
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/matches/"+code+"/ws", &websocket.DialOptions{
		Subprotocols: []string{"match"},
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	first := readEvent(t, ctx, conn)
	assert.Equal(t, fanout.EventMatchUpdate, first.Type)
	assert.Equal(t, "snapshot", first.Action)
	var view match.MatchView
	require.NoError(t, json.Unmarshal(first.Data, &view))
	assert.Equal(t, opponent, view.MyPlayerID)

	require.Equal(t, http.StatusOK, f.do(t, host, "POST", "/matches/"+code+"/quiz_buzz", map[string]any{"action": "start"}, nil))

	for {
		ev := readEvent(t, ctx, conn)
		if ev.Type == fanout.EventRoomUpdate {
			continue
		}
		assert.Equal(t, fanout.EventMatchUpdate, ev.Type)
		assert.Equal(t, "start", ev.Action)
		assert.Greater(t, ev.Version, first.Version)
		break
	}

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bogus"}`)))
	for {
		ev := readEvent(t, ctx, conn)
		if ev.Type != fanout.EventError {
			continue
		}
		assert.Contains(t, string(ev.Data), "invalid_payload")
		break
	}
}

func TestMatchWS_RejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	code := f.createAccepted(t, models.ModeQuizBuzz, uuid.New(), uuid.New())

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tokenFor(t, uuid.New()))
	_, resp, err := websocket.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/matches/"+code+"/ws", &websocket.DialOptions{
		Subprotocols: []string{"match"},
		HTTPHeader:   header,
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) fanout.Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev fanout.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
