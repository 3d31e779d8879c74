// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/certarena/internal/guard"
	"github.com/jason-s-yu/certarena/internal/match"
	"github.com/sirupsen/logrus"
)

const (
	codeInternal  = "internal_error"
	codeMatchBusy = "match_busy"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// rejectionStatus maps each rejection kind to exactly one HTTP status.
var rejectionStatus = map[match.RejectionKind]int{
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

// StatusFor returns the HTTP status and stable code for err. Lost races share 400 with other
// illegal actions; clients branch on the code.
func StatusFor(err error) (int, string) {
	if r, ok := match.AsRejection(err); ok {
		if status, known := rejectionStatus[r.Kind]; known {
			return status, string(r.Kind)
		}
		return http.StatusBadRequest, string(r.Kind)
	}
	if errors.Is(err, guard.ErrLockTimeout) {
		return http.StatusInternalServerError, codeMatchBusy
	}
	return http.StatusInternalServerError, codeInternal
}

// writeError renders err. Infrastructure failures are logged and their details hidden.
func writeError(w http.ResponseWriter, logger *logrus.Logger, r *http.Request, err error) {
	status, code := StatusFor(err)
	body := ErrorResponse{Error: code}
	if rej, ok := match.AsRejection(err); ok {
		body.Message = rej.Message
	} else {
		logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, status, body)
}
