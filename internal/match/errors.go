package match

import (
	"errors"
	"fmt"
)

// RejectionKind is the stable, machine-readable reason an action was refused.
type RejectionKind string

const (
	NotAuthenticated          RejectionKind = "not_authenticated"
	NotParticipant            RejectionKind = "not_participant"
	NotAuthorizedForAction    RejectionKind = "not_authorized_for_action"
	InvalidMatchStatus        RejectionKind = "invalid_match_status"
	InvalidTarget             RejectionKind = "invalid_target"
	AlreadyClaimed            RejectionKind = "already_claimed"
	StaleHolder               RejectionKind = "stale_holder"
	QuestionSupplyUnavailable RejectionKind = "question_supply_unavailable"
	MatchNotFound             RejectionKind = "match_not_found"
	InvalidPayload            RejectionKind = "invalid_payload"
)

// Rejection is the only error the validator produces. A rejection never leaves the match mutated.
type Rejection struct {
	Kind    RejectionKind
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Is matches any rejection of the same kind, so errors.Is(err, &Rejection{Kind: k}) works.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Kind == r.Kind
}

// Reject builds a rejection with a formatted message.
func Reject(kind RejectionKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a rejection if it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// KindOf returns the rejection kind carried by err, or "" for infrastructure errors.
func KindOf(err error) RejectionKind {
	if r, ok := AsRejection(err); ok {
		return r.Kind
	}
	return ""
}
