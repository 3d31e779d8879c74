// internal/guard/guard.go
package guard

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when the lock for a key could not be obtained before the wait budget
// or the context ran out.
var ErrLockTimeout = errors.New("guard: timed out waiting for lock")

// Guard serializes the read-validate-write cycle per key. Keys are derived from match codes, never
// from object identity, so an implementation may be process-local or distributed.
type Guard interface {
	// Acquire blocks until the caller exclusively owns key. release must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key returns the lock key for a match code.
func Key(code string) string {
	return "certarena:lock:" + code
}
