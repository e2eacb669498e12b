package access

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by SessionFetcher implementations when
// no session matches the id
var ErrSessionNotFound = errors.New("session not found")

// SessionFetcher loads the session slice the evaluator needs. The
// session service implements this; guards and tests consume it.
type SessionFetcher interface {
	GetSession(ctx context.Context, id string) (*Session, error)
}
