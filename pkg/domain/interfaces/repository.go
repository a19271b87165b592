package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
)

// ErrSessionNotFound is returned by every SessionRepository implementation
// when the requested session does not exist.
var ErrSessionNotFound = goerr.New("session not found")

// SessionRepository persists browser sessions.
type SessionRepository interface {
	PutSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	DeleteSession(ctx context.Context, id model.SessionID) error

	// DeleteExpiredSessions removes every session whose expiry is not after
	// now and returns the removed IDs.
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]model.SessionID, error)

	Close() error
}
