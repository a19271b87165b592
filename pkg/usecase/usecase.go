package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/interfaces"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/utils/logging"
)

const defaultScopeIdleTTL = 6 * time.Hour

// BackendFactory binds a backend client to one session's credential.
type BackendFactory func(tokens backend.TokenStore) backend.Service

type UseCases struct {
	Sessions *SessionStore

	factory       BackendFactory
	scopes        *scopeRegistry
	sessionTTL    time.Duration
	scopeIdleTTL  time.Duration
	refreshWindow time.Duration
	filters       model.NotificationFilters
	now           func() time.Time
}

type Option func(*UseCases)

func WithSessionTTL(ttl time.Duration) Option {
	return func(uc *UseCases) {
		uc.sessionTTL = ttl
	}
}

// WithScopeIdleTTL bounds how long unused in-memory controllers are kept.
// The session itself outlives them.
func WithScopeIdleTTL(ttl time.Duration) Option {
	return func(uc *UseCases) {
		uc.scopeIdleTTL = ttl
	}
}

func WithRefreshWindow(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.refreshWindow = d
	}
}

// WithDefaultFilters sets the initial list filters of new scopes.
func WithDefaultFilters(f model.NotificationFilters) Option {
	return func(uc *UseCases) {
		uc.filters = f
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.SessionRepository, factory BackendFactory, opts ...Option) *UseCases {
	uc := &UseCases{
		factory:       factory,
		scopes:        newScopeRegistry(),
		sessionTTL:    model.DefaultSessionTTL,
		scopeIdleTTL:  defaultScopeIdleTTL,
		refreshWindow: DefaultRefreshWindow,
		filters:       model.DefaultFilters(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Sessions = NewSessionStore(repo, uc.sessionTTL)
	uc.Sessions.now = uc.now

	return uc
}

// Scope returns the controllers of session id, creating them on first use.
func (uc *UseCases) Scope(id model.SessionID) *Scope {
	scope := uc.scopes.getOrCreate(id, func() *Scope {
		api := uc.factory(uc.Sessions.TokenStore(id))
		auth := NewAuthController(id, uc.Sessions, api, uc.refreshWindow)
		auth.now = uc.now
		return &Scope{
			SessionID:     id,
			API:           api,
			Auth:          auth,
			Notifications: NewNotificationQuery(api, uc.filters),
		}
	})
	scope.touch(uc.now())
	return scope
}

// Logout clears the session credential and drops its controllers, so any
// response still in flight for the old scope has nowhere to land.
func (uc *UseCases) Logout(ctx context.Context, id model.SessionID) (string, error) {
	path, err := uc.Scope(id).Auth.Logout(ctx)
	if err != nil {
		return "", err
	}
	uc.scopes.remove(id)
	return path, nil
}

// SweepExpired deletes expired sessions and idle scopes. It satisfies
// worker.SessionSweeper.
func (uc *UseCases) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := uc.Sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to sweep sessions")
	}
	for _, id := range ids {
		uc.scopes.remove(id)
	}

	if evicted := uc.scopes.evictIdle(now, uc.scopeIdleTTL); evicted > 0 {
		logging.From(ctx).Debug("evicted idle session scopes", "count", evicted)
	}

	return len(ids), nil
}
