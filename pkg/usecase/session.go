package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/interfaces"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
)

// LoginPath is the unauthenticated entry point.
const LoginPath = "/login"

// SessionStore is the single writer of session state, including the
// persisted bearer token. Mutations of one session are serialized.
type SessionStore struct {
	repo  interfaces.SessionRepository
	ttl   time.Duration
	now   func() time.Time
	locks sync.Map // model.SessionID -> *sync.Mutex
}

func NewSessionStore(repo interfaces.SessionRepository, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = model.DefaultSessionTTL
	}
	return &SessionStore{repo: repo, ttl: ttl, now: time.Now}
}

func (s *SessionStore) lock(id model.SessionID) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Start creates and persists a fresh unauthenticated session.
func (s *SessionStore) Start(ctx context.Context) (*model.Session, error) {
	session := model.NewSession(s.now(), s.ttl)
	if err := s.repo.PutSession(ctx, session); err != nil {
		return nil, goerr.Wrap(err, "failed to start session")
	}
	return session, nil
}

// Get returns the stored session. Expired sessions are deleted and reported
// as not found.
func (s *SessionStore) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, id); err != nil && !errors.Is(err, interfaces.ErrSessionNotFound) {
			return nil, goerr.Wrap(err, "failed to delete expired session", goerr.V(SessionIDKey, id))
		}
		return nil, goerr.Wrap(interfaces.ErrSessionNotFound, "session expired", goerr.V(SessionIDKey, id))
	}
	return session, nil
}

// Resume returns the session for id, or starts a new one when id is empty,
// malformed, unknown or expired.
func (s *SessionStore) Resume(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if id.Validate() == nil {
		session, err := s.Get(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, interfaces.ErrSessionNotFound) {
			return nil, err
		}
	}
	return s.Start(ctx)
}

// update applies fn to the stored session under the session lock, slides
// its expiry and persists it.
func (s *SessionStore) update(ctx context.Context, id model.SessionID, fn func(*model.Session) error) (*model.Session, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}

	session.Touch(s.now(), s.ttl)
	if err := s.repo.PutSession(ctx, session); err != nil {
		return nil, goerr.Wrap(err, "failed to save session", goerr.V(SessionIDKey, id))
	}
	return session, nil
}

// SetAuth stores token and the authenticated flag. It does not fetch the
// user; the session stays unauthenticated until SetUser.
func (s *SessionStore) SetAuth(ctx context.Context, id model.SessionID, token string, authenticated bool) error {
	_, err := s.update(ctx, id, func(session *model.Session) error {
		if token != session.Token {
			session.User = nil
		}
		session.Token = token
		session.Authenticated = authenticated && token != ""
		return nil
	})
	return err
}

// SetUser replaces the cached profile.
func (s *SessionStore) SetUser(ctx context.Context, id model.SessionID, user *model.User) error {
	_, err := s.update(ctx, id, func(session *model.Session) error {
		session.User = user.Clone()
		return nil
	})
	return err
}

// setUserForToken stores user only if the session still holds token, so a
// response for a credential that was since replaced or cleared is dropped.
func (s *SessionStore) setUserForToken(ctx context.Context, id model.SessionID, token string, user *model.User) (bool, error) {
	applied := false
	_, err := s.update(ctx, id, func(session *model.Session) error {
		if session.Token == "" || session.Token != token {
			return nil
		}
		session.User = user.Clone()
		session.Authenticated = true
		applied = true
		return nil
	})
	return applied, err
}

// ClearAuth drops token and user without navigating anywhere.
func (s *SessionStore) ClearAuth(ctx context.Context, id model.SessionID) error {
	_, err := s.update(ctx, id, func(session *model.Session) error {
		session.ResetAuth()
		return nil
	})
	return err
}

// Logout clears the credential and returns where the browser must go.
// Logging out an unknown session still succeeds.
func (s *SessionStore) Logout(ctx context.Context, id model.SessionID) (string, error) {
	if err := s.ClearAuth(ctx, id); err != nil && !errors.Is(err, interfaces.ErrSessionNotFound) {
		return "", goerr.Wrap(err, "failed to logout", goerr.V(SessionIDKey, id))
	}
	return LoginPath, nil
}

func (s *SessionStore) PushFlash(ctx context.Context, id model.SessionID, flash model.Flash) error {
	_, err := s.update(ctx, id, func(session *model.Session) error {
		session.Flashes = append(session.Flashes, flash)
		return nil
	})
	return err
}

// PopFlashes returns and removes the pending flashes.
func (s *SessionStore) PopFlashes(ctx context.Context, id model.SessionID) ([]model.Flash, error) {
	var flashes []model.Flash
	_, err := s.update(ctx, id, func(session *model.Session) error {
		flashes = session.Flashes
		session.Flashes = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flashes, nil
}

func (s *SessionStore) SetPreferences(ctx context.Context, id model.SessionID, prefs model.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidPreference, err.Error(), goerr.V(SessionIDKey, id))
	}
	_, err := s.update(ctx, id, func(session *model.Session) error {
		session.Preferences = prefs
		return nil
	})
	return err
}

// Delete removes a session entirely.
func (s *SessionStore) Delete(ctx context.Context, id model.SessionID) error {
	unlock := s.lock(id)
	defer unlock()
	defer s.locks.Delete(id)

	if err := s.repo.DeleteSession(ctx, id); err != nil && !errors.Is(err, interfaces.ErrSessionNotFound) {
		return goerr.Wrap(err, "failed to delete session", goerr.V(SessionIDKey, id))
	}
	return nil
}

// DeleteExpired removes sessions that expired at or before now.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) ([]model.SessionID, error) {
	ids, err := s.repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to delete expired sessions")
	}
	for _, id := range ids {
		s.locks.Delete(id)
	}
	return ids, nil
}

// TokenStore exposes the token of one session to the gateway client.
func (s *SessionStore) TokenStore(id model.SessionID) backend.TokenStore {
	return &sessionTokens{store: s, id: id}
}

type sessionTokens struct {
	store *SessionStore
	id    model.SessionID
}

func (t *sessionTokens) Token(ctx context.Context) (string, error) {
	session, err := t.store.Get(ctx, t.id)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			return "", nil
		}
		return "", err
	}
	return session.Token, nil
}

// SetToken rotates the credential and keeps the cached user, which is what
// a token refresh needs.
func (t *sessionTokens) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return t.ClearToken(ctx)
	}
	_, err := t.store.update(ctx, t.id, func(session *model.Session) error {
		session.Token = token
		return nil
	})
	return err
}

func (t *sessionTokens) ClearToken(ctx context.Context) error {
	return t.store.ClearAuth(ctx, t.id)
}
