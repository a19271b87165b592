package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/interfaces"
	"github.com/prreminder/frontend/pkg/domain/model"
)

var ErrNotFound = interfaces.ErrSessionNotFound

// Memory is an in-process SessionRepository for development and tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.Session
}

var _ interfaces.SessionRepository = &Memory{}

func New() *Memory {
	return &Memory{
		sessions: make(map[model.SessionID]*model.Session),
	}
}

func (m *Memory) PutSession(ctx context.Context, session *model.Session) error {
	if err := session.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid session ID")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "session is not stored", goerr.V("id", id))
	}

	return session.Clone(), nil
}

func (m *Memory) DeleteSession(ctx context.Context, id model.SessionID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return goerr.Wrap(ErrNotFound, "session is not stored", goerr.V("id", id))
	}

	delete(m.sessions, id)
	return nil
}

func (m *Memory) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]model.SessionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted []model.SessionID
	for id, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, id)
			deleted = append(deleted, id)
		}
	}

	return deleted, nil
}

func (m *Memory) Close() error {
	return nil
}
