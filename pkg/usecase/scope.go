package usecase

import (
	"sync"
	"time"

	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
)

// Scope bundles the per-session controllers. It lives in memory only; a
// restarted process rebuilds it lazily from the persisted session.
type Scope struct {
	SessionID     model.SessionID
	API           backend.Service
	Auth          *AuthController
	Notifications *NotificationQuery

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Scope) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Scope) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

type scopeRegistry struct {
	scopes sync.Map // model.SessionID -> *Scope
}

func newScopeRegistry() *scopeRegistry {
	return &scopeRegistry{}
}

// getOrCreate returns the scope of id, building it with build on first use.
func (r *scopeRegistry) getOrCreate(id model.SessionID, build func() *Scope) *Scope {
	if v, ok := r.scopes.Load(id); ok {
		return v.(*Scope)
	}
	v, _ := r.scopes.LoadOrStore(id, build())
	return v.(*Scope)
}

func (r *scopeRegistry) remove(id model.SessionID) {
	r.scopes.Delete(id)
}

// evictIdle drops scopes unused for longer than ttl and returns how many.
func (r *scopeRegistry) evictIdle(now time.Time, ttl time.Duration) int {
	n := 0
	r.scopes.Range(func(key, value any) bool {
		if value.(*Scope).idleSince(now) > ttl {
			r.scopes.Delete(key)
			n++
		}
		return true
	})
	return n
}

func (r *scopeRegistry) len() int {
	n := 0
	r.scopes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
