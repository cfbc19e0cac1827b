package access

import (
	"sync"
	"time"

	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/google/uuid"
)

type session struct {
	principal schema.Principal
	expires   time.Time
}

// SessionStore maps opaque session tokens to principals.
type SessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]session
}

// NewSessionStore creates a store whose sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session),
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create starts a session for p and returns its token.
func (s *SessionStore) Create(p schema.Principal) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{principal: p, expires: s.now().Add(s.ttl)}
	return token
}

// Get returns the principal for token. Expired sessions are removed.
func (s *SessionStore) Get(token string) (*schema.Principal, bool) {
	if token == "" {
		return nil, false
	}
	s.mu.RLock()
	sess, ok := s.sessions[token]
	now := s.now()
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !now.Before(sess.expires) {
		s.Destroy(token)
		return nil, false
	}
	p := sess.principal
	return &p, true
}

// Destroy ends a session. Unknown tokens are ignored.
func (s *SessionStore) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len returns the number of sessions held, expired ones included until touched.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
