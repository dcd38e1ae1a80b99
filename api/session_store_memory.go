package api

import (
	"context"
	"sync"
	"time"

	"github.com/fyshare/fyshare/internal/audit"
)

// MemorySessionStore is a thread-safe in-memory SessionStore.
// Sessions are lost on server restart.
type MemorySessionStore struct {
	mu    sync.Mutex
	data  map[string]Session
	audit *audit.Logger
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store. al receives
// session_expired events and may be nil.
func NewMemorySessionStore(al *audit.Logger) *MemorySessionStore {
	return &MemorySessionStore{
		data:  make(map[string]Session),
		audit: al,
	}
}

func (s *MemorySessionStore) Add(token, address string, expiresAt time.Time) {
	s.mu.Lock()
	s.data[token] = Session{Token: token, Address: address, ExpiresAt: expiresAt}
	s.mu.Unlock()
}

func (s *MemorySessionStore) Remove(token string) {
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
}

func (s *MemorySessionStore) Get(token string, now time.Time) (Session, bool) {
	s.mu.Lock()
	session, ok := s.data[token]
	s.mu.Unlock()
	if !ok || !now.Before(session.ExpiresAt) {
		return Session{}, false
	}
	return session, true
}

func (s *MemorySessionStore) CleanExpired(now time.Time) {
	var expired []Session
	s.mu.Lock()
	for token, session := range s.data {
		if !session.ExpiresAt.After(now) {
			expired = append(expired, session)
			delete(s.data, token)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		s.audit.Info(context.Background(), audit.SessionExpired, session.Address, tokenAttr(session.Token))
	}
}

func (s *MemorySessionStore) RemoveByAddress(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, session := range s.data {
		if session.Address == address {
			delete(s.data, token)
			n++
		}
	}
	return n
}

func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
