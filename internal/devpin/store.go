// Package devpin keeps the last reset PIN per identity in memory, used only when
// dev PIN mode is enabled (GET /dev/pin).
package devpin

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a dev PIN stays retrievable.
const DefaultTTL = 10 * time.Minute

// Store holds plain reset PINs by identity for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores pin for identity for ttl. Used by the forgot-pin flow in dev mode.
	Put(ctx context.Context, identity, pin string, ttl time.Duration)
	// Get returns the pin for identity if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, identity string) (pin string, ok bool)
}

type entry struct {
	pin       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev PIN store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores pin for identity for ttl, replacing any earlier pin. A non-positive ttl uses DefaultTTL.
func (s *MemoryStore) Put(ctx context.Context, identity, pin string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[identity] = entry{pin: pin, expiresAt: s.nowF().Add(ttl)}
}

// Get returns the pin for identity if present and not expired. Expired entries are dropped.
func (s *MemoryStore) Get(ctx context.Context, identity string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[identity]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, identity)
		s.mu.Unlock()
		return "", false
	}
	return e.pin, true
}
