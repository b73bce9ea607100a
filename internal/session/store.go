package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"webgate/pkg/platform/sentinel"
)

// Store persists session values by token. Load returns sentinel.ErrNotFound
// for unknown or expired tokens.
type Store interface {
	Load(ctx context.Context, token string) (map[string]string, error)
	Save(ctx context.Context, token string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock sets the clock used for expiry.
func WithClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]memoryEntry), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, token string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !s.clock().Before(e.expiresAt) {
		delete(s.entries, token)
		return nil, sentinel.ErrNotFound
	}
	return maps.Clone(e.values), nil
}

func (s *MemoryStore) Save(_ context.Context, token string, values map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{values: maps.Clone(values), expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
