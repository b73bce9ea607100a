package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"webgate/internal/person/models"
	id "webgate/pkg/domain"
	"webgate/pkg/platform/sentinel"
)

// InMemoryPersonStore keeps people in a map guarded by a RWMutex. Emails are
// unique case-insensitively, matching the PostgreSQL index.
type InMemoryPersonStore struct {
	mu      sync.RWMutex
	people  map[id.PersonID]*models.Person
	byEmail map[string]id.PersonID
}

// NewInMemory returns an empty store.
func NewInMemory() *InMemoryPersonStore {
	return &InMemoryPersonStore{
		people:  make(map[id.PersonID]*models.Person),
		byEmail: make(map[string]id.PersonID),
	}
}

func (s *InMemoryPersonStore) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryPersonStore) FindByEmail(_ context.Context, email string) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	personID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.people[personID].Clone(), nil
}

// Save inserts or replaces the person. A different person already holding the
// same email yields sentinel.ErrConflict.
func (s *InMemoryPersonStore) Save(_ context.Context, person *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(person.Email)
	if owner, ok := s.byEmail[email]; ok && owner != person.ID {
		return sentinel.ErrConflict
	}
	if prev, ok := s.people[person.ID]; ok {
		delete(s.byEmail, normalizeEmail(prev.Email))
	}
	s.people[person.ID] = person.Clone()
	s.byEmail[email] = person.ID
	return nil
}

// TouchActivity sets LastLoggedInAt and leaves every other field as stored.
func (s *InMemoryPersonStore) TouchActivity(_ context.Context, personID id.PersonID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.people[personID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.LastLoggedInAt = at
	return nil
}

// Count returns the number of stored people.
func (s *InMemoryPersonStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.people), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
