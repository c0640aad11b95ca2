package search

import (
	"context"
	"sync"

	contactmodels "contactdir/internal/contact/models"
	"contactdir/internal/searchcache/models"
	"contactdir/pkg/platform/sentinel"
)

// InMemory is a map-backed snapshot store for tests and redis-less local
// runs.
type InMemory struct {
	mu       sync.RWMutex
	searches map[int64]*models.ContactSearch
	contacts map[int64][]*contactmodels.Contact
	nextID   int64
}

// NewInMemory creates an empty in-memory snapshot store.
func NewInMemory() *InMemory {
	return &InMemory{
		searches: make(map[int64]*models.ContactSearch),
		contacts: make(map[int64][]*contactmodels.Contact),
	}
}

// Create stores a search and its captured contacts atomically and returns
// the assigned id.
func (s *InMemory) Create(_ context.Context, search *models.ContactSearch, contacts []*contactmodels.Contact) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := *search
	stored.ID = s.nextID
	s.searches[stored.ID] = &stored

	rows := make([]*contactmodels.Contact, len(contacts))
	for i, c := range contacts {
		rows[i] = c.Clone()
	}
	s.contacts[stored.ID] = rows
	return stored.ID, nil
}

// Fetch loads a search by id scoped to its owner.
func (s *InMemory) Fetch(_ context.Context, id int64, ownerID string) (*models.ContactSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.searches[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

// Contacts returns the captured contacts of a search.
func (s *InMemory) Contacts(_ context.Context, searchID int64, ownerID string) ([]*contactmodels.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.searches[searchID]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	rows := s.contacts[searchID]
	out := make([]*contactmodels.Contact, len(rows))
	for i, c := range rows {
		out[i] = c.Clone()
	}
	return out, nil
}

// Count returns the number of contacts a search captured.
func (s *InMemory) Count(_ context.Context, searchID int64, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.searches[searchID]
	if !ok || stored.OwnerID != ownerID {
		return 0, sentinel.ErrNotFound
	}
	return len(s.contacts[searchID]), nil
}

// Delete removes a search and its captured contacts.
func (s *InMemory) Delete(_ context.Context, id int64, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.searches[id]
	if !ok || stored.OwnerID != ownerID {
		return sentinel.ErrNotFound
	}
	delete(s.searches, id)
	delete(s.contacts, id)
	return nil
}
