package contact

import (
	"context"
	"sync"

	"contactdir/internal/contact/models"
	"contactdir/pkg/platform/sentinel"
)

// InMemory implements the contact store over a mutex-guarded map. Tests and
// local development use it; semantics mirror the postgres store, including
// the conditional update on lock_version.
type InMemory struct {
	mu       sync.RWMutex
	contacts map[int64]*models.Contact
	nextID   int64
}

// NewInMemory creates an empty in-memory contact store.
func NewInMemory() *InMemory {
	return &InMemory{contacts: make(map[int64]*models.Contact), nextID: 1}
}

func (s *InMemory) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := c.Clone()
	stored.ID = s.nextID
	s.nextID++
	s.contacts[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *InMemory) FetchByID(ctx context.Context, id int64, ownerID string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.contacts[c.ID]
	if !ok || stored.OwnerID != c.OwnerID {
		return nil, sentinel.ErrNotFound
	}
	if stored.LockVersion != c.LockVersion {
		return nil, sentinel.ErrVersionConflict
	}

	updated := c.Clone()
	updated.LockVersion = stored.LockVersion + 1
	updated.CreatedOn = stored.CreatedOn
	s.contacts[c.ID] = updated
	return updated.Clone(), nil
}

func (s *InMemory) Delete(ctx context.Context, id int64, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return sentinel.ErrNotFound
	}
	delete(s.contacts, id)
	return nil
}

func (s *InMemory) BulkSave(ctx context.Context, ownerID string, contacts []*models.Contact) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(contacts))
	for _, c := range contacts {
		stored := c.Clone()
		stored.ID = s.nextID
		stored.OwnerID = ownerID
		s.nextID++
		s.contacts[stored.ID] = stored
		ids = append(ids, stored.ID)
	}
	return ids, nil
}

func (s *InMemory) DeleteByIDs(ctx context.Context, ownerID string, ids []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if c, ok := s.contacts[id]; ok && c.OwnerID == ownerID {
			delete(s.contacts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemory) FetchByQuery(ctx context.Context, ownerID string, q models.Query) ([]*models.Contact, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Contact
	for _, c := range s.contacts {
		if c.OwnerID == ownerID && q.Matches(c) {
			matched = append(matched, c.Clone())
		}
	}
	q.Sort(matched)
	total := len(matched)
	return q.Paginate(matched), total, nil
}

func (s *InMemory) CountByQuery(ctx context.Context, ownerID string, q models.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.contacts {
		if c.OwnerID == ownerID && q.Matches(c) {
			count++
		}
	}
	return count, nil
}
