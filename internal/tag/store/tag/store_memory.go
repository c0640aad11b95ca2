package tag

import (
	"context"
	"sort"
	"sync"
	"time"

	"contactdir/internal/tag/models"
	"contactdir/pkg/platform/sentinel"
)

// InMemory is a map-backed tag store for tests and local runs. Links are
// kept as tagID -> contactID sets; contact counts are derived from set
// sizes so they can never drift.
type InMemory struct {
	mu     sync.RWMutex
	tags   map[int64]*models.Tag
	byKey  map[string]int64
	links  map[int64]map[int64]struct{}
	nextID int64
}

// NewInMemory creates an empty in-memory tag store.
func NewInMemory() *InMemory {
	return &InMemory{
		tags:  make(map[int64]*models.Tag),
		byKey: make(map[string]int64),
		links: make(map[int64]map[int64]struct{}),
	}
}

func ownerKey(ownerID, nameKey string) string {
	return ownerID + "\x00" + nameKey
}

// CreateUnique stores the tag unless a tag with the same name key already
// exists for the owner, in which case the existing tag is returned.
func (s *InMemory) CreateUnique(_ context.Context, tag *models.Tag) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[ownerKey(tag.OwnerID, tag.NameKey)]; ok {
		return s.snapshot(s.tags[id]), nil
	}
	return s.insertLocked(tag), nil
}

// Create inserts the tag. An existing tag with the same name key for the
// owner is a conflict.
func (s *InMemory) Create(_ context.Context, tag *models.Tag) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[ownerKey(tag.OwnerID, tag.NameKey)]; ok {
		return nil, sentinel.ErrConflict
	}
	return s.insertLocked(tag), nil
}

func (s *InMemory) insertLocked(tag *models.Tag) *models.Tag {
	s.nextID++
	stored := *tag
	stored.ID = s.nextID
	s.tags[stored.ID] = &stored
	s.byKey[ownerKey(stored.OwnerID, stored.NameKey)] = stored.ID
	s.links[stored.ID] = make(map[int64]struct{})
	return s.snapshot(&stored)
}

// FetchByID loads a tag scoped to its owner.
func (s *InMemory) FetchByID(_ context.Context, id int64, ownerID string) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.tags[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	return s.snapshot(stored), nil
}

// List returns the owner's tags ordered by name key.
func (s *InMemory) List(_ context.Context, ownerID string) ([]*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Tag
	for _, t := range s.tags {
		if t.OwnerID == ownerID {
			out = append(out, s.snapshot(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey < out[j].NameKey })
	return out, nil
}

// Rename changes a tag's name. A different existing tag already holding
// the new name key is a conflict.
func (s *InMemory) Rename(_ context.Context, id int64, ownerID, name, nameKey string, now time.Time) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tags[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	if existing, ok := s.byKey[ownerKey(ownerID, nameKey)]; ok && existing != id {
		return nil, sentinel.ErrConflict
	}

	delete(s.byKey, ownerKey(ownerID, stored.NameKey))
	stored.Name = name
	stored.NameKey = nameKey
	stored.LockVersion++
	stored.UpdatedOn = now
	s.byKey[ownerKey(ownerID, nameKey)] = id
	return s.snapshot(stored), nil
}

// Delete removes a tag and all of its links.
func (s *InMemory) Delete(_ context.Context, id int64, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tags[id]
	if !ok || stored.OwnerID != ownerID {
		return sentinel.ErrNotFound
	}
	delete(s.byKey, ownerKey(ownerID, stored.NameKey))
	delete(s.tags, id)
	delete(s.links, id)
	return nil
}

// AssignContacts links contacts to a tag and returns how many links were
// actually added. Already-linked contacts do not count twice.
func (s *InMemory) AssignContacts(_ context.Context, tagID int64, ownerID string, contactIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tags[tagID]
	if !ok || stored.OwnerID != ownerID {
		return 0, sentinel.ErrNotFound
	}

	var added int64
	for _, cid := range contactIDs {
		if _, linked := s.links[tagID][cid]; !linked {
			s.links[tagID][cid] = struct{}{}
			added++
		}
	}
	stored.ContactCount = len(s.links[tagID])
	return added, nil
}

// RemoveContacts unlinks contacts from a tag and returns how many links
// were actually removed.
func (s *InMemory) RemoveContacts(_ context.Context, tagID int64, ownerID string, contactIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tags[tagID]
	if !ok || stored.OwnerID != ownerID {
		return 0, sentinel.ErrNotFound
	}

	var removed int64
	for _, cid := range contactIDs {
		if _, linked := s.links[tagID][cid]; linked {
			delete(s.links[tagID], cid)
			removed++
		}
	}
	stored.ContactCount = len(s.links[tagID])
	return removed, nil
}

// ContactIDs returns the ids of the contacts linked to a tag, ascending.
func (s *InMemory) ContactIDs(_ context.Context, tagID int64, ownerID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.tags[tagID]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	out := make([]int64, 0, len(s.links[tagID]))
	for cid := range s.links[tagID] {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SyncContact relinks a contact to exactly the tags named by the given
// name keys. Tags for the keys must already exist.
func (s *InMemory) SyncContact(_ context.Context, ownerID string, contactID int64, nameKeys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int64]struct{}, len(nameKeys))
	for _, key := range nameKeys {
		if id, ok := s.byKey[ownerKey(ownerID, key)]; ok {
			want[id] = struct{}{}
		}
	}

	for id, t := range s.tags {
		if t.OwnerID != ownerID {
			continue
		}
		_, shouldLink := want[id]
		_, linked := s.links[id][contactID]
		switch {
		case shouldLink && !linked:
			s.links[id][contactID] = struct{}{}
		case !shouldLink && linked:
			delete(s.links[id], contactID)
		}
		t.ContactCount = len(s.links[id])
	}
	return nil
}

func (s *InMemory) snapshot(t *models.Tag) *models.Tag {
	cp := *t
	return &cp
}
