package contact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactdir/internal/contact/models"
	"contactdir/pkg/platform/sentinel"
)

type ContactStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ContactStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestContactStoreSuite(t *testing.T) {
	suite.Run(t, new(ContactStoreSuite))
}

func (s *ContactStoreSuite) newContact(ownerID, first, last string) *models.Contact {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return &models.Contact{
		OwnerID:   ownerID,
		Name:      models.Name{First: first, Last: last},
		Emails:    []models.TypedValue{{Type: "work", Value: first + "@example.com"}},
		CreatedOn: now,
		UpdatedOn: now,
	}
}

// TestCreateAndFetch verifies id assignment and owner scoping.
func (s *ContactStoreSuite) TestCreateAndFetch() {
	s.Run("assigns sequential ids", func() {
		c1, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)
		c2, err := s.store.Create(s.ctx, s.newContact("o1", "Grace", "Hopper"))
		s.Require().NoError(err)
		s.Greater(c2.ID, c1.ID)
	})

	s.Run("fetch is scoped to the owner", func() {
		c, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)

		_, err = s.store.FetchByID(s.ctx, c.ID, "o2")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		found, err := s.store.FetchByID(s.ctx, c.ID, "o1")
		s.Require().NoError(err)
		s.Equal("Ada", found.Name.First)
	})

	s.Run("returned contacts are copies", func() {
		c, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)

		c.Emails[0].Value = "mutated@example.com"

		found, err := s.store.FetchByID(s.ctx, c.ID, "o1")
		s.Require().NoError(err)
		s.Equal("Ada@example.com", found.Emails[0].Value)
	})
}

// TestUpdate verifies the conditional write on lock_version.
func (s *ContactStoreSuite) TestUpdate() {
	s.Run("increments lock_version on success", func() {
		c, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)

		c.Name.Last = "Byron"
		updated, err := s.store.Update(s.ctx, c)
		s.Require().NoError(err)
		s.Equal(int64(1), updated.LockVersion)
		s.Equal("Byron", updated.Name.Last)
	})

	s.Run("rejects stale lock_version", func() {
		c, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)

		_, err = s.store.Update(s.ctx, c.Clone())
		s.Require().NoError(err)

		// The first clone still carries lock_version 0.
		_, err = s.store.Update(s.ctx, c)
		s.Require().ErrorIs(err, sentinel.ErrVersionConflict)
	})

	s.Run("stale update leaves the record unchanged", func() {
		c, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)

		winner := c.Clone()
		winner.Name.Last = "Winner"
		_, err = s.store.Update(s.ctx, winner)
		s.Require().NoError(err)

		loser := c.Clone()
		loser.Name.Last = "Loser"
		_, err = s.store.Update(s.ctx, loser)
		s.Require().ErrorIs(err, sentinel.ErrVersionConflict)

		found, err := s.store.FetchByID(s.ctx, c.ID, "o1")
		s.Require().NoError(err)
		s.Equal("Winner", found.Name.Last)
		s.Equal(int64(1), found.LockVersion)
	})

	s.Run("returns ErrNotFound for missing contact", func() {
		c := s.newContact("o1", "Ghost", "Record")
		c.ID = 12345
		_, err := s.store.Update(s.ctx, c)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestDelete verifies single and bulk deletion.
func (s *ContactStoreSuite) TestDelete() {
	s.Run("deletes within the owner scope", func() {
		c, err := s.store.Create(s.ctx, s.newContact("o1", "Ada", "Lovelace"))
		s.Require().NoError(err)

		s.Require().ErrorIs(s.store.Delete(s.ctx, c.ID, "o2"), sentinel.ErrNotFound)
		s.Require().NoError(s.store.Delete(s.ctx, c.ID, "o1"))

		_, err = s.store.FetchByID(s.ctx, c.ID, "o1")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("bulk delete reports the number removed", func() {
		c1, _ := s.store.Create(s.ctx, s.newContact("o1", "A", "One"))
		c2, _ := s.store.Create(s.ctx, s.newContact("o1", "B", "Two"))
		other, _ := s.store.Create(s.ctx, s.newContact("o2", "C", "Three"))

		deleted, err := s.store.DeleteByIDs(s.ctx, "o1", []int64{c1.ID, c2.ID, other.ID, 9999})
		s.Require().NoError(err)
		s.Equal(int64(2), deleted)

		// The other owner's contact survives.
		_, err = s.store.FetchByID(s.ctx, other.ID, "o2")
		s.Require().NoError(err)
	})
}

// TestBulkSave verifies atomic batch persistence.
func (s *ContactStoreSuite) TestBulkSave() {
	batch := []*models.Contact{
		s.newContact("o1", "A", "One"),
		s.newContact("o1", "B", "Two"),
		s.newContact("o1", "C", "Three"),
	}

	ids, err := s.store.BulkSave(s.ctx, "o1", batch)
	s.Require().NoError(err)
	s.Require().Len(ids, 3)

	// Ids come back in input order.
	for i, id := range ids {
		found, err := s.store.FetchByID(s.ctx, id, "o1")
		s.Require().NoError(err)
		s.Equal(batch[i].Name.First, found.Name.First)
		s.Equal(int64(0), found.LockVersion)
	}
}

// TestFetchByQuery verifies filter, sort, and page behavior together.
func (s *ContactStoreSuite) TestFetchByQuery() {
	for _, seed := range []struct{ first, last, external string }{
		{"Ada", "Lovelace", "x1"},
		{"Grace", "Hopper", "x2"},
		{"Ada", "Byron", "x3"},
		{"Alan", "Turing", "x4"},
	} {
		c := s.newContact("o1", seed.first, seed.last)
		c.ExternalID = seed.external
		_, err := s.store.Create(s.ctx, c)
		s.Require().NoError(err)
	}
	_, err := s.store.Create(s.ctx, s.newContact("o2", "Ada", "Other"))
	s.Require().NoError(err)

	s.Run("filters by first name across owners correctly", func() {
		contacts, total, err := s.store.FetchByQuery(s.ctx, "o1", models.Query{FirstName: "ada"})
		s.Require().NoError(err)
		s.Equal(2, total)
		s.Len(contacts, 2)
	})

	s.Run("pages a sorted result set", func() {
		contacts, total, err := s.store.FetchByQuery(s.ctx, "o1", models.Query{
			Page: 2, PageSize: 2, SortBy: "last_name",
		})
		s.Require().NoError(err)
		s.Equal(4, total, "total counts the full filtered set")
		s.Require().Len(contacts, 2)
		// Byron, Hopper | Lovelace, Turing
		s.Equal("Lovelace", contacts[0].Name.Last)
		s.Equal("Turing", contacts[1].Name.Last)
	})

	s.Run("filters by external ids", func() {
		contacts, total, err := s.store.FetchByQuery(s.ctx, "o1", models.Query{ExternalIDs: []string{"x2", "x4"}})
		s.Require().NoError(err)
		s.Equal(2, total)
		s.Len(contacts, 2)
	})

	s.Run("count matches query totals", func() {
		count, err := s.store.CountByQuery(s.ctx, "o1", models.Query{FirstName: "ada"})
		s.Require().NoError(err)
		s.Equal(2, count)
	})
}
