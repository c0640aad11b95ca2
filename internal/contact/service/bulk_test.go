package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"contactdir/internal/contact/models"
	contactstore "contactdir/internal/contact/store/contact"
	dErrors "contactdir/pkg/domain-errors"
)

type BulkSuite struct {
	suite.Suite
	store   *contactstore.InMemory
	service *Service
	ctx     context.Context
}

func (s *BulkSuite) SetupTest() {
	s.store = contactstore.NewInMemory()
	s.service = New(s.store)
	s.ctx = context.Background()
}

func TestBulkSuite(t *testing.T) {
	suite.Run(t, new(BulkSuite))
}

func (s *BulkSuite) item(first string) models.CreateRequest {
	return models.CreateRequest{
		Name:   models.Name{First: first, Last: "Tester"},
		Emails: []models.TypedValue{{Type: "work", Value: strings.ToLower(first) + "@example.com"}},
	}
}

func (s *BulkSuite) invalidItem() models.CreateRequest {
	return models.CreateRequest{
		Name:   models.Name{First: "Broken"},
		Emails: []models.TypedValue{{Type: "fax", Value: "broken@example.com"}},
	}
}

// TestEnvelope verifies whole-request rejections before any item is
// considered.
func (s *BulkSuite) TestEnvelope() {
	s.Run("empty batch is rejected", func() {
		_, err := s.service.BulkCreate(s.ctx, "o1", models.BulkCreateRequest{}, nil)
		s.Require().Error(err)
		fields := dErrors.FieldsOf(err)
		s.Require().Len(fields, 1)
		s.Equal("bulk_contacts", fields[0].Field)
		s.Equal("can not be blank", fields[0].Message)
	})

	s.Run("oversized batch is rejected", func() {
		req := models.BulkCreateRequest{}
		for i := 0; i <= models.MaxBulkContacts; i++ {
			req.BulkContacts = append(req.BulkContacts, s.item("Bulk"))
		}

		_, err := s.service.BulkCreate(s.ctx, "o1", req, nil)
		s.Require().Error(err)
		fields := dErrors.FieldsOf(err)
		s.Require().Len(fields, 1)
		s.Equal("bulk_contacts", fields[0].Field)
		s.Equal("can not contain more than 100 contacts", fields[0].Message)

		count, err := s.store.CountByQuery(s.ctx, "o1", models.Query{})
		s.Require().NoError(err)
		s.Zero(count, "nothing persists when the envelope is invalid")
	})

	s.Run("batch at the limit passes", func() {
		req := models.BulkCreateRequest{}
		for i := 0; i < models.MaxBulkContacts; i++ {
			req.BulkContacts = append(req.BulkContacts, s.item("Bulk"))
		}

		result, err := s.service.BulkCreate(s.ctx, "o1", req, nil)
		s.Require().NoError(err)
		s.False(result.Partial)
		s.Len(result.Response.Contacts, models.MaxBulkContacts)
	})
}

// TestPartialSuccess verifies the valid/invalid split and position
// reporting.
func (s *BulkSuite) TestPartialSuccess() {
	s.Run("persists valid items and reports invalid ones by position", func() {
		req := models.BulkCreateRequest{BulkContacts: []models.CreateRequest{
			s.item("First"),
			s.invalidItem(),
			s.item("Third"),
			s.invalidItem(),
		}}

		result, err := s.service.BulkCreate(s.ctx, "o1", req, nil)
		s.Require().NoError(err)
		s.True(result.Partial)
		s.Len(result.Response.Contacts, 2)

		s.Require().Len(result.Response.InvalidRequests, 2)
		s.Equal("2", result.Response.InvalidRequests[0].RequestID)
		s.Equal("4", result.Response.InvalidRequests[1].RequestID)
		s.NotEmpty(result.Response.InvalidRequests[0].Errors)

		count, err := s.store.CountByQuery(s.ctx, "o1", models.Query{})
		s.Require().NoError(err)
		s.Equal(2, count)
	})

	s.Run("an all-invalid batch persists nothing but succeeds", func() {
		req := models.BulkCreateRequest{BulkContacts: []models.CreateRequest{
			s.invalidItem(),
			s.invalidItem(),
		}}

		result, err := s.service.BulkCreate(s.ctx, "o1", req, nil)
		s.Require().NoError(err)
		s.True(result.Partial)
		s.Empty(result.Response.Contacts)
		s.Len(result.Response.InvalidRequests, 2)
	})

	s.Run("echoes the batch id", func() {
		req := models.BulkCreateRequest{
			BulkContacts: []models.CreateRequest{s.item("Solo")},
			BatchID:      "import-2026-03",
		}

		result, err := s.service.BulkCreate(s.ctx, "o1", req, nil)
		s.Require().NoError(err)
		s.Equal("import-2026-03", result.Response.BatchID)
	})
}

// TestFieldsProjection verifies the re-fetch of persisted records when the
// caller asks for projections.
func (s *BulkSuite) TestFieldsProjection() {
	s.Run("default response carries id references", func() {
		req := models.BulkCreateRequest{BulkContacts: []models.CreateRequest{s.item("One")}}

		result, err := s.service.BulkCreate(s.ctx, "o1", req, nil)
		s.Require().NoError(err)
		s.Require().Len(result.Response.Contacts, 1)
		s.Contains(result.Response.Contacts[0], "id")
		s.Len(result.Response.Contacts[0], 1)
	})

	s.Run("projects the persisted records", func() {
		req := models.BulkCreateRequest{BulkContacts: []models.CreateRequest{
			s.item("One"),
			s.item("Two"),
		}}

		result, err := s.service.BulkCreate(s.ctx, "o1", req, []string{"id", "first_name", "created_on"})
		s.Require().NoError(err)
		s.Require().Len(result.Response.Contacts, 2)
		for _, c := range result.Response.Contacts {
			s.Len(c, 3)
			s.Contains(c, "first_name")
			s.Contains(c, "created_on")
		}
	})
}

// TestBulkDelete verifies filtered bulk removal.
func (s *BulkSuite) TestBulkDelete() {
	s.Run("requires ids", func() {
		_, err := s.service.BulkDelete(s.ctx, "o1", models.BulkDeleteRequest{})
		s.Require().Error(err)
		fields := dErrors.FieldsOf(err)
		s.Require().Len(fields, 1)
		s.Equal("ids", fields[0].Field)
	})

	s.Run("removes only the owner's listed contacts", func() {
		result, err := s.service.BulkCreate(s.ctx, "o1", models.BulkCreateRequest{
			BulkContacts: []models.CreateRequest{s.item("One"), s.item("Two"), s.item("Three")},
		}, nil)
		s.Require().NoError(err)

		ids := make([]int64, 0, 2)
		for _, ref := range result.Response.Contacts[:2] {
			ids = append(ids, ref["id"].(int64))
		}

		deleted, err := s.service.BulkDelete(s.ctx, "o1", models.BulkDeleteRequest{IDs: append(ids, 9999)})
		s.Require().NoError(err)
		s.Equal(int64(2), deleted)

		count, err := s.store.CountByQuery(s.ctx, "o1", models.Query{})
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}
