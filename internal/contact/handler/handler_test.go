package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"contactdir/internal/contact/export"
	"contactdir/internal/contact/models"
	"contactdir/internal/contact/service"
	"contactdir/internal/contact/store/contact"
	"contactdir/internal/platform/middleware"
	"contactdir/pkg/testutil"
)

const (
	basePath = "/v1/owners/o1/contacts"

	tokenV0 = `"cfcd208495d565ef66e7dff9f98764da"`
	tokenV1 = `"c4ca4238a0b923820dcc509a6f75849b"`
)

type ContactHandlerSuite struct {
	suite.Suite
	router http.Handler
}

func (s *ContactHandlerSuite) SetupTest() {
	svc := service.New(contact.NewInMemory())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger, nil, 25)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RequestTime)
	r.Route("/v1/owners/{ownerID}/contacts", h.Register)
	s.router = r
}

func TestContactHandlerSuite(t *testing.T) {
	suite.Run(t, new(ContactHandlerSuite))
}

func (s *ContactHandlerSuite) createContact(first, last string) {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, models.CreateRequest{
		Name: models.Name{First: first, Last: last},
	})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code)
}

func (s *ContactHandlerSuite) TestCreate() {
	s.Run("returns 201 with a location", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, models.CreateRequest{
			Name: models.Name{First: "Ada", Last: "Lovelace"},
		})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusCreated, rr.Code)
		s.Equal(basePath+"/1", rr.Header().Get("Location"))
	})

	s.Run("rejects invalid payloads", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, models.CreateRequest{
			Tags: []string{"bad/slash"},
		})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().NotEmpty(fields)
		s.Equal("tags", fields[0].Field)
	})

	s.Run("rejects malformed json", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, basePath)
		req.Body = http.NoBody
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().NotEmpty(fields)
		s.Equal("request_body", fields[0].Field)
	})
}

func (s *ContactHandlerSuite) TestGet() {
	s.createContact("Ada", "Lovelace")

	s.Run("returns the contact with caching headers", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1"))

		s.Equal(http.StatusOK, rr.Code)
		s.Equal(tokenV0, rr.Header().Get("ETag"))
		s.NotEmpty(rr.Header().Get("Last-Modified"))

		resp := testutil.UnmarshalResponse[models.ContactResponse](s.T(), rr)
		s.Equal(int64(1), resp.ID)
		s.Equal("Ada", resp.Name.First)
		s.Equal("cfcd208495d565ef66e7dff9f98764da", resp.Version)
	})

	s.Run("returns 304 when the token still matches", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1")
		req.Header.Set("If-None-Match", tokenV0)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusNotModified, rr.Code)
	})

	s.Run("unknown contact", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/99"))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("non numeric id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/abc"))

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("contact_id", fields[0].Field)
		s.Equal("is not a number", fields[0].Message)
	})

	s.Run("id larger than int64", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/99999999999999999999"))

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("must be less than or equal to 9223372036854775807", fields[0].Message)
	})
}

func (s *ContactHandlerSuite) TestUpdate() {
	s.createContact("Ada", "Lovelace")

	update := models.CreateRequest{Name: models.Name{First: "Ada", Last: "Byron"}}

	s.Run("requires an If-Match header", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, basePath+"/1", update)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("If-Match", fields[0].Field)
		s.Equal("header is required", fields[0].Message)
	})

	s.Run("rejects a stale token", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, basePath+"/1", update)
		req.Header.Set("If-Match", tokenV1)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusPreconditionFailed, rr.Code)
	})

	s.Run("applies the update on a current token", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, basePath+"/1", update)
		req.Header.Set("If-Match", tokenV0)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusNoContent, rr.Code)
		s.Equal(tokenV1, rr.Header().Get("ETag"))
		s.Equal(basePath+"/1", rr.Header().Get("Location"))
		s.NotEmpty(rr.Header().Get("Last-Modified"))
	})

	s.Run("the old token no longer matches", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1")
		req.Header.Set("If-None-Match", tokenV0)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal(tokenV1, rr.Header().Get("ETag"))
	})

	s.Run("unknown contact", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, basePath+"/99", update)
		req.Header.Set("If-Match", tokenV0)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusNotFound, rr.Code)
	})
}

func (s *ContactHandlerSuite) TestDelete() {
	s.createContact("Ada", "Lovelace")

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, basePath+"/1"))
	s.Equal(http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1"))
	s.Equal(http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, basePath+"/1"))
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *ContactHandlerSuite) TestSearch() {
	s.createContact("Ada", "Lovelace")
	s.createContact("Grace", "Hopper")
	s.createContact("Ada", "Byron")

	s.Run("filters and pages", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			basePath+"/search?page_size=1&sort_by=last_name",
			models.SearchRequest{FirstName: "ada"})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[models.SearchResponse](s.T(), rr)
		s.Equal(2, resp.TotalCount)
		s.Equal(2, resp.PageCount)
		s.Require().Len(resp.Contacts, 1)
		s.Equal("Byron", resp.Contacts[0]["last_name"])
	})

	s.Run("projects requested fields", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			basePath+"/search?fields=id,first_name", models.SearchRequest{})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[models.SearchResponse](s.T(), rr)
		s.Require().NotEmpty(resp.Contacts)
		s.Len(resp.Contacts[0], 2)
	})

	s.Run("rejects bad query options", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			basePath+"/search?page=zero", models.SearchRequest{})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("page", fields[0].Field)
		s.Equal("is not a positive number", fields[0].Message)
	})
}

func (s *ContactHandlerSuite) TestCount() {
	s.createContact("Ada", "Lovelace")
	s.createContact("Ada", "Byron")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/count",
		models.SearchRequest{FirstName: "ada"})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[models.CountResponse](s.T(), rr)
	s.Equal(2, resp.Count)
}

func (s *ContactHandlerSuite) TestBulkCreate() {
	valid := models.CreateRequest{Name: models.Name{First: "Ada", Last: "Lovelace"}}
	invalid := models.CreateRequest{Tags: []string{"bad/slash"}}

	s.Run("all accepted", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/bulk",
			models.BulkCreateRequest{BulkContacts: []models.CreateRequest{valid, valid}})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[models.BulkCreateResponse](s.T(), rr)
		s.Len(resp.Contacts, 2)
		s.Empty(resp.InvalidRequests)
	})

	s.Run("partial acceptance returns 202", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/bulk",
			models.BulkCreateRequest{BulkContacts: []models.CreateRequest{valid, invalid}, BatchID: "batch-7"})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusAccepted, rr.Code)
		resp := testutil.UnmarshalResponse[models.BulkCreateResponse](s.T(), rr)
		s.Len(resp.Contacts, 1)
		s.Require().Len(resp.InvalidRequests, 1)
		s.Equal("2", resp.InvalidRequests[0].RequestID)
		s.Equal("batch-7", resp.BatchID)
	})

	s.Run("empty envelope", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/bulk",
			models.BulkCreateRequest{})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("bulk_contacts", fields[0].Field)
	})

	s.Run("rejects an unknown projection field", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/bulk?fields=owner_id",
			models.BulkCreateRequest{BulkContacts: []models.CreateRequest{valid}})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *ContactHandlerSuite) TestBulkDelete() {
	s.createContact("Ada", "Lovelace")
	s.createContact("Grace", "Hopper")

	req := testutil.NewJSONRequest(s.T(), http.MethodDelete, basePath+"/bulk",
		models.BulkDeleteRequest{IDs: []int64{1, 2, 99}})
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1"))
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *ContactHandlerSuite) TestExport() {
	s.createContact("Ada", "Lovelace")

	s.Run("defaults to csv", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost,
			basePath+"/export?fields=id,last_name", models.SearchRequest{})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal(export.ContentTypeCSV, rr.Header().Get("Content-Type"))
		s.Contains(rr.Header().Get("Content-Disposition"), "attachment; filename=contacts_export_")
		s.Contains(rr.Header().Get("Content-Disposition"), ".csv")
		s.Equal("Content-Disposition", rr.Header().Get("Access-Control-Expose-Headers"))
		s.Equal("id,last_name\n1,Lovelace\n", rr.Body.String())
	})

	s.Run("renders xlsx when accepted", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath+"/export", models.SearchRequest{})
		req.Header.Set("Accept", export.ContentTypeXLSX)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal(export.ContentTypeXLSX, rr.Header().Get("Content-Type"))
		s.Contains(rr.Header().Get("Content-Disposition"), ".xlsx")
		s.NotEmpty(rr.Body.Bytes())
	})
}
