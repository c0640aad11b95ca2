package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	contactmodels "contactdir/internal/contact/models"
	contactservice "contactdir/internal/contact/service"
	contactstore "contactdir/internal/contact/store/contact"
	"contactdir/internal/platform/middleware"
	"contactdir/internal/searchcache/models"
	"contactdir/internal/searchcache/service"
	searchstore "contactdir/internal/searchcache/store/search"
	"contactdir/pkg/testutil"
)

const basePath = "/v1/owners/o1/contacts/search/cache"

type CacheHandlerSuite struct {
	suite.Suite
	router   http.Handler
	contacts *contactservice.Service
	service  *countingService
}

// countingService records Count calls so tests can tell the header total
// apart from the page body's total.
type countingService struct {
	*service.Service
	countCalls int
}

func (c *countingService) Count(ctx context.Context, id int64, ownerID string) (int, error) {
	c.countCalls++
	return c.Service.Count(ctx, id, ownerID)
}

func (s *CacheHandlerSuite) SetupTest() {
	s.contacts = contactservice.New(contactstore.NewInMemory())
	s.service = &countingService{Service: service.New(searchstore.NewInMemory(), s.contacts)}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(s.service, logger, 25)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RequestTime)
	r.Route("/v1/owners/{ownerID}/contacts/search/cache", h.Register)
	s.router = r
}

func TestCacheHandlerSuite(t *testing.T) {
	suite.Run(t, new(CacheHandlerSuite))
}

func (s *CacheHandlerSuite) seedContacts(lasts ...string) {
	for _, last := range lasts {
		_, err := s.contacts.Create(s.T().Context(), "o1", contactmodels.CreateRequest{
			Name: contactmodels.Name{First: "Ada", Last: last},
		})
		s.Require().NoError(err)
	}
}

func (s *CacheHandlerSuite) createCache() models.CacheResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, contactmodels.SearchRequest{})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code)
	return *testutil.UnmarshalResponse[models.CacheResponse](s.T(), rr)
}

func (s *CacheHandlerSuite) TestCreate() {
	s.seedContacts("Lovelace", "Hopper")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, basePath, contactmodels.SearchRequest{})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusCreated, rr.Code)
	s.Equal("2", rr.Header().Get("X-Total-Count"))
	s.Equal(basePath+"/1", rr.Header().Get("Location"))

	resp := testutil.UnmarshalResponse[models.CacheResponse](s.T(), rr)
	s.Equal(int64(1), resp.ID)
	s.False(resp.CreatedOn.IsZero())
}

func (s *CacheHandlerSuite) TestGet() {
	s.seedContacts("Lovelace", "Hopper", "Turing")
	cache := s.createCache()
	s.Require().Equal(int64(1), cache.ID)

	s.Run("pages the snapshot", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
			basePath+"/1?page_size=2&sort_by=last_name"))

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("3", rr.Header().Get("X-Total-Count"))
		resp := testutil.UnmarshalResponse[contactmodels.SearchResponse](s.T(), rr)
		s.Equal(3, resp.TotalCount)
		s.Equal(2, resp.PageCount)
		s.Require().Len(resp.Contacts, 2)
		s.Equal("Hopper", resp.Contacts[0]["last_name"])
	})

	s.Run("header total is served by the count path", func() {
		calls := s.service.countCalls
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1"))

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("3", rr.Header().Get("X-Total-Count"))
		s.Equal(calls+1, s.service.countCalls)
	})

	s.Run("snapshot outlives record deletion", func() {
		s.Require().NoError(s.contacts.Delete(s.T().Context(), 1, "o1"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1"))
		s.Equal(http.StatusOK, rr.Code)
		s.Equal("3", rr.Header().Get("X-Total-Count"))
	})

	s.Run("unknown snapshot", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/99"))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("non numeric id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/abc"))

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("cache_id", fields[0].Field)
		s.Equal("is not a number", fields[0].Message)
	})

	s.Run("id larger than int64", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
			basePath+"/99999999999999999999"))

		s.Equal(http.StatusBadRequest, rr.Code)
		fields := testutil.ErrorFields(s.T(), rr)
		s.Require().Len(fields, 1)
		s.Equal("must be less than or equal to 9223372036854775807", fields[0].Message)
	})
}

func (s *CacheHandlerSuite) TestDelete() {
	s.seedContacts("Lovelace")
	s.createCache()

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, basePath+"/1"))
	s.Equal(http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, basePath+"/1"))
	s.Equal(http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, basePath+"/1"))
	s.Equal(http.StatusNotFound, rr.Code)
}
