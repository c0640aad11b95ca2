// Package models defines the cached search aggregate. A cached search is a
// point-in-time snapshot of a search result set: the contacts it captured do
// not change when the live contacts do.
package models

import (
	"time"

	contactmodels "contactdir/internal/contact/models"
)

// ContactSearch is a stored search snapshot. QueryParams keeps the
// serialized originating request for operators tracing what a cache holds.
type ContactSearch struct {
	ID          int64
	OwnerID     string
	QueryParams string
	CreatedOn   time.Time
}

// CacheResponse is the body returned when a search snapshot is created.
type CacheResponse struct {
	ID        int64     `json:"id"`
	CreatedOn time.Time `json:"created_on"`
}

// NewCacheResponse builds the create response for a stored snapshot.
func NewCacheResponse(s *ContactSearch) CacheResponse {
	return CacheResponse{ID: s.ID, CreatedOn: s.CreatedOn}
}

// Snapshot pairs a stored search with the number of contacts it captured.
type Snapshot struct {
	Search *ContactSearch
	Total  int
}

// PageOf sorts, paginates and projects cached contacts with the same
// helpers the live search uses, so a cached page and a live page of the
// same data render identically.
func PageOf(contacts []*contactmodels.Contact, opts contactmodels.Options) contactmodels.SearchResponse {
	q := contactmodels.NewQuery(contactmodels.SearchRequest{}, opts)
	q.Sort(contacts)
	total := len(contacts)
	page := q.Paginate(contacts)
	return contactmodels.NewSearchResponse(page, total, q.Page, q.PageSize, q.Fields)
}
