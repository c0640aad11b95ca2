// Package service implements cached search snapshots. Creating a cache
// runs the search once against the live records and freezes the result
// set; later reads page, sort and project the frozen set without touching
// the record store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	contactmodels "contactdir/internal/contact/models"
	platformredis "contactdir/internal/platform/redis"
	"contactdir/internal/searchcache/models"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/platform/sentinel"
	"contactdir/pkg/requestcontext"
)

// SearchStore persists search snapshots and their captured contacts.
type SearchStore interface {
	Create(ctx context.Context, search *models.ContactSearch, contacts []*contactmodels.Contact) (int64, error)
	Fetch(ctx context.Context, id int64, ownerID string) (*models.ContactSearch, error)
	Contacts(ctx context.Context, searchID int64, ownerID string) ([]*contactmodels.Contact, error)
	Count(ctx context.Context, searchID int64, ownerID string) (int, error)
	Delete(ctx context.Context, id int64, ownerID string) error
}

// ContactFetcher runs a live search and returns the full result set.
type ContactFetcher interface {
	FetchAll(ctx context.Context, ownerID string, q contactmodels.Query) ([]*contactmodels.Contact, error)
}

// Service coordinates snapshot creation, retrieval and deletion.
type Service struct {
	store    SearchStore
	contacts ContactFetcher
	cache    *platformredis.Client
	countTTL time.Duration
	logger   *slog.Logger
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCountCache enables redis-backed snapshot count caching. A nil client
// disables it.
func WithCountCache(cache *platformredis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.countTTL = ttl
	}
}

// New creates a snapshot service backed by the given store and live
// contact search.
func New(store SearchStore, contacts ContactFetcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		contacts: contacts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCache runs the search against the live records and stores the full
// result set as a snapshot.
func (s *Service) CreateCache(ctx context.Context, ownerID string, req contactmodels.SearchRequest) (*models.Snapshot, error) {
	q := contactmodels.NewQuery(req, contactmodels.Options{Page: 1, SortBy: "id"}).Unpaginated()
	contacts, err := s.contacts.FetchAll(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "serialize search request")
	}

	search := &models.ContactSearch{
		OwnerID:     ownerID,
		QueryParams: string(params),
		CreatedOn:   requestcontext.Now(ctx).UTC(),
	}
	id, err := s.store.Create(ctx, search, contacts)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store search snapshot")
	}
	search.ID = id

	s.storeCount(ctx, ownerID, id, len(contacts))
	return &models.Snapshot{Search: search, Total: len(contacts)}, nil
}

// GetCache returns one page of a stored snapshot, sorted and projected the
// same way the live search renders its pages. A snapshot that captured
// nothing reads as not found.
func (s *Service) GetCache(ctx context.Context, id int64, ownerID string, opts contactmodels.Options) (contactmodels.SearchResponse, error) {
	contacts, err := s.store.Contacts(ctx, id, ownerID)
	if err != nil {
		return contactmodels.SearchResponse{}, s.translateStoreErr(err)
	}
	if len(contacts) == 0 {
		return contactmodels.SearchResponse{}, dErrors.New(dErrors.CodeNotFound, "cached search not found")
	}
	return models.PageOf(contacts, opts), nil
}

// Count returns the number of contacts a snapshot captured, served from
// redis when a cached count is present.
func (s *Service) Count(ctx context.Context, id int64, ownerID string) (int, error) {
	if cached, ok := s.cachedCount(ctx, ownerID, id); ok {
		return cached, nil
	}
	count, err := s.store.Count(ctx, id, ownerID)
	if err != nil {
		return 0, s.translateStoreErr(err)
	}
	s.storeCount(ctx, ownerID, id, count)
	return count, nil
}

// DeleteCache removes a snapshot and drops its cached count.
func (s *Service) DeleteCache(ctx context.Context, id int64, ownerID string) error {
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return s.translateStoreErr(err)
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, countKey(ownerID, id)).Err(); err != nil {
			s.logger.Warn("drop cached snapshot count failed", "owner_id", ownerID, "cache_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) cachedCount(ctx context.Context, ownerID string, id int64) (int, bool) {
	if s.cache == nil {
		return 0, false
	}
	raw, err := s.cache.Get(ctx, countKey(ownerID, id)).Result()
	if err != nil {
		if !errors.Is(err, platformredis.Nil) {
			s.logger.Warn("read cached snapshot count failed", "owner_id", ownerID, "cache_id", id, "error", err)
		}
		return 0, false
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (s *Service) storeCount(ctx context.Context, ownerID string, id int64, count int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, countKey(ownerID, id), strconv.Itoa(count), s.countTTL).Err(); err != nil {
		s.logger.Warn("store cached snapshot count failed", "owner_id", ownerID, "cache_id", id, "error", err)
	}
}

func (s *Service) translateStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "cached search not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "search snapshot store failure")
}

func countKey(ownerID string, id int64) string {
	return fmt.Sprintf("searchcache:count:%s:%d", ownerID, id)
}
