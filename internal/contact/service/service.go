package service

import (
	"context"
	"errors"
	"log/slog"

	"contactdir/internal/contact/metrics"
	"contactdir/internal/contact/models"
	"contactdir/internal/contact/version"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/platform/sentinel"
	"contactdir/pkg/requestcontext"
)

// ContactStore is the persistence boundary for contacts. Implementations
// must scope every operation by ownerID and make Update a single
// conditional write on lock_version.
type ContactStore interface {
	Create(ctx context.Context, c *models.Contact) (*models.Contact, error)
	FetchByID(ctx context.Context, id int64, ownerID string) (*models.Contact, error)
	// Update applies c where the stored lock_version equals c.LockVersion,
	// incrementing it by 1. Returns sentinel.ErrVersionConflict when the
	// row moved, sentinel.ErrNotFound when absent.
	Update(ctx context.Context, c *models.Contact) (*models.Contact, error)
	Delete(ctx context.Context, id int64, ownerID string) error
	// BulkSave persists the batch atomically and returns assigned ids in
	// input order.
	BulkSave(ctx context.Context, ownerID string, contacts []*models.Contact) ([]int64, error)
	DeleteByIDs(ctx context.Context, ownerID string, ids []int64) (int64, error)
	FetchByQuery(ctx context.Context, ownerID string, q models.Query) ([]*models.Contact, int, error)
	CountByQuery(ctx context.Context, ownerID string, q models.Query) (int, error)
}

// Tagger links contacts to the tag catalog. The contact service only knows
// tag names; identity, dedup, and count maintenance live behind this
// interface.
type Tagger interface {
	EnsureTags(ctx context.Context, ownerID string, names []string) error
	SyncContact(ctx context.Context, ownerID string, contactID int64, names []string) error
}

// Service orchestrates contact CRUD, search, and bulk operations.
type Service struct {
	store   ContactStore
	tagger  Tagger
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTagger(t Tagger) Option {
	return func(s *Service) { s.tagger = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(store ContactStore, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and persists a new contact, then materializes its tags.
func (s *Service) Create(ctx context.Context, ownerID string, req models.CreateRequest) (*models.Contact, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}

	c := req.ToContact(ownerID, requestcontext.Now(ctx))
	created, err := s.store.Create(ctx, c)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contact")
	}

	if err := s.syncTags(ctx, ownerID, created.ID, created.Tags); err != nil {
		return nil, err
	}

	s.incrementCreated(1)
	return created, nil
}

// Get fetches a contact by id, scoped to the owner.
func (s *Service) Get(ctx context.Context, id int64, ownerID string) (*models.Contact, error) {
	c, err := s.store.FetchByID(ctx, id, ownerID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load contact")
	}
	return c, nil
}

// Update replaces a contact's mutable fields under optimistic concurrency.
// suppliedToken is the version token the caller last observed. The token
// comparison decides acceptance; the store's conditional write guards the
// race against concurrent writers.
func (s *Service) Update(ctx context.Context, id int64, ownerID string, req models.CreateRequest, suppliedToken string) (*models.Contact, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}

	current, err := s.store.FetchByID(ctx, id, ownerID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load contact")
	}

	if version.Token(current.LockVersion) != suppliedToken {
		return nil, dErrors.New(dErrors.CodeVersionConflict, "version token is stale")
	}

	patch := req.ToContact(ownerID, requestcontext.Now(ctx))
	patch.ID = current.ID
	patch.CreatedOn = current.CreatedOn
	patch.LockVersion = current.LockVersion
	patch.UpdatedOn = requestcontext.Now(ctx)

	updated, err := s.store.Update(ctx, patch)
	if err != nil {
		return nil, translateStoreErr(err, "failed to update contact")
	}

	if err := s.syncTags(ctx, ownerID, updated.ID, updated.Tags); err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a contact by id, scoped to the owner. Tag links are
// released first so tag contact counts stay accurate.
func (s *Service) Delete(ctx context.Context, id int64, ownerID string) error {
	if err := s.syncTags(ctx, ownerID, id, nil); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return translateStoreErr(err, "failed to delete contact")
	}
	return nil
}

// Search runs a filtered, sorted, paginated, projected query.
func (s *Service) Search(ctx context.Context, ownerID string, q models.Query) (models.SearchResponse, error) {
	contacts, total, err := s.store.FetchByQuery(ctx, ownerID, q)
	if err != nil {
		return models.SearchResponse{}, dErrors.Wrap(err, dErrors.CodeInternal, "search failed")
	}
	s.observeSearch(len(contacts))
	return models.NewSearchResponse(contacts, total, q.Page, q.PageSize, q.Fields), nil
}

// Count returns the number of contacts matching the filters.
func (s *Service) Count(ctx context.Context, ownerID string, req models.SearchRequest) (int, error) {
	count, err := s.store.CountByQuery(ctx, ownerID, models.NewQuery(req, models.Options{}))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count failed")
	}
	return count, nil
}

// FetchAll returns the full unpaginated result set for export and cache
// materialization.
func (s *Service) FetchAll(ctx context.Context, ownerID string, q models.Query) ([]*models.Contact, error) {
	contacts, _, err := s.store.FetchByQuery(ctx, ownerID, q.Unpaginated())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetch failed")
	}
	return contacts, nil
}

func (s *Service) syncTags(ctx context.Context, ownerID string, contactID int64, names []string) error {
	if s.tagger == nil {
		return nil
	}
	if err := s.tagger.EnsureTags(ctx, ownerID, names); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to materialize tags")
	}
	// SyncContact with no names unlinks everything the contact had.
	if err := s.tagger.SyncContact(ctx, ownerID, contactID, names); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link tags")
	}
	return nil
}

func (s *Service) incrementCreated(n int) {
	if s.metrics != nil {
		s.metrics.ContactsCreated.Add(float64(n))
	}
}

func (s *Service) observeSearch(resultSize int) {
	if s.metrics != nil {
		s.metrics.SearchResultSize.Observe(float64(resultSize))
	}
}

// translateStoreErr maps sentinel errors to domain errors, defaulting to
// internal.
func translateStoreErr(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "contact not found")
	case errors.Is(err, sentinel.ErrVersionConflict):
		return dErrors.New(dErrors.CodeVersionConflict, "version token is stale")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}
