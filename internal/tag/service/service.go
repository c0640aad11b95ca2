// Package service implements owner-scoped tag management: idempotent
// creation keyed on the case-insensitive name, contact linking with
// maintained counts, renames, copies, and the sync hook the contact
// service calls when a contact's tag list changes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contactdir/internal/contact/version"
	"contactdir/internal/tag/models"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/platform/sentinel"
	"contactdir/pkg/requestcontext"
)

// TagStore persists tags and contact links.
type TagStore interface {
	CreateUnique(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	FetchByID(ctx context.Context, id int64, ownerID string) (*models.Tag, error)
	List(ctx context.Context, ownerID string) ([]*models.Tag, error)
	Rename(ctx context.Context, id int64, ownerID, name, nameKey string, now time.Time) (*models.Tag, error)
	Delete(ctx context.Context, id int64, ownerID string) error
	AssignContacts(ctx context.Context, tagID int64, ownerID string, contactIDs []int64) (int64, error)
	RemoveContacts(ctx context.Context, tagID int64, ownerID string, contactIDs []int64) (int64, error)
	ContactIDs(ctx context.Context, tagID int64, ownerID string) ([]int64, error)
	SyncContact(ctx context.Context, ownerID string, contactID int64, nameKeys []string) error
}

// Service orchestrates tag operations.
type Service struct {
	store  TagStore
	logger *slog.Logger
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a tag service backed by the given store.
func New(store TagStore, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create makes a tag for the owner. Creating a name the owner already has,
// in any casing, returns the existing tag.
func (s *Service) Create(ctx context.Context, ownerID string, req models.CreateRequest) (*models.Tag, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}

	now := requestcontext.Now(ctx).UTC()
	tag, err := s.store.CreateUnique(ctx, &models.Tag{
		OwnerID:   ownerID,
		Name:      req.Name,
		NameKey:   models.NameKey(req.Name),
		CreatedOn: now,
		UpdatedOn: now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tag")
	}
	return tag, nil
}

// Get loads a tag by id.
func (s *Service) Get(ctx context.Context, id int64, ownerID string) (*models.Tag, error) {
	tag, err := s.store.FetchByID(ctx, id, ownerID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return tag, nil
}

// List returns the owner's tags.
func (s *Service) List(ctx context.Context, ownerID string) ([]*models.Tag, error) {
	tags, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tags")
	}
	return tags, nil
}

// Rename changes a tag's name under optimistic concurrency. suppliedToken
// is the version token the caller last observed; a stale token is rejected
// before the write. The new name must not collide with another tag of the
// owner.
func (s *Service) Rename(ctx context.Context, id int64, ownerID string, req models.CreateRequest, suppliedToken string) (*models.Tag, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}

	current, err := s.store.FetchByID(ctx, id, ownerID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if version.Token(current.LockVersion) != suppliedToken {
		return nil, dErrors.New(dErrors.CodeVersionConflict, "version token is stale")
	}

	tag, err := s.store.Rename(ctx, id, ownerID, req.Name, models.NameKey(req.Name), requestcontext.Now(ctx).UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.NewFieldErrorWithCode(dErrors.CodeConflict, "name", "is already in use")
		}
		return nil, translateStoreErr(err)
	}
	return tag, nil
}

// Delete removes a tag. Linked contacts keep their other tags.
func (s *Service) Delete(ctx context.Context, id int64, ownerID string) error {
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// AssignContacts links contacts to a tag and returns the tag with its
// refreshed count.
func (s *Service) AssignContacts(ctx context.Context, id int64, ownerID string, req models.AssignRequest) (*models.Tag, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}
	if _, err := s.store.AssignContacts(ctx, id, ownerID, req.ContactIDs); err != nil {
		return nil, translateStoreErr(err)
	}
	return s.Get(ctx, id, ownerID)
}

// RemoveContacts unlinks contacts from a tag and returns the tag with its
// refreshed count.
func (s *Service) RemoveContacts(ctx context.Context, id int64, ownerID string, req models.AssignRequest) (*models.Tag, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}
	if _, err := s.store.RemoveContacts(ctx, id, ownerID, req.ContactIDs); err != nil {
		return nil, translateStoreErr(err)
	}
	return s.Get(ctx, id, ownerID)
}

// Copy creates a new tag with the requested name and links it to every
// contact the source tag is linked to. Unlike Create, a name the owner
// already has is a conflict, never a merge into the existing tag.
func (s *Service) Copy(ctx context.Context, sourceID int64, ownerID string, req models.CreateRequest) (*models.Tag, error) {
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		return nil, dErrors.NewValidation(fieldErrs...)
	}

	contactIDs, err := s.store.ContactIDs(ctx, sourceID, ownerID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	now := requestcontext.Now(ctx).UTC()
	created, err := s.store.Create(ctx, &models.Tag{
		OwnerID:   ownerID,
		Name:      req.Name,
		NameKey:   models.NameKey(req.Name),
		CreatedOn: now,
		UpdatedOn: now,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.NewFieldErrorWithCode(dErrors.CodeConflict, "name", "is already in use")
		}
		return nil, translateStoreErr(err)
	}
	if len(contactIDs) == 0 {
		return created, nil
	}
	if _, err := s.store.AssignContacts(ctx, created.ID, ownerID, contactIDs); err != nil {
		return nil, translateStoreErr(err)
	}
	return s.Get(ctx, created.ID, ownerID)
}

// EnsureTags materializes tags for every valid name in the list. Invalid
// names are skipped; the contact carrying them already failed validation
// upstream.
func (s *Service) EnsureTags(ctx context.Context, ownerID string, names []string) error {
	now := requestcontext.Now(ctx).UTC()
	for _, name := range names {
		_, err := s.store.CreateUnique(ctx, &models.Tag{
			OwnerID:   ownerID,
			Name:      name,
			NameKey:   models.NameKey(name),
			CreatedOn: now,
			UpdatedOn: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SyncContact relinks a contact to exactly the named tags.
func (s *Service) SyncContact(ctx context.Context, ownerID string, contactID int64, names []string) error {
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = models.NameKey(name)
	}
	return s.store.SyncContact(ctx, ownerID, contactID, keys)
}

func translateStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tag not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "tag store failure")
}
