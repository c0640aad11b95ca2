package service

import (
	"context"
	"strconv"

	"contactdir/internal/contact/models"
	dErrors "contactdir/pkg/domain-errors"
	"contactdir/pkg/requestcontext"
)

// BulkResult reports a bulk create outcome to the handler, which picks the
// status code: 200 when every item persisted, 202 otherwise.
type BulkResult struct {
	Response models.BulkCreateResponse
	Partial  bool
}

// BulkCreate validates each item independently, persists the valid ones in
// one atomic batch, and reports the invalid ones by 1-based position.
// Envelope violations (empty, over limit) fail the whole request before
// any item is considered.
func (s *Service) BulkCreate(ctx context.Context, ownerID string, req models.BulkCreateRequest, fields []string) (BulkResult, error) {
	if len(req.BulkContacts) == 0 {
		return BulkResult{}, dErrors.NewFieldError("bulk_contacts", "can not be blank")
	}
	if len(req.BulkContacts) > models.MaxBulkContacts {
		return BulkResult{}, dErrors.NewFieldError("bulk_contacts",
			"can not contain more than "+strconv.Itoa(models.MaxBulkContacts)+" contacts")
	}

	now := requestcontext.Now(ctx)
	valid := make([]*models.Contact, 0, len(req.BulkContacts))
	var invalid []models.InvalidRequest

	for i := range req.BulkContacts {
		item := &req.BulkContacts[i]
		if fieldErrs := item.Validate(); len(fieldErrs) > 0 {
			invalid = append(invalid, models.InvalidRequest{
				RequestID: strconv.Itoa(i + 1),
				Errors:    fieldErrs,
			})
			continue
		}
		valid = append(valid, item.ToContact(ownerID, now))
	}

	var ids []int64
	if len(valid) > 0 {
		var err error
		ids, err = s.store.BulkSave(ctx, ownerID, valid)
		if err != nil {
			return BulkResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "bulk save failed")
		}
		for i, id := range ids {
			if err := s.syncTags(ctx, ownerID, id, valid[i].Tags); err != nil {
				return BulkResult{}, err
			}
		}
		s.incrementCreated(len(ids))
	}

	resp := models.BulkCreateResponse{
		InvalidRequests: invalid,
		BatchID:         req.BatchID,
	}

	if len(fields) > 0 && len(ids) > 0 {
		// Caller asked for projections of the persisted records; re-fetch
		// so derived fields (timestamps, ids) come from the store.
		persisted, _, err := s.store.FetchByQuery(ctx, ownerID, models.Query{IDs: ids, Fields: fields})
		if err != nil {
			return BulkResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetch after bulk save failed")
		}
		for _, c := range persisted {
			resp.Contacts = append(resp.Contacts, models.Project(c, fields))
		}
	} else {
		resp.Contacts = models.IDRefs(ids)
	}

	return BulkResult{Response: resp, Partial: len(invalid) > 0}, nil
}

// BulkDelete removes the given contacts for the owner in one filtered
// delete. Deleting zero matches is not an error.
func (s *Service) BulkDelete(ctx context.Context, ownerID string, req models.BulkDeleteRequest) (int64, error) {
	if len(req.IDs) == 0 {
		return 0, dErrors.NewFieldError("ids", "can not be blank")
	}
	for _, id := range req.IDs {
		if err := s.syncTags(ctx, ownerID, id, nil); err != nil {
			return 0, err
		}
	}
	deleted, err := s.store.DeleteByIDs(ctx, ownerID, req.IDs)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "bulk delete failed")
	}
	return deleted, nil
}
