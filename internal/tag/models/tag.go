// Package models defines owner-scoped tags and their request shapes. A
// tag's identity within an owner is its case-insensitive name key, so
// "VIP" and "vip" are the same tag.
package models

import (
	"strings"
	"time"

	contactmodels "contactdir/internal/contact/models"
	dErrors "contactdir/pkg/domain-errors"
)

// Tag is an owner-scoped label with a maintained count of linked contacts.
// lock_version backs the ETag token on tag responses; renames bump it.
type Tag struct {
	ID           int64
	OwnerID      string
	Name         string
	NameKey      string
	ContactCount int
	LockVersion  int64
	CreatedOn    time.Time
	UpdatedOn    time.Time
}

// NameKey normalizes a tag name to its uniqueness key.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateRequest names a tag to create or rename to.
type CreateRequest struct {
	Name string `json:"name"`
}

// Validate checks the tag name against the shared naming rule.
func (r CreateRequest) Validate() []dErrors.FieldError {
	if !contactmodels.ValidTagName(r.Name) {
		return []dErrors.FieldError{{
			Field:   "name",
			Message: "can only contain letters, numbers, spaces, hyphens and underscores and can not be blank",
		}}
	}
	return nil
}

// AssignRequest lists the contacts to link or unlink.
type AssignRequest struct {
	ContactIDs []int64 `json:"contact_ids"`
}

// Validate requires at least one contact id.
func (r AssignRequest) Validate() []dErrors.FieldError {
	if len(r.ContactIDs) == 0 {
		return []dErrors.FieldError{{Field: "contact_ids", Message: "can not be blank"}}
	}
	return nil
}

// TagResponse is the wire shape of a tag.
type TagResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ContactCount int       `json:"contact_count"`
	CreatedOn    time.Time `json:"created_on"`
	UpdatedOn    time.Time `json:"updated_on"`
}

// NewTagResponse converts a tag to its wire shape.
func NewTagResponse(t *Tag) TagResponse {
	return TagResponse{
		ID:           t.ID,
		Name:         t.Name,
		ContactCount: t.ContactCount,
		CreatedOn:    t.CreatedOn,
		UpdatedOn:    t.UpdatedOn,
	}
}

// ListResponse wraps the owner's tags.
type ListResponse struct {
	Tags []TagResponse `json:"tags"`
}

// NewListResponse converts tags to the list wire shape.
func NewListResponse(tags []*Tag) ListResponse {
	out := ListResponse{Tags: make([]TagResponse, len(tags))}
	for i, t := range tags {
		out.Tags[i] = NewTagResponse(t)
	}
	return out
}
