package models

import (
	"time"

	dErrors "contactdir/pkg/domain-errors"

	"contactdir/internal/contact/version"
)

// ContactResponse is the full single-contact payload returned by GET.
type ContactResponse struct {
	ID               int64        `json:"id"`
	ExternalID       string       `json:"external_id,omitempty"`
	UnifiedID        string       `json:"unified_id,omitempty"`
	SourceID         int64        `json:"source_id,omitempty"`
	Name             Name         `json:"name"`
	CompanyName      string       `json:"company_name,omitempty"`
	TitleInfo        TitleInfo    `json:"title_info"`
	Emails           []TypedValue `json:"emails,omitempty"`
	PhoneNumbers     []TypedValue `json:"phone_numbers,omitempty"`
	Addresses        []Address    `json:"addresses,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	Tier             int          `json:"tier,omitempty"`
	UnifiedTimestamp int64        `json:"unified_timestamp,omitempty"`
	Version          string       `json:"version"`
	CreatedOn        time.Time    `json:"created_on"`
	UpdatedOn        time.Time    `json:"updated_on"`
}

// NewContactResponse renders a stored contact, deriving the version token
// from its lock_version.
func NewContactResponse(c *Contact) ContactResponse {
	return ContactResponse{
		ID:               c.ID,
		ExternalID:       c.ExternalID,
		UnifiedID:        c.UnifiedID,
		SourceID:         c.SourceID,
		Name:             c.Name,
		CompanyName:      c.CompanyName,
		TitleInfo:        c.TitleInfo,
		Emails:           c.Emails,
		PhoneNumbers:     c.PhoneNumbers,
		Addresses:        c.Addresses,
		Tags:             c.Tags,
		Tier:             c.Tier,
		UnifiedTimestamp: c.UnifiedTimestamp,
		Version:          version.Token(c.LockVersion),
		CreatedOn:        c.CreatedOn,
		UpdatedOn:        c.UpdatedOn,
	}
}

// SearchResponse is the shared envelope for live and cached search results.
type SearchResponse struct {
	Contacts   []map[string]any `json:"contacts"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageCount  int              `json:"page_count"`
}

// NewSearchResponse projects a result page into the response envelope.
func NewSearchResponse(contacts []*Contact, total, page, pageSize int, fields []string) SearchResponse {
	projected := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		projected = append(projected, Project(c, fields))
	}
	return SearchResponse{
		Contacts:   projected,
		TotalCount: total,
		Page:       page,
		PageCount:  PageCount(total, pageSize),
	}
}

// CountResponse answers POST /contacts/count.
type CountResponse struct {
	Count int `json:"count"`
}

// InvalidRequest reports one rejected bulk item. RequestID is the item's
// 1-based position in the envelope, as a string.
type InvalidRequest struct {
	RequestID string               `json:"request_id"`
	Errors    []dErrors.FieldError `json:"errors"`
}

// BulkCreateResponse reports a bulk create outcome. Each entry in Contacts
// is either a bare {"id": n} reference or, when the caller requested a
// fields projection, a projected snapshot of the persisted record.
type BulkCreateResponse struct {
	Contacts        []map[string]any `json:"contacts,omitempty"`
	InvalidRequests []InvalidRequest `json:"invalid_requests,omitempty"`
	BatchID         string           `json:"batch_id,omitempty"`
}

// IDRefs renders a list of created ids as bulk response entries.
func IDRefs(ids []int64) []map[string]any {
	refs := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, map[string]any{"id": id})
	}
	return refs
}
