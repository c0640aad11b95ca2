package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	dErrors "contactdir/pkg/domain-errors"
)

// CreateRequest is the wire shape for creating or replacing a contact. The
// same field rules apply to single create, update, and each bulk item.
type CreateRequest struct {
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
}

// BulkCreateRequest is the envelope for POST /contacts/bulk.
type BulkCreateRequest struct {
	BulkContacts []CreateRequest `json:"bulk_contacts"`
	BatchID      string          `json:"batch_id,omitempty"`
}

// MaxBulkContacts bounds one bulk create envelope.
const MaxBulkContacts = 100

// BulkDeleteRequest is the envelope for DELETE /contacts/bulk.
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// SearchRequest carries the filter portion of search, count, export, and
// cache-create requests. Pagination, sorting, and projection arrive in the
// query string.
type SearchRequest struct {
	ExternalIDs []string `json:"external_ids,omitempty"`
	IDs         []int64  `json:"ids,omitempty"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
}

// Validate checks the per-contact field rules and returns all violations
// found, in field order, so callers see the complete picture in one pass.
func (r *CreateRequest) Validate() []dErrors.FieldError {
	var errs []dErrors.FieldError

	errs = append(errs, validateTyped("emails", r.Emails, MaxEmailLength)...)
	errs = append(errs, validateTyped("phone_numbers", r.PhoneNumbers, MaxPhoneLength)...)

	for _, a := range r.Addresses {
		if !contains(AddressTypes, a.Type) {
			errs = append(errs, dErrors.FieldError{
				Field:   "addresses",
				Message: fmt.Sprintf("type must be one of %s", strings.Join(AddressTypes, ", ")),
			})
		}
	}

	for _, tag := range r.Tags {
		if !ValidTagName(tag) {
			errs = append(errs, dErrors.FieldError{
				Field:   "tags",
				Message: fmt.Sprintf("tag name %q contains invalid characters", tag),
			})
		}
	}

	return errs
}

// validateTyped enforces the per-type cap and value length for emails and
// phone numbers. The overflow error names the first column that cannot be
// stored (e.g. work_phone_1) to match the persisted layout.
func validateTyped(field string, values []TypedValue, maxLen int) []dErrors.FieldError {
	var errs []dErrors.FieldError
	perType := make(map[string]int)

	for _, v := range values {
		if !contains(ContactTypes, v.Type) {
			errs = append(errs, dErrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("type must be one of %s", strings.Join(ContactTypes, ", ")),
			})
			continue
		}
		perType[v.Type]++
		if len(v.Value) > maxLen {
			errs = append(errs, dErrors.FieldError{
				Field:   columnName(field, v.Type, perType[v.Type]),
				Message: fmt.Sprintf("is longer than %d characters", maxLen),
			})
		}
	}

	for _, typ := range ContactTypes {
		if perType[typ] > MaxPerType {
			errs = append(errs, dErrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("%s cant have more than %d of type %s", field, MaxPerType, typ),
			})
		}
	}

	return errs
}

// columnName maps a typed value back to its persisted column, e.g.
// ("phone_numbers", "work", 1) -> "work_phone_1".
func columnName(field, typ string, ordinal int) string {
	singular := "email"
	if field == "phone_numbers" {
		singular = "phone"
	}
	return fmt.Sprintf("%s_%s_%d", typ, singular, ordinal)
}

// ToContact builds a Contact from a validated request. The store assigns
// the id; lock_version starts at 0.
func (r *CreateRequest) ToContact(ownerID string, now time.Time) *Contact {
	return &Contact{
		OwnerID:          ownerID,
		ExternalID:       r.ExternalID,
		UnifiedID:        r.UnifiedID,
		SourceID:         r.SourceID,
		Name:             r.Name,
		CompanyName:      r.CompanyName,
		TitleInfo:        r.TitleInfo,
		Emails:           append([]TypedValue(nil), r.Emails...),
		PhoneNumbers:     append([]TypedValue(nil), r.PhoneNumbers...),
		Addresses:        append([]Address(nil), r.Addresses...),
		Tags:             append([]string(nil), r.Tags...),
		Tier:             r.Tier,
		UnifiedTimestamp: r.UnifiedTimestamp,
		LockVersion:      0,
		CreatedOn:        now,
		UpdatedOn:        now,
	}
}

// ValidTagName reports whether a tag name contains only letters, digits,
// spaces, hyphens, and underscores, and is non-blank.
func ValidTagName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == ' ', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
