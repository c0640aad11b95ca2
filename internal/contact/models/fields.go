package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "contactdir/pkg/domain-errors"
)

// ValidFields is the ordered allow-list for the fields projection. The
// order fixes the column order of full exports and of responses when the
// caller does not project.
var ValidFields = []string{
	"id",
	"external_id",
	"unified_id",
	"source_id",
	"first_name",
	"last_name",
	"company_name",
	"title",
	"tier",
	"emails",
	"phone_numbers",
	"addresses",
	"tags",
	"unified_timestamp",
	"created_on",
	"updated_on",
}

// ResolveFields parses a comma-separated projection against the allow-list.
// An unlisted field fails with a message enumerating the valid values, per
// the API contract.
func ResolveFields(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !contains(ValidFields, p) {
			return nil, dErrors.NewFieldError("fields",
				fmt.Sprintf("valid values are %s", strings.Join(ValidFields, ", ")))
		}
		fields = append(fields, p)
	}
	if len(fields) == 0 {
		return nil, dErrors.NewFieldError("fields", "can not be blank")
	}
	return fields, nil
}

// Project renders a contact as a flat map restricted to the given fields.
// An empty projection selects every allow-listed field. Live search,
// cached-search retrieval, bulk fields responses, and exports all route
// through here so projection behaves identically everywhere.
func Project(c *Contact, fields []string) map[string]any {
	if len(fields) == 0 {
		fields = ValidFields
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f] = fieldValue(c, f)
	}
	return out
}

func fieldValue(c *Contact, field string) any {
	switch field {
	case "id":
		return c.ID
	case "external_id":
		return c.ExternalID
	case "unified_id":
		return c.UnifiedID
	case "source_id":
		return c.SourceID
	case "first_name":
		return c.Name.First
	case "last_name":
		return c.Name.Last
	case "company_name":
		return c.CompanyName
	case "title":
		return c.TitleInfo.Title
	case "tier":
		return c.Tier
	case "emails":
		return c.Emails
	case "phone_numbers":
		return c.PhoneNumbers
	case "addresses":
		return c.Addresses
	case "tags":
		return c.Tags
	case "unified_timestamp":
		return c.UnifiedTimestamp
	case "created_on":
		return c.CreatedOn
	case "updated_on":
		return c.UpdatedOn
	}
	return nil
}

// CellValue renders a projected field as a single spreadsheet cell.
// Multi-valued fields collapse to semicolon-joined values.
func CellValue(c *Contact, field string) string {
	switch field {
	case "emails":
		return joinTyped(c.Emails)
	case "phone_numbers":
		return joinTyped(c.PhoneNumbers)
	case "addresses":
		parts := make([]string, 0, len(c.Addresses))
		for _, a := range c.Addresses {
			parts = append(parts, strings.TrimSpace(strings.Join([]string{a.Street, a.City, a.State, a.Zip}, " ")))
		}
		return strings.Join(parts, ";")
	case "tags":
		return strings.Join(c.Tags, ";")
	case "created_on":
		return c.CreatedOn.UTC().Format(time.RFC3339)
	case "updated_on":
		return c.UpdatedOn.UTC().Format(time.RFC3339)
	case "id", "source_id", "tier", "unified_timestamp":
		return fmt.Sprintf("%v", fieldValue(c, field))
	default:
		if v := fieldValue(c, field); v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}
}

func joinTyped(values []TypedValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.Value)
	}
	return strings.Join(parts, ";")
}
