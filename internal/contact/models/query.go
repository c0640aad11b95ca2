package models

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	dErrors "contactdir/pkg/domain-errors"
)

// SortFields is the allow-list for sort_by.
var SortFields = []string{"id", "first_name", "last_name", "created_on", "updated_on"}

// Query is the resolved filter/sort/page/projection request applied to the
// record store or to a cached result set. A zero PageSize means
// unpaginated.
type Query struct {
	ExternalIDs    []string
	IDs            []int64
	FirstName      string
	LastName       string
	Page           int
	PageSize       int
	SortBy         string
	SortDescending bool
	Fields         []string
}

// NewQuery combines a search request body with parsed query options.
func NewQuery(req SearchRequest, opts Options) Query {
	return Query{
		ExternalIDs:    req.ExternalIDs,
		IDs:            req.IDs,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Page:           opts.Page,
		PageSize:       opts.PageSize,
		SortBy:         opts.SortBy,
		SortDescending: opts.SortDescending,
		Fields:         opts.Fields,
	}
}

// Unpaginated returns a copy of q that matches the full result set.
func (q Query) Unpaginated() Query {
	q.Page = 1
	q.PageSize = 0
	return q
}

// Options are the query-string parameters shared by search, cached-search
// retrieval, bulk create (fields), and export.
type Options struct {
	Page           int
	PageSize       int
	SortBy         string
	SortDescending bool
	Fields         []string
}

// ParseOptions validates the query string. All violations are collected so
// the 400 body reports every bad parameter at once.
func ParseOptions(values url.Values, defaultPageSize int) (Options, error) {
	opts := Options{Page: 1, PageSize: defaultPageSize, SortBy: "id"}
	var errs []dErrors.FieldError

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, dErrors.FieldError{Field: "page", Message: "is not a positive number"})
		} else {
			opts.Page = n
		}
	}

	if raw := values.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, dErrors.FieldError{Field: "page_size", Message: "is not a positive number"})
		} else {
			opts.PageSize = n
		}
	}

	if raw := values.Get("sort_by"); raw != "" {
		if !contains(SortFields, raw) {
			errs = append(errs, dErrors.FieldError{
				Field:   "sort_by",
				Message: fmt.Sprintf("valid values are %s", strings.Join(SortFields, ", ")),
			})
		} else {
			opts.SortBy = raw
		}
	}

	switch raw := values.Get("sort_direction"); raw {
	case "", "asc":
	case "desc":
		opts.SortDescending = true
	default:
		errs = append(errs, dErrors.FieldError{Field: "sort_direction", Message: "valid values are asc, desc"})
	}

	if raw := values.Get("fields"); raw != "" {
		fields, err := ResolveFields(raw)
		if err != nil {
			errs = append(errs, dErrors.FieldsOf(err)...)
		} else {
			opts.Fields = fields
		}
	}

	if len(errs) > 0 {
		return Options{}, dErrors.NewValidation(errs...)
	}
	return opts, nil
}

// Matches reports whether a contact satisfies the query filters. Used by
// the in-memory store; the postgres store compiles the same predicates to
// SQL.
func (q Query) Matches(c *Contact) bool {
	if len(q.ExternalIDs) > 0 && !contains(q.ExternalIDs, c.ExternalID) {
		return false
	}
	if len(q.IDs) > 0 {
		found := false
		for _, id := range q.IDs {
			if id == c.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.FirstName != "" && !strings.EqualFold(c.Name.First, q.FirstName) {
		return false
	}
	if q.LastName != "" && !strings.EqualFold(c.Name.Last, q.LastName) {
		return false
	}
	return true
}

// Sort orders contacts by the query's sort key with an id tie-break so
// pagination stays reproducible across calls.
func (q Query) Sort(contacts []*Contact) {
	key := q.SortBy
	if key == "" {
		key = "id"
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		if q.SortDescending {
			a, b = b, a
		}
		switch key {
		case "first_name":
			if a.Name.First != b.Name.First {
				return a.Name.First < b.Name.First
			}
		case "last_name":
			if a.Name.Last != b.Name.Last {
				return a.Name.Last < b.Name.Last
			}
		case "created_on":
			if !a.CreatedOn.Equal(b.CreatedOn) {
				return a.CreatedOn.Before(b.CreatedOn)
			}
		case "updated_on":
			if !a.UpdatedOn.Equal(b.UpdatedOn) {
				return a.UpdatedOn.Before(b.UpdatedOn)
			}
		}
		return contacts[i].ID < contacts[j].ID
	})
}

// Paginate slices a sorted result set down to the requested page.
func (q Query) Paginate(contacts []*Contact) []*Contact {
	if q.PageSize <= 0 {
		return contacts
	}
	start := (q.Page - 1) * q.PageSize
	if start >= len(contacts) {
		return nil
	}
	end := start + q.PageSize
	if end > len(contacts) {
		end = len(contacts)
	}
	return contacts[start:end]
}

// PageCount computes ceil(total / pageSize); a zero pageSize collapses to
// one page.
func PageCount(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	if pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
