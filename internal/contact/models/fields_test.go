package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "contactdir/pkg/domain-errors"
)

func TestResolveFields(t *testing.T) {
	t.Run("resolves listed fields in request order", func(t *testing.T) {
		fields, err := ResolveFields("last_name,id,emails")
		require.NoError(t, err)
		assert.Equal(t, []string{"last_name", "id", "emails"}, fields)
	})

	t.Run("trims whitespace and skips empty entries", func(t *testing.T) {
		fields, err := ResolveFields(" id , first_name ,")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "first_name"}, fields)
	})

	t.Run("rejects unlisted fields with the allow-list", func(t *testing.T) {
		_, err := ResolveFields("id,owner_id")
		require.Error(t, err)
		fieldErrs := dErrors.FieldsOf(err)
		require.Len(t, fieldErrs, 1)
		assert.Equal(t, "fields", fieldErrs[0].Field)
		assert.Contains(t, fieldErrs[0].Message, "valid values are id, external_id")
	})

	t.Run("rejects a blank projection", func(t *testing.T) {
		_, err := ResolveFields(" , ,")
		require.Error(t, err)
	})
}

func projectionFixture() *Contact {
	return &Contact{
		ID:         42,
		OwnerID:    "owner-1",
		ExternalID: "crm-42",
		Name:       Name{First: "Ada", Last: "Lovelace"},
		TitleInfo:  TitleInfo{Title: "Countess"},
		Emails: []TypedValue{
			{Type: "work", Value: "ada@example.com"},
			{Type: "home", Value: "ada@home.example"},
		},
		Tags:      []string{"vip", "mathematics"},
		Tier:      1,
		CreatedOn: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		UpdatedOn: time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestProject(t *testing.T) {
	c := projectionFixture()

	t.Run("restricts to the requested fields", func(t *testing.T) {
		m := Project(c, []string{"id", "last_name", "title"})
		require.Len(t, m, 3)
		assert.Equal(t, int64(42), m["id"])
		assert.Equal(t, "Lovelace", m["last_name"])
		assert.Equal(t, "Countess", m["title"])
	})

	t.Run("empty projection selects every allow-listed field", func(t *testing.T) {
		m := Project(c, nil)
		assert.Len(t, m, len(ValidFields))
		assert.NotContains(t, m, "owner_id", "the partition key never leaves the service")
		assert.NotContains(t, m, "lock_version", "the raw version is only exposed as a token")
	})
}

func TestCellValue(t *testing.T) {
	c := projectionFixture()
	c.Addresses = []Address{
		{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Type: "work"},
	}

	assert.Equal(t, "42", CellValue(c, "id"))
	assert.Equal(t, "ada@example.com;ada@home.example", CellValue(c, "emails"))
	assert.Equal(t, "vip;mathematics", CellValue(c, "tags"))
	assert.Equal(t, "1 Main St Springfield IL 62701", CellValue(c, "addresses"))
	assert.Equal(t, "2026-02-01T09:30:00Z", CellValue(c, "created_on"))
	assert.Equal(t, "Ada", CellValue(c, "first_name"))
}
