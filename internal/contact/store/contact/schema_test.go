package contact

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The integration suite only runs where Docker is available, so drift between
// the store's column list and the DDL is checked here as well.
func TestContactColumnsMatchSchema(t *testing.T) {
	declared := schemaColumns(t, "contacts")

	for _, column := range splitColumns(contactColumns) {
		require.Contains(t, declared, column, "contacts DDL does not declare %q", column)
	}
}

func schemaColumns(t *testing.T, table string) map[string]bool {
	t.Helper()

	ddl, err := os.ReadFile("../../../../db/schema.sql")
	require.NoError(t, err)

	marker := "CREATE TABLE IF NOT EXISTS " + table + " ("
	_, body, found := strings.Cut(string(ddl), marker)
	require.True(t, found, "no DDL for table %q", table)
	body, _, found = strings.Cut(body, ");")
	require.True(t, found)

	columns := make(map[string]bool)
	for _, line := range strings.Split(body, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.EqualFold(fields[0], "UNIQUE") || strings.EqualFold(fields[0], "FOREIGN") {
			continue
		}
		columns[fields[0]] = true
	}
	return columns
}

func splitColumns(list string) []string {
	var columns []string
	for _, column := range strings.Split(list, ",") {
		if column = strings.TrimSpace(column); column != "" {
			columns = append(columns, column)
		}
	}
	return columns
}
