// Package export renders search result sets as downloadable documents.
// The header row always equals the resolved field order, so a round-trip
// parse recovers the projection exactly.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"contactdir/internal/contact/models"
)

// ContentTypeCSV is the media type of CSV exports.
const ContentTypeCSV = "text/csv; charset=utf-8"

// ContentTypeXLSX is the media type of spreadsheet exports.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename builds the attachment filename for a rendered export.
func Filename(now time.Time, extension string) string {
	return fmt.Sprintf("contacts_export_%s.%s", now.UTC().Format("20060102T150405Z"), extension)
}

// CSV renders contacts as delimited text with a header row.
func CSV(contacts []*models.Contact, fields []string) ([]byte, error) {
	if len(fields) == 0 {
		fields = models.ValidFields
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(fields); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, c := range contacts {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = models.CellValue(c, f)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders contacts as a single-sheet workbook with the same header
// and cell layout as the CSV export.
func XLSX(contacts []*models.Contact, fields []string) ([]byte, error) {
	if len(fields) == 0 {
		fields = models.ValidFields
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(fields))
	for i, field := range fields {
		header[i] = field
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return nil, err
	}

	for i, c := range contacts {
		row := make([]any, len(fields))
		for j, field := range fields {
			row[j] = models.CellValue(c, field)
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("resolve cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("set row %d: %w", rowNum, err)
	}
	return nil
}
