// Package csvio adapts uploaded CSV files into a candidate batch for
// reconciliation. It owns the collaborator-side concerns the engine
// does not: header normalization and the downloadable import template.
// A file that cannot be read as CSV aborts the whole operation; row
// content problems are left for the reconciler to report per row.
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/WestonJN/venueaccess/internal/reconcile"
)

// Canonical column names, matched by case-insensitive substring in the
// header row: a header containing "name" maps to name, "email" to
// email, "phone" to phone and "access" to has_access. Unrecognized
// columns are ignored.
const (
	colName   = "name"
	colEmail  = "email"
	colPhone  = "phone"
	colAccess = "has_access"
)

func canonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	switch {
	case strings.Contains(h, colName):
		return colName
	case strings.Contains(h, colEmail):
		return colEmail
	case strings.Contains(h, colPhone):
		return colPhone
	case strings.Contains(h, "access"):
		return colAccess
	default:
		return ""
	}
}

// Decode reads a headered CSV stream into candidate rows.
func Decode(r io.Reader) ([]reconcile.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]string, len(header))
	known := false
	for i, h := range header {
		columns[i] = canonicalColumn(h)
		if columns[i] != "" {
			known = true
		}
	}
	if !known {
		return nil, fmt.Errorf("csv header has no recognized columns (want name, email, phone, has_access)")
	}

	var rows []reconcile.RawRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+1, err)
		}

		var row reconcile.RawRow
		for i, cell := range record {
			if i >= len(columns) {
				break
			}
			switch columns[i] {
			case colName:
				row.Name = cell
			case colEmail:
				row.Email = cell
			case colPhone:
				row.Phone = cell
			case colAccess:
				row.HasAccess.SetString(cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Template returns the CSV import template: canonical headers plus
// sample rows showing the accepted value shapes.
func Template() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := [][]string{
		{"name", "email", "phone", "has_access"},
		{"John Doe", "john.doe@example.com", "+1234567890", "true"},
		{"Jane Smith", "jane.smith@example.com", "+0987654321", "true"},
		{"Bob Johnson", "bob.johnson@example.com", "", "false"},
	}
	for _, rec := range records {
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}
