// Package reconcile ingests externally parsed candidate batches and
// merges them into the roster without duplicating identities. Row
// failures never abort the batch: each bad row is reported by index and
// skipped, and everything that validates is committed.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/WestonJN/venueaccess/internal/roster"
)

// BoolField normalizes the permissive has_access column once, at the
// ingestion boundary: a JSON boolean passes through, the strings
// "true", "yes", "1" and "granted" (case-insensitive) mean granted,
// any other present value means denied, and an absent field defaults
// to granted.
type BoolField struct {
	present bool
	value   bool
}

// Bool returns a field explicitly set to v.
func Bool(v bool) BoolField {
	return BoolField{present: true, value: v}
}

// Present reports whether the source row carried the field at all.
func (f BoolField) Present() bool { return f.present }

// Value resolves the field, applying the absent-means-granted default.
func (f BoolField) Value() bool {
	if !f.present {
		return true
	}
	return f.value
}

// SetString normalizes a raw textual cell. Blank cells count as absent.
func (f *BoolField) SetString(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = BoolField{}
		return
	}
	*f = Bool(parseAccessWord(s))
}

func parseAccessWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "granted":
		return true
	default:
		return false
	}
}

func (f *BoolField) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*f = BoolField{}
	case bool:
		*f = Bool(val)
	case string:
		f.SetString(val)
	case float64:
		f.SetString(strconv.FormatFloat(val, 'f', -1, 64))
	default:
		// Arrays/objects are present but not a recognizable grant.
		*f = Bool(false)
	}
	return nil
}

func (f BoolField) MarshalJSON() ([]byte, error) {
	if !f.present {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// RawRow is one loosely typed candidate row. Header normalization is
// the uploader's concern (see csvio); by the time a row reaches this
// package its fields are canonical but unvalidated.
type RawRow struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	HasAccess BoolField `json:"has_access"`
}

func (r RawRow) blank() bool {
	return strings.TrimSpace(r.Name) == "" &&
		strings.TrimSpace(r.Email) == "" &&
		strings.TrimSpace(r.Phone) == ""
}

// Report is the full outcome of a batch: validation stats, the
// committed and skipped sets, and every row-indexed error. The caller
// displays it verbatim.
type Report struct {
	Total   int                   `json:"total"`
	Valid   int                   `json:"valid"`
	Invalid int                   `json:"invalid"`
	Added   []roster.PersonRecord `json:"added"`
	Skipped []roster.Candidate    `json:"skipped"`
	Errors  []string              `json:"errors"`
}

// Run validates rows in order, then commits the survivors against the
// current roster. Blank rows are separators, not errors. Deduplication
// happens inside the store's Merge, against the pre-merge snapshot
// only.
func Run(ctx context.Context, store roster.Store, rows []RawRow) (Report, error) {
	rep := Report{Total: len(rows)}
	var candidates []roster.Candidate

	for i, row := range rows {
		rowNum := i + 1
		if row.blank() {
			continue
		}

		name := strings.TrimSpace(row.Name)
		if name == "" {
			rep.fail(rowNum, "name is required")
			continue
		}
		email := strings.TrimSpace(row.Email)
		if email != "" && !roster.ValidEmail(email) {
			rep.fail(rowNum, "invalid email format")
			continue
		}
		phone := strings.TrimSpace(row.Phone)
		if phone != "" && !roster.ValidPhone(phone) {
			rep.fail(rowNum, "invalid phone number format")
			continue
		}

		rep.Valid++
		candidates = append(candidates, roster.Candidate{
			Name:      name,
			Email:     email,
			Phone:     phone,
			HasAccess: row.HasAccess.Value(),
		})
	}

	res, err := store.Merge(ctx, candidates)
	if err != nil {
		return Report{}, fmt.Errorf("merge batch: %w", err)
	}
	rep.Added = res.Added
	rep.Skipped = res.Skipped
	return rep, nil
}

func (r *Report) fail(rowNum int, msg string) {
	r.Invalid++
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %s", rowNum, msg))
}
