package roster

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PersonRecord is a roster entry. ID is assigned at creation and never
// changes; Token is minted from the original ID and is not re-minted on
// update, so a printed code stays valid for the record's lifetime.
type PersonRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	HasAccess    bool       `json:"has_access"`
	Token        string     `json:"token"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
}

// Candidate is an unminted roster entry: the fields a caller supplies
// before the store assigns an id and token.
type Candidate struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	HasAccess bool   `json:"has_access"`
}

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Name      *string
	Email     *string
	Phone     *string
	HasAccess *bool
}

// MergeResult reports the outcome of reconciling a candidate batch
// against the roster.
type MergeResult struct {
	Added   []PersonRecord `json:"added"`
	Skipped []Candidate    `json:"skipped"`
}

// Stats summarizes the roster for dashboards and gauges.
type Stats struct {
	Total         int `json:"total"`
	WithAccess    int `json:"with_access"`
	WithoutAccess int `json:"without_access"`
}

// ErrNotFound indicates the referenced person id is not in the roster.
var ErrNotFound = errors.New("person not found")

// ValidationError reports a field-scoped input problem. It never aborts
// a batch operation; callers surface the message and move on.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var (
	// Mirrors the address form accepted by the import template:
	// something@something.tld, no whitespace.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+()\- ]+$`)
)

// ValidEmail reports whether s has an acceptable address form.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidPhone reports whether s contains only digits, spaces, "+", "-"
// and parentheses.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// Normalize trims a candidate's fields and validates them. Returned
// errors are ValidationErrors suitable for direct display.
func (c Candidate) Normalize() (Candidate, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	if c.Name == "" {
		return Candidate{}, &ValidationError{Field: "name", Reason: "name is required"}
	}
	if c.Email != "" && !ValidEmail(c.Email) {
		return Candidate{}, &ValidationError{Field: "email", Reason: "invalid email format"}
	}
	if c.Phone != "" && !ValidPhone(c.Phone) {
		return Candidate{}, &ValidationError{Field: "phone", Reason: "invalid phone number format"}
	}
	return c, nil
}

// Match reports whether a roster entry matches a free-text search
// query: case-insensitive substring on name and email, substring on
// phone. An empty query matches everything.
func Match(p PersonRecord, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	lowered := strings.ToLower(query)
	if strings.Contains(strings.ToLower(p.Name), lowered) {
		return true
	}
	if p.Email != "" && strings.Contains(strings.ToLower(p.Email), lowered) {
		return true
	}
	return p.Phone != "" && strings.Contains(p.Phone, query)
}

// Tally computes roster statistics over a snapshot.
func Tally(records []PersonRecord) Stats {
	st := Stats{Total: len(records)}
	for _, p := range records {
		if p.HasAccess {
			st.WithAccess++
		} else {
			st.WithoutAccess++
		}
	}
	return st
}
