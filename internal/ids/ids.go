// Package ids mints the identifiers used across the roster and the
// access log. Person identifiers are ULIDs so storage keys sort by
// creation time; log entry identifiers are plain UUIDs since the log
// carries its own ordering.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewPersonID returns a lexicographically sortable identifier for a roster entry.
func NewPersonID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewEntryID returns an identifier for an access log entry.
func NewEntryID() string {
	return uuid.NewString()
}
