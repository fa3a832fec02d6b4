// Package accesslog keeps the append-only record of access decisions.
// Entries are immutable once appended and deliberately carry no
// referential integrity toward the roster: PersonID may reference a
// deleted record or no record at all (unknown scans), and PersonName is
// captured at decision time so history survives renames and deletions.
package accesslog

import (
	"context"
	"sync"
	"time"
)

// Decision methods.
const (
	MethodScan   = "scan"
	MethodManual = "manual"
)

// Entry is one recorded access decision.
type Entry struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	PersonName string    `json:"person_name"`
	Timestamp  time.Time `json:"timestamp"`
	Granted    bool      `json:"granted"`
	Method     string    `json:"method"`
}

// Store persists decisions in insertion order. Individual entries are
// never mutated or removed; Clear wipes the whole log as a single
// operator action.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns entries newest first. A non-positive limit returns
	// the full log. Each call re-reads current state, so the view is
	// restartable.
	List(ctx context.Context, limit int) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// InMemory is the default log backend.
type InMemory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInMemory creates an empty log.
func NewInMemory() *InMemory {
	return &InMemory{}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *InMemory) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *InMemory) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
