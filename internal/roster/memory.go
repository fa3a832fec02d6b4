package roster

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/WestonJN/venueaccess/internal/ids"
	"github.com/WestonJN/venueaccess/internal/token"
)

// InMemory implements Store with in-process concurrency safety. It is
// the default backend: the decision flow is a single logical actor, so
// a plain RWMutex is all the serialization the roster needs.
type InMemory struct {
	mu     sync.RWMutex
	people map[string]*PersonRecord
	order  []string // creation order, for stable listings
}

// NewInMemory creates an empty roster.
func NewInMemory() *InMemory {
	return &InMemory{people: make(map[string]*PersonRecord)}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Create(ctx context.Context, c Candidate) (PersonRecord, error) {
	c, err := c.Normalize()
	if err != nil {
		return PersonRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(c), nil
}

// createLocked mints id, token and creation time. Callers hold s.mu and
// have already normalized the candidate.
func (s *InMemory) createLocked(c Candidate) PersonRecord {
	now := time.Now().UTC()
	id := ids.NewPersonID()
	rec := &PersonRecord{
		ID:        id,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		HasAccess: c.HasAccess,
		Token:     token.Mint(id, c.Name, now),
		CreatedAt: now,
	}
	s.people[id] = rec
	s.order = append(s.order, id)
	return *rec
}

func (s *InMemory) Get(ctx context.Context, id string) (PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.people[id]
	if !ok {
		return PersonRecord{}, ErrNotFound
	}
	return *rec, nil
}

func (s *InMemory) List(ctx context.Context) ([]PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PersonRecord, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.people[id]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, id string, patch Patch) (PersonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.people[id]
	if !ok {
		return PersonRecord{}, ErrNotFound
	}

	next := *rec
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		next.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		next.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.HasAccess != nil {
		next.HasAccess = *patch.HasAccess
	}

	if next.Name == "" {
		return PersonRecord{}, &ValidationError{Field: "name", Reason: "name is required"}
	}
	if next.Email != "" && !ValidEmail(next.Email) {
		return PersonRecord{}, &ValidationError{Field: "email", Reason: "invalid email format"}
	}
	if next.Phone != "" && !ValidPhone(next.Phone) {
		return PersonRecord{}, &ValidationError{Field: "phone", Reason: "invalid phone number format"}
	}

	// Token is deliberately untouched: identity is tied to the id, not
	// to the current name.
	*rec = next
	return next, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.people[id]; !ok {
		return nil
	}
	delete(s.people, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemory) ToggleAccess(ctx context.Context, id string) (PersonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.people[id]
	if !ok {
		return PersonRecord{}, ErrNotFound
	}
	rec.HasAccess = !rec.HasAccess
	return *rec, nil
}

func (s *InMemory) MarkAccess(ctx context.Context, id string, at time.Time) (PersonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.people[id]
	if !ok {
		return PersonRecord{}, ErrNotFound
	}
	at = at.UTC()
	rec.LastAccessAt = &at
	return *rec, nil
}

func (s *InMemory) Merge(ctx context.Context, candidates []Candidate) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Dedup keys are computed once from the pre-merge roster, so
	// duplicates inside the batch are all admitted.
	names := make(map[string]struct{}, len(s.people))
	emails := make(map[string]struct{}, len(s.people))
	for _, rec := range s.people {
		names[strings.ToLower(rec.Name)] = struct{}{}
		if rec.Email != "" {
			emails[strings.ToLower(rec.Email)] = struct{}{}
		}
	}

	var res MergeResult
	for _, c := range candidates {
		c, err := c.Normalize()
		if err != nil {
			// Merge only sees rows that already passed row validation;
			// a failure here means the caller skipped that step.
			return MergeResult{}, err
		}
		if _, dup := names[strings.ToLower(c.Name)]; dup {
			res.Skipped = append(res.Skipped, c)
			continue
		}
		if c.Email != "" {
			if _, dup := emails[strings.ToLower(c.Email)]; dup {
				res.Skipped = append(res.Skipped, c)
				continue
			}
		}
		res.Added = append(res.Added, s.createLocked(c))
	}
	return res, nil
}
