// Package access renders admit/deny decisions for scanned identity
// tokens and records every decision in the access log.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WestonJN/venueaccess/internal/accesslog"
	"github.com/WestonJN/venueaccess/internal/ids"
	"github.com/WestonJN/venueaccess/internal/roster"
	"github.com/WestonJN/venueaccess/internal/token"
)

// Verdict is the tri-state outcome of a scan resolution.
type Verdict string

const (
	VerdictGranted Verdict = "granted"
	VerdictDenied  Verdict = "denied"
	VerdictUnknown Verdict = "unknown"
)

// ErrAccessNotPermitted rejects a manual grant against a person whose
// permission flag is off. The engine exposes no manual-deny path; the
// caller must not offer the action for such people in the first place.
var ErrAccessNotPermitted = errors.New("person does not have access permission")

// Engine is stateless: every decision depends only on the current
// roster and the decoded claim.
type Engine struct {
	roster roster.Store
	log    accesslog.Store
}

// New wires the engine to its stores.
func New(r roster.Store, l accesslog.Store) *Engine {
	return &Engine{roster: r, log: l}
}

// Result is a rendered decision plus its immutable log entry. Person is
// set when the claim resolved to a roster entry, reflecting any
// last-access update.
type Result struct {
	Verdict Verdict              `json:"verdict"`
	Entry   accesslog.Entry      `json:"entry"`
	Person  *roster.PersonRecord `json:"person,omitempty"`
}

// DecodeScan parses a raw scan payload. Malformed payloads degrade
// rather than fail; see the token package.
func (e *Engine) DecodeScan(raw string) token.Claim {
	return token.Decode(raw)
}

// ResolveScan looks the claim up in the roster and renders exactly one
// of granted, denied or unknown. A granted verdict stamps the person's
// last access time; every verdict appends one log entry carrying the
// claim's id even when it resolved to nothing, preserving the forensic
// trail of unknown scans.
func (e *Engine) ResolveScan(ctx context.Context, claim token.Claim) (Result, error) {
	now := time.Now().UTC()

	person, err := e.roster.Get(ctx, claim.ID)
	switch {
	case errors.Is(err, roster.ErrNotFound):
		name := claim.Name
		if name == "" {
			name = "Unknown"
		}
		return e.record(ctx, VerdictUnknown, claim.ID, name, accesslog.MethodScan, now, nil)

	case err != nil:
		return Result{}, fmt.Errorf("resolve scan: %w", err)

	case person.HasAccess:
		updated, err := e.roster.MarkAccess(ctx, person.ID, now)
		if err != nil {
			return Result{}, fmt.Errorf("mark access: %w", err)
		}
		return e.record(ctx, VerdictGranted, person.ID, person.Name, accesslog.MethodScan, now, &updated)

	default:
		return e.record(ctx, VerdictDenied, person.ID, person.Name, accesslog.MethodScan, now, &person)
	}
}

// GrantManual admits a person by id without a token, for operator
// override at the door. The person must currently hold the permission;
// a rejected grant leaves no log entry.
func (e *Engine) GrantManual(ctx context.Context, personID string) (Result, error) {
	now := time.Now().UTC()

	person, err := e.roster.Get(ctx, personID)
	if err != nil {
		return Result{}, err
	}
	if !person.HasAccess {
		return Result{}, ErrAccessNotPermitted
	}

	updated, err := e.roster.MarkAccess(ctx, person.ID, now)
	if err != nil {
		return Result{}, fmt.Errorf("mark access: %w", err)
	}
	return e.record(ctx, VerdictGranted, person.ID, person.Name, accesslog.MethodManual, now, &updated)
}

func (e *Engine) record(ctx context.Context, v Verdict, personID, personName, method string, at time.Time, person *roster.PersonRecord) (Result, error) {
	entry := accesslog.Entry{
		ID:         ids.NewEntryID(),
		PersonID:   personID,
		PersonName: personName,
		Timestamp:  at,
		Granted:    v == VerdictGranted,
		Method:     method,
	}
	if err := e.log.Append(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("append log entry: %w", err)
	}
	return Result{Verdict: v, Entry: entry, Person: person}, nil
}
