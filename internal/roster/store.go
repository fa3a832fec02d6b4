package roster

import (
	"context"
	"time"
)

// Store defines roster operations. The engine is storage-agnostic:
// the in-memory implementation below is the default, with a Postgres
// adapter under internal/store/pg for durable deployments.
//
// Invariants every implementation maintains: no two live records share
// an id, names are never empty after any mutation, and a record's
// token is minted exactly once at creation.
type Store interface {
	Create(ctx context.Context, c Candidate) (PersonRecord, error)
	Get(ctx context.Context, id string) (PersonRecord, error)
	List(ctx context.Context) ([]PersonRecord, error)
	Update(ctx context.Context, id string, patch Patch) (PersonRecord, error)
	// Delete is idempotent: removing an absent id is a no-op, not an
	// error, so repeated deletes converge on the same state.
	Delete(ctx context.Context, id string) error
	ToggleAccess(ctx context.Context, id string) (PersonRecord, error)
	// MarkAccess stamps the last granted access time on a record.
	MarkAccess(ctx context.Context, id string, at time.Time) (PersonRecord, error)
	// Merge commits a candidate batch, skipping candidates whose name
	// or email (case-insensitive) collides with a record already in the
	// roster when the merge began. Candidates are not deduplicated
	// against each other within the batch.
	Merge(ctx context.Context, candidates []Candidate) (MergeResult, error)
}
