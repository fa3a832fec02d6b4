// Package pg backs the roster and access log with Postgres for
// deployments that outlive a single process.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/WestonJN/venueaccess/internal/ids"
	"github.com/WestonJN/venueaccess/internal/roster"
	"github.com/WestonJN/venueaccess/internal/token"
)

// Store owns the connection pool. Roster() and AccessLog() return the
// typed views handlers consume.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing pool, mainly for tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Roster() *Roster { return &Roster{db: s.db} }

func (s *Store) AccessLog() *AccessLog { return &AccessLog{db: s.db} }

// Roster implements roster.Store on the people table.
type Roster struct {
	db *sql.DB
}

var _ roster.Store = (*Roster)(nil)

const personColumns = `id, name, email, phone, has_access, token, created_at, last_access_at`

func scanPerson(row interface{ Scan(...any) error }) (roster.PersonRecord, error) {
	var rec roster.PersonRecord
	var lastAccess sql.NullTime
	err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &rec.HasAccess, &rec.Token, &rec.CreatedAt, &lastAccess)
	if err != nil {
		return roster.PersonRecord{}, err
	}
	if lastAccess.Valid {
		at := lastAccess.Time.UTC()
		rec.LastAccessAt = &at
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *Roster) Create(ctx context.Context, c roster.Candidate) (roster.PersonRecord, error) {
	c, err := c.Normalize()
	if err != nil {
		return roster.PersonRecord{}, err
	}

	now := time.Now().UTC()
	id := ids.NewPersonID()
	rec := roster.PersonRecord{
		ID:        id,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		HasAccess: c.HasAccess,
		Token:     token.Mint(id, c.Name, now),
		CreatedAt: now,
	}

	if _, err := r.db.ExecContext(ctx, `
		insert into people(id, name, email, phone, has_access, token, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.Name, rec.Email, rec.Phone, rec.HasAccess, rec.Token, rec.CreatedAt); err != nil {
		return roster.PersonRecord{}, err
	}
	return rec, nil
}

func (r *Roster) Get(ctx context.Context, id string) (roster.PersonRecord, error) {
	rec, err := scanPerson(r.db.QueryRowContext(ctx,
		`select `+personColumns+` from people where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return roster.PersonRecord{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.PersonRecord{}, err
	}
	return rec, nil
}

func (r *Roster) List(ctx context.Context) ([]roster.PersonRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`select `+personColumns+` from people order by created_at asc, id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]roster.PersonRecord, 0)
	for rows.Next() {
		rec, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Roster) Update(ctx context.Context, id string, patch roster.Patch) (roster.PersonRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return roster.PersonRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanPerson(tx.QueryRowContext(ctx,
		`select `+personColumns+` from people where id=$1 for update`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return roster.PersonRecord{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.PersonRecord{}, err
	}

	if patch.Name != nil {
		rec.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		rec.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		rec.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.HasAccess != nil {
		rec.HasAccess = *patch.HasAccess
	}

	if rec.Name == "" {
		return roster.PersonRecord{}, &roster.ValidationError{Field: "name", Reason: "name is required"}
	}
	if rec.Email != "" && !roster.ValidEmail(rec.Email) {
		return roster.PersonRecord{}, &roster.ValidationError{Field: "email", Reason: "invalid email format"}
	}
	if rec.Phone != "" && !roster.ValidPhone(rec.Phone) {
		return roster.PersonRecord{}, &roster.ValidationError{Field: "phone", Reason: "invalid phone number format"}
	}

	// Token column is deliberately left out of the update set.
	if _, err := tx.ExecContext(ctx, `
		update people set name=$2, email=$3, phone=$4, has_access=$5 where id=$1
	`, id, rec.Name, rec.Email, rec.Phone, rec.HasAccess); err != nil {
		return roster.PersonRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return roster.PersonRecord{}, err
	}
	return rec, nil
}

func (r *Roster) Delete(ctx context.Context, id string) error {
	// Idempotent: zero rows affected is fine.
	_, err := r.db.ExecContext(ctx, `delete from people where id=$1`, id)
	return err
}

func (r *Roster) ToggleAccess(ctx context.Context, id string) (roster.PersonRecord, error) {
	rec, err := scanPerson(r.db.QueryRowContext(ctx, `
		update people set has_access = not has_access
		where id=$1
		returning `+personColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return roster.PersonRecord{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.PersonRecord{}, err
	}
	return rec, nil
}

func (r *Roster) MarkAccess(ctx context.Context, id string, at time.Time) (roster.PersonRecord, error) {
	rec, err := scanPerson(r.db.QueryRowContext(ctx, `
		update people set last_access_at=$2
		where id=$1
		returning `+personColumns, id, at.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return roster.PersonRecord{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.PersonRecord{}, err
	}
	return rec, nil
}

func (r *Roster) Merge(ctx context.Context, candidates []roster.Candidate) (roster.MergeResult, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return roster.MergeResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Dedup keys come from the pre-merge roster only, so duplicates
	// inside the batch are all admitted.
	rows, err := tx.QueryContext(ctx, `select lower(name), lower(email) from people`)
	if err != nil {
		return roster.MergeResult{}, err
	}
	names := make(map[string]struct{})
	emails := make(map[string]struct{})
	for rows.Next() {
		var name, email string
		if err := rows.Scan(&name, &email); err != nil {
			rows.Close()
			return roster.MergeResult{}, err
		}
		names[name] = struct{}{}
		if email != "" {
			emails[email] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return roster.MergeResult{}, err
	}
	rows.Close()

	var res roster.MergeResult
	for _, c := range candidates {
		c, err := c.Normalize()
		if err != nil {
			return roster.MergeResult{}, err
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

		now := time.Now().UTC()
		id := ids.NewPersonID()
		rec := roster.PersonRecord{
			ID:        id,
			Name:      c.Name,
			Email:     c.Email,
			Phone:     c.Phone,
			HasAccess: c.HasAccess,
			Token:     token.Mint(id, c.Name, now),
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(ctx, `
			insert into people(id, name, email, phone, has_access, token, created_at)
			values ($1,$2,$3,$4,$5,$6,$7)
		`, rec.ID, rec.Name, rec.Email, rec.Phone, rec.HasAccess, rec.Token, rec.CreatedAt); err != nil {
			return roster.MergeResult{}, err
		}
		res.Added = append(res.Added, rec)
	}

	if err := tx.Commit(); err != nil {
		return roster.MergeResult{}, err
	}
	return res, nil
}
