package pg

import (
	"context"
	"database/sql"

	"github.com/WestonJN/venueaccess/internal/accesslog"
)

// AccessLog implements accesslog.Store on the access_log table. Rows
// are append-only; seq gives the newest-first ordering.
type AccessLog struct {
	db *sql.DB
}

var _ accesslog.Store = (*AccessLog)(nil)

func (l *AccessLog) Append(ctx context.Context, e accesslog.Entry) error {
	_, err := l.db.ExecContext(ctx, `
		insert into access_log(id, person_id, person_name, ts, granted, method)
		values ($1,$2,$3,$4,$5,$6)
	`, e.ID, e.PersonID, e.PersonName, e.Timestamp.UTC(), e.Granted, e.Method)
	return err
}

// List follows the accesslog.Store contract: a non-positive limit
// returns the full log.
func (l *AccessLog) List(ctx context.Context, limit int) ([]accesslog.Entry, error) {
	query := `
		select id, person_id, person_name, ts, granted, method
		from access_log
		order by seq desc
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = l.db.QueryContext(ctx, query+` limit $1`, limit)
	} else {
		rows, err = l.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accesslog.Entry, 0, max(limit, 0))
	for rows.Next() {
		var e accesslog.Entry
		if err := rows.Scan(&e.ID, &e.PersonID, &e.PersonName, &e.Timestamp, &e.Granted, &e.Method); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *AccessLog) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `select count(*) from access_log`).Scan(&n)
	return n, err
}

func (l *AccessLog) Clear(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `delete from access_log`)
	return err
}
