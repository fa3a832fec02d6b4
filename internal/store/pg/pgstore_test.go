package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/WestonJN/venueaccess/internal/accesslog"
	"github.com/WestonJN/venueaccess/internal/roster"
	"github.com/WestonJN/venueaccess/internal/token"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

var personCols = []string{"id", "name", "email", "phone", "has_access", "token", "created_at", "last_access_at"}

func TestCreatePersonMintsIdentity(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into people").
		WithArgs(sqlmock.AnyArg(), "Ada Lovelace", "ada@example.com", "", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := store.Roster().Create(context.Background(), roster.Candidate{
		Name:      "  Ada Lovelace  ",
		Email:     "ada@example.com",
		HasAccess: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" || rec.Token == "" {
		t.Fatalf("expected minted identity, got %+v", rec)
	}
	claim := token.Decode(rec.Token)
	if claim.Degraded || claim.ID != rec.ID {
		t.Fatalf("token does not decode to the record id: %+v", claim)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePersonValidatesBeforeSQL(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Roster().Create(context.Background(), roster.Candidate{Name: "  "})
	var verr *roster.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
}

func TestGetPersonNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select (.+) from people where id=").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Roster().Get(context.Background(), "missing")
	if !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPersonScansNullableLastAccess(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("select (.+) from people where id=").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow("p1", "Ada", "", "", true, "tok", created, nil))

	rec, err := store.Roster().Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.LastAccessAt != nil {
		t.Fatalf("expected nil last access, got %v", rec.LastAccessAt)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at: %v", rec.CreatedAt)
	}
}

func TestToggleAccessReturnsUpdatedRow(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC()
	mock.ExpectQuery("update people set has_access = not has_access").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow("p1", "Ada", "", "", false, "tok", created, nil))

	rec, err := store.Roster().ToggleAccess(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ToggleAccess: %v", err)
	}
	if rec.HasAccess {
		t.Fatal("expected access off after toggle")
	}
}

func TestMarkAccessStampsTime(t *testing.T) {
	store, mock := newMockStore(t)

	at := time.Date(2026, 8, 30, 20, 15, 0, 0, time.UTC)
	created := at.Add(-time.Hour)
	mock.ExpectQuery("update people set last_access_at=").
		WithArgs("p1", at).
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow("p1", "Ada", "", "", true, "tok", created, at))

	rec, err := store.Roster().MarkAccess(context.Background(), "p1", at)
	if err != nil {
		t.Fatalf("MarkAccess: %v", err)
	}
	if rec.LastAccessAt == nil || !rec.LastAccessAt.Equal(at) {
		t.Fatalf("unexpected last access: %v", rec.LastAccessAt)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from people").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Roster().Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("Delete on absent id must be a no-op, got %v", err)
	}
}

func TestUpdateKeepsToken(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("select (.+) from people where id=(.+) for update").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow("p1", "Ada", "", "", true, "original-token", created, nil))
	mock.ExpectExec("update people set name=").
		WithArgs("p1", "Ada Byron", "", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name := "Ada Byron"
	rec, err := store.Roster().Update(context.Background(), "p1", roster.Patch{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Token != "original-token" {
		t.Fatalf("update must not re-mint the token, got %q", rec.Token)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMergeSkipsAgainstSnapshot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select lower").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).
			AddRow("existing member", "existing@example.com"))
	mock.ExpectExec("insert into people").
		WithArgs(sqlmock.AnyArg(), "Fresh Face", "fresh@example.com", "", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := store.Roster().Merge(context.Background(), []roster.Candidate{
		{Name: "Existing Member", HasAccess: true},
		{Name: "Fresh Face", Email: "fresh@example.com", HasAccess: true},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].Name != "Fresh Face" {
		t.Fatalf("unexpected added set: %+v", res.Added)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Name != "Existing Member" {
		t.Fatalf("unexpected skipped set: %+v", res.Skipped)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccessLogRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)

	ts := time.Now().UTC()
	mock.ExpectExec("insert into access_log").
		WithArgs("e1", "p1", "Ada", ts, true, accesslog.MethodScan).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.AccessLog().Append(context.Background(), accesslog.Entry{
		ID: "e1", PersonID: "p1", PersonName: "Ada",
		Timestamp: ts, Granted: true, Method: accesslog.MethodScan,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	mock.ExpectQuery("select id, person_id, person_name, ts, granted, method").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "person_name", "ts", "granted", "method"}).
			AddRow("e1", "p1", "Ada", ts, true, accesslog.MethodScan))

	entries, err := store.AccessLog().List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	mock.ExpectQuery("select count").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	n, err := store.AccessLog().Count(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Count: %d, %v", n, err)
	}

	mock.ExpectExec("delete from access_log").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.AccessLog().Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccessLogListUnboundedReturnsAll(t *testing.T) {
	store, mock := newMockStore(t)

	ts := time.Now().UTC()
	logCols := []string{"id", "person_id", "person_name", "ts", "granted", "method"}
	mock.ExpectQuery(`order by seq desc\s*$`).
		WillReturnRows(sqlmock.NewRows(logCols).
			AddRow("e2", "p2", "Grace", ts, true, accesslog.MethodManual).
			AddRow("e1", "p1", "Ada", ts, false, accesslog.MethodScan))

	entries, err := store.AccessLog().List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "e2" || entries[1].ID != "e1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
