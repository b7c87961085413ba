package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"photoshare.app/internal/auth"
)

var userCols = []string{"id", "username", "email", "password_hash", "role", "is_active", "is_verified", "refresh_token", "avatar", "created_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db, time.Second), mock
}

func TestCreateFirstUserIsAdmin(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("select pg_advisory_xact_lock").WithArgs(signupLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("insert into users").
		WithArgs("alice", "alice@example.com", "hash", "").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "alice@example.com", "hash", "admin", true, false, "", "", created))
	mock.ExpectCommit()

	p, err := store.Create(context.Background(), auth.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 1 || p.Role != auth.RoleAdmin || !p.Active || p.Verified {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at: %v", p.CreatedAt)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("select pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("insert into users").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), auth.NewUser{Username: "bob", Email: "bob@example.com", PasswordHash: "hash"})
	if !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from users where email").WithArgs("carol@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(5, "carol", "carol@example.com", "hash", "moderator", true, true, "refresh", "https://img/c.png", time.Now()))
	p, err := store.FindByEmail(context.Background(), "carol@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if p.Role != auth.RoleModerator || p.RefreshToken != "refresh" || p.Avatar != "https://img/c.png" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	mock.ExpectQuery("from users where email").WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)
	if _, err := store.FindByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("from users where id").WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)
	if _, err := store.FindByID(context.Background(), 9); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery("from users order by id").WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "a", "a@example.com", "h", "admin", true, true, "", "", now).
			AddRow(2, "b", "b@example.com", "h", "user", false, true, "", "", now))

	users, err := store.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[1].Active {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestSearchByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery(`where lower\(username\) like`).WithArgs(`ali\_ce`, 10, 0).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(3, "Ali_Ce", "a@example.com", "h", "user", true, true, "", "", now))

	users, err := store.SearchByUsername(context.Background(), "Ali_Ce", 10, 0)
	if err != nil {
		t.Fatalf("SearchByUsername: %v", err)
	}
	if len(users) != 1 || users[0].Username != "Ali_Ce" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestLikeEscape(t *testing.T) {
	cases := map[string]string{
		"bob":     "bob",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range cases {
		if got := likeEscape(in); got != want {
			t.Errorf("likeEscape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetUsername(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update users set username").WithArgs(int64(2), "bobby").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.SetUsername(context.Background(), 2, "bobby"); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}

	mock.ExpectExec("update users set username").WithArgs(int64(9), "ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.SetUsername(context.Background(), 9, "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRotateRefreshToken(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update users set refresh_token").WithArgs(int64(1), "old", "new").WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.RotateRefreshToken(context.Background(), 1, "old", "new")
	if err != nil || !ok {
		t.Fatalf("expected rotation, got ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("update users set refresh_token").WithArgs(int64(1), "old", "newer").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.RotateRefreshToken(context.Background(), 1, "old", "newer")
	if err != nil || ok {
		t.Fatalf("expected lost race, got ok=%v err=%v", ok, err)
	}
}

func TestUpdatesReportMissingRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update users set is_verified").WithArgs("x@example.com").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.MarkVerified(context.Background(), "x@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("update users set role").WithArgs("x@example.com", "moderator").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.SetRole(context.Background(), "x@example.com", auth.RoleModerator); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	mock.ExpectExec("update users set is_active").WithArgs("x@example.com", false).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.SetActive(context.Background(), "x@example.com", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	mock.ExpectExec("update users set refresh_token").WithArgs(int64(4), "").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.UpdateRefreshToken(context.Background(), 4, ""); err != nil {
		t.Fatalf("UpdateRefreshToken: %v", err)
	}
}

func TestRevocations(t *testing.T) {
	store, mock := newMockStore(t)
	rev := store.Revocations()
	now := time.Now()

	mock.ExpectExec("insert into revoked_tokens").WithArgs("abc", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into revoked_tokens").WithArgs("abc", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 2; i++ {
		if err := rev.Add(context.Background(), auth.Revocation{TokenHash: "abc", RevokedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}

	mock.ExpectQuery("select exists").WithArgs("abc").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	found, err := rev.Contains(context.Background(), "abc")
	if err != nil || !found {
		t.Fatalf("expected revoked token, got %v err=%v", found, err)
	}

	mock.ExpectExec("delete from revoked_tokens where token_hash").WithArgs("abc").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := rev.Remove(context.Background(), "abc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	mock.ExpectExec("delete from revoked_tokens where expires_at").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := rev.Prune(context.Background(), now)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 pruned, got %d err=%v", n, err)
	}

	if err := rev.Add(context.Background(), auth.Revocation{}); err == nil {
		t.Fatal("expected error for empty hash")
	}
}

func TestPing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
