package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

func userRows(u user.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "firstname", "lastname", "middlename", "role", "hired_at",
		"is_active", "is_adapted", "is_verified", "coins", "password_hash",
		"legal_entity_id", "position_id", "created_at", "updated_at",
	}).AddRow(u.ID, u.Email, u.Firstname, u.Lastname, u.Middlename, string(u.Role),
		u.HiredAt, u.IsActive, u.IsAdapted, u.IsVerified, u.Coins, u.PasswordHash,
		u.LegalEntityID, u.PositionID, u.CreatedAt, u.UpdatedAt)
}

func TestCreateUserInsertsRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := store.CreateUser(context.Background(), user.User{
		Email:     "Ivan@Corp.com",
		Firstname: "Ivan",
		Lastname:  "Petrov",
		Role:      user.RoleEmployee,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID == "" {
		t.Error("expected a generated ID")
	}
	if u.Email != "ivan@corp.com" {
		t.Errorf("expected lowercased email, got %q", u.Email)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	want := user.User{
		ID: "u1", Email: "ivan@corp.com", Firstname: "Ivan", Lastname: "Petrov",
		Role: user.RoleHR, HiredAt: now, IsActive: true, Coins: 75,
		LegalEntityID: "le1", CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("u1").
		WillReturnRows(userRows(want))

	got, err := store.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != want.Email || got.Role != want.Role || got.Coins != want.Coins {
		t.Errorf("unexpected user %+v", got)
	}
	if got.LegalEntityID != "le1" {
		t.Errorf("expected legal entity le1, got %q", got.LegalEntityID)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := store.CreateUser(context.Background(), user.User{Email: "ivan@corp.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateUserVanishedRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("u1").
		WillReturnRows(userRows(user.User{
			ID: "u1", Email: "ivan@corp.com", HiredAt: now,
			Role: user.RoleEmployee, CreatedAt: now, UpdatedAt: now,
		}))
	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateUser(context.Background(), user.User{ID: "u1", Email: "ivan@corp.com"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM users`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsersBuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	active := true
	mock.ExpectQuery(`SELECT .+ FROM users WHERE role = \$1 AND is_active = \$2 AND legal_entity_id = \$3`).
		WithArgs("employee", true, "le1").
		WillReturnRows(userRows(user.User{
			ID: "u1", Email: "ivan@corp.com", Firstname: "Ivan", Lastname: "Petrov",
			Role: user.RoleEmployee, HiredAt: now, IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		}))

	list, err := store.ListUsers(context.Background(), storage.UserFilter{
		Role:          user.RoleEmployee,
		IsActive:      &active,
		LegalEntityID: "le1",
	})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "u1" {
		t.Errorf("unexpected result %+v", list)
	}
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM users`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		return store.DeleteUser(ctx, "u1")
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("boom")
	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}
