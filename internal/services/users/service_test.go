package users

import (
	"context"
	"testing"

	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/storage/memory"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	admin  user.User
	hr     user.User
	emp    user.User
	entity legalentity.LegalEntity
	other  legalentity.LegalEntity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, store, nil, worker.NewMemoryQueue(16), nil)

	entity, err := store.CreateLegalEntity(ctx, legalentity.LegalEntity{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateLegalEntity failed: %v", err)
	}
	other, err := store.CreateLegalEntity(ctx, legalentity.LegalEntity{Name: "Globex"})
	if err != nil {
		t.Fatalf("CreateLegalEntity failed: %v", err)
	}

	mk := func(email string, role user.Role, entityID string) user.User {
		u, err := store.CreateUser(ctx, user.User{
			Email:         email,
			Firstname:     "Test",
			Lastname:      "User",
			Role:          role,
			IsActive:      true,
			LegalEntityID: entityID,
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		return u
	}

	return &fixture{
		svc:    svc,
		store:  store,
		admin:  mk("admin@corp.com", user.RoleAdmin, ""),
		hr:     mk("hr@corp.com", user.RoleHR, entity.ID),
		emp:    mk("emp@corp.com", user.RoleEmployee, entity.ID),
		entity: entity,
		other:  other,
	}
}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil || svcErr.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, CreateInput{
		Email:     "New@Corp.com",
		Firstname: "Anna",
		Lastname:  "Ivanova",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "new@corp.com" {
		t.Errorf("expected lowercased email, got %q", created.Email)
	}
	if created.Role != user.RoleEmployee {
		t.Errorf("expected default employee role, got %q", created.Role)
	}
	if !created.IsActive {
		t.Error("new accounts should be active")
	}
	if created.HiredAt.IsZero() {
		t.Error("hire date should default to now")
	}

	_, err = f.svc.Create(ctx, f.admin, CreateInput{Firstname: "A", Lastname: "B"})
	assertCode(t, err, apperr.CodeValidation)

	_, err = f.svc.Create(ctx, f.admin, CreateInput{
		Email: "new@corp.com", Firstname: "Anna", Lastname: "Ivanova",
	})
	assertCode(t, err, apperr.CodeConflict)

	_, err = f.svc.Create(ctx, f.admin, CreateInput{
		Email: "x@corp.com", Firstname: "A", Lastname: "B", Role: "overlord",
	})
	assertCode(t, err, apperr.CodeValidation)
}

func TestCreatePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.emp, CreateInput{
		Email: "x@corp.com", Firstname: "A", Lastname: "B",
	})
	assertCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.Create(ctx, f.hr, CreateInput{
		Email: "x@corp.com", Firstname: "A", Lastname: "B", Role: string(user.RoleHR),
	})
	assertCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.Create(ctx, f.hr, CreateInput{
		Email: "x@corp.com", Firstname: "A", Lastname: "B", LegalEntityID: f.other.ID,
	})
	assertCode(t, err, apperr.CodeForbidden)

	// HR with no explicit entity lands in their own.
	created, err := f.svc.Create(ctx, f.hr, CreateInput{
		Email: "x@corp.com", Firstname: "A", Lastname: "B",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.LegalEntityID != f.entity.ID {
		t.Errorf("expected entity %s, got %s", f.entity.ID, created.LegalEntityID)
	}
}

func TestGetPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, f.emp, f.emp.ID); err != nil {
		t.Errorf("employee should read themselves: %v", err)
	}
	_, err := f.svc.Get(ctx, f.emp, f.hr.ID)
	assertCode(t, err, apperr.CodeForbidden)

	outsider, err := f.store.CreateUser(ctx, user.User{
		Email: "out@corp.com", Firstname: "O", Lastname: "U",
		Role: user.RoleEmployee, IsActive: true, LegalEntityID: f.other.ID,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	_, err = f.svc.Get(ctx, f.hr, outsider.ID)
	assertCode(t, err, apperr.CodeForbidden)

	if _, err := f.svc.Get(ctx, f.admin, outsider.ID); err != nil {
		t.Errorf("admin should read anyone: %v", err)
	}
}

func TestUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Renamed"
	if _, err := f.svc.Update(ctx, f.emp, f.emp.ID, UpdateInput{Firstname: &name}); err != nil {
		t.Errorf("employee should rename themselves: %v", err)
	}

	coins := 500
	_, err := f.svc.Update(ctx, f.emp, f.emp.ID, UpdateInput{Coins: &coins})
	assertCode(t, err, apperr.CodeForbidden)

	role := string(user.RoleAdmin)
	_, err = f.svc.Update(ctx, f.hr, f.emp.ID, UpdateInput{Role: &role})
	assertCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.Update(ctx, f.hr, f.admin.ID, UpdateInput{Firstname: &name})
	assertCode(t, err, apperr.CodeForbidden)

	updated, err := f.svc.Update(ctx, f.admin, f.emp.ID, UpdateInput{Coins: &coins})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Coins != 500 {
		t.Errorf("expected 500 coins, got %d", updated.Coins)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Delete(ctx, f.hr, f.emp.ID)
	assertCode(t, err, apperr.CodeForbidden)

	err = f.svc.Delete(ctx, f.admin, f.admin.ID)
	assertCode(t, err, apperr.CodeValidation)

	if err := f.svc.Delete(ctx, f.admin, f.emp.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	err = f.svc.Delete(ctx, f.admin, f.emp.ID)
	assertCode(t, err, apperr.CodeNotFound)
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.CreateUser(ctx, user.User{
		Email: "out@corp.com", Firstname: "O", Lastname: "U",
		Role: user.RoleEmployee, IsActive: true, LegalEntityID: f.other.ID,
	}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err := f.svc.List(ctx, f.emp, storage.UserFilter{})
	assertCode(t, err, apperr.CodeForbidden)

	hrList, err := f.svc.List(ctx, f.hr, storage.UserFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, u := range hrList {
		if u.LegalEntityID != f.entity.ID {
			t.Errorf("hr listing leaked user %s from entity %s", u.Email, u.LegalEntityID)
		}
	}

	adminList, err := f.svc.List(ctx, f.admin, storage.UserFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(adminList) < 4 {
		t.Errorf("expected all users for admin, got %d", len(adminList))
	}
}

func TestSearchFallsBackToSQL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, f.emp, "test", 10)
	assertCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.Search(ctx, f.admin, "  ", 10)
	assertCode(t, err, apperr.CodeValidation)

	// No indexer configured: the SQL fallback searches names and emails.
	found, err := f.svc.Search(ctx, f.admin, "emp@corp.com", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != f.emp.ID {
		t.Errorf("expected exactly the employee, got %d results", len(found))
	}
}
