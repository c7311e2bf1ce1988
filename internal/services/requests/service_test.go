package requests

import (
	"context"
	"testing"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/storage/memory"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	queue *worker.MemoryQueue
	admin user.User
	hr    user.User
	emp   user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	queue := worker.NewMemoryQueue(16)
	svc := New(store, store, store, store, queue, nil)

	mk := func(email string, role user.Role, coins int) user.User {
		u, err := store.CreateUser(ctx, user.User{
			Email:         email,
			Firstname:     "Test",
			Lastname:      "User",
			Role:          role,
			IsActive:      true,
			IsAdapted:     true,
			Coins:         coins,
			HiredAt:       time.Now().UTC().Add(-365 * 24 * time.Hour),
			LegalEntityID: "acme",
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		return u
	}

	return &fixture{
		svc:   svc,
		store: store,
		queue: queue,
		admin: mk("admin@corp.com", user.RoleAdmin, 0),
		hr:    mk("hr@corp.com", user.RoleHR, 0),
		emp:   mk("emp@corp.com", user.RoleEmployee, 100),
	}
}

func (f *fixture) addBenefit(t *testing.T, cost int, amount *int) benefit.Benefit {
	t.Helper()
	b, err := f.store.CreateBenefit(context.Background(), benefit.Benefit{
		Name:      "Gym membership",
		IsActive:  true,
		CoinsCost: cost,
		Amount:    amount,
	})
	if err != nil {
		t.Fatalf("CreateBenefit failed: %v", err)
	}
	return b
}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil || svcErr.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateDeductsCoinsAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stock := 3
	b := f.addBenefit(t, 40, &stock)

	req, err := f.svc.Create(ctx, f.emp, b.ID, "please")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.Status != request.StatusPending {
		t.Errorf("expected pending, got %q", req.Status)
	}

	u, _ := f.store.GetUser(ctx, f.emp.ID)
	if u.Coins != 60 {
		t.Errorf("expected 60 coins after deduction, got %d", u.Coins)
	}
	updated, _ := f.store.GetBenefit(ctx, b.ID)
	if updated.Amount == nil || *updated.Amount != 2 {
		t.Errorf("expected stock 2, got %v", updated.Amount)
	}
}

func TestCreateEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expensive := f.addBenefit(t, 1000, nil)
	_, err := f.svc.Create(ctx, f.emp, expensive.ID, "")
	assertCode(t, err, apperr.CodeValidation)

	empty := 0
	out := f.addBenefit(t, 10, &empty)
	_, err = f.svc.Create(ctx, f.emp, out.ID, "")
	assertCode(t, err, apperr.CodeConflict)

	inactive, err := f.store.CreateBenefit(ctx, benefit.Benefit{Name: "Old perk", CoinsCost: 10})
	if err != nil {
		t.Fatalf("CreateBenefit failed: %v", err)
	}
	_, err = f.svc.Create(ctx, f.emp, inactive.ID, "")
	assertCode(t, err, apperr.CodeValidation)

	leveled, err := f.store.CreateBenefit(ctx, benefit.Benefit{
		Name: "Senior perk", IsActive: true, CoinsCost: 10, MinLevelCost: 99,
	})
	if err != nil {
		t.Fatalf("CreateBenefit failed: %v", err)
	}
	_, err = f.svc.Create(ctx, f.emp, leveled.ID, "")
	assertCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.Create(ctx, f.emp, "no-such-benefit", "")
	assertCode(t, err, apperr.CodeNotFound)
}

func TestDeclineRestoresCoinsAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stock := 1
	b := f.addBenefit(t, 40, &stock)

	req, err := f.svc.Create(ctx, f.emp, b.ID, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	declined := string(request.StatusDeclined)
	updated, err := f.svc.Update(ctx, f.hr, req.ID, UpdateInput{Status: &declined})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != request.StatusDeclined {
		t.Errorf("expected declined, got %q", updated.Status)
	}
	if updated.PerformerID != f.hr.ID {
		t.Errorf("expected performer %s, got %q", f.hr.ID, updated.PerformerID)
	}

	u, _ := f.store.GetUser(ctx, f.emp.ID)
	if u.Coins != 100 {
		t.Errorf("expected coins restored to 100, got %d", u.Coins)
	}
	restored, _ := f.store.GetBenefit(ctx, b.ID)
	if restored.Amount == nil || *restored.Amount != 1 {
		t.Errorf("expected stock restored to 1, got %v", restored.Amount)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBenefit(t, 10, nil)

	req, err := f.svc.Create(ctx, f.emp, b.ID, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	completed := string(request.StatusCompleted)
	_, err = f.svc.Update(ctx, f.hr, req.ID, UpdateInput{Status: &completed})
	assertCode(t, err, apperr.CodeConflict)

	approved := string(request.StatusApproved)
	if _, err := f.svc.Update(ctx, f.hr, req.ID, UpdateInput{Status: &approved}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := f.svc.Update(ctx, f.hr, req.ID, UpdateInput{Status: &completed}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Completed is terminal.
	declined := string(request.StatusDeclined)
	_, err = f.svc.Update(ctx, f.hr, req.ID, UpdateInput{Status: &declined})
	assertCode(t, err, apperr.CodeConflict)
}

func TestPerformerLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBenefit(t, 10, nil)

	otherHR, err := f.store.CreateUser(ctx, user.User{
		Email: "hr2@corp.com", Firstname: "Other", Lastname: "HR",
		Role: user.RoleHR, IsActive: true, LegalEntityID: "acme",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	req, err := f.svc.Create(ctx, f.emp, b.ID, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	comment := "taken"
	if _, err := f.svc.Update(ctx, f.hr, req.ID, UpdateInput{Comment: &comment}); err != nil {
		t.Fatalf("first touch failed: %v", err)
	}

	approved := string(request.StatusApproved)
	_, err = f.svc.Update(ctx, otherHR, req.ID, UpdateInput{Status: &approved})
	assertCode(t, err, apperr.CodeForbidden)

	// Admins bypass the performer lock.
	if _, err := f.svc.Update(ctx, f.admin, req.ID, UpdateInput{Status: &approved}); err != nil {
		t.Errorf("admin should bypass the performer lock: %v", err)
	}
}

func TestEmployeeCanOnlyDeclineOwnPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBenefit(t, 10, nil)

	req, err := f.svc.Create(ctx, f.emp, b.ID, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	approved := string(request.StatusApproved)
	_, err = f.svc.Update(ctx, f.emp, req.ID, UpdateInput{Status: &approved})
	assertCode(t, err, apperr.CodeForbidden)

	declined := string(request.StatusDeclined)
	updated, err := f.svc.Update(ctx, f.emp, req.ID, UpdateInput{Status: &declined})
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if updated.Status != request.StatusDeclined {
		t.Errorf("expected declined, got %q", updated.Status)
	}

	u, _ := f.store.GetUser(ctx, f.emp.ID)
	if u.Coins != 100 {
		t.Errorf("expected coins restored, got %d", u.Coins)
	}
}

func TestDeleteRestoresUnlessDeclined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBenefit(t, 40, nil)

	req, err := f.svc.Create(ctx, f.emp, b.ID, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err = f.svc.Delete(ctx, f.hr, req.ID)
	assertCode(t, err, apperr.CodeForbidden)

	if err := f.svc.Delete(ctx, f.admin, req.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	u, _ := f.store.GetUser(ctx, f.emp.ID)
	if u.Coins != 100 {
		t.Errorf("expected coins restored after delete, got %d", u.Coins)
	}

	// A declined request was already restored; deleting it must not pay twice.
	req2, err := f.svc.Create(ctx, f.emp, b.ID, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	declined := string(request.StatusDeclined)
	if _, err := f.svc.Update(ctx, f.admin, req2.ID, UpdateInput{Status: &declined}); err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if err := f.svc.Delete(ctx, f.admin, req2.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	u, _ = f.store.GetUser(ctx, f.emp.ID)
	if u.Coins != 100 {
		t.Errorf("expected coins unchanged after deleting declined request, got %d", u.Coins)
	}
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBenefit(t, 10, nil)

	if _, err := f.svc.Create(ctx, f.emp, b.ID, ""); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	own, err := f.svc.List(ctx, f.emp, storage.RequestFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, r := range own {
		if r.UserID != f.emp.ID {
			t.Errorf("employee listing leaked request %s", r.ID)
		}
	}

	all, err := f.svc.List(ctx, f.admin, storage.RequestFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 request, got %d", len(all))
	}

	byStatus, err := f.svc.List(ctx, f.admin, storage.RequestFilter{Status: request.StatusDeclined})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byStatus) != 0 {
		t.Errorf("expected no declined requests, got %d", len(byStatus))
	}
}
