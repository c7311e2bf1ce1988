package benefits

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/cafeteria-hr/service_layer/internal/domain/category"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/storage/memory"
)

var (
	admin = user.User{ID: "admin-1", Role: user.RoleAdmin}
	hr    = user.User{ID: "hr-1", Role: user.RoleHR}
	emp   = user.User{ID: "emp-1", Role: user.RoleEmployee}
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, nil, nil, nil), store
}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil || svcErr.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, emp, Input{Name: "Gym"})
	assertCode(t, err, apperr.CodeForbidden)

	_, err = svc.Create(ctx, hr, Input{Name: "  "})
	assertCode(t, err, apperr.CodeValidation)

	_, err = svc.Create(ctx, hr, Input{Name: "Gym", CoinsCost: -1})
	assertCode(t, err, apperr.CodeValidation)

	_, err = svc.Create(ctx, hr, Input{Name: "Gym", CategoryID: "nope"})
	assertCode(t, err, apperr.CodeValidation)

	cat, err := store.CreateCategory(ctx, category.Category{Name: "Sport"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	b, err := svc.Create(ctx, hr, Input{
		Name:       "Gym membership",
		CoinsCost:  40,
		CategoryID: cat.ID,
		ImageURLs:  []string{"https://cdn/img1.png", "https://cdn/img2.png"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !b.IsActive {
		t.Error("benefits should default to active")
	}
	if len(b.Images) != 2 || !b.Images[0].IsPrimary || b.Images[1].IsPrimary {
		t.Errorf("expected first image primary, got %+v", b.Images)
	}
	if b.PrimaryImageURL() != "https://cdn/img1.png" {
		t.Errorf("unexpected primary image %q", b.PrimaryImageURL())
	}
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stock := 5
	b, err := svc.Create(ctx, admin, Input{Name: "Gym", CoinsCost: 40, Amount: &stock})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cost := 50
	updated, err := svc.Update(ctx, admin, b.ID, UpdateInput{CoinsCost: &cost})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.CoinsCost != 50 {
		t.Errorf("expected cost 50, got %d", updated.CoinsCost)
	}
	if updated.Name != "Gym" {
		t.Errorf("name should be untouched, got %q", updated.Name)
	}
	if updated.Amount == nil || *updated.Amount != 5 {
		t.Errorf("amount should be untouched, got %v", updated.Amount)
	}

	// An explicit null switches the benefit to unlimited stock.
	updated, err = svc.Update(ctx, admin, b.ID, UpdateInput{AmountSet: true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Amount != nil {
		t.Errorf("expected unlimited stock, got %v", updated.Amount)
	}

	_, err = svc.Update(ctx, emp, b.ID, UpdateInput{CoinsCost: &cost})
	assertCode(t, err, apperr.CodeForbidden)
}

func TestEmployeeVisibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inactive := false
	hidden, err := svc.Create(ctx, admin, Input{Name: "Retired perk", IsActive: &inactive})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, admin, Input{Name: "Gym"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.Get(ctx, emp, hidden.ID)
	assertCode(t, err, apperr.CodeNotFound)

	if _, err := svc.Get(ctx, hr, hidden.ID); err != nil {
		t.Errorf("hr should see inactive benefits: %v", err)
	}

	visible, err := svc.List(ctx, emp, storage.BenefitFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(visible) != 1 {
		t.Errorf("expected 1 active benefit for employee, got %d", len(visible))
	}

	all, err := svc.List(ctx, admin, storage.BenefitFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 benefits for admin, got %d", len(all))
	}
}

func TestSearchSQLFallback(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, admin, Input{Name: "Gym membership"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, admin, Input{Name: "Language courses"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := svc.Search(ctx, emp, "", 10)
	assertCode(t, err, apperr.CodeValidation)

	found, err := svc.Search(ctx, emp, "gym", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Gym membership" {
		t.Errorf("expected the gym benefit, got %d results", len(found))
	}
}

func TestAddImageURLAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, admin, Input{Name: "Gym"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.AddImageURL(ctx, emp, b.ID, "https://cdn/x.png", true)
	assertCode(t, err, apperr.CodeForbidden)

	img, err := svc.AddImageURL(ctx, hr, b.ID, "https://cdn/x.png", true)
	if err != nil {
		t.Fatalf("AddImageURL failed: %v", err)
	}
	got, err := svc.Get(ctx, hr, b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PrimaryImageURL() != "https://cdn/x.png" {
		t.Errorf("unexpected primary image %q", got.PrimaryImageURL())
	}

	if err := svc.DeleteImage(ctx, hr, b.ID, img.ID); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	got, err = svc.Get(ctx, hr, b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Images) != 0 {
		t.Errorf("expected no images left, got %d", len(got.Images))
	}

	err = svc.DeleteImage(ctx, hr, b.ID, img.ID)
	assertCode(t, err, apperr.CodeNotFound)
}

// recordingUploader accepts every upload and remembers what was removed.
type recordingUploader struct {
	removed []string
}

func (u *recordingUploader) Enabled() bool { return true }

func (u *recordingUploader) Upload(_ context.Context, key, _ string, _ int64, _ io.Reader) (string, error) {
	return "https://store.local/bucket/" + key, nil
}

func (u *recordingUploader) Remove(_ context.Context, key string) error {
	u.removed = append(u.removed, key)
	return nil
}

func TestDeleteImageRemovesStoredObject(t *testing.T) {
	store := memory.New()
	uploader := &recordingUploader{}
	svc := New(store, store, nil, uploader, nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, admin, Input{Name: "Gym"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	img, err := svc.AddImage(ctx, hr, b.ID, "card.png", "image/png", 4, strings.NewReader("data"), true)
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	external, err := svc.AddImageURL(ctx, hr, b.ID, "https://cdn/banner.png", false)
	if err != nil {
		t.Fatalf("AddImageURL failed: %v", err)
	}

	if err := svc.DeleteImage(ctx, hr, b.ID, img.ID); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if len(uploader.removed) != 1 || !strings.HasPrefix(uploader.removed[0], "benefits/"+b.ID+"/") {
		t.Errorf("expected the uploaded object removed, got %v", uploader.removed)
	}

	// External URLs have no stored object behind them.
	if err := svc.DeleteImage(ctx, hr, b.ID, external.ID); err != nil {
		t.Fatalf("DeleteImage failed: %v", err)
	}
	if len(uploader.removed) != 1 {
		t.Errorf("external url should not trigger a removal, got %v", uploader.removed)
	}
}

func TestSetPrimaryImage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, admin, Input{
		Name:      "Gym",
		ImageURLs: []string{"https://cdn/a.png", "https://cdn/b.png"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.SetPrimaryImage(ctx, emp, b.ID, b.Images[1].ID)
	assertCode(t, err, apperr.CodeForbidden)

	_, err = svc.SetPrimaryImage(ctx, hr, b.ID, "nope")
	assertCode(t, err, apperr.CodeNotFound)

	imgs, err := svc.SetPrimaryImage(ctx, hr, b.ID, b.Images[1].ID)
	if err != nil {
		t.Fatalf("SetPrimaryImage failed: %v", err)
	}
	if len(imgs) != 2 || imgs[0].IsPrimary || !imgs[1].IsPrimary {
		t.Errorf("expected second image primary, got %+v", imgs)
	}

	got, err := svc.Get(ctx, hr, b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PrimaryImageURL() != "https://cdn/b.png" {
		t.Errorf("unexpected primary image %q", got.PrimaryImageURL())
	}
}
