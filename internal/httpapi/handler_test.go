package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/app"
	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	"github.com/cafeteria-hr/service_layer/internal/middleware"
	"github.com/cafeteria-hr/service_layer/internal/storage/memory"
)

type env struct {
	handler http.Handler
	app     *app.Application
	store   *memory.Store
	admin   user.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	application := app.New(app.Options{
		Stores: app.Stores{
			Users: store, LegalEntities: store, Positions: store,
			Categories: store, Benefits: store, Requests: store,
			Reviews: store, Sessions: store, Tx: store,
		},
		Auth: config.AuthConfig{
			SecretKey:        "test-secret",
			SessionExpire:    7 * 24 * time.Hour,
			SessionRefresh:   24 * time.Hour,
			ResetTokenExpire: 10 * time.Minute,
		},
	})

	admin, err := store.CreateUser(context.Background(), user.User{
		Email: "admin@corp.com", Firstname: "Ada", Lastname: "Admin",
		Role: user.RoleAdmin, IsActive: true, IsVerified: true,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	return &env{
		handler: NewHandler(application),
		app:     application,
		store:   store,
		admin:   admin,
	}
}

// do performs a request as the given actor, bypassing the auth middleware
// the way the middleware itself would populate the context.
func (e *env) do(t *testing.T, actor *user.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, nil, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)

	// Pre-provision an account, then complete signup and login through the
	// API.
	if _, err := e.store.CreateUser(context.Background(), user.User{
		Email: "ivan@corp.com", Firstname: "Ivan", Lastname: "Petrov",
		Role: user.RoleEmployee, IsActive: true,
	}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	rec := e.do(t, nil, http.MethodPost, "/auth/verify", map[string]string{"email": "ivan@corp.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var verify struct {
		Exists      bool `json:"exists"`
		NeedsSignup bool `json:"needs_signup"`
	}
	decodeBody(t, rec, &verify)
	if !verify.Exists || !verify.NeedsSignup {
		t.Errorf("unexpected verify response %+v", verify)
	}

	rec = e.do(t, nil, http.MethodPost, "/auth/signup", map[string]string{
		"email": "ivan@corp.com", "password": "password123", "confirmation": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = e.do(t, nil, http.MethodPost, "/auth/login", map[string]string{
		"email": "ivan@corp.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &login)
	if login.Token == "" {
		t.Fatal("expected a session token")
	}

	// /auth/me resolves the bearer token without the middleware.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec2 := httptest.NewRecorder()
	e.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	var me UserView
	decodeBody(t, rec2, &me)
	if me.Email != "ivan@corp.com" {
		t.Errorf("unexpected user %q", me.Email)
	}

	rec = e.do(t, nil, http.MethodPost, "/auth/login", map[string]string{
		"email": "ivan@corp.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad credentials, got %d", rec.Code)
	}
}

func TestUsersEndpointRequiresAuth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, nil, http.MethodGet, "/users", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUsersCRUD(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, &e.admin, http.MethodPost, "/users", map[string]interface{}{
		"email": "anna@corp.com", "firstname": "Anna", "lastname": "Ivanova",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created UserView
	decodeBody(t, rec, &created)
	if created.Role != string(user.RoleEmployee) {
		t.Errorf("expected employee role, got %q", created.Role)
	}

	rec = e.do(t, &e.admin, http.MethodGet, "/users/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = e.do(t, &e.admin, http.MethodPatch, "/users/"+created.ID, map[string]interface{}{
		"coins": 150,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var updated UserView
	decodeBody(t, rec, &updated)
	if updated.Coins != 150 {
		t.Errorf("expected 150 coins, got %d", updated.Coins)
	}

	rec = e.do(t, &e.admin, http.MethodGet, "/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []UserView
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("expected 2 users, got %d", len(list))
	}

	rec = e.do(t, &e.admin, http.MethodDelete, "/users/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = e.do(t, &e.admin, http.MethodGet, "/users/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, &e.admin, http.MethodPost, "/users", map[string]interface{}{
		"email": "x@corp.com", "firstname": "X", "lastname": "Y", "surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestBenefitLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, &e.admin, http.MethodPost, "/benefits", map[string]interface{}{
		"name": "Gym membership", "coins_cost": 40, "amount": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var b BenefitView
	decodeBody(t, rec, &b)
	if b.Amount == nil || *b.Amount != 3 {
		t.Fatalf("expected amount 3, got %v", b.Amount)
	}

	// Explicit null switches to unlimited stock; an omitted field leaves the
	// value alone.
	req := httptest.NewRequest(http.MethodPatch, "/benefits/"+b.ID,
		strings.NewReader(`{"amount": null}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUser(req.Context(), e.admin))
	rec2 := httptest.NewRecorder()
	e.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	var patched BenefitView
	decodeBody(t, rec2, &patched)
	if patched.Amount != nil {
		t.Errorf("expected unlimited stock, got %v", patched.Amount)
	}
	if patched.CoinsCost != 40 {
		t.Errorf("coins_cost should be untouched, got %d", patched.CoinsCost)
	}

	// Requesting the benefit needs coins.
	emp, err := e.store.CreateUser(context.Background(), user.User{
		Email: "emp@corp.com", Firstname: "E", Lastname: "M",
		Role: user.RoleEmployee, IsActive: true, IsAdapted: true, Coins: 100,
		HiredAt: time.Now().UTC().Add(-90 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	rec = e.do(t, &emp, http.MethodPost, "/requests", map[string]interface{}{
		"benefit_id": b.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var reqView RequestView
	decodeBody(t, rec, &reqView)
	if reqView.Status != "pending" {
		t.Errorf("expected pending, got %q", reqView.Status)
	}

	rec = e.do(t, &e.admin, http.MethodPatch, "/requests/"+reqView.ID, map[string]interface{}{
		"status": "approved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCategoriesEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, &e.admin, http.MethodPost, "/categories", map[string]string{"name": "Sport"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var c NamedView
	decodeBody(t, rec, &c)

	rec = e.do(t, &e.admin, http.MethodPost, "/categories", map[string]string{"name": "Sport"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", rec.Code)
	}

	rec = e.do(t, &e.admin, http.MethodGet, "/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []NamedView
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 category, got %d", len(list))
	}

	rec = e.do(t, &e.admin, http.MethodDelete, "/categories/"+c.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, &e.admin, http.MethodPut, "/users", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	rec = e.do(t, nil, http.MethodDelete, "/auth/login", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestErrorShape(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, &e.admin, http.MethodGet, "/users/no-such-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND code, got %q", resp.Error.Code)
	}
}

func TestRequestsAdminEntityFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acme, err := e.store.CreateLegalEntity(ctx, legalentity.LegalEntity{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateLegalEntity failed: %v", err)
	}
	globex, err := e.store.CreateLegalEntity(ctx, legalentity.LegalEntity{Name: "Globex"})
	if err != nil {
		t.Fatalf("CreateLegalEntity failed: %v", err)
	}

	mkRequest := func(email, entityID string) user.User {
		u, err := e.store.CreateUser(ctx, user.User{
			Email: email, Firstname: "Test", Lastname: "User",
			Role: user.RoleEmployee, IsActive: true, LegalEntityID: entityID,
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if _, err := e.store.CreateRequest(ctx, request.Request{
			BenefitID: "b1", UserID: u.ID, Status: request.StatusPending,
		}); err != nil {
			t.Fatalf("CreateRequest failed: %v", err)
		}
		return u
	}
	acmeEmp := mkRequest("acme@corp.com", acme.ID)
	mkRequest("globex@corp.com", globex.ID)

	rec := e.do(t, &e.admin, http.MethodGet, "/requests?legal_entity_ids="+acme.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var list []RequestView
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].UserID != acmeEmp.ID {
		t.Fatalf("expected only the acme request, got %d", len(list))
	}

	// Comma-separated lists widen the scope again.
	rec = e.do(t, &e.admin, http.MethodGet, "/requests?legal_entity_ids="+acme.ID+","+globex.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("expected both requests, got %d", len(list))
	}

	rec = e.do(t, &e.admin, http.MethodGet, "/requests", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("expected an unfiltered listing of 2, got %d", len(list))
	}
}

func TestExportErrorsAreJSON(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	emp, err := e.store.CreateUser(ctx, user.User{
		Email: "emp@corp.com", Firstname: "Test", Lastname: "User",
		Role: user.RoleEmployee, IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	rec := e.do(t, &emp, http.MethodGet, "/requests/export", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected a json error response, got content type %q", ct)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error.Code != "FORBIDDEN" {
		t.Errorf("expected FORBIDDEN code, got %q", resp.Error.Code)
	}

	rec = e.do(t, &e.admin, http.MethodGet, "/requests/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type %q", ct)
	}
}
