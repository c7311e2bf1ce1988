package auth

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage/memory"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		SecretKey:        "test-secret",
		SessionExpire:    7 * 24 * time.Hour,
		SessionRefresh:   24 * time.Hour,
		ResetTokenExpire: 10 * time.Minute,
	}
}

func newTestService(t *testing.T) (*Service, *memory.Store, *worker.MemoryQueue) {
	t.Helper()
	store := memory.New()
	queue := worker.NewMemoryQueue(16)
	return New(store, store, queue, testConfig(), nil), store, queue
}

func provisionUser(t *testing.T, store *memory.Store, email string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Email:     email,
		Firstname: "Ivan",
		Lastname:  "Petrov",
		Role:      user.RoleEmployee,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func signupUser(t *testing.T, svc *Service, email, password string) user.User {
	t.Helper()
	u, err := svc.Signup(context.Background(), email, password, password)
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return u
}

func TestVerifyEmail(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	exists, _, err := svc.VerifyEmail(ctx, "nobody@corp.com")
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if exists {
		t.Error("expected unknown email to not exist")
	}

	provisionUser(t, store, "ivan@corp.com")
	exists, needsSignup, err := svc.VerifyEmail(ctx, "Ivan@Corp.com")
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !exists || !needsSignup {
		t.Errorf("expected exists and needsSignup, got %v, %v", exists, needsSignup)
	}

	signupUser(t, svc, "ivan@corp.com", "password123")
	_, needsSignup, err = svc.VerifyEmail(ctx, "ivan@corp.com")
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if needsSignup {
		t.Error("verified account should not need signup")
	}
}

func TestSignupValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	provisionUser(t, store, "ivan@corp.com")

	if _, err := svc.Signup(ctx, "ivan@corp.com", "short", "short"); err == nil {
		t.Error("expected error for short password")
	}
	if _, err := svc.Signup(ctx, "ivan@corp.com", "password123", "different"); err == nil {
		t.Error("expected error for mismatched confirmation")
	}
	if _, err := svc.Signup(ctx, "ghost@corp.com", "password123", "password123"); err == nil {
		t.Error("expected error for unknown email")
	}

	signupUser(t, svc, "ivan@corp.com", "password123")
	_, err := svc.Signup(ctx, "ivan@corp.com", "password123", "password123")
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil || svcErr.Code != apperr.CodeConflict {
		t.Errorf("expected conflict on repeated signup, got %v", err)
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	provisionUser(t, store, "ivan@corp.com")
	signupUser(t, svc, "ivan@corp.com", "password123")

	if _, _, err := svc.Login(ctx, "ivan@corp.com", "wrongpass"); err == nil {
		t.Error("expected error for wrong password")
	}

	sess, u, err := svc.Login(ctx, "IVAN@corp.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected a session token")
	}
	if u.Email != "ivan@corp.com" {
		t.Errorf("unexpected user email %q", u.Email)
	}

	resolved, err := svc.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if resolved.ID != u.ID {
		t.Errorf("expected user %s, got %s", u.ID, resolved.ID)
	}

	if _, err := svc.Authenticate(ctx, "bogus-token"); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestAuthenticateSlidingRefresh(t *testing.T) {
	store := memory.New()
	cfg := testConfig()
	// A refresh threshold larger than the expiry forces a refresh on every
	// authentication.
	cfg.SessionRefresh = cfg.SessionExpire + time.Hour
	svc := New(store, store, worker.NewMemoryQueue(16), cfg, nil)
	ctx := context.Background()

	provisionUser(t, store, "ivan@corp.com")
	signupUser(t, svc, "ivan@corp.com", "password123")
	sess, _, err := svc.Login(ctx, "ivan@corp.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := svc.Authenticate(ctx, sess.Token); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	refreshed, err := store.GetSession(ctx, sess.Token)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !refreshed.ExpiresAt.After(sess.ExpiresAt) {
		t.Errorf("expected expiry to slide forward, got %v <= %v", refreshed.ExpiresAt, sess.ExpiresAt)
	}
}

func TestAuthenticateDeactivatedUser(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	u := provisionUser(t, store, "ivan@corp.com")
	signupUser(t, svc, "ivan@corp.com", "password123")
	sess, _, err := svc.Login(ctx, "ivan@corp.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	u, err = store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	u.IsActive = false
	if _, err := store.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	_, err = svc.Authenticate(ctx, sess.Token)
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil || svcErr.Code != apperr.CodeForbidden {
		t.Errorf("expected forbidden for deactivated user, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	provisionUser(t, store, "ivan@corp.com")
	signupUser(t, svc, "ivan@corp.com", "password123")
	sess, _, err := svc.Login(ctx, "ivan@corp.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); err == nil {
		t.Error("expected error after logout")
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Errorf("repeated logout should be a no-op, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, store, queue := newTestService(t)
	ctx := context.Background()
	u := provisionUser(t, store, "ivan@corp.com")
	signupUser(t, svc, "ivan@corp.com", "oldpassword")

	if err := svc.ForgotPassword(ctx, "ivan@corp.com"); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	task, ok, err := queue.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("expected an enqueued email task, got ok=%v err=%v", ok, err)
	}
	if task.Kind != worker.TaskSendEmail {
		t.Fatalf("unexpected task kind %q", task.Kind)
	}
	token := task.Payload["token"]
	if token == "" {
		t.Fatal("expected reset token in task payload")
	}

	if err := svc.ResetPassword(ctx, token, "newpassword", "newpassword"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	updated, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpassword")); err != nil {
		t.Errorf("new password does not verify: %v", err)
	}

	if err := svc.ResetPassword(ctx, "garbage", "newpassword", "newpassword"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	svc, _, queue := newTestService(t)
	ctx := context.Background()

	if err := svc.ForgotPassword(ctx, "nobody@corp.com"); err != nil {
		t.Fatalf("ForgotPassword should not reveal unknown emails, got %v", err)
	}
	if _, ok, _ := queue.Dequeue(ctx, 50*time.Millisecond); ok {
		t.Error("no task should be enqueued for unknown emails")
	}
}
