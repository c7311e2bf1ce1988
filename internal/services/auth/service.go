// Package auth implements signup, login and password recovery on top of the
// user and session stores.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/domain/session"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

// Service coordinates authentication flows.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	queue    worker.Queue
	cfg      config.AuthConfig
	log      *logging.Logger
}

// New creates a configured auth service.
func New(users storage.UserStore, sessions storage.SessionStore, queue worker.Queue, cfg config.AuthConfig, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("auth")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		queue:    queue,
		cfg:      cfg,
		log:      log,
	}
}

// VerifyEmail reports whether the given email belongs to a pre-provisioned
// account that has not yet completed signup.
func (s *Service) VerifyEmail(ctx context.Context, email string) (exists, needsSignup bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, false, apperr.Validation("email is required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, !u.IsVerified, nil
}

// Signup sets the password for a pre-provisioned, unverified account and
// marks it verified.
func (s *Service) Signup(ctx context.Context, email, password, confirmation string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.User{}, apperr.Validation("email is required")
	}
	if len(password) < 8 {
		return user.User{}, apperr.Validation("password must be at least 8 characters")
	}
	if password != confirmation {
		return user.User{}, apperr.Validation("passwords do not match")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.NotFound("user", email)
	}
	if err != nil {
		return user.User{}, err
	}
	if u.IsVerified || u.PasswordHash != "" {
		return user.User{}, apperr.Conflict("account is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.IsVerified = true

	u, err = s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("account signup completed")
	return u, nil
}

// Login verifies credentials and mints a session token.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return session.Session{}, user.User{}, apperr.Validation("email and password are required")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return session.Session{}, user.User{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return session.Session{}, user.User{}, err
	}
	if !u.IsActive {
		return session.Session{}, user.User{}, apperr.Forbidden("account is deactivated")
	}
	if u.PasswordHash == "" {
		return session.Session{}, user.User{}, apperr.Unauthorized("account has not completed signup")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"email": email})
		return session.Session{}, user.User{}, apperr.Unauthorized("invalid credentials")
	}

	token, err := newToken()
	if err != nil {
		return session.Session{}, user.User{}, err
	}
	now := time.Now().UTC()
	sess := session.Session{
		Token:     token,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionExpire),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return session.Session{}, user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("login")
	return sess, u, nil
}

// Authenticate resolves a session token to its user, sliding the expiry
// forward when the session is close to expiring.
func (s *Service) Authenticate(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, apperr.Unauthorized("missing session token")
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.Unauthorized("session expired or unknown")
	}
	if err != nil {
		return user.User{}, err
	}
	now := time.Now().UTC()
	if sess.Expired(now) {
		_ = s.sessions.DeleteSession(ctx, token)
		return user.User{}, apperr.Unauthorized("session expired or unknown")
	}
	if sess.ExpiresAt.Sub(now) < s.cfg.SessionRefresh {
		if err := s.sessions.RefreshSession(ctx, token, now.Add(s.cfg.SessionExpire)); err != nil {
			s.log.WithError(err).Warn("session refresh failed")
		}
	}

	u, err := s.users.GetUser(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		_ = s.sessions.DeleteSession(ctx, token)
		return user.User{}, apperr.Unauthorized("session expired or unknown")
	}
	if err != nil {
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, apperr.Forbidden("account is deactivated")
	}
	return u, nil
}

// Logout removes the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// ForgotPassword mints a reset token and enqueues the reset email. To avoid
// account enumeration an unknown email is not reported to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Validation("email is required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.LogSecurityEvent(ctx, "password_reset_unknown_email", map[string]interface{}{"email": email})
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.newResetToken(u.ID)
	if err != nil {
		return err
	}
	task := worker.NewTask(worker.TaskSendEmail, map[string]string{
		"to":       u.Email,
		"template": "password_reset",
		"token":    token,
	})
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue reset email: %w", err)
	}
	s.log.WithField("user_id", u.ID).Info("password reset requested")
	return nil
}

// ResetPassword validates the reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirmation string) error {
	if len(password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	if password != confirmation {
		return apperr.Validation("passwords do not match")
	}
	userID, err := s.parseResetToken(token)
	if err != nil {
		return apperr.InvalidToken(err)
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.log.WithField("user_id", u.ID).Info("password reset")
	return nil
}

func (s *Service) newResetToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ResetTokenExpire)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

func (s *Service) parseResetToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("malformed claims")
	}
	return claims.Subject, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
