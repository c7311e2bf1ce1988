package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cafeteria-hr/service_layer/internal/domain/session"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps login sessions in Redis, letting key TTLs enforce
// expiry so sessions survive process restarts.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// CreateSession stores the session with a TTL matching its expiry.
func (s *SessionStore) CreateSession(ctx context.Context, sess session.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	payload, err := json.Marshal(sessionRecord{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// GetSession returns the session for token or storage.ErrNotFound.
func (s *SessionStore) GetSession(ctx context.Context, token string) (session.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err == redis.Nil {
		return session.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return session.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session.Session{
		Token:     token,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// RefreshSession extends the session expiry and TTL.
func (s *SessionStore) RefreshSession(ctx context.Context, token string, expiresAt time.Time) error {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}
	sess.ExpiresAt = expiresAt
	payload, err := json.Marshal(sessionRecord{
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh to past expiry")
	}
	if err := s.client.Set(ctx, sessionKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

// DeleteSession removes the session. Deleting a missing session is not an
// error.
func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions is satisfied by Redis key TTLs, so there is nothing
// to sweep.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
