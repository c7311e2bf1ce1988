package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/domain/session"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// Session persistence in Postgres is the fallback when Redis is disabled.
// Expiry is enforced on read; DeleteExpiredSessions sweeps the rest.

func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	return mapErr(err, "session")
}

func (s *Store) GetSession(ctx context.Context, token string) (session.Session, error) {
	var sess session.Session
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT token, user_id, created_at, expires_at
		FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`, token).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return session.Session{}, mapErr(err, "session")
	}
	return sess, nil
}

func (s *Store) RefreshSession(ctx context.Context, token string, expiresAt time.Time) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE sessions SET expires_at = $2 WHERE token = $1
	`, token, expiresAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
