package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

const userColumns = `id, email, firstname, lastname, middlename, role, hired_at,
	is_active, is_adapted, is_verified, coins, password_hash,
	legal_entity_id, position_id, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = strings.ToLower(u.Email)

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, u.ID, u.Email, u.Firstname, u.Lastname, u.Middlename, string(u.Role),
		u.HiredAt, u.IsActive, u.IsAdapted, u.IsVerified, u.Coins, u.PasswordHash,
		toNullString(u.LegalEntityID), toNullString(u.PositionID), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err, "user")
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.Email = strings.ToLower(u.Email)

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE users
		SET email = $2, firstname = $3, lastname = $4, middlename = $5, role = $6,
			hired_at = $7, is_active = $8, is_adapted = $9, is_verified = $10,
			coins = $11, password_hash = $12, legal_entity_id = $13,
			position_id = $14, updated_at = $15
		WHERE id = $1
	`, u.ID, u.Email, u.Firstname, u.Lastname, u.Middlename, string(u.Role),
		u.HiredAt, u.IsActive, u.IsAdapted, u.IsVerified, u.Coins, u.PasswordHash,
		toNullString(u.LegalEntityID), toNullString(u.PositionID), u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err, "user")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapErr(err, "user "+id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, strings.ToLower(email))
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapErr(err, "user "+email)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, filter storage.UserFilter) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var (
		conds []string
		args  []interface{}
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.LegalEntityID != "" {
		args = append(args, filter.LegalEntityID)
		conds = append(conds, fmt.Sprintf("legal_entity_id = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(email ILIKE $%d OR firstname ILIKE $%d OR lastname ILIKE $%d OR middlename ILIKE $%d)",
			n, n, n, n))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " " + sortClause(map[string]string{
		"hired_at":   "hired_at",
		"fullname":   "lastname",
		"coins":      "coins",
		"created_at": "created_at",
	}, filter.SortBy, filter.SortOrder, "created_at")
	query, args = limitOffset(query, args, filter.Limit, filter.Offset)

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) CountUsersByRole(ctx context.Context, legalEntityID string, roles []user.Role) (int, error) {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	var count int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM users
		WHERE legal_entity_id = $1 AND role = ANY($2)
	`, legalEntityID, pq.Array(names)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		u        user.User
		role     string
		legalEnt sql.NullString
		position sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Firstname, &u.Lastname, &u.Middlename,
		&role, &u.HiredAt, &u.IsActive, &u.IsAdapted, &u.IsVerified, &u.Coins,
		&u.PasswordHash, &legalEnt, &position, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	u.LegalEntityID = legalEnt.String
	u.PositionID = position.String
	return u, nil
}
