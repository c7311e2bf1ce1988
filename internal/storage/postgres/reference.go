package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cafeteria-hr/service_layer/internal/domain/category"
	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/position"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// --- LegalEntityStore -------------------------------------------------------

func (s *Store) CreateLegalEntity(ctx context.Context, le legalentity.LegalEntity) (legalentity.LegalEntity, error) {
	if le.ID == "" {
		le.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	le.CreatedAt = now
	le.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO legal_entities (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, le.ID, le.Name, le.CreatedAt, le.UpdatedAt)
	if err != nil {
		return legalentity.LegalEntity{}, mapErr(err, "legal entity")
	}
	return le, nil
}

func (s *Store) UpdateLegalEntity(ctx context.Context, le legalentity.LegalEntity) (legalentity.LegalEntity, error) {
	le.UpdatedAt = time.Now().UTC()
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE legal_entities SET name = $2, updated_at = $3 WHERE id = $1
	`, le.ID, le.Name, le.UpdatedAt)
	if err != nil {
		return legalentity.LegalEntity{}, mapErr(err, "legal entity")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return legalentity.LegalEntity{}, fmt.Errorf("legal entity %s: %w", le.ID, storage.ErrNotFound)
	}
	return s.GetLegalEntity(ctx, le.ID)
}

func (s *Store) GetLegalEntity(ctx context.Context, id string) (legalentity.LegalEntity, error) {
	var le legalentity.LegalEntity
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM legal_entities WHERE id = $1
	`, id).Scan(&le.ID, &le.Name, &le.CreatedAt, &le.UpdatedAt)
	if err != nil {
		return legalentity.LegalEntity{}, mapErr(err, "legal entity "+id)
	}
	return le, nil
}

func (s *Store) ListLegalEntities(ctx context.Context) ([]legalentity.LegalEntity, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM legal_entities ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []legalentity.LegalEntity
	for rows.Next() {
		var le legalentity.LegalEntity
		if err := rows.Scan(&le.ID, &le.Name, &le.CreatedAt, &le.UpdatedAt); err != nil {
			return nil, err
		}
		entities = append(entities, le)
	}
	return entities, rows.Err()
}

func (s *Store) DeleteLegalEntity(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM legal_entities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("legal entity %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- PositionStore ----------------------------------------------------------

func (s *Store) CreatePosition(ctx context.Context, p position.Position) (position.Position, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO positions (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.Name, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return position.Position{}, mapErr(err, "position")
	}
	return p, nil
}

func (s *Store) UpdatePosition(ctx context.Context, p position.Position) (position.Position, error) {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE positions SET name = $2, updated_at = $3 WHERE id = $1
	`, p.ID, p.Name, p.UpdatedAt)
	if err != nil {
		return position.Position{}, mapErr(err, "position")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return position.Position{}, fmt.Errorf("position %s: %w", p.ID, storage.ErrNotFound)
	}
	return s.GetPosition(ctx, p.ID)
}

func (s *Store) GetPosition(ctx context.Context, id string) (position.Position, error) {
	var p position.Position
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM positions WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return position.Position{}, mapErr(err, "position "+id)
	}
	return p, nil
}

func (s *Store) GetPositionByName(ctx context.Context, name string) (position.Position, error) {
	var p position.Position
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM positions WHERE LOWER(name) = LOWER($1)
	`, name).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return position.Position{}, mapErr(err, "position "+name)
	}
	return p, nil
}

func (s *Store) ListPositions(ctx context.Context) ([]position.Position, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM positions ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []position.Position
	for rows.Next() {
		var p position.Position
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *Store) DeletePosition(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("position %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- CategoryStore ----------------------------------------------------------

func (s *Store) CreateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return category.Category{}, mapErr(err, "category")
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c category.Category) (category.Category, error) {
	c.UpdatedAt = time.Now().UTC()
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE categories SET name = $2, updated_at = $3 WHERE id = $1
	`, c.ID, c.Name, c.UpdatedAt)
	if err != nil {
		return category.Category{}, mapErr(err, "category")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return category.Category{}, fmt.Errorf("category %s: %w", c.ID, storage.ErrNotFound)
	}
	return s.GetCategory(ctx, c.ID)
}

func (s *Store) GetCategory(ctx context.Context, id string) (category.Category, error) {
	var c category.Category
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM categories WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return category.Category{}, mapErr(err, "category "+id)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]category.Category, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM categories ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []category.Category
	for rows.Next() {
		var c category.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("category %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
