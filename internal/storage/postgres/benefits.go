package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

const benefitColumns = `id, name, description, is_active, coins_cost, min_level_cost,
	adaptation_required, amount, real_currency_cost, usage_limit, usage_period_days,
	period_start_date, available_from, available_by, category_id, created_at, updated_at`

func (s *Store) CreateBenefit(ctx context.Context, b benefit.Benefit) (benefit.Benefit, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO benefits (`+benefitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, b.ID, b.Name, b.Description, b.IsActive, b.CoinsCost, b.MinLevelCost,
		b.AdaptationRequired, toNullInt(b.Amount), b.RealCurrencyCost,
		toNullInt(b.UsageLimit), toNullInt(b.UsagePeriodDays),
		toNullTime(b.PeriodStartDate), toNullTime(b.AvailableFrom), toNullTime(b.AvailableBy),
		toNullString(b.CategoryID), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return benefit.Benefit{}, mapErr(err, "benefit")
	}

	for i := range b.Images {
		img := b.Images[i]
		img.BenefitID = b.ID
		stored, err := s.AddBenefitImage(ctx, img)
		if err != nil {
			return benefit.Benefit{}, err
		}
		b.Images[i] = stored
	}
	return b, nil
}

func (s *Store) UpdateBenefit(ctx context.Context, b benefit.Benefit) (benefit.Benefit, error) {
	existing, err := s.GetBenefit(ctx, b.ID)
	if err != nil {
		return benefit.Benefit{}, err
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE benefits
		SET name = $2, description = $3, is_active = $4, coins_cost = $5,
			min_level_cost = $6, adaptation_required = $7, amount = $8,
			real_currency_cost = $9, usage_limit = $10, usage_period_days = $11,
			period_start_date = $12, available_from = $13, available_by = $14,
			category_id = $15, updated_at = $16
		WHERE id = $1
	`, b.ID, b.Name, b.Description, b.IsActive, b.CoinsCost, b.MinLevelCost,
		b.AdaptationRequired, toNullInt(b.Amount), b.RealCurrencyCost,
		toNullInt(b.UsageLimit), toNullInt(b.UsagePeriodDays),
		toNullTime(b.PeriodStartDate), toNullTime(b.AvailableFrom), toNullTime(b.AvailableBy),
		toNullString(b.CategoryID), b.UpdatedAt)
	if err != nil {
		return benefit.Benefit{}, mapErr(err, "benefit")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return benefit.Benefit{}, fmt.Errorf("benefit %s: %w", b.ID, storage.ErrNotFound)
	}
	b.Images = existing.Images
	return b, nil
}

func (s *Store) GetBenefit(ctx context.Context, id string) (benefit.Benefit, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+benefitColumns+`
		FROM benefits
		WHERE id = $1
	`, id)
	b, err := scanBenefit(row)
	if err != nil {
		return benefit.Benefit{}, mapErr(err, "benefit "+id)
	}
	images, err := s.listBenefitImages(ctx, id)
	if err != nil {
		return benefit.Benefit{}, err
	}
	b.Images = images
	return b, nil
}

func (s *Store) ListBenefits(ctx context.Context, filter storage.BenefitFilter) ([]benefit.Benefit, error) {
	query := `SELECT ` + benefitColumns + ` FROM benefits`
	var (
		conds []string
		args  []interface{}
	)
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.AdaptationRequired != nil {
		args = append(args, *filter.AdaptationRequired)
		conds = append(conds, fmt.Sprintf("adaptation_required = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.MinCoinsCost != nil {
		args = append(args, *filter.MinCoinsCost)
		conds = append(conds, fmt.Sprintf("coins_cost >= $%d", len(args)))
	}
	if filter.MaxCoinsCost != nil {
		args = append(args, *filter.MaxCoinsCost)
		conds = append(conds, fmt.Sprintf("coins_cost <= $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " " + sortClause(map[string]string{
		"name":       "name",
		"coins_cost": "coins_cost",
		"min_level":  "min_level_cost",
		"created_at": "created_at",
	}, filter.SortBy, filter.SortOrder, "created_at")
	query, args = limitOffset(query, args, filter.Limit, filter.Offset)

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var benefits []benefit.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, err
		}
		benefits = append(benefits, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range benefits {
		images, err := s.listBenefitImages(ctx, benefits[i].ID)
		if err != nil {
			return nil, err
		}
		benefits[i].Images = images
	}
	return benefits, nil
}

func (s *Store) DeleteBenefit(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM benefits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("benefit %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- images -----------------------------------------------------------------

func (s *Store) AddBenefitImage(ctx context.Context, img benefit.Image) (benefit.Image, error) {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = time.Now().UTC()

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO benefit_images (id, benefit_id, image_url, is_primary, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, img.ID, img.BenefitID, img.URL, img.IsPrimary, img.Description, img.CreatedAt)
	if err != nil {
		return benefit.Image{}, mapErr(err, "benefit image")
	}
	return img, nil
}

func (s *Store) DeleteBenefitImage(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM benefit_images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("benefit image %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) ReplaceBenefitImages(ctx context.Context, benefitID string, imgs []benefit.Image) ([]benefit.Image, error) {
	var stored []benefit.Image
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx,
			`DELETE FROM benefit_images WHERE benefit_id = $1`, benefitID); err != nil {
			return err
		}
		for _, img := range imgs {
			img.BenefitID = benefitID
			saved, err := s.AddBenefitImage(ctx, img)
			if err != nil {
				return err
			}
			stored = append(stored, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) listBenefitImages(ctx context.Context, benefitID string) ([]benefit.Image, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, benefit_id, image_url, is_primary, description, created_at
		FROM benefit_images
		WHERE benefit_id = $1
		ORDER BY created_at
	`, benefitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []benefit.Image
	for rows.Next() {
		var img benefit.Image
		if err := rows.Scan(&img.ID, &img.BenefitID, &img.URL, &img.IsPrimary,
			&img.Description, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func scanBenefit(row rowScanner) (benefit.Benefit, error) {
	var (
		b           benefit.Benefit
		amount      sql.NullInt64
		usageLimit  sql.NullInt64
		usagePeriod sql.NullInt64
		periodStart sql.NullTime
		availFrom   sql.NullTime
		availBy     sql.NullTime
		categoryID  sql.NullString
	)
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.IsActive, &b.CoinsCost,
		&b.MinLevelCost, &b.AdaptationRequired, &amount, &b.RealCurrencyCost,
		&usageLimit, &usagePeriod, &periodStart, &availFrom, &availBy,
		&categoryID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return benefit.Benefit{}, err
	}
	b.Amount = fromNullInt(amount)
	b.UsageLimit = fromNullInt(usageLimit)
	b.UsagePeriodDays = fromNullInt(usagePeriod)
	b.PeriodStartDate = fromNullTime(periodStart)
	b.AvailableFrom = fromNullTime(availFrom)
	b.AvailableBy = fromNullTime(availBy)
	b.CategoryID = categoryID.String
	return b, nil
}
