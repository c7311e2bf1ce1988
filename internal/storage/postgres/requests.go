package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/review"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

const requestColumns = `id, benefit_id, user_id, performer_id, status, content,
	comment, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO benefit_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, req.ID, toNullString(req.BenefitID), toNullString(req.UserID),
		toNullString(req.PerformerID), string(req.Status), req.Content, req.Comment,
		req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return request.Request{}, mapErr(err, "benefit request")
	}
	return req, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req request.Request) (request.Request, error) {
	existing, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		return request.Request{}, err
	}
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE benefit_requests
		SET benefit_id = $2, user_id = $3, performer_id = $4, status = $5,
			content = $6, comment = $7, updated_at = $8
		WHERE id = $1
	`, req.ID, toNullString(req.BenefitID), toNullString(req.UserID),
		toNullString(req.PerformerID), string(req.Status), req.Content, req.Comment,
		req.UpdatedAt)
	if err != nil {
		return request.Request{}, mapErr(err, "benefit request")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return request.Request{}, fmt.Errorf("benefit request %s: %w", req.ID, storage.ErrNotFound)
	}
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (request.Request, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM benefit_requests
		WHERE id = $1
	`, id)
	req, err := scanRequest(row)
	if err != nil {
		return request.Request{}, mapErr(err, "benefit request "+id)
	}
	return req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter storage.RequestFilter) ([]request.Request, error) {
	query := `SELECT r.id, r.benefit_id, r.user_id, r.performer_id, r.status,
		r.content, r.comment, r.created_at, r.updated_at
		FROM benefit_requests r`
	var (
		conds []string
		args  []interface{}
	)
	if len(filter.LegalEntityIDs) > 0 {
		query += ` JOIN users u ON u.id = r.user_id`
		args = append(args, pq.Array(filter.LegalEntityIDs))
		conds = append(conds, fmt.Sprintf("u.legal_entity_id = ANY($%d)", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("r.user_id = $%d", len(args)))
	}
	if filter.PerformerID != "" {
		args = append(args, filter.PerformerID)
		conds = append(conds, fmt.Sprintf("r.performer_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " " + sortClause(map[string]string{
		"status":     "r.status",
		"created_at": "r.created_at",
		"updated_at": "r.updated_at",
	}, filter.SortBy, filter.SortOrder, "r.created_at")
	query, args = limitOffset(query, args, filter.Limit, filter.Offset)

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []request.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM benefit_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("benefit request %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanRequest(row rowScanner) (request.Request, error) {
	var (
		req       request.Request
		benefitID sql.NullString
		userID    sql.NullString
		performer sql.NullString
		status    string
	)
	err := row.Scan(&req.ID, &benefitID, &userID, &performer, &status,
		&req.Content, &req.Comment, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return request.Request{}, err
	}
	req.BenefitID = benefitID.String
	req.UserID = userID.String
	req.PerformerID = performer.String
	req.Status = request.Status(status)
	return req, nil
}

// --- ReviewStore ------------------------------------------------------------

func (s *Store) CreateReview(ctx context.Context, rv review.Review) (review.Review, error) {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rv.CreatedAt = now
	rv.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO reviews (id, benefit_id, user_id, text, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rv.ID, rv.BenefitID, toNullString(rv.UserID), rv.Text, rv.Rating,
		rv.CreatedAt, rv.UpdatedAt)
	if err != nil {
		return review.Review{}, mapErr(err, "review")
	}
	return rv, nil
}

func (s *Store) UpdateReview(ctx context.Context, rv review.Review) (review.Review, error) {
	existing, err := s.GetReview(ctx, rv.ID)
	if err != nil {
		return review.Review{}, err
	}
	rv.CreatedAt = existing.CreatedAt
	rv.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE reviews SET text = $2, rating = $3, updated_at = $4 WHERE id = $1
	`, rv.ID, rv.Text, rv.Rating, rv.UpdatedAt)
	if err != nil {
		return review.Review{}, mapErr(err, "review")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return review.Review{}, fmt.Errorf("review %s: %w", rv.ID, storage.ErrNotFound)
	}
	rv.BenefitID = existing.BenefitID
	rv.UserID = existing.UserID
	return rv, nil
}

func (s *Store) GetReview(ctx context.Context, id string) (review.Review, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, benefit_id, user_id, text, rating, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`, id)
	rv, err := scanReview(row)
	if err != nil {
		return review.Review{}, mapErr(err, "review "+id)
	}
	return rv, nil
}

func (s *Store) ListReviews(ctx context.Context, benefitID string) ([]review.Review, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, benefit_id, user_id, text, rating, created_at, updated_at
		FROM reviews
		WHERE benefit_id = $1
		ORDER BY created_at DESC
	`, benefitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []review.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

func (s *Store) DeleteReview(ctx context.Context, id string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("review %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanReview(row rowScanner) (review.Review, error) {
	var (
		rv     review.Review
		userID sql.NullString
	)
	err := row.Scan(&rv.ID, &rv.BenefitID, &userID, &rv.Text, &rv.Rating,
		&rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return review.Review{}, err
	}
	rv.UserID = userID.String
	return rv, nil
}
