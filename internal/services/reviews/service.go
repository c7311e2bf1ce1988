// Package reviews manages employee feedback on benefits.
package reviews

import (
	"context"
	"errors"
	"strings"

	"github.com/cafeteria-hr/service_layer/internal/domain/review"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// Service coordinates benefit reviews.
type Service struct {
	store    storage.ReviewStore
	benefits storage.BenefitStore
	log      *logging.Logger
}

// New creates a configured reviews service.
func New(store storage.ReviewStore, benefits storage.BenefitStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("reviews")
	}
	return &Service{store: store, benefits: benefits, log: log}
}

// Create adds a review for a benefit.
func (s *Service) Create(ctx context.Context, actor user.User, benefitID, text string, rating int) (review.Review, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return review.Review{}, apperr.Validation("text is required")
	}
	if rating < 1 || rating > 5 {
		return review.Review{}, apperr.Validation("rating must be between 1 and 5")
	}
	if _, err := s.benefits.GetBenefit(ctx, benefitID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return review.Review{}, apperr.NotFound("benefit", benefitID)
		}
		return review.Review{}, err
	}
	rv, err := s.store.CreateReview(ctx, review.Review{
		BenefitID: benefitID,
		UserID:    actor.ID,
		Text:      text,
		Rating:    rating,
	})
	if err != nil {
		return review.Review{}, err
	}
	s.log.WithField("review_id", rv.ID).WithField("benefit_id", benefitID).Info("review created")
	return rv, nil
}

// List returns all reviews for a benefit.
func (s *Service) List(ctx context.Context, benefitID string) ([]review.Review, error) {
	return s.store.ListReviews(ctx, benefitID)
}

// Update edits a review. Authors edit their own; admins may edit any.
func (s *Service) Update(ctx context.Context, actor user.User, id, text string, rating int) (review.Review, error) {
	rv, err := s.store.GetReview(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return review.Review{}, apperr.NotFound("review", id)
	}
	if err != nil {
		return review.Review{}, err
	}
	if rv.UserID != actor.ID && actor.Role != user.RoleAdmin {
		return review.Review{}, apperr.Forbidden("insufficient permissions")
	}
	if text = strings.TrimSpace(text); text != "" {
		rv.Text = text
	}
	if rating != 0 {
		if rating < 1 || rating > 5 {
			return review.Review{}, apperr.Validation("rating must be between 1 and 5")
		}
		rv.Rating = rating
	}
	return s.store.UpdateReview(ctx, rv)
}

// Delete removes a review. Authors delete their own; HR and admins any.
func (s *Service) Delete(ctx context.Context, actor user.User, id string) error {
	rv, err := s.store.GetReview(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("review", id)
	}
	if err != nil {
		return err
	}
	if rv.UserID != actor.ID && actor.Role == user.RoleEmployee {
		return apperr.Forbidden("insufficient permissions")
	}
	return s.store.DeleteReview(ctx, id)
}
