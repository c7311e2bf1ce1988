// Package requests implements the benefit request workflow: employees spend
// coins to claim benefits, HR processes the claims, and declining or deleting
// a request restores the coins and stock it consumed.
package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/metrics"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

// Service coordinates benefit requests.
type Service struct {
	store    storage.RequestStore
	users    storage.UserStore
	benefits storage.BenefitStore
	tx       storage.Tx
	queue    worker.Queue
	log      *logging.Logger
}

// New creates a configured requests service.
func New(store storage.RequestStore, users storage.UserStore, benefits storage.BenefitStore, tx storage.Tx, queue worker.Queue, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("requests")
	}
	return &Service{
		store:    store,
		users:    users,
		benefits: benefits,
		tx:       tx,
		queue:    queue,
		log:      log,
	}
}

// Create claims a benefit for the actor. Coins are deducted and stock
// decremented in the same transaction that creates the request.
func (s *Service) Create(ctx context.Context, actor user.User, benefitID, content string) (request.Request, error) {
	benefitID = strings.TrimSpace(benefitID)
	if benefitID == "" {
		return request.Request{}, apperr.Validation("benefit_id is required")
	}

	var created request.Request
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.benefits.GetBenefit(ctx, benefitID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("benefit", benefitID)
		}
		if err != nil {
			return err
		}
		u, err := s.users.GetUser(ctx, actor.ID)
		if err != nil {
			return err
		}
		if err := checkEligibility(u, b); err != nil {
			return err
		}

		if b.Amount != nil {
			remaining := *b.Amount - 1
			b.Amount = &remaining
			if _, err := s.benefits.UpdateBenefit(ctx, b); err != nil {
				return err
			}
		}
		u.Coins -= b.CoinsCost
		if _, err := s.users.UpdateUser(ctx, u); err != nil {
			return err
		}

		created, err = s.store.CreateRequest(ctx, request.Request{
			BenefitID: b.ID,
			UserID:    u.ID,
			Status:    request.StatusPending,
			Content:   strings.TrimSpace(content),
		})
		return err
	})
	if err != nil {
		return request.Request{}, err
	}
	metrics.RecordRequestTransition(string(request.StatusPending))
	s.log.WithField("request_id", created.ID).
		WithField("benefit_id", benefitID).
		WithField("user_id", actor.ID).
		Info("benefit request created")
	return created, nil
}

func checkEligibility(u user.User, b benefit.Benefit) error {
	now := time.Now().UTC()
	if !b.IsActive {
		return apperr.Validation("benefit is not active")
	}
	if !b.InStock() {
		return apperr.Conflict("benefit is out of stock")
	}
	if b.AdaptationRequired && !u.IsAdapted {
		return apperr.Forbidden("benefit requires a completed adaptation period")
	}
	if u.Level(now) < b.MinLevelCost {
		return apperr.Forbidden("benefit requires a higher level")
	}
	if u.Coins < b.CoinsCost {
		return apperr.Validation("not enough coins")
	}
	return nil
}

// Get returns one request. Owners, their HR and admins may read it.
func (s *Service) Get(ctx context.Context, actor user.User, id string) (request.Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return request.Request{}, apperr.NotFound("benefit request", id)
	}
	if err != nil {
		return request.Request{}, err
	}
	if err := s.canRead(ctx, actor, req); err != nil {
		return request.Request{}, err
	}
	return req, nil
}

// List returns requests visible to the actor. Employees see their own, HR is
// scoped to their legal entity, admins may filter arbitrary entities.
func (s *Service) List(ctx context.Context, actor user.User, filter storage.RequestFilter) ([]request.Request, error) {
	switch actor.Role {
	case user.RoleAdmin:
	case user.RoleHR:
		if actor.LegalEntityID == "" {
			return nil, apperr.Forbidden("hr account has no legal entity")
		}
		filter.LegalEntityIDs = []string{actor.LegalEntityID}
	default:
		filter.UserID = actor.ID
		filter.LegalEntityIDs = nil
	}
	return s.store.ListRequests(ctx, filter)
}

// UpdateInput carries the patchable request fields.
type UpdateInput struct {
	Status  *string
	Comment *string
	Content *string
}

// Update processes a request. Terminal requests cannot change. The first HR
// touch records the performer; afterwards only the performer, an admin, or
// the owner declining their own pending request may update it. Declining
// restores the coins and stock the request consumed.
func (s *Service) Update(ctx context.Context, actor user.User, id string, in UpdateInput) (request.Request, error) {
	var (
		updated request.Request
		notify  bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.store.GetRequest(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("benefit request", id)
		}
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return apperr.Conflict("request is already " + string(req.Status))
		}
		if err := s.canUpdate(ctx, actor, req, in); err != nil {
			return err
		}

		if actor.Role != user.RoleEmployee && req.PerformerID == "" {
			req.PerformerID = actor.ID
		}
		if in.Comment != nil {
			req.Comment = strings.TrimSpace(*in.Comment)
		}
		if in.Content != nil {
			req.Content = strings.TrimSpace(*in.Content)
		}
		if in.Status != nil {
			next := request.Status(*in.Status)
			if !next.Valid() {
				return apperr.Validation("unknown status " + *in.Status)
			}
			if !req.Status.CanTransition(next) {
				return apperr.Conflict("cannot change status from " + string(req.Status) + " to " + string(next))
			}
			if next == request.StatusDeclined {
				if err := s.restore(ctx, req); err != nil {
					return err
				}
			}
			req.Status = next
			notify = true
		}

		updated, err = s.store.UpdateRequest(ctx, req)
		return err
	})
	if err != nil {
		return request.Request{}, err
	}
	if notify {
		metrics.RecordRequestTransition(string(updated.Status))
		s.notifyStatusChange(ctx, updated)
	}
	s.log.WithField("request_id", updated.ID).
		WithField("status", string(updated.Status)).
		Info("benefit request updated")
	return updated, nil
}

// Delete removes a request and restores what it consumed. Admin only.
func (s *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if actor.Role != user.RoleAdmin {
		return apperr.Forbidden("only admins can delete requests")
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.store.GetRequest(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("benefit request", id)
		}
		if err != nil {
			return err
		}
		// Declined requests already gave their coins and stock back.
		if req.Status != request.StatusDeclined {
			if err := s.restore(ctx, req); err != nil {
				return err
			}
		}
		return s.store.DeleteRequest(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.WithField("request_id", id).Info("benefit request deleted")
	return nil
}

// restore gives back the coins and stock a request consumed. Missing users
// or benefits (deleted since) are skipped.
func (s *Service) restore(ctx context.Context, req request.Request) error {
	if req.UserID != "" {
		u, err := s.users.GetUser(ctx, req.UserID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return err
		default:
			if req.BenefitID != "" {
				if b, err := s.benefits.GetBenefit(ctx, req.BenefitID); err == nil {
					u.Coins += b.CoinsCost
					if _, err := s.users.UpdateUser(ctx, u); err != nil {
						return err
					}
				}
			}
		}
	}
	if req.BenefitID != "" {
		b, err := s.benefits.GetBenefit(ctx, req.BenefitID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return err
		default:
			if b.Amount != nil {
				restored := *b.Amount + 1
				b.Amount = &restored
				if _, err := s.benefits.UpdateBenefit(ctx, b); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Service) canRead(ctx context.Context, actor user.User, req request.Request) error {
	switch actor.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleHR:
		owner, err := s.users.GetUser(ctx, req.UserID)
		if err != nil {
			return apperr.Forbidden("insufficient permissions")
		}
		if owner.LegalEntityID != actor.LegalEntityID {
			return apperr.Forbidden("hr can only view requests in their own legal entity")
		}
		return nil
	default:
		if req.UserID == actor.ID {
			return nil
		}
		return apperr.Forbidden("insufficient permissions")
	}
}

func (s *Service) canUpdate(ctx context.Context, actor user.User, req request.Request, in UpdateInput) error {
	switch actor.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleHR:
		owner, err := s.users.GetUser(ctx, req.UserID)
		if err != nil {
			return apperr.Forbidden("insufficient permissions")
		}
		if owner.LegalEntityID != actor.LegalEntityID {
			return apperr.Forbidden("hr can only process requests in their own legal entity")
		}
		if req.PerformerID != "" && req.PerformerID != actor.ID {
			return apperr.Forbidden("request is handled by another performer")
		}
		return nil
	default:
		if req.UserID != actor.ID {
			return apperr.Forbidden("insufficient permissions")
		}
		// Owners may only cancel their own pending request.
		if in.Status == nil || request.Status(*in.Status) != request.StatusDeclined ||
			req.Status != request.StatusPending {
			return apperr.Forbidden("employees can only decline their own pending requests")
		}
		return nil
	}
}

func (s *Service) notifyStatusChange(ctx context.Context, req request.Request) {
	if s.queue == nil || req.UserID == "" {
		return
	}
	owner, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return
	}
	task := worker.NewTask(worker.TaskSendEmail, map[string]string{
		"to":         owner.Email,
		"template":   "request_status",
		"request_id": req.ID,
		"status":     string(req.Status),
	})
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.log.WithError(err).Warn("enqueue status email failed")
	}
}
