// Package users manages employee accounts: CRUD with role-based permission
// checks, search, and bulk Excel import/export.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/platform/search"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

// Service coordinates user accounts.
type Service struct {
	store     storage.UserStore
	entities  storage.LegalEntityStore
	positions storage.PositionStore
	indexer   search.Indexer
	queue     worker.Queue
	log       *logging.Logger
}

// New creates a configured users service.
func New(store storage.UserStore, entities storage.LegalEntityStore, positions storage.PositionStore, indexer search.Indexer, queue worker.Queue, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	return &Service{
		store:     store,
		entities:  entities,
		positions: positions,
		indexer:   indexer,
		queue:     queue,
		log:       log,
	}
}

// CreateInput carries the fields settable on creation.
type CreateInput struct {
	Email         string
	Firstname     string
	Lastname      string
	Middlename    string
	Role          string
	HiredAt       time.Time
	IsAdapted     bool
	Coins         int
	LegalEntityID string
	PositionID    string
}

// Create provisions a new account. HR may only create employees inside their
// own legal entity; admins are unrestricted.
func (s *Service) Create(ctx context.Context, actor user.User, in CreateInput) (user.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Firstname = strings.TrimSpace(in.Firstname)
	in.Lastname = strings.TrimSpace(in.Lastname)

	if in.Email == "" {
		return user.User{}, apperr.Validation("email is required")
	}
	if in.Firstname == "" || in.Lastname == "" {
		return user.User{}, apperr.Validation("firstname and lastname are required")
	}
	role := user.Role(in.Role)
	if in.Role == "" {
		role = user.RoleEmployee
	}
	if !role.Valid() {
		return user.User{}, apperr.Validation("unknown role " + in.Role)
	}
	if in.Coins < 0 {
		return user.User{}, apperr.Validation("coins cannot be negative")
	}
	if in.HiredAt.IsZero() {
		in.HiredAt = time.Now().UTC()
	}

	switch actor.Role {
	case user.RoleAdmin:
	case user.RoleHR:
		if role != user.RoleEmployee {
			return user.User{}, apperr.Forbidden("hr can only create employees")
		}
		if in.LegalEntityID == "" {
			in.LegalEntityID = actor.LegalEntityID
		}
		if in.LegalEntityID != actor.LegalEntityID {
			return user.User{}, apperr.Forbidden("hr can only create users in their own legal entity")
		}
	default:
		return user.User{}, apperr.Forbidden("insufficient permissions")
	}

	if in.LegalEntityID != "" {
		if _, err := s.entities.GetLegalEntity(ctx, in.LegalEntityID); err != nil {
			return user.User{}, apperr.Validation("unknown legal entity")
		}
	}
	if in.PositionID != "" {
		if _, err := s.positions.GetPosition(ctx, in.PositionID); err != nil {
			return user.User{}, apperr.Validation("unknown position")
		}
	}

	u := user.User{
		Email:         in.Email,
		Firstname:     in.Firstname,
		Lastname:      in.Lastname,
		Middlename:    strings.TrimSpace(in.Middlename),
		Role:          role,
		HiredAt:       in.HiredAt,
		IsActive:      true,
		IsAdapted:     in.IsAdapted,
		Coins:         in.Coins,
		LegalEntityID: in.LegalEntityID,
		PositionID:    in.PositionID,
	}
	u, err := s.store.CreateUser(ctx, u)
	if errors.Is(err, storage.ErrConflict) {
		return user.User{}, apperr.Conflict("email is already registered")
	}
	if err != nil {
		return user.User{}, err
	}

	s.afterWrite(ctx, u)
	if s.queue != nil {
		task := worker.NewTask(worker.TaskSendEmail, map[string]string{
			"to":       u.Email,
			"template": "invite",
		})
		if err := s.queue.Enqueue(ctx, task); err != nil {
			s.log.WithError(err).Warn("enqueue invite email failed")
		}
	}
	s.log.WithField("user_id", u.ID).WithField("role", string(u.Role)).Info("user created")
	return u, nil
}

// Get returns one user. Employees may only read themselves; HR is limited to
// their legal entity.
func (s *Service) Get(ctx context.Context, actor user.User, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.NotFound("user", id)
	}
	if err != nil {
		return user.User{}, err
	}
	if err := s.canRead(actor, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// UpdateInput carries patchable fields; nil means unchanged.
type UpdateInput struct {
	Firstname     *string
	Lastname      *string
	Middlename    *string
	Role          *string
	HiredAt       *time.Time
	IsActive      *bool
	IsAdapted     *bool
	Coins         *int
	LegalEntityID *string
	PositionID    *string
}

// Update applies a partial update. Employees may not change their own role,
// coins or entity; HR is limited to employees in their legal entity.
func (s *Service) Update(ctx context.Context, actor user.User, id string, in UpdateInput) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, apperr.NotFound("user", id)
	}
	if err != nil {
		return user.User{}, err
	}

	switch actor.Role {
	case user.RoleAdmin:
	case user.RoleHR:
		if u.LegalEntityID != actor.LegalEntityID && u.ID != actor.ID {
			return user.User{}, apperr.Forbidden("hr can only manage users in their own legal entity")
		}
		if u.Role == user.RoleAdmin {
			return user.User{}, apperr.Forbidden("hr cannot manage admins")
		}
		if in.Role != nil && user.Role(*in.Role) == user.RoleAdmin {
			return user.User{}, apperr.Forbidden("hr cannot grant admin")
		}
	default:
		if u.ID != actor.ID {
			return user.User{}, apperr.Forbidden("insufficient permissions")
		}
		if in.Role != nil || in.Coins != nil || in.LegalEntityID != nil || in.IsActive != nil {
			return user.User{}, apperr.Forbidden("employees cannot change role, coins or entity")
		}
	}

	if in.Firstname != nil {
		u.Firstname = strings.TrimSpace(*in.Firstname)
	}
	if in.Lastname != nil {
		u.Lastname = strings.TrimSpace(*in.Lastname)
	}
	if in.Middlename != nil {
		u.Middlename = strings.TrimSpace(*in.Middlename)
	}
	if in.Role != nil {
		role := user.Role(*in.Role)
		if !role.Valid() {
			return user.User{}, apperr.Validation("unknown role " + *in.Role)
		}
		u.Role = role
	}
	if in.HiredAt != nil {
		u.HiredAt = *in.HiredAt
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.IsAdapted != nil {
		u.IsAdapted = *in.IsAdapted
	}
	if in.Coins != nil {
		if *in.Coins < 0 {
			return user.User{}, apperr.Validation("coins cannot be negative")
		}
		u.Coins = *in.Coins
	}
	if in.LegalEntityID != nil {
		if *in.LegalEntityID != "" {
			if _, err := s.entities.GetLegalEntity(ctx, *in.LegalEntityID); err != nil {
				return user.User{}, apperr.Validation("unknown legal entity")
			}
		}
		u.LegalEntityID = *in.LegalEntityID
	}
	if in.PositionID != nil {
		if *in.PositionID != "" {
			if _, err := s.positions.GetPosition(ctx, *in.PositionID); err != nil {
				return user.User{}, apperr.Validation("unknown position")
			}
		}
		u.PositionID = *in.PositionID
	}
	if u.Firstname == "" || u.Lastname == "" {
		return user.User{}, apperr.Validation("firstname and lastname are required")
	}

	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.afterWrite(ctx, u)
	return u, nil
}

// Delete removes an account. Admin only.
func (s *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if actor.Role != user.RoleAdmin {
		return apperr.Forbidden("only admins can delete users")
	}
	if actor.ID == id {
		return apperr.Validation("cannot delete own account")
	}
	err := s.store.DeleteUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("user", id)
	}
	if err != nil {
		return err
	}
	if err := s.indexer.RemoveUser(ctx, id); err != nil {
		s.log.WithError(err).Warn("remove user from index failed")
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// List returns users visible to the actor, applying the filter. HR listings
// are forced into their own legal entity.
func (s *Service) List(ctx context.Context, actor user.User, filter storage.UserFilter) ([]user.User, error) {
	switch actor.Role {
	case user.RoleAdmin:
	case user.RoleHR:
		filter.LegalEntityID = actor.LegalEntityID
	default:
		return nil, apperr.Forbidden("insufficient permissions")
	}
	return s.store.ListUsers(ctx, filter)
}

// Search finds users by free-text query, preferring the search index and
// falling back to SQL filtering.
func (s *Service) Search(ctx context.Context, actor user.User, query string, limit int) ([]user.User, error) {
	if actor.Role == user.RoleEmployee {
		return nil, apperr.Forbidden("insufficient permissions")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if s.indexer.Enabled() {
		ids, err := s.indexer.SearchUsers(ctx, query, limit)
		if err != nil {
			s.log.WithError(err).Warn("user index search failed, using sql fallback")
		} else {
			return s.resolveIDs(ctx, actor, ids)
		}
	}
	return s.List(ctx, actor, storage.UserFilter{Query: query, Limit: limit})
}

func (s *Service) resolveIDs(ctx context.Context, actor user.User, ids []string) ([]user.User, error) {
	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.store.GetUser(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue // index can lag behind deletes
		}
		if err != nil {
			return nil, err
		}
		if actor.Role == user.RoleHR && u.LegalEntityID != actor.LegalEntityID {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Service) canRead(actor, target user.User) error {
	switch actor.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleHR:
		if target.LegalEntityID == actor.LegalEntityID || target.ID == actor.ID {
			return nil
		}
		return apperr.Forbidden("hr can only view users in their own legal entity")
	default:
		if target.ID == actor.ID {
			return nil
		}
		return apperr.Forbidden("insufficient permissions")
	}
}

func (s *Service) afterWrite(ctx context.Context, u user.User) {
	if err := s.indexer.IndexUser(ctx, u); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("index user failed")
	}
}
