// Package catalog manages the reference data behind the cafeteria:
// categories, legal entities and positions.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/cafeteria-hr/service_layer/internal/domain/category"
	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/position"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// Service coordinates reference data.
type Service struct {
	categories storage.CategoryStore
	entities   storage.LegalEntityStore
	positions  storage.PositionStore
	users      storage.UserStore
	log        *logging.Logger
}

// New creates a configured catalog service.
func New(categories storage.CategoryStore, entities storage.LegalEntityStore, positions storage.PositionStore, users storage.UserStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("catalog")
	}
	return &Service{
		categories: categories,
		entities:   entities,
		positions:  positions,
		users:      users,
		log:        log,
	}
}

func requireStaff(actor user.User) error {
	if actor.Role == user.RoleEmployee {
		return apperr.Forbidden("insufficient permissions")
	}
	return nil
}

// --- categories -------------------------------------------------------------

func (s *Service) CreateCategory(ctx context.Context, actor user.User, name string) (category.Category, error) {
	if err := requireStaff(actor); err != nil {
		return category.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return category.Category{}, apperr.Validation("name is required")
	}
	c, err := s.categories.CreateCategory(ctx, category.Category{Name: name})
	if errors.Is(err, storage.ErrConflict) {
		return category.Category{}, apperr.Conflict("category " + name + " already exists")
	}
	return c, err
}

func (s *Service) GetCategory(ctx context.Context, id string) (category.Category, error) {
	c, err := s.categories.GetCategory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return category.Category{}, apperr.NotFound("category", id)
	}
	return c, err
}

func (s *Service) ListCategories(ctx context.Context) ([]category.Category, error) {
	return s.categories.ListCategories(ctx)
}

func (s *Service) UpdateCategory(ctx context.Context, actor user.User, id, name string) (category.Category, error) {
	if err := requireStaff(actor); err != nil {
		return category.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return category.Category{}, apperr.Validation("name is required")
	}
	c, err := s.categories.UpdateCategory(ctx, category.Category{ID: id, Name: name})
	if errors.Is(err, storage.ErrNotFound) {
		return category.Category{}, apperr.NotFound("category", id)
	}
	if errors.Is(err, storage.ErrConflict) {
		return category.Category{}, apperr.Conflict("category " + name + " already exists")
	}
	return c, err
}

func (s *Service) DeleteCategory(ctx context.Context, actor user.User, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	err := s.categories.DeleteCategory(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("category", id)
	}
	return err
}

// --- legal entities ---------------------------------------------------------

// EntityWithCounts is a legal entity plus its headcount split.
type EntityWithCounts struct {
	legalentity.LegalEntity
	Counts legalentity.Counts
}

func (s *Service) CreateLegalEntity(ctx context.Context, actor user.User, name string) (legalentity.LegalEntity, error) {
	if actor.Role != user.RoleAdmin {
		return legalentity.LegalEntity{}, apperr.Forbidden("only admins can manage legal entities")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return legalentity.LegalEntity{}, apperr.Validation("name is required")
	}
	le, err := s.entities.CreateLegalEntity(ctx, legalentity.LegalEntity{Name: name})
	if errors.Is(err, storage.ErrConflict) {
		return legalentity.LegalEntity{}, apperr.Conflict("legal entity " + name + " already exists")
	}
	return le, err
}

// GetLegalEntity returns the entity with employee and staff counts.
func (s *Service) GetLegalEntity(ctx context.Context, id string) (EntityWithCounts, error) {
	le, err := s.entities.GetLegalEntity(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return EntityWithCounts{}, apperr.NotFound("legal entity", id)
	}
	if err != nil {
		return EntityWithCounts{}, err
	}
	counts, err := s.entityCounts(ctx, id)
	if err != nil {
		return EntityWithCounts{}, err
	}
	return EntityWithCounts{LegalEntity: le, Counts: counts}, nil
}

func (s *Service) ListLegalEntities(ctx context.Context) ([]EntityWithCounts, error) {
	entities, err := s.entities.ListLegalEntities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EntityWithCounts, 0, len(entities))
	for _, le := range entities {
		counts, err := s.entityCounts(ctx, le.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, EntityWithCounts{LegalEntity: le, Counts: counts})
	}
	return out, nil
}

func (s *Service) entityCounts(ctx context.Context, id string) (legalentity.Counts, error) {
	employees, err := s.users.CountUsersByRole(ctx, id, []user.Role{user.RoleEmployee})
	if err != nil {
		return legalentity.Counts{}, err
	}
	staff, err := s.users.CountUsersByRole(ctx, id, []user.Role{user.RoleHR, user.RoleAdmin})
	if err != nil {
		return legalentity.Counts{}, err
	}
	return legalentity.Counts{Employees: employees, Staff: staff}, nil
}

func (s *Service) UpdateLegalEntity(ctx context.Context, actor user.User, id, name string) (legalentity.LegalEntity, error) {
	if actor.Role != user.RoleAdmin {
		return legalentity.LegalEntity{}, apperr.Forbidden("only admins can manage legal entities")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return legalentity.LegalEntity{}, apperr.Validation("name is required")
	}
	le, err := s.entities.UpdateLegalEntity(ctx, legalentity.LegalEntity{ID: id, Name: name})
	if errors.Is(err, storage.ErrNotFound) {
		return legalentity.LegalEntity{}, apperr.NotFound("legal entity", id)
	}
	if errors.Is(err, storage.ErrConflict) {
		return legalentity.LegalEntity{}, apperr.Conflict("legal entity " + name + " already exists")
	}
	return le, err
}

func (s *Service) DeleteLegalEntity(ctx context.Context, actor user.User, id string) error {
	if actor.Role != user.RoleAdmin {
		return apperr.Forbidden("only admins can manage legal entities")
	}
	err := s.entities.DeleteLegalEntity(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("legal entity", id)
	}
	return err
}

// --- positions --------------------------------------------------------------

func (s *Service) CreatePosition(ctx context.Context, actor user.User, name string) (position.Position, error) {
	if err := requireStaff(actor); err != nil {
		return position.Position{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return position.Position{}, apperr.Validation("name is required")
	}
	p, err := s.positions.CreatePosition(ctx, position.Position{Name: name})
	if errors.Is(err, storage.ErrConflict) {
		return position.Position{}, apperr.Conflict("position " + name + " already exists")
	}
	return p, err
}

func (s *Service) GetPosition(ctx context.Context, id string) (position.Position, error) {
	p, err := s.positions.GetPosition(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return position.Position{}, apperr.NotFound("position", id)
	}
	return p, err
}

func (s *Service) ListPositions(ctx context.Context) ([]position.Position, error) {
	return s.positions.ListPositions(ctx)
}

func (s *Service) UpdatePosition(ctx context.Context, actor user.User, id, name string) (position.Position, error) {
	if err := requireStaff(actor); err != nil {
		return position.Position{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return position.Position{}, apperr.Validation("name is required")
	}
	p, err := s.positions.UpdatePosition(ctx, position.Position{ID: id, Name: name})
	if errors.Is(err, storage.ErrNotFound) {
		return position.Position{}, apperr.NotFound("position", id)
	}
	if errors.Is(err, storage.ErrConflict) {
		return position.Position{}, apperr.Conflict("position " + name + " already exists")
	}
	return p, err
}

func (s *Service) DeletePosition(ctx context.Context, actor user.User, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	err := s.positions.DeletePosition(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("position", id)
	}
	return err
}
