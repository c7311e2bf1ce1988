package storage

import (
	"context"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/category"
	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/position"
	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/review"
	"github.com/cafeteria-hr/service_layer/internal/domain/session"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
)

// UserFilter narrows and orders user listings.
type UserFilter struct {
	Role          user.Role
	IsActive      *bool
	LegalEntityID string
	Query         string
	SortBy        string
	SortOrder     string
	Limit         int
	Offset        int
}

// BenefitFilter narrows and orders benefit listings.
type BenefitFilter struct {
	IsActive           *bool
	AdaptationRequired *bool
	CategoryID         string
	MinCoinsCost       *int
	MaxCoinsCost       *int
	Query              string
	SortBy             string
	SortOrder          string
	Limit              int
	Offset             int
}

// RequestFilter narrows and orders benefit request listings. A non-empty
// LegalEntityIDs restricts results to requests whose owner belongs to one of
// the given entities.
type RequestFilter struct {
	Status         request.Status
	LegalEntityIDs []string
	UserID         string
	PerformerID    string
	SortBy         string
	SortOrder      string
	Limit          int
	Offset         int
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
	CountUsersByRole(ctx context.Context, legalEntityID string, roles []user.Role) (int, error)
}

// LegalEntityStore persists legal entities.
type LegalEntityStore interface {
	CreateLegalEntity(ctx context.Context, le legalentity.LegalEntity) (legalentity.LegalEntity, error)
	UpdateLegalEntity(ctx context.Context, le legalentity.LegalEntity) (legalentity.LegalEntity, error)
	GetLegalEntity(ctx context.Context, id string) (legalentity.LegalEntity, error)
	ListLegalEntities(ctx context.Context) ([]legalentity.LegalEntity, error)
	DeleteLegalEntity(ctx context.Context, id string) error
}

// PositionStore persists positions.
type PositionStore interface {
	CreatePosition(ctx context.Context, p position.Position) (position.Position, error)
	UpdatePosition(ctx context.Context, p position.Position) (position.Position, error)
	GetPosition(ctx context.Context, id string) (position.Position, error)
	GetPositionByName(ctx context.Context, name string) (position.Position, error)
	ListPositions(ctx context.Context) ([]position.Position, error)
	DeletePosition(ctx context.Context, id string) error
}

// CategoryStore persists benefit categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c category.Category) (category.Category, error)
	UpdateCategory(ctx context.Context, c category.Category) (category.Category, error)
	GetCategory(ctx context.Context, id string) (category.Category, error)
	ListCategories(ctx context.Context) ([]category.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// BenefitStore persists benefits and their images.
type BenefitStore interface {
	CreateBenefit(ctx context.Context, b benefit.Benefit) (benefit.Benefit, error)
	UpdateBenefit(ctx context.Context, b benefit.Benefit) (benefit.Benefit, error)
	GetBenefit(ctx context.Context, id string) (benefit.Benefit, error)
	ListBenefits(ctx context.Context, filter BenefitFilter) ([]benefit.Benefit, error)
	DeleteBenefit(ctx context.Context, id string) error

	AddBenefitImage(ctx context.Context, img benefit.Image) (benefit.Image, error)
	DeleteBenefitImage(ctx context.Context, id string) error
	ReplaceBenefitImages(ctx context.Context, benefitID string, imgs []benefit.Image) ([]benefit.Image, error)
}

// RequestStore persists benefit requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req request.Request) (request.Request, error)
	UpdateRequest(ctx context.Context, req request.Request) (request.Request, error)
	GetRequest(ctx context.Context, id string) (request.Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]request.Request, error)
	DeleteRequest(ctx context.Context, id string) error
}

// ReviewStore persists benefit reviews.
type ReviewStore interface {
	CreateReview(ctx context.Context, rv review.Review) (review.Review, error)
	UpdateReview(ctx context.Context, rv review.Review) (review.Review, error)
	GetReview(ctx context.Context, id string) (review.Review, error)
	ListReviews(ctx context.Context, benefitID string) ([]review.Review, error)
	DeleteReview(ctx context.Context, id string) error
}

// SessionStore persists login sessions. Implementations are expected to honor
// expiry: Get never returns an expired session.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) error
	GetSession(ctx context.Context, token string) (session.Session, error)
	RefreshSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// Tx runs fn inside a storage transaction when the implementation supports
// one; otherwise fn runs directly. The request workflow relies on this to
// keep coin and stock accounting atomic.
type Tx interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
