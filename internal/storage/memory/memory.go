// Package memory provides a thread-safe in-memory implementation of the
// storage interfaces. It is intended for tests and for running the service
// without external dependencies.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/category"
	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/position"
	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/review"
	"github.com/cafeteria-hr/service_layer/internal/domain/session"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// Sentinel errors shared with the other store implementations.
var (
	ErrNotFound = storage.ErrNotFound
	ErrConflict = storage.ErrConflict
)

// Store keeps all records in maps guarded by a single mutex.
type Store struct {
	mu            sync.RWMutex
	users         map[string]user.User
	legalEntities map[string]legalentity.LegalEntity
	positions     map[string]position.Position
	categories    map[string]category.Category
	benefits      map[string]benefit.Benefit
	requests      map[string]request.Request
	reviews       map[string]review.Review
	sessions      map[string]session.Session
}

var (
	_ storage.UserStore        = (*Store)(nil)
	_ storage.LegalEntityStore = (*Store)(nil)
	_ storage.PositionStore    = (*Store)(nil)
	_ storage.CategoryStore    = (*Store)(nil)
	_ storage.BenefitStore     = (*Store)(nil)
	_ storage.RequestStore     = (*Store)(nil)
	_ storage.ReviewStore      = (*Store)(nil)
	_ storage.SessionStore     = (*Store)(nil)
	_ storage.Tx               = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		legalEntities: make(map[string]legalentity.LegalEntity),
		positions:     make(map[string]position.Position),
		categories:    make(map[string]category.Category),
		benefits:      make(map[string]benefit.Benefit),
		requests:      make(map[string]request.Request),
		reviews:       make(map[string]review.Review),
		sessions:      make(map[string]session.Session),
	}
}

// WithinTx runs fn directly; the memory store has no real transactions.
func (m *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- UserStore ---------------------------------------------------------------

func (m *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, fmt.Errorf("user email %s: %w", u.Email, ErrConflict)
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = u
	return u, nil
}

func (m *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	for id, existing := range m.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, fmt.Errorf("user email %s: %w", u.Email, ErrConflict)
		}
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *Store) GetUser(_ context.Context, id string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, fmt.Errorf("user email %s: %w", email, ErrNotFound)
}

func (m *Store) ListUsers(_ context.Context, filter storage.UserFilter) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []user.User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if filter.LegalEntityID != "" && u.LegalEntityID != filter.LegalEntityID {
			continue
		}
		if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
			haystack := strings.ToLower(u.FullName() + " " + u.Email)
			if !strings.Contains(haystack, q) {
				continue
			}
		}
		result = append(result, u)
	}

	sortUsers(result, filter.SortBy, filter.SortOrder)
	return pageUsers(result, filter.Offset, filter.Limit), nil
}

func (m *Store) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

func (m *Store) CountUsersByRole(_ context.Context, legalEntityID string, roles []user.Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, u := range m.users {
		if u.LegalEntityID != legalEntityID {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				count++
				break
			}
		}
	}
	return count, nil
}

func sortUsers(users []user.User, sortBy, order string) {
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(users, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "email":
			less = users[i].Email < users[j].Email
		case "fullname", "lastname":
			less = users[i].FullName() < users[j].FullName()
		case "hired_at":
			less = users[i].HiredAt.Before(users[j].HiredAt)
		case "coins":
			less = users[i].Coins < users[j].Coins
		default:
			less = users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		if desc {
			return !less
		}
		return less
	})
}

func pageUsers(users []user.User, offset, limit int) []user.User {
	if offset >= len(users) {
		return nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users
}

// --- LegalEntityStore --------------------------------------------------------

func (m *Store) CreateLegalEntity(_ context.Context, le legalentity.LegalEntity) (legalentity.LegalEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.legalEntities {
		if strings.EqualFold(existing.Name, le.Name) {
			return legalentity.LegalEntity{}, fmt.Errorf("legal entity %s: %w", le.Name, ErrConflict)
		}
	}
	if le.ID == "" {
		le.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	le.CreatedAt = now
	le.UpdatedAt = now
	m.legalEntities[le.ID] = le
	return le, nil
}

func (m *Store) UpdateLegalEntity(_ context.Context, le legalentity.LegalEntity) (legalentity.LegalEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.legalEntities[le.ID]
	if !ok {
		return legalentity.LegalEntity{}, fmt.Errorf("legal entity %s: %w", le.ID, ErrNotFound)
	}
	for id, existing := range m.legalEntities {
		if id != le.ID && strings.EqualFold(existing.Name, le.Name) {
			return legalentity.LegalEntity{}, fmt.Errorf("legal entity %s: %w", le.Name, ErrConflict)
		}
	}
	le.CreatedAt = original.CreatedAt
	le.UpdatedAt = time.Now().UTC()
	m.legalEntities[le.ID] = le
	return le, nil
}

func (m *Store) GetLegalEntity(_ context.Context, id string) (legalentity.LegalEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	le, ok := m.legalEntities[id]
	if !ok {
		return legalentity.LegalEntity{}, fmt.Errorf("legal entity %s: %w", id, ErrNotFound)
	}
	return le, nil
}

func (m *Store) ListLegalEntities(_ context.Context) ([]legalentity.LegalEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]legalentity.LegalEntity, 0, len(m.legalEntities))
	for _, le := range m.legalEntities {
		result = append(result, le)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Store) DeleteLegalEntity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.legalEntities[id]; !ok {
		return fmt.Errorf("legal entity %s: %w", id, ErrNotFound)
	}
	delete(m.legalEntities, id)
	return nil
}

// --- PositionStore -----------------------------------------------------------

func (m *Store) CreatePosition(_ context.Context, p position.Position) (position.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.positions {
		if strings.EqualFold(existing.Name, p.Name) {
			return position.Position{}, fmt.Errorf("position %s: %w", p.Name, ErrConflict)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.positions[p.ID] = p
	return p, nil
}

func (m *Store) UpdatePosition(_ context.Context, p position.Position) (position.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.positions[p.ID]
	if !ok {
		return position.Position{}, fmt.Errorf("position %s: %w", p.ID, ErrNotFound)
	}
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.positions[p.ID] = p
	return p, nil
}

func (m *Store) GetPosition(_ context.Context, id string) (position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[id]
	if !ok {
		return position.Position{}, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Store) GetPositionByName(_ context.Context, name string) (position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.positions {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return position.Position{}, fmt.Errorf("position %s: %w", name, ErrNotFound)
}

func (m *Store) ListPositions(_ context.Context) ([]position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]position.Position, 0, len(m.positions))
	for _, p := range m.positions {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Store) DeletePosition(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[id]; !ok {
		return fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	delete(m.positions, id)
	return nil
}

// --- CategoryStore -----------------------------------------------------------

func (m *Store) CreateCategory(_ context.Context, c category.Category) (category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return category.Category{}, fmt.Errorf("category %s: %w", c.Name, ErrConflict)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.categories[c.ID] = c
	return c, nil
}

func (m *Store) UpdateCategory(_ context.Context, c category.Category) (category.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.categories[c.ID]
	if !ok {
		return category.Category{}, fmt.Errorf("category %s: %w", c.ID, ErrNotFound)
	}
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	m.categories[c.ID] = c
	return c, nil
}

func (m *Store) GetCategory(_ context.Context, id string) (category.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return category.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *Store) ListCategories(_ context.Context) ([]category.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]category.Category, 0, len(m.categories))
	for _, c := range m.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Store) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	delete(m.categories, id)
	return nil
}

// --- BenefitStore ------------------------------------------------------------

func (m *Store) CreateBenefit(_ context.Context, b benefit.Benefit) (benefit.Benefit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	images := make([]benefit.Image, 0, len(b.Images))
	for _, img := range b.Images {
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.BenefitID = b.ID
		img.CreatedAt = now
		images = append(images, img)
	}
	b.Images = images

	m.benefits[b.ID] = cloneBenefit(b)
	return b, nil
}

func (m *Store) UpdateBenefit(_ context.Context, b benefit.Benefit) (benefit.Benefit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.benefits[b.ID]
	if !ok {
		return benefit.Benefit{}, fmt.Errorf("benefit %s: %w", b.ID, ErrNotFound)
	}
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	b.Images = original.Images
	m.benefits[b.ID] = cloneBenefit(b)
	return b, nil
}

func (m *Store) GetBenefit(_ context.Context, id string) (benefit.Benefit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.benefits[id]
	if !ok {
		return benefit.Benefit{}, fmt.Errorf("benefit %s: %w", id, ErrNotFound)
	}
	return cloneBenefit(b), nil
}

func (m *Store) ListBenefits(_ context.Context, filter storage.BenefitFilter) ([]benefit.Benefit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []benefit.Benefit
	for _, b := range m.benefits {
		if filter.IsActive != nil && b.IsActive != *filter.IsActive {
			continue
		}
		if filter.AdaptationRequired != nil && b.AdaptationRequired != *filter.AdaptationRequired {
			continue
		}
		if filter.CategoryID != "" && b.CategoryID != filter.CategoryID {
			continue
		}
		if filter.MinCoinsCost != nil && b.CoinsCost < *filter.MinCoinsCost {
			continue
		}
		if filter.MaxCoinsCost != nil && b.CoinsCost > *filter.MaxCoinsCost {
			continue
		}
		if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
			haystack := strings.ToLower(b.Name + " " + b.Description)
			if !strings.Contains(haystack, q) {
				continue
			}
		}
		result = append(result, cloneBenefit(b))
	}

	desc := strings.EqualFold(filter.SortOrder, "desc")
	sort.SliceStable(result, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "name":
			less = result[i].Name < result[j].Name
		case "coins_cost":
			less = result[i].CoinsCost < result[j].CoinsCost
		default:
			less = result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		if desc {
			return !less
		}
		return less
	})

	if filter.Offset >= len(result) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *Store) DeleteBenefit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.benefits[id]; !ok {
		return fmt.Errorf("benefit %s: %w", id, ErrNotFound)
	}
	delete(m.benefits, id)
	return nil
}

func (m *Store) AddBenefitImage(_ context.Context, img benefit.Image) (benefit.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.benefits[img.BenefitID]
	if !ok {
		return benefit.Image{}, fmt.Errorf("benefit %s: %w", img.BenefitID, ErrNotFound)
	}
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = time.Now().UTC()
	b.Images = append(b.Images, img)
	m.benefits[b.ID] = b
	return img, nil
}

func (m *Store) DeleteBenefitImage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for benefitID, b := range m.benefits {
		for i, img := range b.Images {
			if img.ID == id {
				b.Images = append(b.Images[:i], b.Images[i+1:]...)
				m.benefits[benefitID] = b
				return nil
			}
		}
	}
	return fmt.Errorf("benefit image %s: %w", id, ErrNotFound)
}

func (m *Store) ReplaceBenefitImages(_ context.Context, benefitID string, imgs []benefit.Image) ([]benefit.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.benefits[benefitID]
	if !ok {
		return nil, fmt.Errorf("benefit %s: %w", benefitID, ErrNotFound)
	}
	now := time.Now().UTC()
	replaced := make([]benefit.Image, 0, len(imgs))
	for _, img := range imgs {
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.BenefitID = benefitID
		img.CreatedAt = now
		replaced = append(replaced, img)
	}
	b.Images = replaced
	m.benefits[benefitID] = b
	return replaced, nil
}

func cloneBenefit(b benefit.Benefit) benefit.Benefit {
	if b.Amount != nil {
		amount := *b.Amount
		b.Amount = &amount
	}
	if b.UsageLimit != nil {
		v := *b.UsageLimit
		b.UsageLimit = &v
	}
	if b.UsagePeriodDays != nil {
		v := *b.UsagePeriodDays
		b.UsagePeriodDays = &v
	}
	images := make([]benefit.Image, len(b.Images))
	copy(images, b.Images)
	b.Images = images
	return b
}

// --- RequestStore ------------------------------------------------------------

func (m *Store) CreateRequest(_ context.Context, req request.Request) (request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	m.requests[req.ID] = req
	return req, nil
}

func (m *Store) UpdateRequest(_ context.Context, req request.Request) (request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.requests[req.ID]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", req.ID, ErrNotFound)
	}
	req.CreatedAt = original.CreatedAt
	req.UpdatedAt = time.Now().UTC()
	m.requests[req.ID] = req
	return req, nil
}

func (m *Store) GetRequest(_ context.Context, id string) (request.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return request.Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

func (m *Store) ListRequests(_ context.Context, filter storage.RequestFilter) ([]request.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entityScope := make(map[string]bool, len(filter.LegalEntityIDs))
	for _, id := range filter.LegalEntityIDs {
		entityScope[id] = true
	}

	var result []request.Request
	for _, req := range m.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && req.UserID != filter.UserID {
			continue
		}
		if filter.PerformerID != "" && req.PerformerID != filter.PerformerID {
			continue
		}
		if len(entityScope) > 0 {
			owner, ok := m.users[req.UserID]
			if !ok || !entityScope[owner.LegalEntityID] {
				continue
			}
		}
		result = append(result, req)
	}

	desc := strings.EqualFold(filter.SortOrder, "desc")
	sort.SliceStable(result, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "status":
			less = result[i].Status < result[j].Status
		case "updated_at":
			less = result[i].UpdatedAt.Before(result[j].UpdatedAt)
		default:
			less = result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		if desc {
			return !less
		}
		return less
	})

	if filter.Offset >= len(result) {
		return nil, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *Store) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	delete(m.requests, id)
	return nil
}

// --- ReviewStore -------------------------------------------------------------

func (m *Store) CreateReview(_ context.Context, rv review.Review) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rv.CreatedAt = now
	rv.UpdatedAt = now
	m.reviews[rv.ID] = rv
	return rv, nil
}

func (m *Store) UpdateReview(_ context.Context, rv review.Review) (review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.reviews[rv.ID]
	if !ok {
		return review.Review{}, fmt.Errorf("review %s: %w", rv.ID, ErrNotFound)
	}
	rv.CreatedAt = original.CreatedAt
	rv.UpdatedAt = time.Now().UTC()
	m.reviews[rv.ID] = rv
	return rv, nil
}

func (m *Store) GetReview(_ context.Context, id string) (review.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rv, ok := m.reviews[id]
	if !ok {
		return review.Review{}, fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	return rv, nil
}

func (m *Store) ListReviews(_ context.Context, benefitID string) ([]review.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []review.Review
	for _, rv := range m.reviews {
		if benefitID == "" || rv.BenefitID == benefitID {
			result = append(result, rv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Store) DeleteReview(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reviews[id]; !ok {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	delete(m.reviews, id)
	return nil
}

// --- SessionStore ------------------------------------------------------------

func (m *Store) CreateSession(_ context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Token == "" {
		return fmt.Errorf("session token required")
	}
	m.sessions[s.Token] = s
	return nil
}

func (m *Store) GetSession(_ context.Context, token string) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok || s.Expired(time.Now().UTC()) {
		return session.Session{}, fmt.Errorf("session: %w", ErrNotFound)
	}
	return s, nil
}

func (m *Store) RefreshSession(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return fmt.Errorf("session: %w", ErrNotFound)
	}
	s.ExpiresAt = expiresAt.UTC()
	m.sessions[token] = s
	return nil
}

func (m *Store) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

func (m *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}
