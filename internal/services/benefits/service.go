// Package benefits manages the benefit catalogue: CRUD with images, search
// and Excel import/export.
package benefits

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/platform/objstore"
	"github.com/cafeteria-hr/service_layer/internal/platform/search"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// Service coordinates the benefit catalogue.
type Service struct {
	store      storage.BenefitStore
	categories storage.CategoryStore
	indexer    search.Indexer
	uploader   objstore.Uploader
	log        *logging.Logger
}

// New creates a configured benefits service.
func New(store storage.BenefitStore, categories storage.CategoryStore, indexer search.Indexer, uploader objstore.Uploader, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("benefits")
	}
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	if uploader == nil {
		uploader = objstore.NoopUploader{}
	}
	return &Service{
		store:      store,
		categories: categories,
		indexer:    indexer,
		uploader:   uploader,
		log:        log,
	}
}

// Input carries the writable benefit fields.
type Input struct {
	Name               string
	Description        string
	IsActive           *bool
	CoinsCost          int
	MinLevelCost       int
	AdaptationRequired bool
	Amount             *int
	RealCurrencyCost   float64
	UsageLimit         *int
	UsagePeriodDays    *int
	CategoryID         string
	ImageURLs          []string
}

// Create adds a benefit to the catalogue. HR and admin only.
func (s *Service) Create(ctx context.Context, actor user.User, in Input) (benefit.Benefit, error) {
	if actor.Role == user.RoleEmployee {
		return benefit.Benefit{}, apperr.Forbidden("insufficient permissions")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return benefit.Benefit{}, apperr.Validation("name is required")
	}
	if err := validateCosts(in); err != nil {
		return benefit.Benefit{}, err
	}
	if in.CategoryID != "" {
		if _, err := s.categories.GetCategory(ctx, in.CategoryID); err != nil {
			return benefit.Benefit{}, apperr.Validation("unknown category")
		}
	}

	b := benefit.Benefit{
		Name:               in.Name,
		Description:        strings.TrimSpace(in.Description),
		IsActive:           true,
		CoinsCost:          in.CoinsCost,
		MinLevelCost:       in.MinLevelCost,
		AdaptationRequired: in.AdaptationRequired,
		Amount:             in.Amount,
		RealCurrencyCost:   in.RealCurrencyCost,
		UsageLimit:         in.UsageLimit,
		UsagePeriodDays:    in.UsagePeriodDays,
		CategoryID:         in.CategoryID,
	}
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	for i, url := range in.ImageURLs {
		b.Images = append(b.Images, benefit.Image{URL: url, IsPrimary: i == 0})
	}

	b, err := s.store.CreateBenefit(ctx, b)
	if err != nil {
		return benefit.Benefit{}, err
	}
	s.afterWrite(ctx, b)
	s.log.WithField("benefit_id", b.ID).Info("benefit created")
	return b, nil
}

// Get returns one benefit. Employees only see active benefits.
func (s *Service) Get(ctx context.Context, actor user.User, id string) (benefit.Benefit, error) {
	b, err := s.store.GetBenefit(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return benefit.Benefit{}, apperr.NotFound("benefit", id)
	}
	if err != nil {
		return benefit.Benefit{}, err
	}
	if actor.Role == user.RoleEmployee && !b.IsActive {
		return benefit.Benefit{}, apperr.NotFound("benefit", id)
	}
	return b, nil
}

// UpdateInput carries patchable fields; nil means unchanged.
type UpdateInput struct {
	Name               *string
	Description        *string
	IsActive           *bool
	CoinsCost          *int
	MinLevelCost       *int
	AdaptationRequired *bool
	Amount             *int
	AmountSet          bool
	RealCurrencyCost   *float64
	UsageLimit         *int
	UsagePeriodDays    *int
	CategoryID         *string
}

// Update applies a partial update. HR and admin only.
func (s *Service) Update(ctx context.Context, actor user.User, id string, in UpdateInput) (benefit.Benefit, error) {
	if actor.Role == user.RoleEmployee {
		return benefit.Benefit{}, apperr.Forbidden("insufficient permissions")
	}
	b, err := s.store.GetBenefit(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return benefit.Benefit{}, apperr.NotFound("benefit", id)
	}
	if err != nil {
		return benefit.Benefit{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return benefit.Benefit{}, apperr.Validation("name is required")
		}
		b.Name = name
	}
	if in.Description != nil {
		b.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	if in.CoinsCost != nil {
		if *in.CoinsCost < 0 {
			return benefit.Benefit{}, apperr.Validation("coins_cost cannot be negative")
		}
		b.CoinsCost = *in.CoinsCost
	}
	if in.MinLevelCost != nil {
		if *in.MinLevelCost < 0 {
			return benefit.Benefit{}, apperr.Validation("min_level_cost cannot be negative")
		}
		b.MinLevelCost = *in.MinLevelCost
	}
	if in.AdaptationRequired != nil {
		b.AdaptationRequired = *in.AdaptationRequired
	}
	if in.AmountSet {
		if in.Amount != nil && *in.Amount < 0 {
			return benefit.Benefit{}, apperr.Validation("amount cannot be negative")
		}
		b.Amount = in.Amount
	}
	if in.RealCurrencyCost != nil {
		if *in.RealCurrencyCost < 0 {
			return benefit.Benefit{}, apperr.Validation("real_currency_cost cannot be negative")
		}
		b.RealCurrencyCost = *in.RealCurrencyCost
	}
	if in.UsageLimit != nil {
		b.UsageLimit = in.UsageLimit
	}
	if in.UsagePeriodDays != nil {
		b.UsagePeriodDays = in.UsagePeriodDays
	}
	if in.CategoryID != nil {
		if *in.CategoryID != "" {
			if _, err := s.categories.GetCategory(ctx, *in.CategoryID); err != nil {
				return benefit.Benefit{}, apperr.Validation("unknown category")
			}
		}
		b.CategoryID = *in.CategoryID
	}

	b, err = s.store.UpdateBenefit(ctx, b)
	if err != nil {
		return benefit.Benefit{}, err
	}
	s.afterWrite(ctx, b)
	return b, nil
}

// Delete removes a benefit. HR and admin only.
func (s *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if actor.Role == user.RoleEmployee {
		return apperr.Forbidden("insufficient permissions")
	}
	err := s.store.DeleteBenefit(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("benefit", id)
	}
	if err != nil {
		return err
	}
	if err := s.indexer.RemoveBenefit(ctx, id); err != nil {
		s.log.WithError(err).Warn("remove benefit from index failed")
	}
	s.log.WithField("benefit_id", id).Info("benefit deleted")
	return nil
}

// List returns benefits matching the filter. Employees only see active
// benefits.
func (s *Service) List(ctx context.Context, actor user.User, filter storage.BenefitFilter) ([]benefit.Benefit, error) {
	if actor.Role == user.RoleEmployee {
		active := true
		filter.IsActive = &active
	}
	return s.store.ListBenefits(ctx, filter)
}

// Search finds benefits by free-text query via the search index, falling
// back to SQL filtering.
func (s *Service) Search(ctx context.Context, actor user.User, query string, limit int) ([]benefit.Benefit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if s.indexer.Enabled() {
		ids, err := s.indexer.SearchBenefits(ctx, query, limit)
		if err != nil {
			s.log.WithError(err).Warn("benefit index search failed, using sql fallback")
		} else {
			return s.resolveIDs(ctx, actor, ids)
		}
	}
	return s.List(ctx, actor, storage.BenefitFilter{Query: query, Limit: limit})
}

func (s *Service) resolveIDs(ctx context.Context, actor user.User, ids []string) ([]benefit.Benefit, error) {
	benefits := make([]benefit.Benefit, 0, len(ids))
	for _, id := range ids {
		b, err := s.store.GetBenefit(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue // index can lag behind deletes
		}
		if err != nil {
			return nil, err
		}
		if actor.Role == user.RoleEmployee && !b.IsActive {
			continue
		}
		benefits = append(benefits, b)
	}
	return benefits, nil
}

// AddImage uploads an image file to object storage and attaches it to the
// benefit. When object storage is disabled the URL must be provided instead.
func (s *Service) AddImage(ctx context.Context, actor user.User, benefitID, filename, contentType string, size int64, file io.Reader, isPrimary bool) (benefit.Image, error) {
	if actor.Role == user.RoleEmployee {
		return benefit.Image{}, apperr.Forbidden("insufficient permissions")
	}
	if _, err := s.store.GetBenefit(ctx, benefitID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return benefit.Image{}, apperr.NotFound("benefit", benefitID)
		}
		return benefit.Image{}, err
	}

	key := objstore.KeyFor("benefits/"+benefitID, filename)
	url, err := s.uploader.Upload(ctx, key, contentType, size, file)
	if err != nil {
		return benefit.Image{}, apperr.Internal("image upload failed", err)
	}
	img, err := s.store.AddBenefitImage(ctx, benefit.Image{
		BenefitID: benefitID,
		URL:       url,
		IsPrimary: isPrimary,
	})
	if err != nil {
		return benefit.Image{}, err
	}
	s.log.WithField("benefit_id", benefitID).WithField("image_id", img.ID).Info("benefit image added")
	return img, nil
}

// AddImageURL attaches an externally hosted image.
func (s *Service) AddImageURL(ctx context.Context, actor user.User, benefitID, url string, isPrimary bool) (benefit.Image, error) {
	if actor.Role == user.RoleEmployee {
		return benefit.Image{}, apperr.Forbidden("insufficient permissions")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return benefit.Image{}, apperr.Validation("image url is required")
	}
	if _, err := s.store.GetBenefit(ctx, benefitID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return benefit.Image{}, apperr.NotFound("benefit", benefitID)
		}
		return benefit.Image{}, err
	}
	return s.store.AddBenefitImage(ctx, benefit.Image{
		BenefitID: benefitID,
		URL:       url,
		IsPrimary: isPrimary,
	})
}

// DeleteImage detaches an image, removing the stored object when the file
// lives in our bucket. Externally hosted URLs are left alone.
func (s *Service) DeleteImage(ctx context.Context, actor user.User, benefitID, imageID string) error {
	if actor.Role == user.RoleEmployee {
		return apperr.Forbidden("insufficient permissions")
	}
	b, err := s.store.GetBenefit(ctx, benefitID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("benefit", benefitID)
	}
	if err != nil {
		return err
	}
	var img *benefit.Image
	for i := range b.Images {
		if b.Images[i].ID == imageID {
			img = &b.Images[i]
			break
		}
	}
	if img == nil {
		return apperr.NotFound("benefit image", imageID)
	}
	err = s.store.DeleteBenefitImage(ctx, imageID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("benefit image", imageID)
	}
	if err != nil {
		return err
	}
	if s.uploader.Enabled() {
		if key, ok := objstore.KeyFromURL(img.URL); ok {
			if err := s.uploader.Remove(ctx, key); err != nil {
				s.log.WithError(err).WithField("key", key).Warn("remove stored image failed")
			}
		}
	}
	return nil
}

// SetPrimaryImage marks one gallery image as primary and clears the flag on
// the rest.
func (s *Service) SetPrimaryImage(ctx context.Context, actor user.User, benefitID, imageID string) ([]benefit.Image, error) {
	if actor.Role == user.RoleEmployee {
		return nil, apperr.Forbidden("insufficient permissions")
	}
	b, err := s.store.GetBenefit(ctx, benefitID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("benefit", benefitID)
	}
	if err != nil {
		return nil, err
	}
	found := false
	imgs := make([]benefit.Image, len(b.Images))
	for i, img := range b.Images {
		img.IsPrimary = img.ID == imageID
		if img.IsPrimary {
			found = true
		}
		imgs[i] = img
	}
	if !found {
		return nil, apperr.NotFound("benefit image", imageID)
	}
	return s.store.ReplaceBenefitImages(ctx, benefitID, imgs)
}

func validateCosts(in Input) error {
	if in.CoinsCost < 0 {
		return apperr.Validation("coins_cost cannot be negative")
	}
	if in.MinLevelCost < 0 {
		return apperr.Validation("min_level_cost cannot be negative")
	}
	if in.Amount != nil && *in.Amount < 0 {
		return apperr.Validation("amount cannot be negative")
	}
	if in.RealCurrencyCost < 0 {
		return apperr.Validation("real_currency_cost cannot be negative")
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, b benefit.Benefit) {
	if err := s.indexer.IndexBenefit(ctx, b); err != nil {
		s.log.WithError(err).WithField("benefit_id", b.ID).Warn("index benefit failed")
	}
}
