package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/domain/benefit"
	"github.com/cafeteria-hr/service_layer/internal/domain/category"
	"github.com/cafeteria-hr/service_layer/internal/domain/legalentity"
	"github.com/cafeteria-hr/service_layer/internal/domain/position"
	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/domain/review"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	"github.com/cafeteria-hr/service_layer/internal/services/benefits"
	"github.com/cafeteria-hr/service_layer/internal/services/catalog"
	"github.com/cafeteria-hr/service_layer/internal/services/users"
)

// UserView is the wire shape of a user. Password material never leaves the
// service layer.
type UserView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Firstname     string     `json:"firstname"`
	Lastname      string     `json:"lastname"`
	Middlename    string     `json:"middlename,omitempty"`
	Fullname      string     `json:"fullname"`
	Role          string     `json:"role"`
	HiredAt       *time.Time `json:"hired_at,omitempty"`
	IsActive      bool       `json:"is_active"`
	IsAdapted     bool       `json:"is_adapted"`
	IsVerified    bool       `json:"is_verified"`
	Coins         int        `json:"coins"`
	Level         int        `json:"level"`
	Experience    int        `json:"experience"`
	LegalEntityID string     `json:"legal_entity_id,omitempty"`
	PositionID    string     `json:"position_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func userView(u user.User) UserView {
	now := time.Now()
	v := UserView{
		ID:            u.ID,
		Email:         u.Email,
		Firstname:     u.Firstname,
		Lastname:      u.Lastname,
		Middlename:    u.Middlename,
		Fullname:      u.FullName(),
		Role:          string(u.Role),
		IsActive:      u.IsActive,
		IsAdapted:     u.IsAdapted,
		IsVerified:    u.IsVerified,
		Coins:         u.Coins,
		Level:         u.Level(now),
		Experience:    u.Experience(now),
		LegalEntityID: u.LegalEntityID,
		PositionID:    u.PositionID,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if !u.HiredAt.IsZero() {
		hired := u.HiredAt
		v.HiredAt = &hired
	}
	return v
}

func userViews(list []user.User) []UserView {
	views := make([]UserView, 0, len(list))
	for _, u := range list {
		views = append(views, userView(u))
	}
	return views
}

func (p userPayload) toInput() users.CreateInput {
	in := users.CreateInput{
		Email:         p.Email,
		Firstname:     p.Firstname,
		Lastname:      p.Lastname,
		Middlename:    p.Middlename,
		Role:          p.Role,
		IsAdapted:     p.IsAdapted,
		Coins:         p.Coins,
		LegalEntityID: p.LegalEntityID,
		PositionID:    p.PositionID,
	}
	if p.HiredAt != nil {
		in.HiredAt = *p.HiredAt
	}
	return in
}

type userPatchPayload struct {
	Firstname     *string    `json:"firstname"`
	Lastname      *string    `json:"lastname"`
	Middlename    *string    `json:"middlename"`
	Role          *string    `json:"role"`
	HiredAt       *time.Time `json:"hired_at"`
	IsActive      *bool      `json:"is_active"`
	IsAdapted     *bool      `json:"is_adapted"`
	Coins         *int       `json:"coins"`
	LegalEntityID *string    `json:"legal_entity_id"`
	PositionID    *string    `json:"position_id"`
}

func (p userPatchPayload) toInput() users.UpdateInput {
	return users.UpdateInput{
		Firstname:     p.Firstname,
		Lastname:      p.Lastname,
		Middlename:    p.Middlename,
		Role:          p.Role,
		HiredAt:       p.HiredAt,
		IsActive:      p.IsActive,
		IsAdapted:     p.IsAdapted,
		Coins:         p.Coins,
		LegalEntityID: p.LegalEntityID,
		PositionID:    p.PositionID,
	}
}

// BenefitView is the wire shape of a benefit.
type BenefitView struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	IsActive           bool        `json:"is_active"`
	CoinsCost          int         `json:"coins_cost"`
	MinLevelCost       int         `json:"min_level_cost"`
	AdaptationRequired bool        `json:"adaptation_required"`
	Amount             *int        `json:"amount"`
	RealCurrencyCost   float64     `json:"real_currency_cost,omitempty"`
	UsageLimit         *int        `json:"usage_limit,omitempty"`
	UsagePeriodDays    *int        `json:"usage_period_days,omitempty"`
	CategoryID         string      `json:"category_id,omitempty"`
	PrimaryImageURL    string      `json:"primary_image_url,omitempty"`
	Images             []ImageView `json:"images"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// ImageView is the wire shape of a benefit gallery image.
type ImageView struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	IsPrimary   bool   `json:"is_primary"`
	Description string `json:"description,omitempty"`
}

func imageViews(imgs []benefit.Image) []ImageView {
	views := make([]ImageView, 0, len(imgs))
	for _, img := range imgs {
		views = append(views, ImageView{
			ID:          img.ID,
			URL:         img.URL,
			IsPrimary:   img.IsPrimary,
			Description: img.Description,
		})
	}
	return views
}

func benefitView(b benefit.Benefit) BenefitView {
	images := imageViews(b.Images)
	return BenefitView{
		ID:                 b.ID,
		Name:               b.Name,
		Description:        b.Description,
		IsActive:           b.IsActive,
		CoinsCost:          b.CoinsCost,
		MinLevelCost:       b.MinLevelCost,
		AdaptationRequired: b.AdaptationRequired,
		Amount:             b.Amount,
		RealCurrencyCost:   b.RealCurrencyCost,
		UsageLimit:         b.UsageLimit,
		UsagePeriodDays:    b.UsagePeriodDays,
		CategoryID:         b.CategoryID,
		PrimaryImageURL:    b.PrimaryImageURL(),
		Images:             images,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func benefitViews(list []benefit.Benefit) []BenefitView {
	views := make([]BenefitView, 0, len(list))
	for _, b := range list {
		views = append(views, benefitView(b))
	}
	return views
}

type benefitPayload struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	IsActive           *bool    `json:"is_active"`
	CoinsCost          int      `json:"coins_cost"`
	MinLevelCost       int      `json:"min_level_cost"`
	AdaptationRequired bool     `json:"adaptation_required"`
	Amount             *int     `json:"amount"`
	RealCurrencyCost   float64  `json:"real_currency_cost"`
	UsageLimit         *int     `json:"usage_limit"`
	UsagePeriodDays    *int     `json:"usage_period_days"`
	CategoryID         string   `json:"category_id"`
	ImageURLs          []string `json:"image_urls"`
}

func (p benefitPayload) toInput() benefits.Input {
	return benefits.Input{
		Name:               p.Name,
		Description:        p.Description,
		IsActive:           p.IsActive,
		CoinsCost:          p.CoinsCost,
		MinLevelCost:       p.MinLevelCost,
		AdaptationRequired: p.AdaptationRequired,
		Amount:             p.Amount,
		RealCurrencyCost:   p.RealCurrencyCost,
		UsageLimit:         p.UsageLimit,
		UsagePeriodDays:    p.UsagePeriodDays,
		CategoryID:         p.CategoryID,
		ImageURLs:          p.ImageURLs,
	}
}

type benefitPatchPayload struct {
	Name               *string          `json:"name"`
	Description        *string          `json:"description"`
	IsActive           *bool            `json:"is_active"`
	CoinsCost          *int             `json:"coins_cost"`
	MinLevelCost       *int             `json:"min_level_cost"`
	AdaptationRequired *bool            `json:"adaptation_required"`
	Amount             *json.RawMessage `json:"amount"`
	RealCurrencyCost   *float64         `json:"real_currency_cost"`
	UsageLimit         *int             `json:"usage_limit"`
	UsagePeriodDays    *int             `json:"usage_period_days"`
	CategoryID         *string          `json:"category_id"`
}

// toInput translates the patch body. A JSON null for amount switches the
// benefit to unlimited stock, which is distinct from omitting the field.
func (p benefitPatchPayload) toInput() (benefits.UpdateInput, error) {
	in := benefits.UpdateInput{
		Name:               p.Name,
		Description:        p.Description,
		IsActive:           p.IsActive,
		CoinsCost:          p.CoinsCost,
		MinLevelCost:       p.MinLevelCost,
		AdaptationRequired: p.AdaptationRequired,
		RealCurrencyCost:   p.RealCurrencyCost,
		UsageLimit:         p.UsageLimit,
		UsagePeriodDays:    p.UsagePeriodDays,
		CategoryID:         p.CategoryID,
	}
	if p.Amount != nil {
		in.AmountSet = true
		if string(*p.Amount) != "null" {
			var n int
			if err := json.Unmarshal(*p.Amount, &n); err != nil {
				return benefits.UpdateInput{}, fmt.Errorf("amount must be an integer or null: %w", err)
			}
			in.Amount = &n
		}
	}
	return in, nil
}

// RequestView is the wire shape of a benefit request.
type RequestView struct {
	ID          string    `json:"id"`
	BenefitID   string    `json:"benefit_id"`
	UserID      string    `json:"user_id"`
	PerformerID string    `json:"performer_id,omitempty"`
	Status      string    `json:"status"`
	Content     string    `json:"content,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func requestView(req request.Request) RequestView {
	return RequestView{
		ID:          req.ID,
		BenefitID:   req.BenefitID,
		UserID:      req.UserID,
		PerformerID: req.PerformerID,
		Status:      string(req.Status),
		Content:     req.Content,
		Comment:     req.Comment,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func requestViews(list []request.Request) []RequestView {
	views := make([]RequestView, 0, len(list))
	for _, req := range list {
		views = append(views, requestView(req))
	}
	return views
}

// ReviewView is the wire shape of a benefit review.
type ReviewView struct {
	ID        string    `json:"id"`
	BenefitID string    `json:"benefit_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func reviewView(rv review.Review) ReviewView {
	return ReviewView{
		ID:        rv.ID,
		BenefitID: rv.BenefitID,
		UserID:    rv.UserID,
		Text:      rv.Text,
		Rating:    rv.Rating,
		CreatedAt: rv.CreatedAt,
		UpdatedAt: rv.UpdatedAt,
	}
}

func reviewViews(list []review.Review) []ReviewView {
	views := make([]ReviewView, 0, len(list))
	for _, rv := range list {
		views = append(views, reviewView(rv))
	}
	return views
}

// NamedView is the wire shape of a reference entity.
type NamedView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func categoryView(c category.Category) NamedView {
	return NamedView{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func positionView(p position.Position) NamedView {
	return NamedView{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

// LegalEntityView is a legal entity with its headcount summary.
type LegalEntityView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Employees int       `json:"employee_count"`
	Staff     int       `json:"staff_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func legalEntityView(e catalog.EntityWithCounts) LegalEntityView {
	return LegalEntityView{
		ID:        e.ID,
		Name:      e.Name,
		Employees: e.Counts.Employees,
		Staff:     e.Counts.Staff,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func plainEntityView(e legalentity.LegalEntity) LegalEntityView {
	return LegalEntityView{
		ID:        e.ID,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
