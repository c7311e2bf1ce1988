package benefit

import "time"

// Benefit is a perk employees can spend coins on.
//
// Amount is the remaining stock; nil means unlimited. CoinsCost and
// MinLevelCost gate who can request the benefit, AdaptationRequired restricts
// it to users who have passed their adaptation period.
type Benefit struct {
	ID                 string
	Name               string
	Description        string
	IsActive           bool
	CoinsCost          int
	MinLevelCost       int
	AdaptationRequired bool
	Amount             *int
	RealCurrencyCost   float64
	UsageLimit         *int
	UsagePeriodDays    *int
	PeriodStartDate    time.Time
	AvailableFrom      time.Time
	AvailableBy        time.Time
	CategoryID         string
	Images             []Image
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Image is a gallery entry for a benefit. At most one image is primary.
type Image struct {
	ID          string
	BenefitID   string
	URL         string
	IsPrimary   bool
	Description string
	CreatedAt   time.Time
}

// PrimaryImageURL returns the URL of the primary image, or the first image
// when none is marked primary.
func (b Benefit) PrimaryImageURL() string {
	for _, img := range b.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(b.Images) > 0 {
		return b.Images[0].URL
	}
	return ""
}

// InStock reports whether the benefit can still be requested.
func (b Benefit) InStock() bool {
	return b.Amount == nil || *b.Amount > 0
}
