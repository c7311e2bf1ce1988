package review

import "time"

// Review is employee feedback on a benefit.
type Review struct {
	ID        string
	BenefitID string
	UserID    string
	Text      string
	Rating    int
	CreatedAt time.Time
	UpdatedAt time.Time
}
