package category

import "time"

// Category groups benefits for browsing and filtering.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
