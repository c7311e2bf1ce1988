package position

import "time"

// Position is a job title that benefits can be restricted to.
type Position struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
