package legalentity

import "time"

// LegalEntity is an employer organisation users belong to.
type LegalEntity struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counts summarises headcount for a legal entity: employees versus HR/admin
// staff.
type Counts struct {
	Employees int
	Staff     int
}
