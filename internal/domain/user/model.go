package user

import (
	"strings"
	"time"
)

// Role determines what a user may see and manage.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

// ParseRole normalises a textual role. Unknown values map to the empty Role.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "employee", "сотрудник":
		return RoleEmployee
	case "hr":
		return RoleHR
	case "admin", "администратор":
		return RoleAdmin
	}
	return Role("")
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// User represents an employee account in the benefits cafeteria.
type User struct {
	ID            string
	Email         string
	Firstname     string
	Lastname      string
	Middlename    string
	Role          Role
	HiredAt       time.Time
	IsActive      bool
	IsAdapted     bool
	IsVerified    bool
	Coins         int
	PasswordHash  string
	LegalEntityID string
	PositionID    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Experience returns full days since the hire date.
func (u User) Experience(now time.Time) int {
	if u.HiredAt.IsZero() || now.Before(u.HiredAt) {
		return 0
	}
	return int(now.Sub(u.HiredAt).Hours() / 24)
}

// Level is the benefit eligibility level: one level per 30 days of tenure.
func (u User) Level(now time.Time) int {
	return u.Experience(now) / 30
}

// FullName joins lastname, firstname and middlename, skipping empty parts.
func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.Lastname, u.Firstname, u.Middlename} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
