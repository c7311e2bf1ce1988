package request

import "time"

// Status is the lifecycle state of a benefit request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether a request in this status can no longer change.
// Declined requests are final; approved requests may still be completed.
func (s Status) Terminal() bool {
	return s == StatusDeclined || s == StatusCompleted
}

// CanTransition reports whether a request may move from s to next.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusDeclined
	case StatusApproved:
		return next == StatusCompleted || next == StatusDeclined
	}
	return false
}

// Request is an employee's claim on a benefit. PerformerID is the HR user
// handling it; empty until first touched.
type Request struct {
	ID          string
	BenefitID   string
	UserID      string
	PerformerID string
	Status      Status
	Content     string
	Comment     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
