package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment records one user's participation in one match.
// ActiveUserID mirrors UserID while the enrollment is ACTIVE and is NULL
// otherwise; the unique (match_id, active_user_id) index therefore allows
// any number of cancelled rows but a single active one per user.
type Enrollment struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	MatchID      uint             `gorm:"not null;uniqueIndex:idx_enrollments_active,priority:1" json:"match_id"`
	UserID       uint             `gorm:"not null;index" json:"user_id"`
	Status       EnrollmentStatus `gorm:"size:20;not null" json:"status"`
	ActiveUserID *uint            `gorm:"uniqueIndex:idx_enrollments_active,priority:2" json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NewActiveEnrollment builds the row written by a successful join.
func NewActiveEnrollment(matchID, userID uint) *Enrollment {
	active := userID
	return &Enrollment{
		MatchID:      matchID,
		UserID:       userID,
		Status:       EnrollmentActive,
		ActiveUserID: &active,
	}
}
