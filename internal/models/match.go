package models

import "time"

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	// MatchOpen is the initial state; only open matches accept joins.
	MatchOpen MatchStatus = "OPEN"
	// MatchClosed means recruiting has ended.
	MatchClosed MatchStatus = "CLOSED"
	// MatchCancelled means the owner called the match off.
	MatchCancelled MatchStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchOpen, MatchClosed, MatchCancelled:
		return true
	}
	return false
}

// Match is a capacity-bounded, time-boxed activity.
// CurrentPeople always equals the number of ACTIVE enrollments; Version is
// bumped on every write and guards concurrent read-modify-write cycles.
type Match struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Title         string      `gorm:"size:255;not null" json:"title"`
	Description   *string     `json:"description"`
	Sport         *string     `gorm:"size:100;index" json:"sport"`
	Location      string      `gorm:"size:255;not null" json:"location"`
	Date          Date        `gorm:"not null;index:idx_matches_schedule,priority:1" json:"date"`
	StartTime     Clock       `gorm:"not null;index:idx_matches_schedule,priority:2" json:"start_time"`
	EndTime       *Clock      `json:"end_time"`
	MaxPeople     int         `gorm:"not null" json:"max_people"`
	OwnerID       *uint       `gorm:"index" json:"owner_id"`
	Status        MatchStatus `gorm:"size:20;not null;index" json:"status"`
	CurrentPeople int         `gorm:"not null" json:"current_people"`
	Version       uint        `gorm:"not null" json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	Enrollments []Enrollment `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"-"`
}

// OwnedBy reports whether userID may manage the match. Matches without an
// owner predate identities and accept any caller.
func (m *Match) OwnedBy(userID uint) bool {
	return m.OwnerID == nil || *m.OwnerID == userID
}

// IsFull reports whether the roster reached capacity.
func (m *Match) IsFull() bool {
	return m.CurrentPeople >= m.MaxPeople
}
