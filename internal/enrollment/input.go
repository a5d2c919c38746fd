package enrollment

import (
	"strings"

	"fitmatch/backend/internal/apperrors"
	"fitmatch/backend/internal/models"
)

// CreateInput carries the attributes of a new match. Date and StartTime are
// pointers so that a missing value can be told apart from midnight.
type CreateInput struct {
	Title       string
	Description *string
	Sport       *string
	Location    string
	Date        *models.Date
	StartTime   *models.Clock
	EndTime     *models.Clock
	MaxPeople   int
}

func (in CreateInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Location) == "" {
		missing = append(missing, "location")
	}
	if in.Date == nil || in.Date.IsZero() {
		missing = append(missing, "date")
	}
	if in.StartTime == nil {
		missing = append(missing, "start_time")
	}
	if len(missing) > 0 {
		return apperrors.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	if in.MaxPeople <= 0 {
		return apperrors.Validation("max_people must be greater than 0")
	}
	return nil
}

// Patch is a partial update: nil fields are left untouched. An explicit
// JSON null decodes to nil as well, so it cannot clear a field.
type Patch struct {
	Title       *string
	Description *string
	Sport       *string
	Location    *string
	Date        *models.Date
	StartTime   *models.Clock
	EndTime     *models.Clock
	MaxPeople   *int
	Status      *models.MatchStatus
}

func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Validate checks the patch against the current state of m.
func (p Patch) Validate(m *models.Match) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperrors.Validation("title must not be empty")
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) == "" {
		return apperrors.Validation("location must not be empty")
	}
	if p.Date != nil && p.Date.IsZero() {
		return apperrors.Validation("date must not be empty")
	}
	if p.MaxPeople != nil {
		if *p.MaxPeople <= 0 {
			return apperrors.Validation("max_people must be greater than 0")
		}
		if *p.MaxPeople < m.CurrentPeople {
			return apperrors.Validation("max_people must not be below current_people")
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperrors.Validation("status must be one of OPEN, CLOSED, CANCELLED")
	}
	return nil
}

// Apply copies the present fields onto m.
func (p Patch) Apply(m *models.Match) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = p.Description
	}
	if p.Sport != nil {
		m.Sport = p.Sport
	}
	if p.Location != nil {
		m.Location = *p.Location
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.StartTime != nil {
		m.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		m.EndTime = p.EndTime
	}
	if p.MaxPeople != nil {
		m.MaxPeople = *p.MaxPeople
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
}
