package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fitmatch/backend/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// RosterStore persists enrollment rows.
type RosterStore struct {
	db *gorm.DB
}

func NewRosterStore(db *gorm.DB) *RosterStore {
	return &RosterStore{db: db}
}

// Create inserts a new enrollment. A second ACTIVE row for the same
// (match, user) violates idx_enrollments_active and yields ErrDuplicate.
func (s *RosterStore) Create(ctx context.Context, e *models.Enrollment) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindActive returns the ACTIVE enrollment of userID in matchID, or ErrNotFound.
func (s *RosterStore) FindActive(ctx context.Context, matchID, userID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := s.db.WithContext(ctx).
		Where("match_id = ? AND user_id = ? AND status = ?", matchID, userID, models.EnrollmentActive).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &e, nil
}

// Cancel marks an ACTIVE enrollment as CANCELLED and frees its unique slot.
func (s *RosterStore) Cancel(ctx context.Context, e *models.Enrollment) error {
	res := s.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ? AND status = ?", e.ID, models.EnrollmentActive).
		Updates(map[string]any{
			"status":         models.EnrollmentCancelled,
			"active_user_id": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("cancel enrollment %d: %w", e.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cancel enrollment %d: %w", e.ID, ErrConflict)
	}
	e.Status = models.EnrollmentCancelled
	e.ActiveUserID = nil
	return nil
}

// CountActive counts the ACTIVE enrollments of a match.
func (s *RosterStore) CountActive(ctx context.Context, matchID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("match_id = ? AND status = ?", matchID, models.EnrollmentActive).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return n, nil
}

// ListByMatch returns the full enrollment history of a match in id order.
func (s *RosterStore) ListByMatch(ctx context.Context, matchID uint) ([]models.Enrollment, error) {
	var rows []models.Enrollment
	err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return rows, nil
}

// DeleteByMatch removes every enrollment of a match.
func (s *RosterStore) DeleteByMatch(ctx context.Context, matchID uint) error {
	if err := s.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&models.Enrollment{}).Error; err != nil {
		return fmt.Errorf("delete enrollments of match %d: %w", matchID, err)
	}
	return nil
}

// isUniqueViolation recognises unique index violations whether or not the
// driver supports gorm's error translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
