package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitmatch/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchStore persists match rows. A MatchStore obtained from a Tx runs
// every statement inside that transaction.
type MatchStore struct {
	db *gorm.DB
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db}
}

// Create inserts m with version 1.
func (s *MatchStore) Create(ctx context.Context, m *models.Match) error {
	m.Version = 1
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// Get loads a match by id. It returns ErrNotFound when absent.
func (s *MatchStore) Get(ctx context.Context, id uint) (*models.Match, error) {
	return s.get(s.db.WithContext(ctx), id)
}

// GetForUpdate loads a match and locks its row until the surrounding
// transaction ends. Dialects without row locks (sqlite) serialise writers
// at the database level instead.
func (s *MatchStore) GetForUpdate(ctx context.Context, id uint) (*models.Match, error) {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		db = db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return s.get(db, id)
}

func (s *MatchStore) get(db *gorm.DB, id uint) (*models.Match, error) {
	var m models.Match
	if err := db.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get match %d: %w", id, err)
	}
	return &m, nil
}

// Save writes every mutable column of m, provided nobody else wrote the row
// since m was read. On success m.Version and m.UpdatedAt reflect the new row;
// a stale version yields ErrConflict.
func (s *MatchStore) Save(ctx context.Context, m *models.Match) error {
	now := time.Now().UTC()
	next := m.Version + 1

	res := s.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ? AND version = ?", m.ID, m.Version).
		Updates(map[string]any{
			"title":          m.Title,
			"description":    m.Description,
			"sport":          m.Sport,
			"location":       m.Location,
			"date":           m.Date,
			"start_time":     m.StartTime,
			"end_time":       m.EndTime,
			"max_people":     m.MaxPeople,
			"owner_id":       m.OwnerID,
			"status":         m.Status,
			"current_people": m.CurrentPeople,
			"version":        next,
			"updated_at":     now,
		})
	if res.Error != nil {
		return fmt.Errorf("save match %d: %w", m.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save match %d: %w", m.ID, ErrConflict)
	}

	m.Version = next
	m.UpdatedAt = now
	return nil
}

// Delete removes the match row if it is still at the version the caller read.
func (s *MatchStore) Delete(ctx context.Context, m *models.Match) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND version = ?", m.ID, m.Version).
		Delete(&models.Match{})
	if res.Error != nil {
		return fmt.Errorf("delete match %d: %w", m.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete match %d: %w", m.ID, ErrConflict)
	}
	return nil
}
