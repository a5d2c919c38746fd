// Package testkit holds helpers shared by package tests.
package testkit

import (
	"path/filepath"
	"testing"
	"time"

	"fitmatch/backend/internal/database"
	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/models"

	"gorm.io/gorm"
)

// OpenDB returns a migrated sqlite database living in t.TempDir().
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "fitmatch.db")
	db, err := database.Connect(dsn, logger.Nop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedMatch inserts a match directly, bypassing business rules.
func SeedMatch(t *testing.T, db *gorm.DB, m models.Match) models.Match {
	t.Helper()
	if m.Title == "" {
		m.Title = "pickup game"
	}
	if m.Location == "" {
		m.Location = "서울 강남구 역삼동 체육관"
	}
	if m.Date.IsZero() {
		m.Date = models.NewDate(2025, time.December, 1)
	}
	if m.MaxPeople == 0 {
		m.MaxPeople = 10
	}
	if m.Status == "" {
		m.Status = models.MatchOpen
	}
	if m.Version == 0 {
		m.Version = 1
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return m
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
