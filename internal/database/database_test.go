package database

import (
	"path/filepath"
	"testing"

	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/models"
)

func TestDialectorSelectsDriver(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/fitmatch":   "postgres",
		"postgresql://u:p@localhost:5432/fitmatch": "postgres",
		"mysql://u:p@tcp(localhost:3306)/fitmatch": "mysql",
		"sqlite://app.db":                          "sqlite",
	}
	for dsn, want := range tests {
		d, err := Dialector(dsn)
		if err != nil {
			t.Fatalf("Dialector(%q): %v", dsn, err)
		}
		if d.Name() != want {
			t.Fatalf("Dialector(%q): expected %s, got %s", dsn, want, d.Name())
		}
	}

	if _, err := Dialector("redis://localhost"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestSqliteDSNAppendsPragmas(t *testing.T) {
	if got := sqliteDSN("app.db"); got != "app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := sqliteDSN("app.db?mode=rwc"); got != "app.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" {
		t.Fatalf("unexpected dsn %q", got)
	}
}

func TestConnectMigratesSchema(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "fitmatch.db")
	db, err := Connect(dsn, logger.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	for _, model := range []any{&models.Match{}, &models.Enrollment{}} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
	if !db.Migrator().HasIndex(&models.Enrollment{}, "idx_enrollments_active") {
		t.Fatal("expected active enrollment unique index")
	}
}
