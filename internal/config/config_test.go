package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func TestDecodeDefaults(t *testing.T) {
	cfg, err := decode(newViper(t))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.DatabaseURL != "sqlite://app.db" {
		t.Fatalf("expected default database url, got %q", cfg.DatabaseURL)
	}
	if cfg.DefaultUserID != 1 {
		t.Fatalf("expected default user 1, got %d", cfg.DefaultUserID)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("expected cache ttl 30s, got %v", cfg.CacheTTL)
	}
	if cfg.TxMaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.TxMaxAttempts)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development environment by default")
	}
}

func TestDecodeOverrides(t *testing.T) {
	v := newViper(t)
	v.Set("APP_ENV", "Production")
	v.Set("DEFAULT_USER_ID", "0")
	v.Set("TX_MAX_ATTEMPTS", "-3")
	v.Set("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production environment")
	}
	if cfg.DefaultUserID != 0 {
		t.Fatalf("expected default user 0, got %d", cfg.DefaultUserID)
	}
	if cfg.TxMaxAttempts != 1 {
		t.Fatalf("expected attempts clamped to 1, got %d", cfg.TxMaxAttempts)
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", origins)
	}
}
