package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	TxMaxAttempts int    `mapstructure:"TX_MAX_ATTEMPTS"`

	JWTSecret     string `mapstructure:"JWT_SECRET"`
	DefaultUserID uint   `mapstructure:"DEFAULT_USER_ID"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	EventsQueue string `mapstructure:"EVENTS_QUEUE"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var AppConfig *Config

// defaults are registered with viper so that keys only present in the
// environment are still picked up by Unmarshal.
var defaults = map[string]any{
	"APP_ENV":              "development",
	"HTTP_ADDR":            ":8080",
	"DATABASE_URL":         "sqlite://app.db",
	"TX_MAX_ATTEMPTS":      5,
	"JWT_SECRET":           "",
	"DEFAULT_USER_ID":      1,
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "console",
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"CACHE_TTL":            "30s",
	"RABBITMQ_URL":         "",
	"EVENTS_QUEUE":         "match.events",
	"CORS_ALLOWED_ORIGINS": "*",
}

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() *Config {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	cfg, err := decode(v)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	AppConfig = cfg
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.TxMaxAttempts <= 0 {
		cfg.TxMaxAttempts = 1
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into its entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
