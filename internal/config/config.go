// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	StoreDriver string
	DB          DBConfig

	JWTSecret string

	NATSURL           string
	NATSSubjectPrefix string

	EventWebhookURL    string
	EventWebhookSecret string

	// EvaluationWebhookSecret guards the inbound evaluation webhook.
	EvaluationWebhookSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RedisAddr         string

	AssignmentSweepInterval time.Duration
	AssignmentTTL           time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load reads .env if present and then the process environment. Variables
// already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "examprep"),
			Password: getEnv("DB_PASSWORD", "examprep"),
			Name:     getEnv("DB_NAME", "examprep"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWTSecret:               getEnv("JWT_SECRET", ""),
		NATSURL:                 getEnv("NATS_URL", ""),
		NATSSubjectPrefix:       getEnv("NATS_SUBJECT_PREFIX", "examprep"),
		EventWebhookURL:         getEnv("EVENT_WEBHOOK_URL", ""),
		EventWebhookSecret:      getEnv("EVENT_WEBHOOK_SECRET", ""),
		EvaluationWebhookSecret: getEnv("EVALUATION_WEBHOOK_SECRET", ""),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = getInt("RATE_LIMIT_REQUESTS", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.AssignmentSweepInterval, err = getDuration("ASSIGNMENT_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.AssignmentTTL, err = getDuration("ASSIGNMENT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.StoreDriver != DriverPostgres && c.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RateLimitRequests < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must not be negative"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.AssignmentSweepInterval <= 0 {
		errs = append(errs, errors.New("ASSIGNMENT_SWEEP_INTERVAL must be positive"))
	}
	if c.AssignmentTTL <= 0 {
		errs = append(errs, errors.New("ASSIGNMENT_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
