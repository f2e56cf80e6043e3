// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-secret-key"

// Config holds every setting of the API server and the scheduler.
type Config struct {
	Env  string
	Port string

	// DatabaseURL selects the PostgreSQL store; empty selects the in-memory store.
	DatabaseURL string

	// ValkeyAddr enables the distributed scheduler run lock.
	ValkeyAddr     string
	ValkeyPassword string

	JWTSecret string
	JWTIssuer string

	CORSOrigin string
	LogLevel   string
	LogFormat  string

	HandshakeTimeout time.Duration
	SendBuffer       int

	SchedulerEnabled     bool
	SchedulerInterval    time.Duration
	SchedulerRunTimeout  time.Duration
	SchedulerUserTimeout time.Duration
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Env:                  "production",
		Port:                 "8080",
		JWTIssuer:            "coachlink",
		CORSOrigin:           "http://127.0.0.1:5173",
		LogLevel:             "info",
		LogFormat:            "text",
		HandshakeTimeout:     10 * time.Second,
		SendBuffer:           256,
		SchedulerEnabled:     true,
		SchedulerInterval:    5 * time.Minute,
		SchedulerRunTimeout:  2 * time.Minute,
		SchedulerUserTimeout: 5 * time.Second,
	}
}

// IsDevelopment reports whether APP_ENV is "development".
func (c Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}

	str("APP_ENV", &cfg.Env)
	str("PORT", &cfg.Port)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("VALKEY_ADDR", &cfg.ValkeyAddr)
	str("VALKEY_PASSWORD", &cfg.ValkeyPassword)
	str("JWT_SECRET", &cfg.JWTSecret)
	str("JWT_ISSUER", &cfg.JWTIssuer)
	str("CORS_ORIGIN", &cfg.CORSOrigin)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	dur("WS_HANDSHAKE_TIMEOUT", &cfg.HandshakeTimeout)
	dur("SCHEDULER_INTERVAL", &cfg.SchedulerInterval)
	dur("SCHEDULER_RUN_TIMEOUT", &cfg.SchedulerRunTimeout)
	dur("SCHEDULER_USER_TIMEOUT", &cfg.SchedulerUserTimeout)

	if v := getenv("WS_SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("WS_SEND_BUFFER: invalid size %q", v))
		} else {
			cfg.SendBuffer = n
		}
	}
	if v := getenv("SCHEDULER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SCHEDULER_ENABLED: invalid bool %q", v))
		} else {
			cfg.SchedulerEnabled = b
		}
	}

	if cfg.JWTSecret == "" {
		if cfg.IsDevelopment() {
			cfg.JWTSecret = devJWTSecret
		} else {
			errs = append(errs, errors.New("JWT_SECRET is required outside development"))
		}
	}
	if cfg.SchedulerUserTimeout >= cfg.SchedulerRunTimeout {
		errs = append(errs, fmt.Errorf("SCHEDULER_USER_TIMEOUT (%s) must be less than SCHEDULER_RUN_TIMEOUT (%s)",
			cfg.SchedulerUserTimeout, cfg.SchedulerRunTimeout))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: expected text or json, got %q", cfg.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
