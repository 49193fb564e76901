// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the broker.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string

	// HistoryLimit caps each room's history; zero keeps it unbounded.
	HistoryLimit   int
	SendQueueSize  int
	MaxMessageSize int64
	IdleTimeout    time.Duration

	// RateLimit inbound events per RateWindow per connection; zero disables.
	RateLimit  int
	RateWindow time.Duration

	// RedisAddr switches the rate limiter to Redis when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ShutdownTimeout time.Duration
	// LogLevel is "info" or "error".
	LogLevel string
}

// Supported log levels.
const (
	LogLevelInfo  = "info"
	LogLevelError = "error"
)

// Default returns the settings used when no variable is set.
func Default() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            4000,
		CORSOrigin:      "http://localhost:3000",
		HistoryLimit:    0,
		SendQueueSize:   256,
		MaxMessageSize:  64 * 1024,
		IdleTimeout:     60 * time.Second,
		RateLimit:       20,
		RateWindow:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        LogLevelInfo,
	}
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads an optional .env file followed by the process environment.
// Variables already set in the environment take precedence over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables over the defaults.
func FromEnv() (Config, error) {
	cfg := Default()
	p := &parser{}

	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.Port = p.intValue("PORT", cfg.Port)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.HistoryLimit = p.intValue("HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.SendQueueSize = p.intValue("SEND_QUEUE_SIZE", cfg.SendQueueSize)
	cfg.MaxMessageSize = int64(p.intValue("MAX_MESSAGE_SIZE", int(cfg.MaxMessageSize)))
	cfg.IdleTimeout = p.durationValue("IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.RateLimit = p.intValue("RATE_LIMIT", cfg.RateLimit)
	cfg.RateWindow = p.durationValue("RATE_WINDOW", cfg.RateWindow)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = p.intValue("REDIS_DB", cfg.RedisDB)
	cfg.ShutdownTimeout = p.durationValue("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = p.logLevelValue("LOG_LEVEL", cfg.LogLevel)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must not be negative, got %d", c.HistoryLimit))
	}
	if c.SendQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must not be negative, got %d", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_WINDOW must be positive, got %s", c.RateWindow))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) intValue(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid int value for %s: %q", key, value))
		return defaultValue
	}
	return parsed
}

func (p *parser) durationValue(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid duration value for %s: %q", key, value))
		return defaultValue
	}
	return parsed
}

func (p *parser) logLevelValue(key string, defaultValue string) string {
	value := strings.ToLower(getEnv(key, ""))
	switch value {
	case "":
		return defaultValue
	case LogLevelInfo, LogLevelError:
		return value
	default:
		p.errs = append(p.errs, fmt.Errorf("invalid log level for %s: %q", key, value))
		return defaultValue
	}
}
