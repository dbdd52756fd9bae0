package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expensepro/internal/log"
)

// History modes for self-initiated URL writes.
const (
	HistoryPush    = "push"
	HistoryReplace = "replace"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP cache invalidation; an empty URL disables it
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel string

	// List views
	SearchDebounce        time.Duration
	FilterPersistDebounce time.Duration
	ListCacheSize         int
	ListCacheTTL          time.Duration
	HistoryMode           string

	// Rate limiting of mutating requests
	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expensepro.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensepro.lists"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		SearchDebounce:        getEnvDuration("SEARCH_DEBOUNCE", 500*time.Millisecond),
		FilterPersistDebounce: getEnvDuration("FILTER_PERSIST_DEBOUNCE", time.Second),
		ListCacheSize:         getEnvInt("LIST_CACHE_SIZE", 200),
		ListCacheTTL:          getEnvDuration("LIST_CACHE_TTL", 2*time.Minute),
		HistoryMode:           getEnv("HISTORY_MODE", HistoryPush),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}

	return cfg
}

// ReplaceHistory reports whether list views replace the history entry
// instead of pushing one per state change.
func (c *Config) ReplaceHistory() bool {
	return c.HistoryMode == HistoryReplace
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if c.SQLiteDBPath != ":memory:" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.SearchDebounce < 0 || c.SearchDebounce > 5*time.Second {
		errors = append(errors, fmt.Sprintf("invalid search debounce %v: must be between 0 and 5s", c.SearchDebounce))
	}
	if c.FilterPersistDebounce < 0 || c.FilterPersistDebounce > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid filter persist debounce %v: must be between 0 and 1m", c.FilterPersistDebounce))
	}

	if c.ListCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid list cache size %d: must be at least 1", c.ListCacheSize))
	}
	if c.ListCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid list cache TTL %v: must be at least 1 second", c.ListCacheTTL))
	}

	if c.HistoryMode != HistoryPush && c.HistoryMode != HistoryReplace {
		errors = append(errors, fmt.Sprintf("invalid history mode '%s': must be '%s' or '%s'", c.HistoryMode, HistoryPush, HistoryReplace))
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
