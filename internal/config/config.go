// Package config loads process configuration from the environment and
// sets up the process-wide logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for limits that shape conversation behavior.
const (
	// DefaultMaxMessages is the per-conversation message cap. Once the
	// cap is exceeded the oldest messages are evicted first.
	DefaultMaxMessages = 30

	// DefaultHistoryLimit is how many stored messages are replayed as
	// context on each turn.
	DefaultHistoryLimit = 10
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	HTTPAddr string

	// OpenAI completion service
	OpenAIAPIKey string
	OpenAIModel  string

	// Agent behavior
	DefaultTimezone string
	MaxMessages     int
	HistoryLimit    int
	LLMTimeout      time.Duration
	BackendTimeout  time.Duration

	// Metrics server
	MetricsEnabled bool
	MetricsAddr    string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		HTTPAddr: getEnv("CALCHAT_HTTP_ADDR", ":8080"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		DefaultTimezone: getEnv("CALCHAT_DEFAULT_TIMEZONE", "Asia/Jerusalem"),
		MaxMessages:     getEnvInt("CALCHAT_MAX_MESSAGES", DefaultMaxMessages),
		HistoryLimit:    getEnvInt("CALCHAT_HISTORY_LIMIT", DefaultHistoryLimit),
		LLMTimeout:      getEnvDuration("CALCHAT_LLM_TIMEOUT", 60*time.Second),
		BackendTimeout:  getEnvDuration("CALCHAT_BACKEND_TIMEOUT", 15*time.Second),

		MetricsEnabled: getEnv("METRICS_ENABLED", "true") == "true",
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),

		LogFile:  getEnv("CALCHAT_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("CALCHAT_LOG_LEVEL", "INFO")),
	}
}

// Validate checks that required settings are present and sane.
func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("max messages must be positive, got %d", c.MaxMessages)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
