package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/rulekit/internal/models"
)

// Config holds logging configuration
type Config struct {
	Level      zerolog.Level
	Format     string // "json" or "console"
	TimeFormat string
	Output     io.Writer
}

// DefaultConfig returns the console logger used by the CLI
func DefaultConfig() Config {
	return Config{
		Level:      zerolog.InfoLevel,
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
	}
}

// New creates a zerolog logger with the given configuration
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: cfg.TimeFormat,
		}
	}

	return zerolog.New(out).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// FromConfig builds a logger from the [logging] config section.
// RULEKIT_LOG_LEVEL and RULEKIT_LOG_FORMAT override the file values.
func FromConfig(lc models.LoggingConfig) zerolog.Logger {
	cfg := DefaultConfig()

	level := lc.Level
	if env := os.Getenv("RULEKIT_LOG_LEVEL"); env != "" {
		level = env
	}
	cfg.Level = ParseLevel(level)

	format := lc.Format
	if env := os.Getenv("RULEKIT_LOG_FORMAT"); env != "" {
		format = env
	}
	switch format {
	case "json", "console":
		cfg.Format = format
	}

	return New(cfg)
}

// ParseLevel maps a level name to zerolog, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
