// Package logger builds the process root logger. Components receive an
// hclog.Logger and call Named on it; the package-level helpers exist for
// startup code that runs before the root logger is wired.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Config controls the root logger.
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
	Color  bool
}

var (
	mu      sync.RWMutex
	current hclog.Logger = hclog.New(&hclog.LoggerOptions{Name: "manimforge", Level: hclog.Info})
)

// New creates a root logger named "manimforge".
func New(cfg Config) hclog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := hclog.LevelFromString(strings.ToLower(cfg.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	color := hclog.ColorOff
	if cfg.Color && cfg.Format != "json" {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:            "manimforge",
		Level:           level,
		Output:          out,
		JSONFormat:      cfg.Format == "json",
		Color:           color,
		IncludeLocation: level <= hclog.Debug,
	})
}

// OpenOutput resolves a configured output name: "stdout", "stderr" (or
// empty), or a file path opened for appending. The returned closer is a
// no-op for the standard streams.
func OpenOutput(name string) (io.Writer, func() error, error) {
	switch strings.ToLower(name) {
	case "", "stderr":
		return os.Stderr, func() error { return nil }, nil
	case "stdout":
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// FromEnv builds a logger from LOG_LEVEL and LOG_FORMAT.
func FromEnv() hclog.Logger {
	return New(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// SetDefault replaces the logger used by the package-level helpers.
func SetDefault(l hclog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Default returns the logger used by the package-level helpers.
func Default() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Info logs at info level on the default logger.
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs at warn level on the default logger.
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs at error level on the default logger.
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// Debug logs at debug level on the default logger.
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}
