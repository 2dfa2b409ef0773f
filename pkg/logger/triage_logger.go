// Package logger configures the process-wide zerolog logger.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config for logger initialization.
type Config struct {
	Level       string // debug, info, warn, error
	Service     string
	Environment string // console writer in development, JSON otherwise
}

var (
	base zerolog.Logger
	once sync.Once
)

// Init initializes the default logger. Safe to call more than once; only the
// first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		service := cfg.Service
		if service == "" {
			service = "triage"
		}

		var l zerolog.Logger
		if cfg.Environment == "development" {
			l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
		} else {
			l = zerolog.New(os.Stdout)
		}

		base = l.Level(level).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

// Get returns the default logger.
func Get() zerolog.Logger {
	once.Do(func() {
		base = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().
			Timestamp().
			Str("service", "triage").
			Logger()
	})
	return base
}

// With returns the default logger tagged with a component field.
func With(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
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
