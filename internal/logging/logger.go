// Package logging builds the structured logger shared by the server and CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logger type passed around the application.
type Logger = *logrus.Logger

// Fields represents structured logging fields.
type Fields = logrus.Fields

// Options controls logger construction.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FORMAT.
func OptionsFromEnv() Options {
	return Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
}

// New creates a configured logger. Unknown levels fall back to info.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger.SetLevel(parseLevel(opts.Level))
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	}
	return logger
}

// NewFromEnv creates a logger using LOG_LEVEL and LOG_FORMAT.
func NewFromEnv() *logrus.Logger {
	return New(OptionsFromEnv())
}

// Discard returns a logger that writes nowhere. Intended for tests.
func Discard() *logrus.Logger {
	return New(Options{Output: io.Discard})
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
