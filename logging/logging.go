// Package logging builds the zap loggers used across the game server.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Development enables console encoding, caller info and stack traces on warnings
	Development bool
	// Encoding overrides the encoder: "json" or "console"
	Encoding string
	// Stderr sends output to stderr, which keeps stdout free for the stdio MCP transport
	Stderr bool
}

// ParseLevel maps a level name to a zap level
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New builds a logger from opts
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	switch opts.Encoding {
	case "":
	case "json", "console":
		cfg.Encoding = opts.Encoding
	default:
		return nil, fmt.Errorf("invalid log encoding %q", opts.Encoding)
	}

	// stdout unless asked otherwise; errors always go to stderr
	cfg.OutputPaths = []string{"stdout"}
	if opts.Stderr {
		cfg.OutputPaths = []string{"stderr"}
	}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build(zap.Fields(zap.Int("pid", os.Getpid())))
}

// Nop returns a logger that discards everything
func Nop() *zap.Logger {
	return zap.NewNop()
}
