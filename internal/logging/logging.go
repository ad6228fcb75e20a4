// Package logging builds the zap loggers used across rdsctl.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a logger writing to stderr at level in the given format.
// JSON uses zap's production encoder, console the development one.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole, "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q: must be %s or %s", format, FormatJSON, FormatConsole)
	}

	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
