package infra

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the daemon logger writing JSON lines to path.
// Falls back to stderr if the file cannot be opened.
func NewLogger(path string, debug bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0755)
		config.OutputPaths = []string{path}
		config.ErrorOutputPaths = []string{path}
	}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// NewConsoleLogger builds a terse stderr logger for one-shot commands.
// Only warnings and errors are shown so command output stays readable.
func NewConsoleLogger(debug bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	config.DisableStacktrace = true
	config.DisableCaller = true
	config.EncoderConfig.TimeKey = ""

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
