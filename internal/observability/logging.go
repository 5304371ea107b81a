// Package observability wires zap logging for the CLI and server.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for commands. It is a no-op
// until Init runs so library code can log unconditionally.
var CLILogger = zap.NewNop()

// Init builds the process logger from configuration.
//
// profile selects the output shape: "structured" emits JSON to stderr,
// "console" emits human-readable output with colored levels.
func Init(level, profile string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch profile {
	case "", "structured":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("unknown logging profile %q", profile)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Safe to call at process exit.
func Sync() {
	_ = CLILogger.Sync()
}
