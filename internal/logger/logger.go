package logger

import (
	"io"
	"log/slog"
	"os"

	"policy-qa-service/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration and
// installs it as the slog default.
func InitLogger(cfg *config.Config) *slog.Logger {
	Logger = New(os.Stdout, cfg.GinMode)
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", "debug")
	return Logger
}

// New builds a JSON logger writing to w. Debug mode lowers the level and
// adds source locations.
func New(w io.Writer, ginMode string) *slog.Logger {
	level := slog.LevelInfo
	if ginMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: ginMode == "debug",
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
