// Package logging provides structured logging built on log/slog, following
// the same split between a machine-readable JSON stream and a human-readable
// console stream used throughout the rest of the engine.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	consoleLogger    *slog.Logger
	loggerMu         sync.RWMutex
	currentLevel     = new(slog.LevelVar)
	initOnce         sync.Once
)

// RotationPolicy controls how the on-disk structured log is rotated.
type RotationPolicy struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotationPolicy mirrors a conservative, always-safe default.
func DefaultRotationPolicy() RotationPolicy {
	return RotationPolicy{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	return a
}

// Init wires the global loggers: a JSON stream to logPath (rotated via
// lumberjack) and a text stream to stderr. Safe to call multiple times;
// only the first call takes effect.
func Init(logPath string, policy RotationPolicy) error {
	var initErr error
	initOnce.Do(func() {
		currentLevel.Set(slog.LevelInfo)

		var structuredWriter io.Writer
		if logPath == "" {
			structuredWriter = os.Stderr
		} else {
			if dir := filepath.Dir(logPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					initErr = fmt.Errorf("logging: create log dir: %w", err)
					return
				}
			}
			structuredWriter = &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    policy.MaxSizeMB,
				MaxBackups: policy.MaxBackups,
				MaxAge:     policy.MaxAgeDays,
				Compress:   policy.Compress,
			}
		}

		structuredHandler := slog.NewJSONHandler(structuredWriter, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})
		consoleHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:       currentLevel,
			ReplaceAttr: replaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(structuredHandler)
		consoleLogger = slog.New(consoleHandler)
		loggerMu.Unlock()
	})
	return initErr
}

// SetLevel adjusts the shared log level for all loggers created by this package.
func SetLevel(level slog.Level) { currentLevel.Set(level) }

// ForComponent returns a child logger tagged with the given component name,
// falling back to slog.Default() if Init has not been called yet.
func ForComponent(component string) *slog.Logger {
	loggerMu.RLock()
	logger := structuredLogger
	loggerMu.RUnlock()

	if logger == nil {
		return slog.Default().With("component", component)
	}
	return logger.With("component", component)
}

// Console returns the human-readable logger, falling back to slog.Default().
func Console() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if consoleLogger == nil {
		return slog.Default()
	}
	return consoleLogger
}
