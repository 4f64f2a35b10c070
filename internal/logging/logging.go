// Package logging provides structured logging for velinterp.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, logging.FormatAuto)
//
//	// Get a component logger
//	log := logging.Component("pipeline")
//	log.Info("batch done", "batch", 3, "resolved", 1000)
//
//	// Log with run context
//	logging.WithContext(ctx).Error("checkpoint failed", "error", err, "path", path)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects the handler used by Init.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Logger is the global logger instance. It logs at info level until Init
// is called.
var Logger *slog.Logger

// output is where Init writes. Logs go to stderr so stdout stays free for
// the final summary line.
var output io.Writer = os.Stderr

func init() {
	Init(slog.LevelInfo, FormatAuto)
}

// Init initializes the global logger with the specified level and format.
// FormatAuto picks text when stderr is a terminal and JSON otherwise.
func Init(level slog.Level, format Format) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if resolveFormat(format) == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func resolveFormat(format Format) Format {
	switch format {
	case FormatJSON, FormatText:
		return format
	}
	if f, ok := output.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// ParseLevel maps a config string to a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Component loggers are resolved lazily, so package-level loggers declared
// before Init still pick up the configured handler.
func Component(name string) *ComponentLogger {
	return &ComponentLogger{name: name}
}

// ComponentLogger logs through the current global logger with a fixed
// component attribute.
type ComponentLogger struct {
	name string
}

func (c *ComponentLogger) logger() *slog.Logger {
	return Logger.With("component", c.name)
}

// Debug logs at debug level.
func (c *ComponentLogger) Debug(msg string, args ...any) { c.logger().Debug(msg, args...) }

// Info logs at info level.
func (c *ComponentLogger) Info(msg string, args ...any) { c.logger().Info(msg, args...) }

// Warn logs at warning level.
func (c *ComponentLogger) Warn(msg string, args ...any) { c.logger().Warn(msg, args...) }

// Error logs at error level.
func (c *ComponentLogger) Error(msg string, args ...any) { c.logger().Error(msg, args...) }

// Ctx returns the component logger enriched with run context values.
func (c *ComponentLogger) Ctx(ctx context.Context) *slog.Logger {
	return withContextValues(ctx, c.logger())
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context) *slog.Logger {
	return withContextValues(ctx, Logger)
}

func withContextValues(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if runID, ok := ctx.Value(contextKeyRunID).(string); ok {
		logger = logger.With("run_id", runID)
	}
	if waypoint, ok := ctx.Value(contextKeyWaypoint).(string); ok {
		logger = logger.With("waypoint", waypoint)
	}
	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyRunID contextKey = iota
	contextKeyWaypoint
)

// ContextWithRunID adds a run ID to the context for logging.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKeyRunID, runID)
}

// ContextWithWaypoint adds the query waypoint name to the context for logging.
func ContextWithWaypoint(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextKeyWaypoint, name)
}
