package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging for one worker component
type Logger struct {
	prefix string
	attrs  []interface{}
}

// Setup installs the process-wide slog handler. format is "json" or "text".
func Setup(level string, format string) error {
	return SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination
func SetupWriter(w io.Writer, level string, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "console", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q (want json or text)", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// ParseLevel maps a textual level onto slog levels
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// NewLogger creates a new logger tagged with a component prefix
func NewLogger(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		attrs:  []interface{}{"component", prefix},
	}
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l == nil {
		l = &Logger{}
	}
	attrs := make([]interface{}, 0, len(l.attrs)+len(keysAndValues))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, keysAndValues...)
	return &Logger{
		prefix: l.prefix,
		attrs:  attrs,
	}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(slog.LevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(slog.LevelWarn, msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(slog.LevelError, msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(slog.LevelDebug, msg, keysAndValues...)
}

func (l *Logger) log(level slog.Level, msg string, keysAndValues ...interface{}) {
	// Resolved per call so loggers built before Setup still pick up the configured handler.
	logger := slog.Default()
	if l != nil && len(l.attrs) > 0 {
		logger = logger.With(l.attrs...)
	}
	logger.Log(context.Background(), level, msg, keysAndValues...)
}
