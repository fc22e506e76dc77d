// Package logger provides the structured logger shared by abiprobe packages.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// ParseLevel validates a textual log level.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(s)); l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return l, nil
	default:
		return "", fmt.Errorf("logger: invalid level %q", s)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog.Logger for structured logging.
type Logger struct {
	*slog.Logger
}

var (
	globalLogger *Logger
	globalMutex  sync.RWMutex
)

// New creates a logger writing to w. Format is either "json" or "text".
func New(w io.Writer, level LogLevel, format string) *Logger {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Init initializes the global logger. Logs go to standard error, so that
// reports can be written to standard output.
func Init(level LogLevel, format string) {
	l := New(os.Stderr, level, format)

	globalMutex.Lock()
	globalLogger = l
	globalMutex.Unlock()

	slog.SetDefault(l.Logger)
}

// Get returns the global logger instance.
func Get() *Logger {
	globalMutex.RLock()
	l := globalLogger
	globalMutex.RUnlock()

	if l != nil {
		return l
	}

	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalLogger == nil {
		globalLogger = New(os.Stderr, InfoLevel, "text")
	}
	return globalLogger
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// DebugWith logs a debug message with attributes.
func (l *Logger) DebugWith(msg string, args ...any) {
	l.Logger.Debug(msg, args...)
}

// InfoWith logs an info message with attributes.
func (l *Logger) InfoWith(msg string, args ...any) {
	l.Logger.Info(msg, args...)
}

// WarnWith logs a warning message with attributes.
func (l *Logger) WarnWith(msg string, args ...any) {
	l.Logger.Warn(msg, args...)
}

// ErrorWithErr logs an error message with an error object.
func (l *Logger) ErrorWithErr(msg string, err error, args ...any) {
	args = append(args, slog.Any("error", err))
	l.Logger.Error(msg, args...)
}
