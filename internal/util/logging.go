package util

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type loggerContextKey struct{}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown input
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// InitLogger configures the global slog logger with JSON output tagged with
// service. When logsDir (or the first non-empty fallback) is set, records are
// also appended to <dir>/<service>.log. The returned cleanup closes that file
// and may be nil.
func InitLogger(level, service, logsDir string, fallbackDirs ...string) (*slog.Logger, func()) {
	var out io.Writer = os.Stdout
	var cleanup func()

	dir := strings.TrimSpace(logsDir)
	for _, fb := range fallbackDirs {
		if dir != "" {
			break
		}
		dir = strings.TrimSpace(fb)
	}
	if dir != "" && service != "" {
		if f, err := openLogFile(dir, service); err == nil {
			out = io.MultiWriter(os.Stdout, f)
			cleanup = func() { _ = f.Close() }
		} else {
			fmt.Fprintf(os.Stderr, "WARN: log file disabled: %v\n", err)
		}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	logger := slog.New(handler)
	if service != "" {
		logger = logger.With("service", service)
	}
	slog.SetDefault(logger)
	return logger, cleanup
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, service+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// ContextWithLogger stores logger in ctx.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext returns the request-scoped logger, or slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}
