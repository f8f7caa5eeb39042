package logger

import (
	"log/slog"
	"time"
)

// LogQuery logs database operations
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.String("query", query),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Query executed", attrs...)
	}
}

// LogData logs dataset loads and rebuilds
func LogData(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "data")}, attrs...)...)
}

// LogRequest logs a served HTTP request
func LogRequest(method, path string, status int, duration time.Duration, attrs ...any) {
	base := []any{
		slog.String("type", "http"),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("code", status),
		slog.Duration("took", duration),
	}
	base = append(base, attrs...)
	switch {
	case status >= 500:
		slog.Error("Request failed", base...)
	case status >= 400:
		slog.Warn("Request rejected", base...)
	default:
		slog.Info("Request served", base...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
