package log

import "log/slog"

// Fields hold the fields attached to every entry of a FieldedLogger.
type Fields map[string]any

// FieldedLogger is a logger with preset fields, used by components to
// tag their entries (e.g. {"component": "harvester"}).
type FieldedLogger struct {
	fields *Fields
}

// NewFieldedLogger creates a new FieldedLogger with the given fields
func NewFieldedLogger(args *Fields) *FieldedLogger {
	return &FieldedLogger{
		fields: args,
	}
}

func (fl *FieldedLogger) Debug(msg string, args ...any) {
	fl.logWithLevel(slog.LevelDebug, msg, args...)
}

func (fl *FieldedLogger) Info(msg string, args ...any) {
	fl.logWithLevel(slog.LevelInfo, msg, args...)
}

func (fl *FieldedLogger) Warn(msg string, args ...any) {
	fl.logWithLevel(slog.LevelWarn, msg, args...)
}

func (fl *FieldedLogger) Error(msg string, args ...any) {
	fl.logWithLevel(slog.LevelError, msg, args...)
}

func (fl *FieldedLogger) logWithLevel(level slog.Level, msg string, args ...any) {
	var combined []any
	if fl.fields != nil {
		for k, v := range *fl.fields {
			combined = append(combined, k, v)
		}
	}
	combined = append(combined, args...)
	logWithLevel(level, msg, combined...)
}
