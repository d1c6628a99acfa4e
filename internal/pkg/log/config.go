package log

import (
	"log/slog"
	"strings"
)

// FileConfig holds the configuration for the file destination.
type FileConfig struct {
	Dir    string
	Prefix string
	Level  slog.Level
}

// Config holds the configuration of the logging package.
type Config struct {
	StdoutEnabled bool
	StdoutLevel   slog.Level
	File          *FileConfig
}

func defaultConfig() *Config {
	return &Config{
		StdoutEnabled: true,
		StdoutLevel:   slog.LevelInfo,
	}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
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
