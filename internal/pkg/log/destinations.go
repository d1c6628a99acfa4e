package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	handlers []slog.Handler
	logFile  *os.File
)

// setupDestinations builds the slog handlers the worker dispatches to.
// Stdout gets a text handler, the optional file destination a JSON one.
func setupDestinations() {
	handlers = nil

	if config.StdoutEnabled {
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.StdoutLevel,
		}))
	}

	if config.File != nil {
		if err := os.MkdirAll(config.File.Dir, 0755); err != nil {
			slog.Error("unable to create log file directory, file logging disabled", "dir", config.File.Dir, "err", err.Error())
			return
		}

		name := fmt.Sprintf("%s-%s.log", config.File.Prefix, time.Now().Format("2006-01-02-15-04-05"))
		f, err := os.OpenFile(filepath.Join(config.File.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.Error("unable to open log file, file logging disabled", "file", name, "err", err.Error())
			return
		}

		logFile = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: config.File.Level,
		}))
	}
}

func closeDestinations() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	handlers = nil
}

// worker drains the log queue and dispatches entries to every destination.
func worker(ctx context.Context) {
	defer wg.Done()

	for {
		select {
		case entry := <-logQueue:
			dispatch(entry)
		case <-ctx.Done():
			// Drain whatever is left before returning.
			for {
				select {
				case entry := <-logQueue:
					dispatch(entry)
				default:
					return
				}
			}
		}
	}
}

func dispatch(entry *logEntry) {
	record := slog.NewRecord(entry.timestamp, entry.level, entry.msg, 0)
	record.Add(entry.args...)

	for _, h := range handlers {
		if h.Enabled(context.Background(), entry.level) {
			h.Handle(context.Background(), record.Clone())
		}
	}
}
