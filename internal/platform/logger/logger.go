package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Services receive this via
// dependency injection so tests can pass slog.New(slog.DiscardHandler).
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
