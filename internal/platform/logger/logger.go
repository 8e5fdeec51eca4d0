package logger

import (
	"log/slog"
	"os"
)

// New returns a structured stdout logger. format "json" emits JSON lines;
// anything else falls back to the text handler.
func New(format string) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}
