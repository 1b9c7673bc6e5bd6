package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. "json" selects structured JSON
// output, anything else a human readable text handler.
func NewLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}
