package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger when format is "json" and a text logger
// otherwise. A nil w writes to stdout.
func NewLogger(format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true}))
}
