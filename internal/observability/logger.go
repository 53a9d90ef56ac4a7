package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON to stdout, debug level in dev,
// with trace ids and the acting user stamped from the record context.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(os.Stdout, env)
}

func NewLoggerTo(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler))
}
