package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the application logger. LOG_FORMAT=json switches to JSON
// output for log shippers; anything else stays human-readable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "feedgate"))
}
