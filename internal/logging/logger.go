package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithEvent returns a logger with event context fields attached.
// Use this for all logging within an ingestion pipeline run.
func WithEvent(eventID string, kind, sourceModule string) *slog.Logger {
	return slog.With(
		"event_id", eventID,
		"event_type", kind,
		"source_module", sourceModule,
	)
}

// WithModule returns a logger scoped to a specific module invocation.
func WithModule(logger *slog.Logger, moduleID, moduleName string) *slog.Logger {
	return logger.With(
		"module_id", moduleID,
		"module_name", moduleName,
	)
}
