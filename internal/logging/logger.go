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

// WithDispatch returns a logger with dispatch context fields attached.
// Use this for all logging within a single orchestrator dispatch.
func WithDispatch(skillID, provider, model string) *slog.Logger {
	return slog.With(
		"skill_id", skillID,
		"provider", provider,
		"model", model,
	)
}

// WithShop returns a logger scoped to a tenant for knowledge operations.
func WithShop(logger *slog.Logger, shopID string) *slog.Logger {
	return logger.With("shop_id", shopID)
}
