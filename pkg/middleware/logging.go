package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
)

// Logging logs each command with its duration. Successful commands log at
// Debug, failures at Warn.
func Logging(logger *slog.Logger) dispatch.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dispatch")

	return func(next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, call *dispatch.Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)

			attrs := []any{
				"label", call.Label,
				"name", call.Name,
				"guid", call.GUID,
				"duration", time.Since(start),
			}
			if caller, ok := dispatch.CallerFrom(ctx); ok {
				attrs = append(attrs, "session_id", caller.ID())
			}
			if err != nil {
				logger.WarnContext(ctx, "command failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "command handled", attrs...)
			}
			return result, err
		}
	}
}
