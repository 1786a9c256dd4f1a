package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/broady/bridge"
)

// Logging returns a middleware that logs every dispatched call as
// "<APIType>.<method> | <path>" with its duration and, on failure, the
// error.
func Logging(logger *slog.Logger) bridge.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return bridge.MiddlewareFunc(func(r *http.Request, next bridge.Responder) (*bridge.Response, error) {
		ctx := r.Context()
		info, _ := bridge.CallInfoFromContext(ctx)
		call := info.String() + " | " + r.URL.Path
		start := time.Now()

		logger.DebugContext(ctx, "call started", slog.String("call", call))

		resp, err := next.Respond(r)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "call failed",
				slog.String("call", call),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "call completed",
				slog.String("call", call),
				slog.Duration("duration", duration),
			)
		}
		return resp, err
	})
}
