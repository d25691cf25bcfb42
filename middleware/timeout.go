package middleware

import (
	"context"
	"log/slog"
)

// Timeout returns middleware that enforces a per-execution deadline.
// If the unit has a non-zero Timeout, a context.WithTimeout wraps the
// handler call. When the deadline is exceeded the context is cancelled and
// the handler should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, u *Unit, next Handler) error {
		if u.Timeout > 0 {
			logger.Debug("unit timeout set",
				slog.String("unit_id", u.ID),
				slog.Duration("timeout", u.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, u.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
