package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs the start and end of each unit.
// Periodic task executions are logged at debug level.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, u *Unit, next Handler) error {
		level := slog.LevelInfo
		if u.Periodic {
			level = slog.LevelDebug
		}

		logger.Log(ctx, level, "unit started",
			slog.String("unit_name", u.Name),
			slog.String("unit_id", u.ID),
			slog.String("kind", string(u.Kind)),
			slog.String("job_id", u.JobID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("unit failed",
				slog.String("unit_name", u.Name),
				slog.String("unit_id", u.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Log(ctx, level, "unit completed",
				slog.String("unit_name", u.Name),
				slog.String("unit_id", u.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
