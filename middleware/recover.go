package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError is returned by Recover when the wrapped handler panicked.
type PanicError struct {
	Unit  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Unit, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to *PanicError and logged with a stack trace, so a
// panicking goroutine fails its job instead of crashing the process.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, u *Unit, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("tracked work panicked",
					slog.String("unit_name", u.Name),
					slog.String("unit_id", u.ID),
					slog.String("kind", string(u.Kind)),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = &PanicError{Unit: string(u.Kind) + " " + u.Name, Value: r, Stack: stack}
			}
		}()
		return next(ctx)
	}
}
