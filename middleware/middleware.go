// Package middleware provides composable middleware for tracked background
// work. Every goroutine started through a job's thread factory and every
// execution of a scheduled task runs through a middleware chain, which can
// recover from panics, log, enforce deadlines, trace and record metrics.
package middleware

import (
	"context"
	"time"
)

// Kind classifies a unit of tracked work.
type Kind string

const (
	// KindThread is the body of a tracked thread.
	KindThread Kind = "thread"
	// KindTask is one execution of a scheduled task.
	KindTask Kind = "task"
)

// Unit describes the tracked work a middleware is wrapping.
type Unit struct {
	ID       string
	Name     string
	Kind     Kind
	JobID    string
	Periodic bool
	// Timeout bounds a single execution when non-zero.
	Timeout time.Duration
}

// Handler is the terminal function that executes the unit's body.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the unit being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, u *Unit, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, u *Unit, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, u, prev)
			}
		}
		return h(ctx)
	}
}
