// Package completion provides the signal through which tracked background
// work reports idleness and failure to the job waiting on it.
//
// A Signal holds the job's last error, where the first error wins, plus a
// single-slot wake channel for the one goroutine blocked in Complete. A
// wake token posted while nobody waits stays in the slot until the waiter
// consumes it, so a notification can never fall between the waiter's state
// check and its wait.
package completion

import (
	"log/slog"
	"sync"
)

// Source identifies the subsystem that raised a notification.
type Source string

// Notification sources.
const (
	SourceThreads  Source = "threads"
	SourceTasks    Source = "tasks"
	SourceExecutor Source = "executor"
)

// ErrorHandler is called once, with the first error reported to a Signal.
type ErrorHandler func(source Source, err error)

// Option configures a Signal.
type Option func(*Signal)

// WithLogger sets the logger used to report failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Signal) { s.logger = l }
}

// WithErrorHandler sets the handler invoked for the first error.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Signal) { s.onError = h }
}

// Signal is a first-error-wins slot plus a wake primitive.
// It is safe for concurrent use.
type Signal struct {
	mu      sync.Mutex
	err     error
	source  Source
	wake    chan struct{}
	onError ErrorHandler
	logger  *slog.Logger
}

// New creates a Signal.
func New(opts ...Option) *Signal {
	s := &Signal{
		wake:   make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify reports an event from source. A nil err means the source
// believes it has gone idle. A non-nil err is a background failure: the
// first one is retained and handed to the error handler, later ones are
// only logged. Either way the waiter is woken and re-checks the job.
func (s *Signal) Notify(source Source, err error) {
	if err != nil {
		s.mu.Lock()
		first := s.err == nil
		if first {
			s.err = err
			s.source = source
		}
		handler := s.onError
		s.mu.Unlock()

		if first {
			s.logger.Error("background work failed",
				slog.String("source", string(source)),
				slog.String("error", err.Error()),
			)
			if handler != nil {
				handler(source, err)
			}
		} else {
			s.logger.Warn("additional background failure ignored",
				slog.String("source", string(source)),
				slog.String("error", err.Error()),
			)
		}
	}
	s.Poke()
}

// Poke wakes the waiter without reporting anything.
func (s *Signal) Poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wake returns the channel the waiter blocks on.
func (s *Signal) Wake() <-chan struct{} { return s.wake }

// Drain discards a pending wake token.
func (s *Signal) Drain() {
	select {
	case <-s.wake:
	default:
	}
}

// Err returns the retained error, or nil.
func (s *Signal) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Source returns the source of the retained error.
func (s *Signal) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}
