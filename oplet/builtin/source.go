package builtin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/conduit/oplet"
	"github.com/xraph/conduit/scheduler"
)

var (
	// ErrNoThreads is returned when a stage needs the job's thread factory
	// and the context does not provide one.
	ErrNoThreads = errors.New("conduit: thread factory not available")

	// ErrNoScheduler is returned when a stage needs the job's scheduler and
	// the context does not provide one.
	ErrNoScheduler = errors.New("conduit: scheduler not available")

	// ErrInvalidPeriod is returned by PeriodicSource for a non-positive
	// period.
	ErrInvalidPeriod = scheduler.ErrInvalidPeriod
)

// ──────────────────────────────────────────────────
// ProcessSource
// ──────────────────────────────────────────────────

// ProcessFunc produces tuples until it returns or ctx is done.
type ProcessFunc[T any] func(ctx context.Context, emit func(T)) error

// ProcessSource runs a body on a tracked thread started by Start. The job
// stays active until the body returns.
type ProcessSource[T any] struct {
	base
	fn     ProcessFunc[T]
	daemon bool
	thread oplet.Thread
}

var _ oplet.Oplet = (*ProcessSource[int])(nil)

// NewProcessSource creates a source with no inputs and one output.
func NewProcessSource[T any](fn ProcessFunc[T]) *ProcessSource[T] {
	return &ProcessSource[T]{fn: fn}
}

// Daemon marks the source's thread as a daemon so it does not keep the
// job active.
func (s *ProcessSource[T]) Daemon() *ProcessSource[T] {
	s.daemon = true
	return s
}

// Start launches the body on a tracked thread.
func (s *ProcessSource[T]) Start() error {
	threads, ok := oplet.Threads(s.ctx)
	if !ok {
		return ErrNoThreads
	}
	th, err := threads.NewThread(s.ctx.Uniquify("ProcessSource"), func(ctx context.Context) error {
		return s.fn(ctx, func(t T) { s.submit(t) })
	})
	if err != nil {
		return fmt.Errorf("process source: %w", err)
	}
	th.SetDaemon(s.daemon)
	s.thread = th
	return th.Start()
}

// Close interrupts the body if it is still running.
func (s *ProcessSource[T]) Close() error {
	if s.thread != nil {
		s.thread.Interrupt()
	}
	return nil
}

// ──────────────────────────────────────────────────
// PeriodicSource
// ──────────────────────────────────────────────────

// FetchFunc is polled by a PeriodicSource. A false ok skips the poll
// without emitting.
type FetchFunc[T any] func(ctx context.Context) (t T, ok bool, err error)

// PeriodicSource polls a function at a fixed rate on the job's tracked
// scheduler. The period can be changed while the job runs.
type PeriodicSource[T any] struct {
	base
	fn FetchFunc[T]

	mu     sync.Mutex
	period time.Duration
	task   oplet.Task
	sched  oplet.Scheduler
}

var _ oplet.Oplet = (*PeriodicSource[int])(nil)

// NewPeriodicSource creates a source polling fn every period.
func NewPeriodicSource[T any](period time.Duration, fn FetchFunc[T]) *PeriodicSource[T] {
	return &PeriodicSource[T]{fn: fn, period: period}
}

// Initialize resolves the job's scheduler.
func (s *PeriodicSource[T]) Initialize(ctx oplet.Context) error {
	if err := s.base.Initialize(ctx); err != nil {
		return err
	}
	if s.period <= 0 {
		return ErrInvalidPeriod
	}
	sched, ok := oplet.Tasks(ctx)
	if !ok {
		return ErrNoScheduler
	}
	s.sched = sched
	return nil
}

// Start schedules the first poll immediately.
func (s *PeriodicSource[T]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule(0)
}

// Period returns the current polling period.
func (s *PeriodicSource[T]) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// SetPeriod changes the polling period. A running source is rescheduled
// with the new period as its initial delay.
func (s *PeriodicSource[T]) SetPeriod(period time.Duration) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if period == s.period {
		return nil
	}
	s.period = period
	if s.task == nil {
		return nil
	}

	// Schedule the replacement before cancelling so the tracked set never
	// empties in between.
	old := s.task
	if err := s.schedule(period); err != nil {
		return err
	}
	old.Cancel(false)
	return nil
}

// schedule must be called with mu held.
func (s *PeriodicSource[T]) schedule(delay time.Duration) error {
	task, err := s.sched.ScheduleAtFixedRate(delay, s.period, s.poll)
	if err != nil {
		return fmt.Errorf("periodic source: %w", err)
	}
	s.task = task
	return nil
}

func (s *PeriodicSource[T]) poll(ctx context.Context) error {
	t, ok, err := s.fn(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.submit(t)
	}
	return nil
}

// Close cancels the polling task.
func (s *PeriodicSource[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		s.task.Cancel(true)
	}
	return nil
}
