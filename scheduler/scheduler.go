// Package scheduler provides the task scheduler handed to stages.
//
// Every task accepted by a Scheduler is tracked until it can never run
// again. One-shot tasks leave tracking when they complete, periodic tasks
// when they are cancelled or fail. A task that fails cancels, with
// interrupt, every other task of the scheduler and reports the error on the
// completion signal. A cancelled task never counts as failed, even if its
// in-flight execution returns an error.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/completion"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/oplet"
)

// ErrInvalidPeriod is returned for a non-positive period or delay of a
// periodic task.
var ErrInvalidPeriod = errors.New("conduit: period must be positive")

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// FailureHook observes a task that terminated with an error.
type FailureHook func(t *Task, err error)

// Scheduler runs tracked one-shot and periodic tasks.
// It is safe for concurrent use.
type Scheduler struct {
	signal    *completion.Signal
	mw        middleware.Middleware
	logger    *slog.Logger
	jobID     string
	name      string
	propagate bool
	onFailure FailureHook
	timeout   time.Duration

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	tasks    map[string]*Task
	shutdown bool
}

var _ oplet.Scheduler = (*Scheduler)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMiddleware sets the middleware every task execution runs through.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) { s.mw = middleware.Chain(mws...) }
}

// WithJobID tags task executions with the owning job.
func WithJobID(jobID string) Option {
	return func(s *Scheduler) { s.jobID = jobID }
}

// WithName sets the name reported for task executions.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

// WithWorkers bounds the number of concurrently executing tasks.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// WithTaskTimeout sets the deadline of each task execution. The deadline
// is carried on the middleware.Unit and applied by middleware.Timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithFailurePropagation controls whether a failed task cancels its
// siblings and notifies the completion signal. It is enabled by default.
func WithFailurePropagation(enabled bool) Option {
	return func(s *Scheduler) { s.propagate = enabled }
}

// WithFailureHook sets a hook called for every failed task, before the
// siblings are cancelled.
func WithFailureHook(h FailureHook) Option {
	return func(s *Scheduler) { s.onFailure = h }
}

// New creates a Scheduler reporting to signal. signal may be nil when
// failure propagation is disabled.
func New(signal *completion.Signal, opts ...Option) *Scheduler {
	s := &Scheduler{
		signal:    signal,
		mw:        middleware.Chain(),
		logger:    slog.Default(),
		name:      "task",
		propagate: true,
		sem:       make(chan struct{}, conduit.DefaultConfig().SchedulerWorkers),
		tasks:     make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs r once, as soon as a worker is available.
func (s *Scheduler) Submit(r oplet.Runnable) (oplet.Task, error) {
	return s.Schedule(0, r)
}

// Schedule runs r once after delay.
func (s *Scheduler) Schedule(delay time.Duration, r oplet.Runnable) (oplet.Task, error) {
	return s.track(newTask(s, r, kindOnce, delay, 0, nil))
}

// ScheduleAtFixedRate runs r every period, starting after initialDelay.
// Executions never overlap; a late execution is followed immediately by
// the next one that is due.
func (s *Scheduler) ScheduleAtFixedRate(initialDelay, period time.Duration, r oplet.Runnable) (oplet.Task, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return s.track(newTask(s, r, kindFixedRate, initialDelay, period, nil))
}

// ScheduleWithFixedDelay runs r repeatedly, waiting delay between the end
// of one execution and the start of the next.
func (s *Scheduler) ScheduleWithFixedDelay(initialDelay, delay time.Duration, r oplet.Runnable) (oplet.Task, error) {
	if delay <= 0 {
		return nil, ErrInvalidPeriod
	}
	return s.track(newTask(s, r, kindFixedDelay, initialDelay, delay, nil))
}

// ScheduleCron runs r at the times described by a cron expression.
func (s *Scheduler) ScheduleCron(expr string, r oplet.Runnable) (oplet.Task, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse cron %q: %w", expr, err)
	}
	return s.track(newTask(s, r, kindCron, 0, 0, sched))
}

func (s *Scheduler) track(t *Task) (oplet.Task, error) {
	if t.body == nil {
		return nil, errors.New("scheduler: nil runnable")
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduler: %w", conduit.ErrShutdown)
	}
	s.tasks[t.key()] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go t.loop()
	return t, nil
}

// untrack removes t and reports idleness once nothing is tracked.
func (s *Scheduler) untrack(t *Task) {
	s.mu.Lock()
	_, present := s.tasks[t.key()]
	delete(s.tasks, t.key())
	empty := len(s.tasks) == 0
	s.mu.Unlock()

	if present && empty && s.signal != nil {
		s.signal.Notify(completion.SourceTasks, nil)
	}
}

// failed handles a task that terminated abnormally.
func (s *Scheduler) failed(t *Task, err error) {
	s.logger.Error("task terminated with error",
		slog.String("task_id", t.ID()),
		slog.String("job_id", s.jobID),
		slog.Bool("periodic", t.IsPeriodic()),
		slog.String("error", err.Error()),
	)

	if !s.propagate {
		s.untrack(t)
		return
	}

	s.mu.Lock()
	delete(s.tasks, t.key())
	s.mu.Unlock()

	if s.onFailure != nil {
		s.onFailure(t, err)
	}
	s.cancelAll(true)
	if s.signal != nil {
		s.signal.Notify(completion.SourceTasks, err)
	}
}

// cancelAll cancels every tracked task and returns how many could not be
// cancelled.
func (s *Scheduler) cancelAll(interrupt bool) int {
	notCancelled := 0
	for _, t := range s.snapshot() {
		if !t.Cancel(interrupt) {
			notCancelled++
		}
	}
	s.HasActiveTasks()
	return notCancelled
}

func (s *Scheduler) snapshot() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// HasActiveTasks reports whether a tracked task can still run. Tasks that
// are done are removed from tracking as a side effect; a sweep that empties
// the tracked set reports the scheduler idle.
func (s *Scheduler) HasActiveTasks() bool {
	s.mu.Lock()
	active, swept := false, false
	for key, t := range s.tasks {
		if t.IsDone() {
			delete(s.tasks, key)
			swept = true
			continue
		}
		active = true
	}
	s.mu.Unlock()

	if swept && !active && s.signal != nil {
		s.signal.Notify(completion.SourceTasks, nil)
	}
	return active
}

// Len returns the number of tracked tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Shutdown stops accepting tasks and cancels periodic ones. Pending
// one-shot tasks still run.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	for _, t := range s.snapshot() {
		if t.IsPeriodic() {
			t.Cancel(false)
		}
	}
}

// ShutdownNow stops accepting tasks, cancels every tracked task with
// interrupt and returns the tasks that never began executing.
func (s *Scheduler) ShutdownNow() []oplet.Task {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	var pending []oplet.Task
	for _, t := range s.snapshot() {
		if !t.hasStarted() {
			pending = append(pending, t)
		}
		t.Cancel(true)
	}
	return pending
}

// IsShutdown reports whether the scheduler has been shut down.
func (s *Scheduler) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// AwaitTermination blocks until every task goroutine has exited or ctx is
// done.
func (s *Scheduler) AwaitTermination(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
