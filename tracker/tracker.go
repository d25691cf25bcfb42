// Package tracker provides the thread factory handed to stages.
//
// Every thread created through a Tracker is observed: it sits in the "new"
// set until its body begins, moves to the "running" set while the body
// executes, and leaves tracking when the body returns. A body that returns
// an error (or panics, through the middleware chain) fails the job by
// notifying the completion signal. A normal exit that leaves no non-daemon
// thread tracked reports the tracker idle.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/completion"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/oplet"
)

// ErrAlreadyStarted is returned when Start is called twice on a thread.
var ErrAlreadyStarted = errors.New("tracker: thread already started")

// FailureHook observes a thread that terminated with an error.
type FailureHook func(th *Thread, err error)

// Tracker is a thread factory that tracks the threads it creates.
// It is safe for concurrent use.
type Tracker struct {
	signal      *completion.Signal
	mw          middleware.Middleware
	logger      *slog.Logger
	jobID       string
	name        string
	joinTimeout time.Duration
	onFailure   FailureHook

	mu       sync.Mutex
	fresh    map[string]*Thread
	running  map[string]*Thread
	shutdown bool
	stopped  bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithMiddleware sets the middleware every thread body runs through.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(t *Tracker) { t.mw = middleware.Chain(mws...) }
}

// WithJobID tags created threads with the owning job.
func WithJobID(jobID string) Option {
	return func(t *Tracker) { t.jobID = jobID }
}

// WithName sets the suffix appended to every thread name.
func WithName(name string) Option {
	return func(t *Tracker) { t.name = name }
}

// WithJoinTimeout sets how long ShutdownNow waits for each thread.
func WithJoinTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.joinTimeout = d }
}

// WithFailureHook sets a hook called for every failed thread, before the
// completion signal is notified.
func WithFailureHook(h FailureHook) Option {
	return func(t *Tracker) { t.onFailure = h }
}

// New creates a Tracker reporting to signal.
func New(signal *completion.Signal, opts ...Option) *Tracker {
	t := &Tracker{
		signal:      signal,
		mw:          middleware.Chain(),
		logger:      slog.Default(),
		joinTimeout: conduit.DefaultConfig().JoinTimeout,
		fresh:       make(map[string]*Thread),
		running:     make(map[string]*Thread),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewThread creates a thread running r. The thread is tracked from this
// moment but does not run until Start is called. NewThread fails with
// conduit.ErrShutdown once the tracker has been shut down.
func (t *Tracker) NewThread(name string, r oplet.Runnable) (oplet.Thread, error) {
	if r == nil {
		return nil, errors.New("tracker: nil runnable")
	}
	if t.name != "" {
		name = name + "-" + t.name
	}

	ctx, cancel := context.WithCancel(context.Background())
	th := &Thread{
		id:      id.NewThreadID(),
		name:    name,
		tracker: t,
		body:    r,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		cancel()
		return nil, fmt.Errorf("tracker: new thread %q: %w", name, conduit.ErrShutdown)
	}
	t.fresh[th.key()] = th
	return th, nil
}

// Shutdown stops accepting new threads. Existing threads are untouched.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	t.shutdown = true
	t.mu.Unlock()
}

// IsShutdown reports whether Shutdown has been called.
func (t *Tracker) IsShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

// ShutdownNow shuts the tracker down, interrupts every tracked thread and
// waits up to the join timeout for each running thread to exit. Threads
// that were never started leave tracking immediately and can no longer be
// started. Threads that ignore the interrupt are left running and reported.
func (t *Tracker) ShutdownNow() {
	t.mu.Lock()
	t.shutdown = true
	t.stopped = true
	running := make([]*Thread, 0, len(t.running))
	for _, th := range t.running {
		running = append(running, th)
	}
	unstarted := make([]*Thread, 0, len(t.fresh))
	for key, th := range t.fresh {
		unstarted = append(unstarted, th)
		delete(t.fresh, key)
	}
	idle := len(unstarted) > 0 && !t.hasActiveNonDaemonLocked()
	t.mu.Unlock()

	for _, th := range unstarted {
		th.Interrupt()
		close(th.done)
	}
	for _, th := range running {
		th.Interrupt()
	}
	if idle {
		t.signal.Notify(completion.SourceThreads, nil)
	}

	for _, th := range running {
		if !th.Join(t.joinTimeout) {
			t.logger.Warn("thread did not exit after interrupt",
				slog.String("thread_id", th.ID()),
				slog.String("thread_name", th.Name()),
				slog.String("job_id", t.jobID),
			)
		}
	}
}

// HasActiveNonDaemonThreads reports whether a non-daemon thread is either
// created and not yet running, or running.
func (t *Tracker) HasActiveNonDaemonThreads() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasActiveNonDaemonLocked()
}

// Active returns the number of created and running threads.
func (t *Tracker) Active() (created, running int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fresh), len(t.running)
}

func (t *Tracker) hasActiveNonDaemonLocked() bool {
	for _, th := range t.running {
		if !th.Daemon() {
			return true
		}
	}
	for _, th := range t.fresh {
		if !th.Daemon() {
			return true
		}
	}
	return false
}

// start moves th to the running set. It fails once ShutdownNow has
// dropped the thread from tracking.
func (t *Tracker) start(th *Thread) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return fmt.Errorf("tracker: start thread %q: %w", th.name, conduit.ErrShutdown)
	}
	if !th.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	delete(t.fresh, th.key())
	t.running[th.key()] = th
	return nil
}

// exited removes th from tracking and reports the outcome.
func (t *Tracker) exited(th *Thread, err error) {
	t.mu.Lock()
	delete(t.fresh, th.key())
	delete(t.running, th.key())
	idle := !t.hasActiveNonDaemonLocked()
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("uncaught error in thread",
			slog.String("thread_id", th.ID()),
			slog.String("thread_name", th.Name()),
			slog.String("job_id", t.jobID),
			slog.String("error", err.Error()),
		)
		if t.onFailure != nil {
			t.onFailure(th, err)
		}
		t.signal.Notify(completion.SourceThreads, err)
		return
	}

	if idle {
		t.signal.Notify(completion.SourceThreads, nil)
	}
}
