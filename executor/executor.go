// Package executor runs the invocations of one job.
//
// The Executor owns the job's invocations, publishes the tracked thread
// factory and task scheduler as per-job services, fans the initialize,
// start and close steps out across invocations on an orchestration pool,
// and implements the blocking completion wait.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/completion"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/oplet"
	"github.com/xraph/conduit/scheduler"
	"github.com/xraph/conduit/services"
	"github.com/xraph/conduit/tracker"
)

// Step names an orchestration step.
type Step string

// Orchestration steps.
const (
	StepInitialize Step = "initialize"
	StepStart      Step = "start"
	StepClose      Step = "close"
)

// Emitter receives executor failure events.
// ext.Registry satisfies this interface.
type Emitter interface {
	EmitStepFailed(ctx context.Context, jobID, step, invocationID string, err error)
	EmitUnitFailed(ctx context.Context, jobID, kind, unitID string, err error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig sets the runtime configuration.
func WithConfig(cfg conduit.Config) Option {
	return func(e *Executor) { e.cfg = cfg }
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMiddleware adds middleware around every tracked thread and task.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.mws = append(e.mws, mws...) }
}

// WithEmitter sets the receiver of failure events.
func WithEmitter(em Emitter) Option {
	return func(e *Executor) { e.emitter = em }
}

// Executor runs the invocations of a job.
type Executor struct {
	job       oplet.JobContext
	container *services.Container
	cfg       conduit.Config
	logger    *slog.Logger
	mws       []middleware.Middleware
	emitter   Emitter

	signal      *completion.Signal
	threads     *tracker.Tracker
	tasks       *scheduler.Scheduler
	orch        *scheduler.Scheduler
	jobServices *services.Container

	mu          sync.Mutex
	invocations []*Invocation
	edges       []Edge

	completeMu sync.Mutex
	closeOnce  sync.Once
}

// New creates an Executor for job. container holds engine-wide services
// and may be nil.
func New(job oplet.JobContext, container *services.Container, opts ...Option) *Executor {
	e := &Executor{
		job:         job,
		container:   container,
		cfg:         conduit.DefaultConfig(),
		logger:      slog.Default(),
		jobServices: services.NewContainer(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.signal = completion.New(
		completion.WithLogger(e.logger),
		completion.WithErrorHandler(e.onBackgroundError),
	)

	// Recover innermost so outer middleware observe panics as errors.
	chain := append(append([]middleware.Middleware{}, e.mws...), middleware.Recover(e.logger))

	e.threads = tracker.New(e.signal,
		tracker.WithLogger(e.logger),
		tracker.WithMiddleware(chain...),
		tracker.WithJobID(job.JobID()),
		tracker.WithName(job.JobName()),
		tracker.WithJoinTimeout(e.cfg.JoinTimeout),
		tracker.WithFailureHook(func(th *tracker.Thread, err error) {
			e.emitUnitFailed(string(middleware.KindThread), th.ID(), err)
		}),
	)
	e.tasks = scheduler.New(e.signal,
		scheduler.WithLogger(e.logger),
		scheduler.WithMiddleware(chain...),
		scheduler.WithJobID(job.JobID()),
		scheduler.WithName(job.JobName()),
		scheduler.WithWorkers(e.cfg.SchedulerWorkers),
		scheduler.WithTaskTimeout(e.cfg.TaskTimeout),
		scheduler.WithFailureHook(func(t *scheduler.Task, err error) {
			e.emitUnitFailed(string(middleware.KindTask), t.ID(), err)
		}),
	)
	e.orch = scheduler.New(nil,
		scheduler.WithLogger(e.logger),
		scheduler.WithJobID(job.JobID()),
		scheduler.WithName("orchestration"),
		scheduler.WithWorkers(e.cfg.OrchestrationWorkers),
		scheduler.WithFailurePropagation(false),
	)
	return e
}

// ──────────────────────────────────────────────────
// Graph
// ──────────────────────────────────────────────────

// AddInvocation adds a stage with the given port counts.
func (e *Executor) AddInvocation(op oplet.Oplet, inputs, outputs int) *Invocation {
	inv := NewInvocation(op, inputs, outputs, e.logger)
	e.mu.Lock()
	e.invocations = append(e.invocations, inv)
	e.mu.Unlock()
	return inv
}

// Connect wires output port of src to input port of dst.
func (e *Executor) Connect(src *Invocation, port int, dst *Invocation, inPort int) error {
	in, err := dst.Input(inPort)
	if err != nil {
		return err
	}
	if err := src.SetOutput(port, in); err != nil {
		return err
	}

	e.mu.Lock()
	e.edges = append(e.edges, Edge{
		Source:     src.ID(),
		SourcePort: port,
		Target:     dst.ID(),
		TargetPort: inPort,
	})
	e.mu.Unlock()
	return nil
}

// Invocations returns the job's invocations in insertion order.
func (e *Executor) Invocations() []*Invocation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Invocation, len(e.invocations))
	copy(out, e.invocations)
	return out
}

// Services returns the per-job service container.
func (e *Executor) Services() *services.Container { return e.jobServices }

// Threads returns the job's tracked thread factory.
func (e *Executor) Threads() *tracker.Tracker { return e.threads }

// Tasks returns the job's tracked task scheduler.
func (e *Executor) Tasks() *scheduler.Scheduler { return e.tasks }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Initialize publishes the per-job services and initializes every
// invocation. All invocations are attempted; the first failure is
// returned.
func (e *Executor) Initialize(ctx context.Context) error {
	e.jobServices.Add(services.KindThreads, oplet.ThreadFactory(e.threads))
	e.jobServices.Add(services.KindScheduler, oplet.Scheduler(e.tasks))

	provider := providers{e.jobServices, e.containerProvider()}
	return e.invokeAction(ctx, StepInitialize, func(inv *Invocation) error {
		return inv.Initialize(e.job, provider)
	})
}

// Start starts every invocation. All invocations are attempted; the first
// failure is returned.
func (e *Executor) Start(ctx context.Context) error {
	return e.invokeAction(ctx, StepStart, (*Invocation).Start)
}

// Close halts user work, closes every invocation and releases the
// orchestration pool. Close failures are logged, never returned. Only the
// first call has an effect.
func (e *Executor) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.tasks.ShutdownNow()
		e.threads.ShutdownNow()

		err := e.invokeAction(ctx, StepClose, func(inv *Invocation) error {
			defer e.cleanOplet(inv)
			return inv.Close()
		})
		if err != nil {
			e.logger.Warn("close did not finish cleanly",
				slog.String("job_id", e.job.JobID()),
				slog.String("error", err.Error()),
			)
		}

		e.signal.Poke()

		if pending := e.orch.ShutdownNow(); len(pending) > 0 {
			e.logger.Warn("orchestration tasks left unfinished",
				slog.String("job_id", e.job.JobID()),
				slog.Int("count", len(pending)),
			)
		}
	})
	return nil
}

func (e *Executor) cleanOplet(inv *Invocation) {
	e.jobServices.CleanOplet(e.job.JobID(), inv.ID())
	if e.container != nil {
		e.container.CleanOplet(e.job.JobID(), inv.ID())
	}
}

func (e *Executor) containerProvider() services.Provider {
	if e.container == nil {
		return nil
	}
	return e.container
}

type stepResult struct {
	inv *Invocation
	err error
}

// invokeAction runs fn for every invocation on the orchestration pool and
// waits for all results, polling the completion queue with StepTimeout.
func (e *Executor) invokeAction(ctx context.Context, step Step, fn func(*Invocation) error) error {
	invs := e.Invocations()
	results := make(chan stepResult, len(invs))
	pending := make(map[string]struct{}, len(invs))

	for _, inv := range invs {
		pending[inv.ID()] = struct{}{}
		_, err := e.orch.Submit(func(_ context.Context) error {
			results <- stepResult{inv: inv, err: e.runStep(step, inv, fn)}
			return nil
		})
		if err != nil {
			results <- stepResult{inv: inv, err: fmt.Errorf("%s %s: %w", step, inv.ID(), err)}
		}
	}

	var first error
	for range invs {
		timer := time.NewTimer(e.cfg.StepTimeout)
		select {
		case r := <-results:
			timer.Stop()
			delete(pending, r.inv.ID())
			if r.err != nil && first == nil {
				first = r.err
			}
		case <-timer.C:
			e.logger.Error("orchestration step timed out",
				slog.String("job_id", e.job.JobID()),
				slog.String("step", string(step)),
				slog.Duration("timeout", e.cfg.StepTimeout),
				slog.Any("pending", pendingIDs(pending)),
			)
			return errors.Join(first, fmt.Errorf("%s: %w", step, conduit.ErrStepTimeout))
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", step, ctx.Err())
		}
	}
	return first
}

// runStep runs fn for inv, converting a panic into an error.
func (e *Executor) runStep(step Step, inv *Invocation, fn func(*Invocation) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("orchestration step panicked", slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %s %s panicked: %v", conduit.ErrStageLifecycle, step, inv.ID(), r)
		}
		if err != nil {
			e.logger.Error("orchestration step failed",
				slog.String("job_id", e.job.JobID()),
				slog.String("step", string(step)),
				slog.String("invocation_id", inv.ID()),
				slog.String("error", err.Error()),
			)
			if e.emitter != nil {
				e.emitter.EmitStepFailed(context.Background(), e.job.JobID(), string(step), inv.ID(), err)
			}
		}
	}()
	return fn(inv)
}

func pendingIDs(pending map[string]struct{}) []string {
	ids := make([]string, 0, len(pending))
	for k := range pending {
		ids = append(ids, k)
	}
	return ids
}

// ──────────────────────────────────────────────────
// Completion
// ──────────────────────────────────────────────────

// onBackgroundError halts user work after the first background failure.
// Invocations stay open until the job is closed.
func (e *Executor) onBackgroundError(source completion.Source, err error) {
	e.logger.Warn("halting background work after failure",
		slog.String("job_id", e.job.JobID()),
		slog.String("source", string(source)),
		slog.String("error", err.Error()),
	)
	e.tasks.ShutdownNow()
	e.threads.ShutdownNow()
}

func (e *Executor) emitUnitFailed(kind, unitID string, err error) {
	if e.emitter != nil {
		e.emitter.EmitUnitFailed(context.Background(), e.job.JobID(), kind, unitID, err)
	}
}

// HasActiveWork reports whether a tracked task or non-daemon thread is
// still active.
func (e *Executor) HasActiveWork() bool {
	return e.tasks.HasActiveTasks() || e.threads.HasActiveNonDaemonThreads()
}

// LastError returns the first background failure, if any.
func (e *Executor) LastError() error { return e.signal.Err() }

// CompleteJob waits until no tracked work is active, a background failure
// is reported, timeout elapses or ctx is done. A negative timeout waits
// without bound. It reports whether the work finished; a background
// failure is returned wrapped in conduit.ErrExecution.
//
// Calls are serialized: there is one completer at a time.
func (e *Executor) CompleteJob(ctx context.Context, timeout time.Duration) (bool, error) {
	e.completeMu.Lock()
	defer e.completeMu.Unlock()

	e.signal.Drain()

	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if err := e.signal.Err(); err != nil {
			return false, fmt.Errorf("%w: %w", conduit.ErrExecution, err)
		}
		if !e.HasActiveWork() {
			return true, nil
		}

		select {
		case <-e.signal.Wake():
		case <-deadline:
			if err := e.signal.Err(); err != nil {
				return false, fmt.Errorf("%w: %w", conduit.ErrExecution, err)
			}
			return !e.HasActiveWork(), nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
