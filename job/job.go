package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/executor"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/services"
)

// Emitter receives job lifecycle events.
// ext.Registry satisfies this interface.
type Emitter interface {
	EmitJobTransitioned(ctx context.Context, j *Job, from, to State)
	EmitJobCompleted(ctx context.Context, j *Job, elapsed time.Duration, err error)
}

// Option configures a Job.
type Option func(*Job)

// WithConfig sets the runtime configuration.
func WithConfig(cfg conduit.Config) Option {
	return func(j *Job) { j.cfg = cfg }
}

// WithLogger sets the job's logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// WithMiddleware adds middleware around the job's tracked threads and
// tasks.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(j *Job) { j.mws = append(j.mws, mws...) }
}

// WithEmitter sets the receiver of lifecycle events. If em also satisfies
// executor.Emitter it receives the executor's failure events.
func WithEmitter(em Emitter) Option {
	return func(j *Job) { j.emitter = em }
}

// Job is the state machine controlling one running topology.
// It is safe for concurrent use.
type Job struct {
	id        id.JobID
	createdAt time.Time
	cfg       conduit.Config
	logger    *slog.Logger
	mws       []middleware.Middleware
	emitter   Emitter
	exec      *executor.Executor

	mu        sync.Mutex
	name      string
	current   State
	next      State
	startedAt time.Time
}

// New creates a job in the CONSTRUCTED state. container holds engine-wide
// services and may be nil.
func New(name string, container *services.Container, opts ...Option) *Job {
	j := &Job{
		id:        id.NewJobID(),
		createdAt: time.Now().UTC(),
		cfg:       conduit.DefaultConfig(),
		logger:    slog.Default(),
		name:      name,
		current:   StateConstructed,
		next:      StateConstructed,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.name == "" {
		j.name = j.id.String()
	}
	j.logger = j.logger.With(slog.String("job_id", j.id.String()))

	execOpts := []executor.Option{
		executor.WithConfig(j.cfg),
		executor.WithLogger(j.logger),
		executor.WithMiddleware(j.mws...),
	}
	if em, ok := j.emitter.(executor.Emitter); ok {
		execOpts = append(execOpts, executor.WithEmitter(em))
	}
	j.exec = executor.New(j, container, execOpts...)
	return j
}

// ID returns the job's identifier.
func (j *Job) ID() id.JobID { return j.id }

// JobID returns the job's identifier as a string.
func (j *Job) JobID() string { return j.id.String() }

// Name returns the job's display name.
func (j *Job) Name() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.name
}

// JobName returns the job's display name.
func (j *Job) JobName() string { return j.Name() }

// SetName changes the job's display name.
func (j *Job) SetName(name string) {
	j.mu.Lock()
	j.name = name
	j.mu.Unlock()
}

// Executor returns the executor used to build and run the job's graph.
func (j *Job) Executor() *executor.Executor { return j.exec }

// CurrentState returns the committed state.
func (j *Job) CurrentState() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current
}

// NextState returns the state being transitioned to. It equals
// CurrentState when no transition is in progress.
func (j *Job) NextState() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// StateChange performs action. The transition is validated and reserved
// atomically; the executor step runs outside the lock. Once reserved the
// transition always commits, and the step's error is returned.
func (j *Job) StateChange(ctx context.Context, action Action) error {
	target, err := action.target()
	if err != nil {
		return err
	}

	j.mu.Lock()
	if target == StateClosed && (j.current == StateClosed || j.next == StateClosed) {
		j.mu.Unlock()
		return nil
	}
	if j.current != j.next {
		from, next := j.current, j.next
		j.mu.Unlock()
		return fmt.Errorf("%w: %s while %s → %s is in progress", conduit.ErrInvalidTransition, action, from, next)
	}
	if !j.current.CanTransitionTo(target) {
		from := j.current
		j.mu.Unlock()
		return fmt.Errorf("%w: %s → %s", conduit.ErrInvalidTransition, from, target)
	}
	from := j.current
	j.next = target
	j.mu.Unlock()

	j.logger.Debug("job transition started",
		slog.String("action", string(action)),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
	)

	var stepErr error
	switch action {
	case ActionInitialize:
		stepErr = j.exec.Initialize(ctx)
	case ActionStart:
		stepErr = j.exec.Start(ctx)
	case ActionClose:
		stepErr = j.exec.Close(ctx)
	}

	j.mu.Lock()
	j.current = target
	j.next = target
	if target == StateRunning {
		j.startedAt = time.Now()
	}
	j.mu.Unlock()

	if stepErr != nil {
		j.logger.Error("job transition step failed",
			slog.String("action", string(action)),
			slog.String("error", stepErr.Error()),
		)
	} else {
		j.logger.Info("job transitioned",
			slog.String("from", string(from)),
			slog.String("to", string(target)),
		)
	}

	if j.emitter != nil {
		j.emitter.EmitJobTransitioned(ctx, j, from, target)
	}
	return stepErr
}

// Complete waits for the job's tracked work to finish or fail. It waits
// up to Config.CompleteTimeout when that is set, otherwise until ctx is
// done.
func (j *Job) Complete(ctx context.Context) error {
	if j.cfg.CompleteTimeout > 0 {
		return j.CompleteTimeout(ctx, j.cfg.CompleteTimeout)
	}
	return j.complete(ctx, -1)
}

// CompleteTimeout waits up to d for the job's tracked work to finish or
// fail. It returns conduit.ErrCompletionTimeout if work is still active
// after d, and an error wrapping conduit.ErrExecution if background work
// failed.
func (j *Job) CompleteTimeout(ctx context.Context, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	return j.complete(ctx, d)
}

func (j *Job) complete(ctx context.Context, d time.Duration) error {
	j.mu.Lock()
	closing := j.current == StateClosed || j.next == StateClosed
	j.mu.Unlock()
	if closing {
		return nil
	}

	done, err := j.exec.CompleteJob(ctx, d)
	if err == nil && !done {
		return fmt.Errorf("job %s after %s: %w", j.JobID(), d, conduit.ErrCompletionTimeout)
	}
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}

	if j.emitter != nil {
		j.emitter.EmitJobCompleted(ctx, j, j.elapsed(), err)
	}
	return err
}

func (j *Job) elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.startedAt.IsZero() {
		return 0
	}
	return time.Since(j.startedAt)
}

// Snapshot is the management view of a job.
type Snapshot struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	State     State             `json:"state"`
	NextState State             `json:"next_state"`
	CreatedAt time.Time         `json:"created_at"`
	LastError string            `json:"last_error,omitempty"`
	Graph     executor.Snapshot `json:"graph"`
}

// Snapshot returns the job's management view.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	snap := Snapshot{
		ID:        j.id.String(),
		Name:      j.name,
		State:     j.current,
		NextState: j.next,
		CreatedAt: j.createdAt,
	}
	j.mu.Unlock()

	if err := j.exec.LastError(); err != nil {
		snap.LastError = err.Error()
	}
	snap.Graph = j.exec.Snapshot()
	return snap
}
