package ext

import (
	"context"
	"time"

	"github.com/xraph/conduit/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobSubmitted is called after a job has been registered with an engine,
// before it is initialized.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobTransitioned is called after a job commits a state change.
type JobTransitioned interface {
	OnJobTransitioned(ctx context.Context, j *job.Job, from, to job.State) error
}

// JobCompleted is called when a completion wait observes that all of a
// job's tracked work finished.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a completion wait observes a background failure.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Execution hooks
// ──────────────────────────────────────────────────

// StepFailed is called when an orchestration step (initialize, start or
// close) fails for one invocation.
type StepFailed interface {
	OnStepFailed(ctx context.Context, jobID, step, invocationID string, err error) error
}

// UnitFailed is called when a tracked thread or task terminates with an
// error.
type UnitFailed interface {
	OnUnitFailed(ctx context.Context, jobID, kind, unitID string, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
