package conduit

import (
	"runtime"
	"time"
)

// Config holds runtime configuration shared by every job of an engine.
type Config struct {
	// StepTimeout bounds each poll of the orchestration completion queue
	// while initialize, start and close fan out across invocations.
	StepTimeout time.Duration

	// JoinTimeout is how long ShutdownNow waits for each interrupted
	// thread to exit.
	JoinTimeout time.Duration

	// OrchestrationWorkers is the number of invocation lifecycle steps
	// that may run concurrently.
	OrchestrationWorkers int

	// SchedulerWorkers is the number of user tasks that may execute
	// concurrently on a job's task scheduler.
	SchedulerWorkers int

	// TaskTimeout bounds each execution of a scheduled task. A periodic
	// task gets a fresh deadline per run. Zero means no deadline.
	TaskTimeout time.Duration

	// CompleteTimeout is the default wait used by Job.Complete. Zero means
	// wait until the job finishes or the context is cancelled.
	CompleteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StepTimeout:          10 * time.Second,
		JoinTimeout:          10 * time.Millisecond,
		OrchestrationWorkers: 4,
		SchedulerWorkers:     runtime.NumCPU() * 4,
	}
}
