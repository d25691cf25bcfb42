// Package oplet defines the stage abstraction of a Conduit topology.
//
// An oplet is a processing stage with a fixed number of input and output
// ports. The runtime drives every oplet through four lifecycle phases:
// Initialize, Start, per-input Accept (through the consumers returned by
// Inputs) and Close.
//
// Stages obtain runtime facilities through their Context. The two per-job
// services, a ThreadFactory and a Scheduler, are tracked by the runtime:
// work created through them is observed for completion and failure.
package oplet

import (
	"context"
	"time"

	"github.com/xraph/conduit/services"
)

// Namespace is the runtime segment embedded in names produced by
// Context.Uniquify.
const Namespace = "conduit.oplet"

// Consumer accepts tuples flowing on a stream.
type Consumer interface {
	Accept(tuple any)
}

// ConsumerFunc adapts an ordinary function to a Consumer.
type ConsumerFunc func(tuple any)

// Accept calls f(tuple).
func (f ConsumerFunc) Accept(tuple any) { f(tuple) }

// Discard is the consumer connected to every unwired output.
var Discard Consumer = ConsumerFunc(func(any) {})

// Oplet is a stage of a topology.
//
// A stage must not submit tuples that are not derived from input tuples
// before Start has been called.
type Oplet interface {
	// Initialize prepares the stage. The context remains valid for the
	// lifetime of the job.
	Initialize(ctx Context) error
	// Start begins processing.
	Start() error
	// Inputs returns one consumer per input port. It is called after
	// Initialize has returned successfully.
	Inputs() []Consumer
	// Close releases the stage's resources. It is called at most once.
	Close() error
}

// JobContext describes the job a stage runs in.
type JobContext interface {
	JobID() string
	JobName() string
}

// Context is the execution context handed to a stage's Initialize.
type Context interface {
	services.Provider

	// ID returns the invocation identifier of the stage.
	ID() string
	// Job returns the context of the job running the stage.
	Job() JobContext
	// InputCount returns the number of input ports.
	InputCount() int
	// OutputCount returns the number of output ports.
	OutputCount() int
	// Outputs returns one consumer per output port. Unconnected ports
	// discard their tuples.
	Outputs() []Consumer
	// Uniquify derives a name that is unique within the runtime from a
	// possibly non-unique name. Use it for names stored in external
	// registries.
	Uniquify(name string) string
}

// Runnable is a unit of background work created through a ThreadFactory or
// Scheduler. The context is cancelled when the runtime interrupts the
// work; implementations must check it periodically and return promptly
// once it is done. A returned error fails the job.
type Runnable func(ctx context.Context) error

// Thread is a tracked goroutine created by a ThreadFactory.
type Thread interface {
	ID() string
	Name() string
	// SetDaemon marks the thread as a daemon. Daemon threads do not keep a
	// job active. It has no effect once the thread has started.
	SetDaemon(daemon bool)
	Daemon() bool
	// Start launches the thread. It returns an error if the thread was
	// already started or its factory has been shut down.
	Start() error
	// Interrupt cancels the context passed to the thread's Runnable.
	Interrupt()
	Interrupted() bool
	// Done is closed once the thread's Runnable has returned, or once the
	// factory dropped the thread without running it.
	Done() <-chan struct{}
}

// ThreadFactory creates tracked threads.
type ThreadFactory interface {
	NewThread(name string, r Runnable) (Thread, error)
}

// Task is the handle of work accepted by a Scheduler.
type Task interface {
	ID() string
	// Cancel prevents further executions. When interrupt is true the
	// context of a running execution is cancelled too. It reports whether
	// this call cancelled the task.
	Cancel(interrupt bool) bool
	IsCancelled() bool
	// IsDone reports whether the task completed, failed or was cancelled.
	IsDone() bool
	IsPeriodic() bool
	// Err returns the error that completed the task abnormally, if any.
	Err() error
	// Done is closed once the task will never execute again and no
	// execution is in flight.
	Done() <-chan struct{}
}

// Scheduler runs one-shot and periodic tasks.
type Scheduler interface {
	Submit(r Runnable) (Task, error)
	Schedule(delay time.Duration, r Runnable) (Task, error)
	ScheduleAtFixedRate(initialDelay, period time.Duration, r Runnable) (Task, error)
	ScheduleWithFixedDelay(initialDelay, delay time.Duration, r Runnable) (Task, error)
	ScheduleCron(expr string, r Runnable) (Task, error)
}

// Threads returns the job's tracked thread factory.
func Threads(ctx Context) (ThreadFactory, bool) {
	return services.Lookup[ThreadFactory](ctx, services.KindThreads)
}

// Tasks returns the job's tracked task scheduler.
func Tasks(ctx Context) (Scheduler, bool) {
	return services.Lookup[Scheduler](ctx, services.KindScheduler)
}
