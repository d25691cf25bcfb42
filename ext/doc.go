// Package ext defines the extension system for Conduit.
//
// Extensions are notified of lifecycle events and can react to them, for
// example by recording metrics or writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobFailed(ctx context.Context, j *job.Job, err error) error {
//	    log.Printf("job %s failed: %v", j.ID(), err)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobSubmitted]: job was registered with the engine
//   - [JobTransitioned]: job committed a state change
//   - [JobCompleted]: all tracked work of the job finished
//   - [JobFailed]: a tracked thread or task of the job failed
//
// # Execution Hooks
//
//   - [StepFailed]: initialize, start or close failed for one invocation
//   - [UnitFailed]: a tracked thread or task terminated with an error
//
// # Other Hooks
//
//   - [Shutdown]: the engine is shutting down
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. The registry satisfies the
// emitter interfaces of the job and executor packages.
package ext
