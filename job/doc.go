// Package job defines the job controller: the externally visible state
// machine that drives a job's executor.
//
// # States
//
// A [Job] moves through a fixed set of states:
//
//	CONSTRUCTED → INITIALIZED → RUNNING ⇄ PAUSED
//	any state   → CLOSED
//
// [Job.StateChange] validates the requested transition against the table,
// records the target as the next state, delegates to the executor and then
// commits the target, even when the executor step failed, so that CLOSE
// stays reachable. A transition that is not in the table fails with
// conduit.ErrInvalidTransition and leaves the state unchanged. CLOSE is
// idempotent. PAUSE and RESUME fail with conduit.ErrUnsupportedAction.
//
// # Completion
//
// [Job.Complete] and [Job.CompleteTimeout] block until the job's tracked
// work has finished or failed. A closed job, or one being closed, completes
// immediately.
package job
