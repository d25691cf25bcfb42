package conduit

import "errors"

var (
	// State errors.
	ErrInvalidTransition = errors.New("conduit: invalid state transition")
	ErrUnsupportedAction = errors.New("conduit: unsupported action")
	ErrUnknownAction     = errors.New("conduit: unknown action")

	// Execution errors.
	ErrExecution         = errors.New("conduit: job execution failed")
	ErrStageLifecycle    = errors.New("conduit: stage lifecycle failure")
	ErrStepTimeout       = errors.New("conduit: orchestration step timed out")
	ErrCompletionTimeout = errors.New("conduit: job completion timed out")

	// Service errors.
	ErrShutdown = errors.New("conduit: service shut down")

	// Wiring errors.
	ErrInputMismatch  = errors.New("conduit: stage inputs do not match invocation arity")
	ErrPortOutOfRange = errors.New("conduit: port out of range")

	// Not found errors.
	ErrJobNotFound = errors.New("conduit: job not found")
)
