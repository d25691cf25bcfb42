package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobSubmitted    = "job.submitted"
	ActionJobTransitioned = "job.transitioned"
	ActionJobCompleted    = "job.completed"
	ActionJobFailed       = "job.failed"
	ActionStepFailed      = "step.failed"
	ActionUnitFailed      = "unit.failed"
	ActionShutdown        = "engine.shutdown"
)

// Audit event categories group related actions.
const (
	CategoryJob       = "conduit.job"
	CategoryExecution = "conduit.execution"
	CategoryEngine    = "conduit.engine"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob        = "job"
	ResourceInvocation = "invocation"
	ResourceUnit       = "unit"
	ResourceEngine     = "engine"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobSubmitted,
		ActionJobTransitioned,
		ActionJobCompleted,
		ActionJobFailed,
		ActionStepFailed,
		ActionUnitFailed,
		ActionShutdown,
	}
}
