// Package audithook is a Conduit extension that bridges lifecycle events
// to an audit trail backend.
//
// Every job, execution and engine hook emits a structured audit event
// through the [Recorder] interface. Severity is info for normal operations,
// warning for per-invocation step failures and critical for failures that
// fail a job.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    logger.InfoContext(ctx, "audit", "action", evt.Action, "resource_id", evt.ResourceID)
//	    return nil
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionUnitFailed,
//	    ),
//	)
package audithook
