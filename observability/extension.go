package observability

import (
	"context"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/conduit/ext"
	"github.com/xraph/conduit/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.JobSubmitted    = (*MetricsExtension)(nil)
	_ ext.JobTransitioned = (*MetricsExtension)(nil)
	_ ext.JobCompleted    = (*MetricsExtension)(nil)
	_ ext.JobFailed       = (*MetricsExtension)(nil)
	_ ext.StepFailed      = (*MetricsExtension)(nil)
	_ ext.UnitFailed      = (*MetricsExtension)(nil)
	_ ext.Shutdown        = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via go-utils MetricFactory.
// Register it as a Conduit extension to track submission rates, state
// transitions, completions, failures and shutdowns.
type MetricsExtension struct {
	JobSubmitted    gu.Counter
	JobTransitioned gu.Counter
	JobCompleted    gu.Counter
	JobFailed       gu.Counter
	StepFailed      gu.Counter
	UnitFailed      gu.Counter
	Shutdown        gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("conduit/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		JobSubmitted:    factory.Counter("conduit.job.submitted"),
		JobTransitioned: factory.Counter("conduit.job.transitioned"),
		JobCompleted:    factory.Counter("conduit.job.completed"),
		JobFailed:       factory.Counter("conduit.job.failed"),
		StepFailed:      factory.Counter("conduit.step.failed"),
		UnitFailed:      factory.Counter("conduit.unit.failed"),
		Shutdown:        factory.Counter("conduit.shutdown"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	m.JobSubmitted.Inc()
	return nil
}

// OnJobTransitioned implements ext.JobTransitioned.
func (m *MetricsExtension) OnJobTransitioned(_ context.Context, _ *job.Job, _, _ job.State) error {
	m.JobTransitioned.Inc()
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	m.JobCompleted.Inc()
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	m.JobFailed.Inc()
	return nil
}

// ── Execution hooks ─────────────────────────────────

// OnStepFailed implements ext.StepFailed.
func (m *MetricsExtension) OnStepFailed(_ context.Context, _, _, _ string, _ error) error {
	m.StepFailed.Inc()
	return nil
}

// OnUnitFailed implements ext.UnitFailed.
func (m *MetricsExtension) OnUnitFailed(_ context.Context, _, _, _ string, _ error) error {
	m.UnitFailed.Inc()
	return nil
}

// OnShutdown implements ext.Shutdown.
func (m *MetricsExtension) OnShutdown(_ context.Context) error {
	m.Shutdown.Inc()
	return nil
}
