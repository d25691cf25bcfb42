package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/ext"
	"github.com/xraph/conduit/job"
	mw "github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/observability"
	"github.com/xraph/conduit/services"
)

// Engine creates, submits and closes jobs.
type Engine struct {
	cfg        conduit.Config
	logger     *slog.Logger
	extensions *ext.Registry
	exts       []ext.Extension
	container  *services.Container
	metrics    *observability.MetricsExtension
	mws        []mw.Middleware
	chain      []mw.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu     sync.RWMutex
	jobs   map[string]*job.Job
	order  []string
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the runtime configuration applied to every job.
func WithConfig(cfg conduit.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware adds middleware to the chain wrapping every tracked
// thread and task.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{
		cfg:       conduit.DefaultConfig(),
		logger:    slog.Default(),
		container: services.NewContainer(),
		jobs:      make(map[string]*job.Job),
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}
	eng.metrics = observability.NewMetricsExtension()
	eng.extensions.Register(eng.metrics)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/conduit"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/conduit"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default stack: tracing → metrics → logging → timeout → user middleware.
	// Recover is always innermost and added by the executor.
	eng.chain = make([]mw.Middleware, 0, 4+len(eng.mws))
	eng.chain = append(eng.chain,
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger),
	)
	eng.chain = append(eng.chain, eng.mws...)

	return eng
}

// Services returns the engine-wide service container. Stages resolve a
// service here when their job does not provide it.
func (eng *Engine) Services() *services.Container { return eng.container }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Metrics returns the built-in lifecycle metrics extension.
func (eng *Engine) Metrics() *observability.MetricsExtension { return eng.metrics }

// Config returns the runtime configuration applied to new jobs.
func (eng *Engine) Config() conduit.Config { return eng.cfg }

// NewJob creates a job in the CONSTRUCTED state and registers it with the
// engine. Add invocations through j.Executor() before submitting it.
func (eng *Engine) NewJob(name string) (*job.Job, error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.closed {
		return nil, conduit.ErrShutdown
	}

	j := job.New(name, eng.container,
		job.WithConfig(eng.cfg),
		job.WithLogger(eng.logger),
		job.WithMiddleware(eng.chain...),
		job.WithEmitter(eng.extensions),
	)
	eng.jobs[j.JobID()] = j
	eng.order = append(eng.order, j.JobID())
	return j, nil
}

// Submit drives a job through INITIALIZE and START. If either step fails
// the job is closed and the step error is returned.
func (eng *Engine) Submit(ctx context.Context, j *job.Job) error {
	eng.mu.RLock()
	closed := eng.closed
	_, known := eng.jobs[j.JobID()]
	eng.mu.RUnlock()

	if closed {
		return conduit.ErrShutdown
	}
	if !known {
		return fmt.Errorf("%w: %s", conduit.ErrJobNotFound, j.JobID())
	}

	eng.extensions.EmitJobSubmitted(ctx, j)

	for _, action := range []job.Action{job.ActionInitialize, job.ActionStart} {
		if err := j.StateChange(ctx, action); err != nil {
			eng.logger.Error("job submission failed",
				slog.String("job_id", j.JobID()),
				slog.String("action", string(action)),
				slog.String("error", err.Error()),
			)
			if closeErr := j.StateChange(ctx, job.ActionClose); closeErr != nil {
				return errors.Join(err, closeErr)
			}
			return err
		}
	}

	eng.logger.Info("job submitted",
		slog.String("job_id", j.JobID()),
		slog.String("job_name", j.Name()),
	)
	return nil
}

// Job returns the job with the given identifier.
func (eng *Engine) Job(jobID string) (*job.Job, error) {
	eng.mu.RLock()
	defer eng.mu.RUnlock()

	j, ok := eng.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", conduit.ErrJobNotFound, jobID)
	}
	return j, nil
}

// Jobs returns all jobs in creation order.
func (eng *Engine) Jobs() []*job.Job {
	eng.mu.RLock()
	defer eng.mu.RUnlock()

	out := make([]*job.Job, 0, len(eng.order))
	for _, jid := range eng.order {
		out = append(out, eng.jobs[jid])
	}
	return out
}

// Close closes every job concurrently and notifies extensions of the
// shutdown. Further NewJob and Submit calls return conduit.ErrShutdown.
func (eng *Engine) Close(ctx context.Context) error {
	eng.mu.Lock()
	eng.closed = true
	jobs := make([]*job.Job, 0, len(eng.order))
	for _, jid := range eng.order {
		jobs = append(jobs, eng.jobs[jid])
	}
	eng.mu.Unlock()

	var g errgroup.Group
	for _, j := range jobs {
		g.Go(func() error {
			if err := j.StateChange(ctx, job.ActionClose); err != nil {
				return fmt.Errorf("close job %s: %w", j.JobID(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	eng.extensions.EmitShutdown(ctx)
	return err
}
