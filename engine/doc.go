// Package engine is the submission entry point of Conduit. It owns the
// extension registry, the engine-wide service container and the default
// middleware chain, creates jobs and drives them into the RUNNING state.
//
// The engine sits above the job, executor and ext packages and below the
// application layer, so lifecycle events can be fanned out to extensions
// without import cycles.
//
// # Building an Engine
//
//	eng := engine.New(
//	    engine.WithLogger(logger),
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithTracerProvider(tp),
//	)
//
// # Submitting a Job
//
//	j, err := eng.NewJob("word-count")
//	exec := j.Executor()
//	src := exec.AddInvocation(builtin.NewPeriodicSource(time.Second, poll), 0, 1)
//	sink := exec.AddInvocation(builtin.NewSink(print), 1, 0)
//	_ = exec.Connect(src, 0, sink, 0)
//
//	err = eng.Submit(ctx, j)       // INITIALIZE then START
//	err = j.CompleteTimeout(ctx, time.Minute)
//
// # Shutting Down
//
//	err = eng.Close(ctx) // closes every job, then emits Shutdown
//
// # Options
//
//   - [WithConfig]: runtime configuration applied to every job
//   - [WithLogger]: structured logger
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware around tracked threads and tasks
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
