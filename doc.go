// Package conduit provides an embeddable streaming-topology runtime for Go.
// User code declares processing stages ("oplets") wired together by streams
// and submits them as a job. The runtime instantiates every stage as an
// invocation, drives its lifecycle concurrently, tracks the goroutines and
// scheduled tasks the stages create, and reports when the job has gone idle
// or failed.
//
// Conduit is designed as a library, not a service. Import it, declare the
// stages of a job, and submit it through an engine.
//
// # Quick Start
//
//	eng := engine.New(engine.WithLogger(logger))
//
//	j := eng.NewJob("sensors")
//	src := j.Executor().AddInvocation(builtin.NewPeriodicSource(time.Second, readSensor), 0, 1)
//	snk := j.Executor().AddInvocation(builtin.NewSink(store), 1, 0)
//	_ = j.Executor().Connect(src, 0, snk, 0)
//
//	if err := eng.Submit(ctx, j); err != nil {
//	    return err
//	}
//	err := j.CompleteTimeout(ctx, time.Minute)
//
// # Architecture
//
// Each job owns an executor. The executor publishes two tracked services to
// its stages: a thread factory (package tracker) and a task scheduler
// (package scheduler). Both report idleness and failures through a shared
// completion signal (package completion), which wakes the caller blocked in
// Complete. The job controller (package job) guards the lifecycle state
// machine that drives the executor.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package conduit
