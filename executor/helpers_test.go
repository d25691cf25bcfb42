package executor_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/executor"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/oplet"
	"github.com/xraph/conduit/services"
)

// testJob is a minimal oplet.JobContext.
type testJob struct {
	id   string
	name string
}

func newTestJob() *testJob {
	return &testJob{id: id.NewJobID().String(), name: "test-job"}
}

func (j *testJob) JobID() string   { return j.id }
func (j *testJob) JobName() string { return j.name }

func newExecutor(opts ...executor.Option) (*executor.Executor, *testJob, *services.Container) {
	cfg := conduit.DefaultConfig()
	cfg.StepTimeout = 2 * time.Second
	cfg.JoinTimeout = 50 * time.Millisecond

	j := newTestJob()
	container := services.NewContainer()
	opts = append([]executor.Option{
		executor.WithConfig(cfg),
		executor.WithLogger(slog.Default()),
	}, opts...)
	return executor.New(j, container, opts...), j, container
}

// stage is a configurable test oplet.
type stage struct {
	inputs int

	onInit  func(ctx oplet.Context) error
	onStart func(ctx oplet.Context) error
	onClose func() error

	mu       sync.Mutex
	ctx      oplet.Context
	received []any

	initCalls  atomic.Int32
	startCalls atomic.Int32
	closeCalls atomic.Int32
}

func (s *stage) Initialize(ctx oplet.Context) error {
	s.initCalls.Add(1)
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	if s.onInit != nil {
		return s.onInit(ctx)
	}
	return nil
}

func (s *stage) Start() error {
	s.startCalls.Add(1)
	if s.onStart != nil {
		return s.onStart(s.context())
	}
	return nil
}

func (s *stage) Inputs() []oplet.Consumer {
	out := make([]oplet.Consumer, s.inputs)
	for i := range out {
		out[i] = oplet.ConsumerFunc(func(tuple any) {
			s.mu.Lock()
			s.received = append(s.received, tuple)
			s.mu.Unlock()
		})
	}
	return out
}

func (s *stage) Close() error {
	s.closeCalls.Add(1)
	if s.onClose != nil {
		return s.onClose()
	}
	return nil
}

func (s *stage) context() oplet.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *stage) tuples() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.received))
	copy(out, s.received)
	return out
}

// spawnThread starts a tracked thread running body from a stage context.
func spawnThread(ctx oplet.Context, body oplet.Runnable) error {
	threads, ok := oplet.Threads(ctx)
	if !ok {
		return errors.New("no thread factory")
	}
	th, err := threads.NewThread("worker", body)
	if err != nil {
		return err
	}
	return th.Start()
}

func runJob(e *executor.Executor) error {
	if err := e.Initialize(context.Background()); err != nil {
		return err
	}
	return e.Start(context.Background())
}
