package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/conduit/ext"
	"github.com/xraph/conduit/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

func (e *allHooksExt) OnJobTransitioned(_ context.Context, _ *job.Job, _, _ job.State) error {
	e.calls = append(e.calls, "OnJobTransitioned")
	return nil
}

func (e *allHooksExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnStepFailed(_ context.Context, _, _, _ string, _ error) error {
	e.calls = append(e.calls, "OnStepFailed")
	return nil
}

func (e *allHooksExt) OnUnitFailed(_ context.Context, _, _, _ string, _ error) error {
	e.calls = append(e.calls, "OnUnitFailed")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// jobOnlyExt only implements job-related hooks.
type jobOnlyExt struct {
	calls []string
}

func (e *jobOnlyExt) Name() string { return "job-only" }

func (e *jobOnlyExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

func (e *jobOnlyExt) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

func newTestJob() *job.Job {
	return job.New("test-job", nil)
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	jo := &jobOnlyExt{}
	r.Register(all)
	r.Register(jo)

	ctx := context.Background()
	j := newTestJob()

	// Both implement OnJobSubmitted → both called.
	r.EmitJobSubmitted(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobSubmitted" {
		t.Fatalf("all: expected [OnJobSubmitted], got %v", all.calls)
	}
	if len(jo.calls) != 1 || jo.calls[0] != "OnJobSubmitted" {
		t.Fatalf("jo: expected [OnJobSubmitted], got %v", jo.calls)
	}

	// Only all implements OnJobTransitioned → jo not called.
	r.EmitJobTransitioned(ctx, j, job.StateConstructed, job.StateInitialized)
	if len(all.calls) != 2 || all.calls[1] != "OnJobTransitioned" {
		t.Fatalf("all: expected OnJobTransitioned as 2nd, got %v", all.calls)
	}
	if len(jo.calls) != 1 {
		t.Fatalf("jo: should still have 1 call, got %v", jo.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := newTestJob()

	r.EmitJobSubmitted(ctx, j)
	r.EmitJobTransitioned(ctx, j, job.StateConstructed, job.StateInitialized)
	r.EmitJobCompleted(ctx, j, time.Second, nil)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitStepFailed(ctx, j.JobID(), "initialize", "op_1", errors.New("step"))
	r.EmitUnitFailed(ctx, j.JobID(), "thread", "thr_1", errors.New("unit"))
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobSubmitted", "OnJobTransitioned", "OnJobCompleted",
		"OnJobFailed", "OnStepFailed", "OnUnitFailed", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_CompletedWithErrorRoutesToFailed(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	r.EmitJobCompleted(context.Background(), newTestJob(), time.Second, errors.New("X"))

	if len(all.calls) != 1 || all.calls[0] != "OnJobFailed" {
		t.Fatalf("expected [OnJobFailed], got %v", all.calls)
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitJobSubmitted(ctx, newTestJob())
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 || all.calls[0] != "OnJobSubmitted" {
		t.Fatalf("all: expected hooks to fire despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()
	j := newTestJob()

	// None of these should panic or error.
	r.EmitJobSubmitted(ctx, j)
	r.EmitJobTransitioned(ctx, j, job.StateRunning, job.StateClosed)
	r.EmitJobCompleted(ctx, j, time.Second, nil)
	r.EmitJobFailed(ctx, j, errors.New("x"))
	r.EmitStepFailed(ctx, "job", "start", "op", errors.New("x"))
	r.EmitUnitFailed(ctx, "job", "task", "task", errors.New("x"))
	r.EmitShutdown(ctx)
}

func TestRegistry_SatisfiesEmitters(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	j := job.New("emitting", nil, job.WithEmitter(r))
	if err := j.StateChange(context.Background(), job.ActionClose); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(all.calls) != 1 || all.calls[0] != "OnJobTransitioned" {
		t.Fatalf("expected [OnJobTransitioned], got %v", all.calls)
	}
}
