package builtin_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/executor"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/oplet"
	"github.com/xraph/conduit/oplet/builtin"
	"github.com/xraph/conduit/services"
)

type testJob struct{ id string }

func (j testJob) JobID() string   { return j.id }
func (j testJob) JobName() string { return "builtin" }

func newExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	cfg := conduit.DefaultConfig()
	cfg.StepTimeout = 2 * time.Second
	e := executor.New(testJob{id: id.NewJobID().String()}, services.NewContainer(), executor.WithConfig(cfg))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

// collector is a thread-safe sink target.
type collector[T any] struct {
	mu    sync.Mutex
	items []T
}

func (c *collector[T]) add(t T) {
	c.mu.Lock()
	c.items = append(c.items, t)
	c.mu.Unlock()
}

func (c *collector[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *collector[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func connect(t *testing.T, e *executor.Executor, src *executor.Invocation, port int, dst *executor.Invocation, inPort int) {
	t.Helper()
	if err := e.Connect(src, port, dst, inPort); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func run(t *testing.T, e *executor.Executor) {
	t.Helper()
	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func emitInts(n int) builtin.ProcessFunc[int] {
	return func(_ context.Context, emit func(int)) error {
		for i := 1; i <= n; i++ {
			emit(i)
		}
		return nil
	}
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestProcessSource_Pipeline(t *testing.T) {
	e := newExecutor(t)
	got := &collector[string]{}
	var peeked collector[int]

	src := e.AddInvocation(builtin.NewProcessSource(emitInts(5)), 0, 1)
	m := e.AddInvocation(builtin.NewMap(func(i int) (int, bool) { return i * 10, true }), 1, 1)
	f := e.AddInvocation(builtin.NewFilter(func(i int) bool { return i > 20 }), 1, 1)
	p := e.AddInvocation(builtin.NewPeek(peeked.add), 1, 1)
	toStr := e.AddInvocation(builtin.NewMap(func(i int) (string, bool) {
		return strings.Repeat("x", i/10), i != 40
	}), 1, 1)
	sink := e.AddInvocation(builtin.NewSink(got.add), 1, 0)

	connect(t, e, src, 0, m, 0)
	connect(t, e, m, 0, f, 0)
	connect(t, e, f, 0, p, 0)
	connect(t, e, p, 0, toStr, 0)
	connect(t, e, toStr, 0, sink, 0)
	run(t, e)

	done, err := e.CompleteJob(context.Background(), 2*time.Second)
	if err != nil || !done {
		t.Fatalf("CompleteJob = %v, %v; want true, nil", done, err)
	}
	if want := []int{30, 40, 50}; !slices.Equal(peeked.snapshot(), want) {
		t.Errorf("peeked = %v, want %v", peeked.snapshot(), want)
	}
	if want := []string{"xxx", "xxxxx"}; !slices.Equal(got.snapshot(), want) {
		t.Errorf("sink = %v, want %v", got.snapshot(), want)
	}
}

func TestProcessSource_ErrorFailsJob(t *testing.T) {
	e := newExecutor(t)
	e.AddInvocation(builtin.NewProcessSource(func(context.Context, func(int)) error {
		return errors.New("boom")
	}), 0, 1)
	run(t, e)

	_, err := e.CompleteJob(context.Background(), 2*time.Second)
	if !errors.Is(err, conduit.ErrExecution) {
		t.Fatalf("err = %v, want ErrExecution", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want it to contain boom", err)
	}
}

func TestProcessSource_DaemonDoesNotKeepJobActive(t *testing.T) {
	e := newExecutor(t)
	e.AddInvocation(builtin.NewProcessSource(func(ctx context.Context, _ func(int)) error {
		<-ctx.Done()
		return nil
	}).Daemon(), 0, 1)
	run(t, e)

	done, err := e.CompleteJob(context.Background(), time.Second)
	if err != nil || !done {
		t.Fatalf("CompleteJob = %v, %v; want true, nil", done, err)
	}
}

func TestPeriodicSource_EmitsUntilClosed(t *testing.T) {
	e := newExecutor(t)
	got := &collector[int]{}

	var mu sync.Mutex
	n := 0
	src := builtin.NewPeriodicSource(5*time.Millisecond, func(context.Context) (int, bool, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return n, n%2 == 1, nil
	})
	si := e.AddInvocation(src, 0, 1)
	sink := e.AddInvocation(builtin.NewSink(got.add), 1, 0)
	connect(t, e, si, 0, sink, 0)
	run(t, e)

	deadline := time.After(2 * time.Second)
	for got.len() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out, got %v", got.snapshot())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Periodic tasks keep the job active.
	done, err := e.CompleteJob(context.Background(), 20*time.Millisecond)
	if err != nil || done {
		t.Fatalf("CompleteJob = %v, %v; want false, nil", done, err)
	}

	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, v := range got.snapshot()[:3] {
		if v%2 != 1 {
			t.Errorf("skipped poll emitted %d", v)
		}
	}
}

func TestPeriodicSource_SetPeriod(t *testing.T) {
	e := newExecutor(t)
	got := &collector[int]{}

	src := builtin.NewPeriodicSource(time.Hour, func(context.Context) (int, bool, error) {
		return 1, true, nil
	})
	if err := src.SetPeriod(0); !errors.Is(err, builtin.ErrInvalidPeriod) {
		t.Fatalf("SetPeriod(0) = %v, want ErrInvalidPeriod", err)
	}

	si := e.AddInvocation(src, 0, 1)
	sink := e.AddInvocation(builtin.NewSink(got.add), 1, 0)
	connect(t, e, si, 0, sink, 0)
	run(t, e)

	// The first poll runs immediately; the next would take an hour.
	deadline := time.After(2 * time.Second)
	for got.len() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first poll")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := src.SetPeriod(5 * time.Millisecond); err != nil {
		t.Fatalf("SetPeriod: %v", err)
	}
	if src.Period() != 5*time.Millisecond {
		t.Errorf("Period = %v, want 5ms", src.Period())
	}

	deadline = time.After(2 * time.Second)
	for got.len() < 4 {
		select {
		case <-deadline:
			t.Fatalf("timed out after SetPeriod, got %d tuples", got.len())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	// The replaced task is cancelled, only the new one stays tracked.
	if n := e.Tasks().Len(); n != 1 {
		t.Errorf("tracked tasks = %d, want 1", n)
	}
}

func TestPeriodicSource_InvalidPeriodFailsInitialize(t *testing.T) {
	e := newExecutor(t)
	e.AddInvocation(builtin.NewPeriodicSource(0, func(context.Context) (int, bool, error) {
		return 0, false, nil
	}), 0, 1)

	err := e.Initialize(context.Background())
	if !errors.Is(err, builtin.ErrInvalidPeriod) {
		t.Fatalf("Initialize = %v, want ErrInvalidPeriod", err)
	}
	if !errors.Is(err, conduit.ErrStageLifecycle) {
		t.Errorf("Initialize = %v, want ErrStageLifecycle", err)
	}
}

func TestFanOut(t *testing.T) {
	e := newExecutor(t)
	a, b := &collector[int]{}, &collector[int]{}

	src := e.AddInvocation(builtin.NewProcessSource(emitInts(3)), 0, 1)
	fan := e.AddInvocation(builtin.NewFanOut(), 1, 2)
	sa := e.AddInvocation(builtin.NewSink(a.add), 1, 0)
	sb := e.AddInvocation(builtin.NewSink(b.add), 1, 0)
	connect(t, e, src, 0, fan, 0)
	connect(t, e, fan, 0, sa, 0)
	connect(t, e, fan, 1, sb, 0)
	run(t, e)

	if _, err := e.CompleteJob(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	want := []int{1, 2, 3}
	if !slices.Equal(a.snapshot(), want) || !slices.Equal(b.snapshot(), want) {
		t.Errorf("a = %v, b = %v, want both %v", a.snapshot(), b.snapshot(), want)
	}
}

func TestSplit(t *testing.T) {
	e := newExecutor(t)
	even, odd := &collector[int]{}, &collector[int]{}

	src := e.AddInvocation(builtin.NewProcessSource(emitInts(6)), 0, 1)
	split := e.AddInvocation(builtin.NewSplit(func(i int) int {
		if i == 6 {
			return -1
		}
		return i
	}), 1, 2)
	se := e.AddInvocation(builtin.NewSink(even.add), 1, 0)
	so := e.AddInvocation(builtin.NewSink(odd.add), 1, 0)
	connect(t, e, src, 0, split, 0)
	connect(t, e, split, 0, se, 0)
	connect(t, e, split, 1, so, 0)
	run(t, e)

	if _, err := e.CompleteJob(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if want := []int{2, 4}; !slices.Equal(even.snapshot(), want) {
		t.Errorf("even = %v, want %v", even.snapshot(), want)
	}
	if want := []int{1, 3, 5}; !slices.Equal(odd.snapshot(), want) {
		t.Errorf("odd = %v, want %v", odd.snapshot(), want)
	}
}

func TestUnion(t *testing.T) {
	e := newExecutor(t)
	got := &collector[int]{}

	s1 := e.AddInvocation(builtin.NewProcessSource(emitInts(3)), 0, 1)
	s2 := e.AddInvocation(builtin.NewProcessSource(emitInts(2)), 0, 1)
	u := e.AddInvocation(builtin.NewUnion(), 2, 1)
	sink := e.AddInvocation(builtin.NewSink(got.add), 1, 0)
	connect(t, e, s1, 0, u, 0)
	connect(t, e, s2, 0, u, 1)
	connect(t, e, u, 0, sink, 0)
	run(t, e)

	if _, err := e.CompleteJob(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	items := got.snapshot()
	slices.Sort(items)
	if want := []int{1, 1, 2, 2, 3}; !slices.Equal(items, want) {
		t.Errorf("union = %v, want %v", items, want)
	}
}

func TestTypedStagesDropMismatchedTuples(t *testing.T) {
	e := newExecutor(t)
	got := &collector[int]{}

	src := e.AddInvocation(builtin.NewProcessSource(func(_ context.Context, emit func(any)) error {
		emit("not an int")
		emit(7)
		return nil
	}), 0, 1)
	sink := e.AddInvocation(builtin.NewSink(got.add), 1, 0)
	connect(t, e, src, 0, sink, 0)
	run(t, e)

	if _, err := e.CompleteJob(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if want := []int{7}; !slices.Equal(got.snapshot(), want) {
		t.Errorf("sink = %v, want %v", got.snapshot(), want)
	}
}

var _ oplet.Oplet = (*builtin.Map[int, string])(nil)

func TestThrottle_SpacesTuples(t *testing.T) {
	e := newExecutor(t)
	stamps := &collector[time.Time]{}

	src := e.AddInvocation(builtin.NewProcessSource(emitInts(4)), 0, 1)
	th := e.AddInvocation(builtin.NewThrottle[int](30*time.Millisecond, 1), 1, 1)
	sink := e.AddInvocation(builtin.NewSink(func(int) { stamps.add(time.Now()) }), 1, 0)
	connect(t, e, src, 0, th, 0)
	connect(t, e, th, 0, sink, 0)
	run(t, e)

	if _, err := e.CompleteJob(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got := stamps.snapshot()
	if len(got) != 4 {
		t.Fatalf("received %d tuples, want 4", len(got))
	}
	// Three waits of 30ms after the initial burst token.
	if span := got[3].Sub(got[0]); span < 75*time.Millisecond {
		t.Errorf("tuples spanned %v, want at least 75ms", span)
	}
}

func TestThrottle_CloseReleasesBlockedSubmitter(t *testing.T) {
	e := newExecutor(t)
	got := &collector[int]{}

	src := e.AddInvocation(builtin.NewProcessSource(emitInts(3)), 0, 1)
	th := e.AddInvocation(builtin.NewThrottle[int](time.Hour, 1), 1, 1)
	sink := e.AddInvocation(builtin.NewSink(got.add), 1, 0)
	connect(t, e, src, 0, th, 0)
	connect(t, e, th, 0, sink, 0)
	run(t, e)

	deadline := time.After(2 * time.Second)
	for got.len() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for burst tuple")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	closed := make(chan struct{})
	go func() {
		_ = e.Close(context.Background())
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on throttled submitter")
	}
	if got.len() != 1 {
		t.Errorf("received %d tuples, want 1", got.len())
	}
}
