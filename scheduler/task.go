package scheduler

import (
	"context"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/oplet"
)

type taskKind int

const (
	kindOnce taskKind = iota
	kindFixedRate
	kindFixedDelay
	kindCron
)

type taskState int

const (
	statePending taskState = iota
	stateRunning
	stateCompleted
	stateFailed
	stateCancelled
)

// Task is the handle of a tracked task.
type Task struct {
	id    id.TaskID
	sched *Scheduler
	body  oplet.Runnable

	kind         taskKind
	initialDelay time.Duration
	period       time.Duration
	cron         cronlib.Schedule

	cancelCh chan struct{}
	done     chan struct{}

	mu        sync.Mutex
	state     taskState
	started   bool
	runs      int
	err       error
	runCancel context.CancelFunc
}

var _ oplet.Task = (*Task)(nil)

func newTask(s *Scheduler, r oplet.Runnable, kind taskKind, initialDelay, period time.Duration, cron cronlib.Schedule) *Task {
	if initialDelay < 0 {
		initialDelay = 0
	}
	return &Task{
		id:           id.NewTaskID(),
		sched:        s,
		body:         r,
		kind:         kind,
		initialDelay: initialDelay,
		period:       period,
		cron:         cron,
		cancelCh:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// ID returns the task's identifier.
func (t *Task) ID() string { return t.id.String() }

// IsPeriodic reports whether the task runs more than once.
func (t *Task) IsPeriodic() bool { return t.kind != kindOnce }

// Cancel prevents further executions. With interrupt, the context of an
// in-flight execution is cancelled too. It reports whether this call
// cancelled the task; a task that already completed, failed or was
// cancelled cannot be cancelled.
func (t *Task) Cancel(interrupt bool) bool {
	t.mu.Lock()
	if t.terminalLocked() {
		t.mu.Unlock()
		return false
	}
	t.state = stateCancelled
	if interrupt && t.runCancel != nil {
		t.runCancel()
	}
	close(t.cancelCh)
	t.mu.Unlock()

	t.sched.untrack(t)
	return true
}

// IsCancelled reports whether the task was cancelled.
func (t *Task) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateCancelled
}

// IsDone reports whether the task completed, failed or was cancelled.
func (t *Task) IsDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminalLocked()
}

// Err returns the error that failed the task, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Runs returns the number of executions that have begun.
func (t *Task) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Done is closed once the task will never execute again and no execution
// is in flight.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) key() string { return t.id.String() }

func (t *Task) terminalLocked() bool {
	return t.state == stateCompleted || t.state == stateFailed || t.state == stateCancelled
}

func (t *Task) hasStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// firstRun returns the time of the first execution.
func (t *Task) firstRun(now time.Time) time.Time {
	if t.kind == kindCron {
		return t.cron.Next(now)
	}
	return now.Add(t.initialDelay)
}

// nextRun returns the time of the execution after one scheduled at prev
// that finished at now.
func (t *Task) nextRun(prev, now time.Time) time.Time {
	switch t.kind {
	case kindFixedRate:
		return prev.Add(t.period)
	case kindFixedDelay:
		return now.Add(t.period)
	default:
		return t.cron.Next(now)
	}
}

// loop is the task's goroutine.
func (t *Task) loop() {
	s := t.sched
	defer s.wg.Done()
	defer close(t.done)

	next := t.firstRun(time.Now())
	for {
		if !t.wait(next) {
			return
		}

		select {
		case s.sem <- struct{}{}:
		case <-t.cancelCh:
			return
		}
		ok, err := t.execute()
		<-s.sem

		if !ok {
			return
		}
		if err != nil {
			if t.finish(stateFailed, err) {
				s.failed(t, err)
			}
			return
		}
		if !t.IsPeriodic() {
			if t.finish(stateCompleted, nil) {
				s.untrack(t)
			}
			return
		}
		next = t.nextRun(next, time.Now())
	}
}

// wait sleeps until at, returning false if the task is cancelled first.
func (t *Task) wait(at time.Time) bool {
	d := time.Until(at)
	if d <= 0 {
		select {
		case <-t.cancelCh:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.cancelCh:
		return false
	}
}

// execute runs one execution. It returns false when the task was
// cancelled before or during the execution.
func (t *Task) execute() (bool, error) {
	t.mu.Lock()
	if t.state == stateCancelled {
		t.mu.Unlock()
		return false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.runCancel = cancel
	t.state = stateRunning
	t.started = true
	t.runs++
	t.mu.Unlock()

	s := t.sched
	unit := &middleware.Unit{
		ID:       t.ID(),
		Name:     s.name,
		Kind:     middleware.KindTask,
		JobID:    s.jobID,
		Periodic: t.IsPeriodic(),
		Timeout:  s.timeout,
	}
	err := s.mw(ctx, unit, func(ctx context.Context) error {
		return t.body(ctx)
	})
	cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runCancel = nil
	if t.state == stateCancelled {
		return false, nil
	}
	t.state = statePending
	return true, err
}

// finish moves the task to a terminal state unless it was cancelled
// meanwhile.
func (t *Task) finish(state taskState, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateCancelled {
		return false
	}
	t.state = state
	t.err = err
	return true
}
