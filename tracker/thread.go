package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/oplet"
)

// Thread is a goroutine tracked by a Tracker.
type Thread struct {
	id      id.ThreadID
	name    string
	tracker *Tracker
	body    oplet.Runnable

	daemon      atomic.Bool
	started     atomic.Bool
	interrupted atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

var _ oplet.Thread = (*Thread)(nil)

// ID returns the thread's identifier.
func (th *Thread) ID() string { return th.id.String() }

// Name returns the thread's name.
func (th *Thread) Name() string { return th.name }

// SetDaemon marks the thread as a daemon. It has no effect once started.
func (th *Thread) SetDaemon(daemon bool) {
	if th.started.Load() {
		return
	}
	th.daemon.Store(daemon)
}

// Daemon reports whether the thread is a daemon.
func (th *Thread) Daemon() bool { return th.daemon.Load() }

// Start launches the thread's goroutine. It returns conduit.ErrShutdown
// after the tracker was shut down with ShutdownNow.
func (th *Thread) Start() error {
	if err := th.tracker.start(th); err != nil {
		return err
	}
	go th.run()
	return nil
}

// Interrupt cancels the context passed to the thread body.
func (th *Thread) Interrupt() {
	th.interrupted.Store(true)
	th.cancel()
}

// Interrupted reports whether Interrupt has been called.
func (th *Thread) Interrupted() bool { return th.interrupted.Load() }

// Done is closed once the thread body has returned and the thread has
// left tracking, or once ShutdownNow dropped the unstarted thread.
func (th *Thread) Done() <-chan struct{} { return th.done }

// Join waits up to timeout for the thread to finish. It reports whether
// the thread finished.
func (th *Thread) Join(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-th.done:
		return true
	case <-timer.C:
		return false
	}
}

// Err returns the error the body terminated with, once Done is closed.
func (th *Thread) Err() error {
	th.errMu.Lock()
	defer th.errMu.Unlock()
	return th.err
}

func (th *Thread) key() string { return th.id.String() }

func (th *Thread) run() {
	defer close(th.done)
	defer th.cancel()

	t := th.tracker

	unit := &middleware.Unit{
		ID:    th.ID(),
		Name:  th.name,
		Kind:  middleware.KindThread,
		JobID: t.jobID,
	}
	err := t.mw(th.ctx, unit, func(ctx context.Context) error {
		return th.body(ctx)
	})

	// Returning the cancellation cause after an interrupt is a cooperative exit.
	if err != nil && th.Interrupted() && errors.Is(err, context.Canceled) {
		err = nil
	}

	th.errMu.Lock()
	th.err = err
	th.errMu.Unlock()

	t.exited(th, err)
}
