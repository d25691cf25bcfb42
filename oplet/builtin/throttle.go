package builtin

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/conduit/oplet"
)

// Throttle limits the rate of its stream by blocking the submitting
// goroutine until a token is available. Tuples arriving after Close are
// dropped.
type Throttle[T any] struct {
	base
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ oplet.Oplet = (*Throttle[int])(nil)

// NewThrottle creates a stage passing at most one tuple per interval,
// with an initial burst of burst tuples. A non-positive burst means 1.
func NewThrottle[T any](interval time.Duration, burst int) *Throttle[T] {
	if burst <= 0 {
		burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Throttle[T]{
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Inputs returns the single input consumer.
func (th *Throttle[T]) Inputs() []oplet.Consumer {
	return []oplet.Consumer{oplet.ConsumerFunc(func(tuple any) {
		t, ok := tuple.(T)
		if !ok {
			return
		}
		if err := th.limiter.Wait(th.ctx); err != nil {
			return
		}
		th.submit(t)
	})}
}

// Close releases blocked submitters.
func (th *Throttle[T]) Close() error {
	th.cancel()
	return nil
}
