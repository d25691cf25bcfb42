package builtin

import (
	"github.com/xraph/conduit/oplet"
)

// FanOut submits every tuple to each of its outputs in port order.
type FanOut struct {
	base
}

var _ oplet.Oplet = (*FanOut)(nil)

// NewFanOut creates a FanOut stage with one input.
func NewFanOut() *FanOut { return &FanOut{} }

// Inputs returns the single input consumer.
func (f *FanOut) Inputs() []oplet.Consumer {
	return []oplet.Consumer{oplet.ConsumerFunc(func(tuple any) {
		for _, out := range f.outputs {
			out.Accept(tuple)
		}
	})}
}

// Split routes each tuple to one output port chosen by a splitter.
// A negative result drops the tuple; otherwise the result modulo the
// number of outputs is the port.
type Split[T any] struct {
	base
	splitter func(T) int
}

var _ oplet.Oplet = (*Split[int])(nil)

// NewSplit creates a Split stage with one input.
func NewSplit[T any](splitter func(T) int) *Split[T] {
	return &Split[T]{splitter: splitter}
}

// Inputs returns the single input consumer.
func (s *Split[T]) Inputs() []oplet.Consumer {
	return []oplet.Consumer{oplet.ConsumerFunc(func(tuple any) {
		t, ok := tuple.(T)
		if !ok || len(s.outputs) == 0 {
			return
		}
		if port := s.splitter(t); port >= 0 {
			s.outputs[port%len(s.outputs)].Accept(t)
		}
	})}
}

// Union merges all of its inputs into its single output.
type Union struct {
	base
	inputs []oplet.Consumer
}

var _ oplet.Oplet = (*Union)(nil)

// NewUnion creates a Union stage. The number of inputs is taken from the
// invocation.
func NewUnion() *Union { return &Union{} }

// Initialize creates one pass-through consumer per input port.
func (u *Union) Initialize(ctx oplet.Context) error {
	if err := u.base.Initialize(ctx); err != nil {
		return err
	}
	pass := oplet.ConsumerFunc(u.submit)
	u.inputs = make([]oplet.Consumer, ctx.InputCount())
	for i := range u.inputs {
		u.inputs[i] = pass
	}
	return nil
}

// Inputs returns one consumer per input port.
func (u *Union) Inputs() []oplet.Consumer { return u.inputs }
