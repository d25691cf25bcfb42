package builtin

import (
	"github.com/xraph/conduit/oplet"
)

// pipe is a stage with one input and one output.
type pipe struct {
	base
	accept func(tuple any)
}

func (p *pipe) Inputs() []oplet.Consumer {
	return []oplet.Consumer{oplet.ConsumerFunc(p.accept)}
}

// Map transforms each tuple. Results with ok false are not submitted.
type Map[I, O any] struct {
	pipe
}

// NewMap creates a Map stage.
func NewMap[I, O any](fn func(I) (O, bool)) *Map[I, O] {
	m := &Map[I, O]{}
	m.accept = func(tuple any) {
		in, ok := tuple.(I)
		if !ok {
			return
		}
		if out, ok := fn(in); ok {
			m.submit(out)
		}
	}
	return m
}

// Filter submits the tuples for which the predicate holds.
type Filter[T any] struct {
	pipe
}

// NewFilter creates a Filter stage.
func NewFilter[T any](pred func(T) bool) *Filter[T] {
	f := &Filter[T]{}
	f.accept = func(tuple any) {
		if t, ok := tuple.(T); ok && pred(t) {
			f.submit(t)
		}
	}
	return f
}

// Peek calls a function for each tuple and submits the tuple unchanged.
type Peek[T any] struct {
	pipe
}

// NewPeek creates a Peek stage.
func NewPeek[T any](fn func(T)) *Peek[T] {
	p := &Peek[T]{}
	p.accept = func(tuple any) {
		t, ok := tuple.(T)
		if !ok {
			return
		}
		fn(t)
		p.submit(t)
	}
	return p
}

// Sink terminates a stream.
type Sink[T any] struct {
	base
	fn func(T)
}

var _ oplet.Oplet = (*Sink[int])(nil)

// NewSink creates a stage with one input and no outputs.
func NewSink[T any](fn func(T)) *Sink[T] {
	return &Sink[T]{fn: fn}
}

// Inputs returns the single input consumer.
func (s *Sink[T]) Inputs() []oplet.Consumer {
	return []oplet.Consumer{oplet.ConsumerFunc(func(tuple any) {
		if t, ok := tuple.(T); ok {
			s.fn(t)
		}
	})}
}
