package executor

import (
	"sync/atomic"

	"github.com/xraph/conduit/oplet"
)

// forwarder is an input port whose destination can be rebound after the
// graph has been wired.
type forwarder struct {
	dest atomic.Pointer[oplet.Consumer]
}

func newForwarder() *forwarder {
	f := &forwarder{}
	f.bind(oplet.Discard)
	return f
}

// Accept forwards tuple to the current destination.
func (f *forwarder) Accept(tuple any) {
	(*f.dest.Load()).Accept(tuple)
}

func (f *forwarder) bind(c oplet.Consumer) {
	if c == nil {
		c = oplet.Discard
	}
	f.dest.Store(&c)
}
