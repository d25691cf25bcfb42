package builtin

import (
	"github.com/xraph/conduit/oplet"
)

// base holds the context shared by every built-in stage.
type base struct {
	ctx     oplet.Context
	outputs []oplet.Consumer
}

func (b *base) Initialize(ctx oplet.Context) error {
	b.ctx = ctx
	b.outputs = ctx.Outputs()
	return nil
}

func (b *base) Start() error { return nil }

func (b *base) Inputs() []oplet.Consumer { return nil }

func (b *base) Close() error { return nil }

// submit sends tuple to output port 0 if the stage has one.
func (b *base) submit(tuple any) {
	if len(b.outputs) > 0 {
		b.outputs[0].Accept(tuple)
	}
}
