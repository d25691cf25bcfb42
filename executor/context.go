package executor

import (
	"github.com/xraph/conduit/oplet"
	"github.com/xraph/conduit/services"
)

// providers resolves a kind from the first provider that has it.
type providers []services.Provider

func (ps providers) Service(kind services.Kind) any {
	for _, p := range ps {
		if p == nil {
			continue
		}
		if svc := p.Service(kind); svc != nil {
			return svc
		}
	}
	return nil
}

// invocationContext is the oplet.Context handed to a stage.
type invocationContext struct {
	inv      *Invocation
	job      oplet.JobContext
	services services.Provider
	outputs  []oplet.Consumer
}

var _ oplet.Context = (*invocationContext)(nil)

func (c *invocationContext) ID() string { return c.inv.ID() }

func (c *invocationContext) Service(kind services.Kind) any {
	if c.services == nil {
		return nil
	}
	return c.services.Service(kind)
}

func (c *invocationContext) Job() oplet.JobContext { return c.job }

func (c *invocationContext) InputCount() int { return c.inv.InputCount() }

func (c *invocationContext) OutputCount() int { return len(c.outputs) }

func (c *invocationContext) Outputs() []oplet.Consumer {
	out := make([]oplet.Consumer, len(c.outputs))
	copy(out, c.outputs)
	return out
}

// Uniquify returns name.<namespace>.<job id>.<invocation id>.
func (c *invocationContext) Uniquify(name string) string {
	return name + "." + oplet.Namespace + "." + c.job.JobID() + "." + c.inv.ID()
}
