package executor

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/oplet"
	"github.com/xraph/conduit/services"
)

// Invocation binds one stage instance to its input and output ports.
//
// Inputs are forwarders created up front so the graph can be wired before
// the stage exists; Initialize rebinds them to the stage's own consumers.
// Outputs default to oplet.Discard.
type Invocation struct {
	id     id.InvocationID
	op     oplet.Oplet
	logger *slog.Logger

	inputs []*forwarder

	mu      sync.Mutex
	outputs []oplet.Consumer

	closeOnce sync.Once
	closeErr  error
}

// NewInvocation wraps op with the given port counts.
func NewInvocation(op oplet.Oplet, inputs, outputs int, logger *slog.Logger) *Invocation {
	if logger == nil {
		logger = slog.Default()
	}
	inv := &Invocation{
		id:      id.NewInvocationID(),
		op:      op,
		logger:  logger,
		inputs:  make([]*forwarder, inputs),
		outputs: make([]oplet.Consumer, outputs),
	}
	for i := range inv.inputs {
		inv.inputs[i] = newForwarder()
	}
	for i := range inv.outputs {
		inv.outputs[i] = oplet.Discard
	}
	return inv
}

// ID returns the invocation's identifier.
func (inv *Invocation) ID() string { return inv.id.String() }

// Oplet returns the wrapped stage.
func (inv *Invocation) Oplet() oplet.Oplet { return inv.op }

// InputCount returns the number of input ports.
func (inv *Invocation) InputCount() int { return len(inv.inputs) }

// OutputCount returns the number of output ports.
func (inv *Invocation) OutputCount() int { return len(inv.outputs) }

// Input returns the consumer feeding input port.
func (inv *Invocation) Input(port int) (oplet.Consumer, error) {
	if port < 0 || port >= len(inv.inputs) {
		return nil, fmt.Errorf("invocation %s input %d: %w", inv.ID(), port, conduit.ErrPortOutOfRange)
	}
	return inv.inputs[port], nil
}

// SetOutput connects output port to c. It must be called before
// Initialize.
func (inv *Invocation) SetOutput(port int, c oplet.Consumer) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if port < 0 || port >= len(inv.outputs) {
		return fmt.Errorf("invocation %s output %d: %w", inv.ID(), port, conduit.ErrPortOutOfRange)
	}
	if c == nil {
		c = oplet.Discard
	}
	inv.outputs[port] = c
	return nil
}

// Initialize builds the stage context and initializes the stage. On
// success each input forwarder is rebound to the stage's consumer for that
// port.
func (inv *Invocation) Initialize(job oplet.JobContext, svc services.Provider) error {
	inv.mu.Lock()
	outputs := make([]oplet.Consumer, len(inv.outputs))
	copy(outputs, inv.outputs)
	ctx := &invocationContext{
		inv:      inv,
		job:      job,
		services: svc,
		outputs:  outputs,
	}
	inv.mu.Unlock()

	if err := inv.op.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: initialize %s: %w", conduit.ErrStageLifecycle, inv.ID(), err)
	}

	consumers := inv.op.Inputs()
	if len(consumers) != len(inv.inputs) {
		return fmt.Errorf("invocation %s declares %d inputs, stage has %d: %w",
			inv.ID(), len(inv.inputs), len(consumers), conduit.ErrInputMismatch)
	}
	for i, c := range consumers {
		inv.inputs[i].bind(c)
	}
	return nil
}

// Start starts the stage.
func (inv *Invocation) Start() error {
	if err := inv.op.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %w", conduit.ErrStageLifecycle, inv.ID(), err)
	}
	return nil
}

// Close closes the stage exactly once. Failures and panics are logged and
// returned; repeated calls return the first result.
func (inv *Invocation) Close() error {
	inv.closeOnce.Do(func() {
		inv.closeErr = inv.closeStage()
		if inv.closeErr != nil {
			inv.logger.Error("stage close failed",
				slog.String("invocation_id", inv.ID()),
				slog.String("oplet", fmt.Sprintf("%T", inv.op)),
				slog.String("error", inv.closeErr.Error()),
			)
		}
	})
	return inv.closeErr
}

func (inv *Invocation) closeStage() (err error) {
	defer func() {
		if r := recover(); r != nil {
			inv.logger.Debug("stage close panicked", slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic closing %s: %v", inv.ID(), r)
		}
	}()
	return inv.op.Close()
}
