package job

import (
	"fmt"
	"strings"

	"github.com/xraph/conduit"
)

// State is the lifecycle state of a job.
type State string

const (
	// StateConstructed is the state of a job that has been built but not
	// initialized.
	StateConstructed State = "CONSTRUCTED"
	// StateInitialized means every invocation has been initialized.
	StateInitialized State = "INITIALIZED"
	// StateRunning means every invocation has been started.
	StateRunning State = "RUNNING"
	// StatePaused is reserved; no action currently reaches it.
	StatePaused State = "PAUSED"
	// StateClosed is terminal. Resources have been released.
	StateClosed State = "CLOSED"
)

// transitions is the adjacency table of allowed state changes.
var transitions = map[State][]State{
	StateConstructed: {StateInitialized, StateClosed},
	StateInitialized: {StateRunning, StateClosed},
	StateRunning:     {StatePaused, StateClosed},
	StatePaused:      {StateRunning, StateClosed},
	StateClosed:      {StateClosed},
}

// CanTransitionTo reports whether the table allows s → target.
func (s State) CanTransitionTo(target State) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Action is a request to change a job's state.
type Action string

// Job actions.
const (
	ActionInitialize Action = "INITIALIZE"
	ActionStart      Action = "START"
	ActionPause      Action = "PAUSE"
	ActionResume     Action = "RESUME"
	ActionClose      Action = "CLOSE"
)

// ParseAction parses an action name, case-insensitively.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionInitialize, ActionStart, ActionPause, ActionResume, ActionClose:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", conduit.ErrUnknownAction, s)
}

// target returns the state an action drives to.
func (a Action) target() (State, error) {
	switch a {
	case ActionInitialize:
		return StateInitialized, nil
	case ActionStart:
		return StateRunning, nil
	case ActionClose:
		return StateClosed, nil
	case ActionPause, ActionResume:
		return "", fmt.Errorf("%w: %s", conduit.ErrUnsupportedAction, a)
	}
	return "", fmt.Errorf("%w: %q", conduit.ErrUnknownAction, string(a))
}
