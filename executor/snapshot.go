package executor

import "fmt"

// Edge is a connection from an output port to an input port.
type Edge struct {
	Source     string `json:"source"`
	SourcePort int    `json:"source_port"`
	Target     string `json:"target"`
	TargetPort int    `json:"target_port"`
}

// InvocationSnapshot describes one invocation of a graph snapshot.
type InvocationSnapshot struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
}

// Snapshot is a point-in-time view of a job's graph.
type Snapshot struct {
	Invocations []InvocationSnapshot `json:"invocations"`
	Edges       []Edge               `json:"edges"`
}

// Snapshot returns the job's graph.
func (e *Executor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Invocations: make([]InvocationSnapshot, 0, len(e.invocations)),
		Edges:       make([]Edge, len(e.edges)),
	}
	for _, inv := range e.invocations {
		snap.Invocations = append(snap.Invocations, InvocationSnapshot{
			ID:      inv.ID(),
			Kind:    fmt.Sprintf("%T", inv.Oplet()),
			Inputs:  inv.InputCount(),
			Outputs: inv.OutputCount(),
		})
	}
	copy(snap.Edges, e.edges)
	return snap
}
