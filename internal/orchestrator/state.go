// Package orchestrator implements the commander side of multi-worker
// orchestration: spawning worker processes bound to isolated git
// worktrees, handshaking over the IPC transport, routing permission
// requests to the local approval gate, and aggregating task results.
package orchestrator

import "time"

// WorkerState is a worker's position in its lifecycle. Transitions only
// ever move forward except into Terminated, which any state can reach on
// error, timeout, or cancellation.
type WorkerState string

const (
	StateSpawning  WorkerState = "spawning"
	StateHandshake WorkerState = "handshake"
	StateReady     WorkerState = "ready"
	StateWorking   WorkerState = "working"
	StateDraining  WorkerState = "draining"
	StateTerminated WorkerState = "terminated"
)

// Outcome is the final disposition of one worker's assigned task.
type Outcome struct {
	WorkerID    string
	State       WorkerState
	DiffSummary string
	ErrKind     string
	ErrMessage  string
	Started     time.Time
	Ended       time.Time
}

// Failed reports whether the worker ended in an error or was force-killed
// rather than completing its task normally.
func (o Outcome) Failed() bool {
	return o.ErrKind != "" || (o.State == StateTerminated && o.DiffSummary == "")
}
