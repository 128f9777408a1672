package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/codi/internal/approval"
	"github.com/nextlevelbuilder/codi/internal/ipc"
)

// Commander owns a pool of workers spawned against a single repository
// checkout, routes their PermissionRequests through a shared approval
// gate, and aggregates their TaskComplete/TaskError results. One
// Commander is used per orchestrated run; it is not reused across runs.
type Commander struct {
	repoDir     string
	runDir      string
	gate        *approval.Gate
	perWorkerTO time.Duration

	mu      sync.Mutex
	workers map[string]*Worker
}

// NewCommander builds a Commander rooted at repoDir, using runDir for
// worker sockets and worktrees, routing every worker's permission
// requests through gate.
func NewCommander(repoDir, runDir string, gate *approval.Gate, perWorkerTimeout time.Duration) *Commander {
	if perWorkerTimeout <= 0 {
		perWorkerTimeout = 30 * time.Minute
	}
	return &Commander{
		repoDir:     repoDir,
		runDir:      runDir,
		gate:        gate,
		perWorkerTO: perWorkerTimeout,
		workers:     make(map[string]*Worker),
	}
}

// RunTask spawns one worker, hands it prompt as its task, and blocks
// until the worker reports TaskComplete, TaskError, disconnects
// unexpectedly, or the per-worker time budget expires. The worktree is
// always removed before RunTask returns, regardless of outcome.
func (c *Commander) RunTask(ctx context.Context, prompt string) Outcome {
	started := time.Now()

	w, err := SpawnWorker(ctx, c.repoDir, c.runDir, prompt)
	if err != nil {
		return Outcome{State: StateTerminated, ErrKind: "spawn_failed", ErrMessage: err.Error(), Started: started, Ended: time.Now()}
	}

	c.mu.Lock()
	c.workers[w.ID] = w
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.workers, w.ID)
		c.mu.Unlock()
		_ = w.Worktree.Remove(context.Background(), c.repoDir)
	}()

	taskCtx, cancel := context.WithTimeout(ctx, c.perWorkerTO)
	defer cancel()

	outcome := c.drive(taskCtx, w)
	outcome.WorkerID = w.ID
	outcome.Started = started
	outcome.Ended = time.Now()
	return outcome
}

// Cancel force-terminates every worker currently tracked by this
// commander, used when the user cancels an orchestrated run.
func (c *Commander) Cancel() {
	c.mu.Lock()
	workers := make([]*Worker, 0, len(c.workers))
	for _, w := range c.workers {
		workers = append(workers, w)
	}
	c.mu.Unlock()
	for _, w := range workers {
		w.setState(StateDraining)
		w.kill()
		w.setState(StateTerminated)
	}
}

// ReadyCount reports how many workers are currently past handshake.
func (c *Commander) ReadyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.workers {
		if w.State() == StateReady || w.State() == StateWorking {
			n++
		}
	}
	return n
}

// drive loops reading frames from the worker (already running its task,
// assigned at spawn time) until a terminal message arrives, routing
// PermissionRequest frames through the commander's shared gate along the
// way.
func (c *Commander) drive(ctx context.Context, w *Worker) Outcome {
	w.setState(StateWorking)

	for {
		msg, err := w.tr.ReadFrame(ctx, 60*time.Second)
		if err != nil {
			w.setState(StateTerminated)
			w.kill()
			return Outcome{State: StateTerminated, ErrKind: "disconnected", ErrMessage: err.Error()}
		}

		switch msg.Type {
		case ipc.PermissionRequest:
			c.handlePermissionRequest(ctx, w, msg)

		case ipc.Log:
			// Forwarded for unified output; the caller observes this via
			// whatever sink the commander itself is wired to, not modeled here.

		case ipc.TaskComplete:
			var payload ipc.TaskCompletePayload
			if err := ipc.Decode(msg, &payload); err != nil {
				return Outcome{State: StateTerminated, ErrKind: "bad_payload", ErrMessage: err.Error()}
			}
			w.setState(StateDraining)
			w.kill()
			w.setState(StateTerminated)
			return Outcome{State: StateTerminated, DiffSummary: payload.DiffSummary}

		case ipc.TaskError:
			var payload ipc.TaskErrorPayload
			if err := ipc.Decode(msg, &payload); err != nil {
				return Outcome{State: StateTerminated, ErrKind: "bad_payload", ErrMessage: err.Error()}
			}
			w.setState(StateDraining)
			w.kill()
			w.setState(StateTerminated)
			return Outcome{State: StateTerminated, ErrKind: payload.Kind, ErrMessage: payload.Message}

		case ipc.Ping:
			pong, _ := ipc.Encode(ipc.Pong, msg.ID, nil)
			_ = w.tr.WriteFrame(pong)

		default:
			// unrecognized frame types are ignored, not fatal — forward
			// compatibility with future worker message variants.
		}
	}
}

// handlePermissionRequest routes a worker's pending tool call through the
// commander's own gate — the same gate a local (non-orchestrated) run
// would use — so approvals are decided once, centrally, regardless of
// which worker raised them. The gate's own auto-approve bookkeeping
// (approval.Decision.Always) is commander-local state; workers only ever
// learn the yes/no outcome.
func (c *Commander) handlePermissionRequest(ctx context.Context, w *Worker, msg ipc.Message) {
	var payload ipc.PermissionRequestPayload
	if err := ipc.Decode(msg, &payload); err != nil {
		return
	}
	approved, err := c.gate.Approve(ctx, payload.ToolName, payload.Category, payload.DangerTier, payload.DangerWhy, payload.Preview)
	if err != nil {
		approved = false
	}
	reply, err := ipc.Encode(ipc.PermissionResp, msg.ID, ipc.PermissionResponsePayload{Approved: approved})
	if err != nil {
		return
	}
	_ = w.tr.WriteFrame(reply)
}
