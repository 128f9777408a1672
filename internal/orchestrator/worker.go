package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/codi/internal/approval"
	"github.com/nextlevelbuilder/codi/internal/ipc"
)

const killGracePeriod = 2 * time.Second

// Worker is the commander's handle on one spawned worker process: the
// self-exec subcommand, its IPC transport once the handshake completes,
// and the isolated worktree it was given.
type Worker struct {
	ID       string
	token    string
	Worktree *Worktree

	cmd   *exec.Cmd
	tr    *ipc.Transport
	sock  string

	mu    sync.Mutex
	state WorkerState
}

// SpawnWorker starts `codi agent worker --socket <path> --worktree <path>
// --task <prompt>` as a child process, waits for it to connect and
// complete the handshake, and returns a Worker in StateReady. The task
// prompt travels as a spawn-time argument, not a post-handshake IPC
// message — there is no dedicated "assign task" frame type, and the
// worker has nothing useful to do before it knows its task anyway. The
// child's own binary path is resolved via os.Executable so the
// orchestrator never hardcodes a path.
func SpawnWorker(ctx context.Context, repoDir, runDir, task string) (*Worker, error) {
	id := uuid.New().String()
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: generate worker token: %w", err)
	}

	wt, err := CreateWorktree(ctx, repoDir, filepath.Join(runDir, "worktrees"))
	if err != nil {
		return nil, err
	}

	sockPath := filepath.Join(runDir, "sockets", id+".sock")
	listener, err := ipc.Listen(sockPath)
	if err != nil {
		_ = wt.Remove(ctx, repoDir)
		return nil, err
	}
	defer listener.Close()

	exe, err := os.Executable()
	if err != nil {
		_ = wt.Remove(ctx, repoDir)
		return nil, fmt.Errorf("orchestrator: resolve own executable: %w", err)
	}

	cmd := exec.Command(exe, "agent", "worker",
		"--socket", sockPath, "--worktree", wt.Path, "--token", token, "--task", task)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = io.Discard // workers report via IPC Log messages, not inherited stdio
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		_ = wt.Remove(ctx, repoDir)
		return nil, fmt.Errorf("orchestrator: start worker process: %w", err)
	}

	w := &Worker{ID: id, token: token, Worktree: wt, cmd: cmd, sock: sockPath, state: StateSpawning}

	acceptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := w.acceptAndHandshake(acceptCtx, listener); err != nil {
		w.kill()
		_ = wt.Remove(ctx, repoDir)
		return nil, err
	}
	return w, nil
}

// acceptAndHandshake accepts the worker's single incoming connection,
// verifies its Handshake carries the token this Worker was spawned with,
// and replies with HandshakeAck. Any mismatch is treated as a malicious
// or misconfigured worker and the connection is dropped.
func (w *Worker) acceptAndHandshake(ctx context.Context, listener net.Listener) error {
	w.setState(StateHandshake)

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := listener.Accept()
		acceptCh <- acceptResult{conn, err}
	}()

	var conn net.Conn
	select {
	case r := <-acceptCh:
		if r.err != nil {
			return fmt.Errorf("orchestrator: accept worker connection: %w", r.err)
		}
		conn = r.conn
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: timed out waiting for worker %s to connect: %w", w.ID, ctx.Err())
	}

	tr := ipc.NewTransport(conn)
	msg, err := tr.ReadFrame(ctx, 30*time.Second)
	if err != nil {
		tr.Close()
		return fmt.Errorf("orchestrator: read handshake from worker %s: %w", w.ID, err)
	}
	if msg.Type != ipc.Handshake {
		tr.Close()
		return fmt.Errorf("orchestrator: worker %s sent %s before Handshake", w.ID, msg.Type)
	}
	var hs ipc.HandshakePayload
	if err := ipc.Decode(msg, &hs); err != nil {
		tr.Close()
		return fmt.Errorf("orchestrator: decode handshake from worker %s: %w", w.ID, err)
	}
	if hs.Token != w.token || hs.WorkerID != w.ID {
		tr.Close()
		return fmt.Errorf("orchestrator: worker %s failed handshake verification", w.ID)
	}

	ack, err := ipc.Encode(ipc.HandshakeAck, msg.ID, struct{}{})
	if err != nil {
		tr.Close()
		return err
	}
	if err := tr.WriteFrame(ack); err != nil {
		tr.Close()
		return fmt.Errorf("orchestrator: write handshake ack to worker %s: %w", w.ID, err)
	}

	w.tr = tr
	w.setState(StateReady)
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16) // 128 bits
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RemoteApprover implements approval.Prompter on the worker side of the
// connection: a worker process has no terminal of its own, so instead of
// prompting directly it forwards the request up the transport to its
// commander and blocks for the PermissionResponse.
type RemoteApprover struct {
	tr *ipc.Transport
}

// NewRemoteApprover wraps tr as an approval.Prompter for use inside a
// worker process's own approval.Gate.
func NewRemoteApprover(tr *ipc.Transport) *RemoteApprover { return &RemoteApprover{tr: tr} }

var _ approval.Prompter = (*RemoteApprover)(nil)

func (r *RemoteApprover) Ask(ctx context.Context, req approval.Request) (approval.Decision, error) {
	id := uuid.New().String()
	msg, err := ipc.Encode(ipc.PermissionRequest, id, ipc.PermissionRequestPayload{
		ToolName: req.ToolName, Category: req.Category, DangerTier: req.DangerTier,
		DangerWhy: req.DangerWhy, Preview: req.Preview,
	})
	if err != nil {
		return approval.Decision{}, err
	}
	if err := r.tr.WriteFrame(msg); err != nil {
		return approval.Decision{}, err
	}
	reply, err := r.tr.ReadMessage(ctx, ipc.PermissionResp)
	if err != nil {
		return approval.Decision{}, err
	}
	var payload ipc.PermissionResponsePayload
	if err := ipc.Decode(reply, &payload); err != nil {
		return approval.Decision{}, err
	}
	return approval.Decision{Approved: payload.Approved, Always: payload.Always}, nil
}

// kill terminates the worker process, escalating to SIGKILL if it does
// not exit within the grace period. Mirrors the bash tool's own
// process-group termination, since a worker may itself have spawned bash
// subprocesses that must die with it.
func (w *Worker) kill() {
	if w.cmd == nil || w.cmd.Process == nil {
		return
	}
	pgid := -w.cmd.Process.Pid
	syscall.Kill(pgid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() { w.cmd.Wait(); close(done) }()

	timer := time.NewTimer(killGracePeriod)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		syscall.Kill(pgid, syscall.SIGKILL)
		<-done
	}
}

func (w *Worker) setState(s WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
