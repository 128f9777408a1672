package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/nextlevelbuilder/codi/internal/agent"
	"github.com/nextlevelbuilder/codi/internal/ipc"
	"github.com/nextlevelbuilder/codi/internal/session"
)

// DialAndHandshake connects to the commander's socket and completes the
// Handshake/HandshakeAck exchange, returning the live transport. Callers
// build a RemoteApprover from the returned transport and wire it into the
// worker's own approval.Gate before constructing the agent.Loop that
// RunWorker will drive — the transport must exist before the gate does,
// since a permission prompt can fire on the very first tool call.
func DialAndHandshake(ctx context.Context, socketPath, workerID, token, worktreePath string) (*ipc.Transport, error) {
	tr, err := ipc.Dial(ctx, socketPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: dial commander: %w", err)
	}

	hs, err := ipc.Encode(ipc.Handshake, workerID, ipc.HandshakePayload{
		WorkerID: workerID, Token: token, WorktreePath: worktreePath,
	})
	if err != nil {
		tr.Close()
		return nil, err
	}
	if err := tr.WriteFrame(hs); err != nil {
		tr.Close()
		return nil, fmt.Errorf("orchestrator: send handshake: %w", err)
	}

	ack, err := tr.ReadFrame(ctx, 30*time.Second)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("orchestrator: read handshake ack: %w", err)
	}
	if ack.Type != ipc.HandshakeAck {
		tr.Close()
		return nil, fmt.Errorf("orchestrator: expected HandshakeAck, got %s", ack.Type)
	}
	return tr, nil
}

// RunWorker drives loop against task inside sess, forwarding incremental
// text to the commander as Log frames over tr and reporting TaskComplete
// or TaskError when the turn ends. loop's tool registry must already be
// wired to an approval.Gate backed by a RemoteApprover over tr, so
// permission prompts bubble up to the commander while the task runs.
func RunWorker(ctx context.Context, tr *ipc.Transport, worktreePath, task string, loop *agent.Loop, sess *session.Session) error {
	sink := agent.FuncSink{
		OnText: func(delta string) {
			msg, err := ipc.Encode(ipc.Log, "", ipc.LogPayload{Level: "info", Message: delta})
			if err == nil {
				_ = tr.WriteFrame(msg)
			}
		},
	}

	_, runErr := loop.Run(ctx, sess, task, sink)

	if runErr != nil {
		errMsg, _ := ipc.Encode(ipc.TaskError, "", ipc.TaskErrorPayload{Kind: "agent_error", Message: runErr.Error()})
		_ = tr.WriteFrame(errMsg)
		return runErr
	}

	diff, _ := gitDiffStat(ctx, worktreePath)
	doneMsg, err := ipc.Encode(ipc.TaskComplete, "", ipc.TaskCompletePayload{DiffSummary: diff})
	if err != nil {
		return err
	}
	if err := tr.WriteFrame(doneMsg); err != nil {
		return fmt.Errorf("orchestrator: send task complete: %w", err)
	}
	return nil
}

func gitDiffStat(ctx context.Context, worktreePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--stat", "HEAD")
	cmd.Dir = worktreePath
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}
