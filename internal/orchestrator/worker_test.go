package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/codi/internal/ipc"
)

func TestAcceptAndHandshakeSucceedsWithMatchingToken(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "w.sock")

	listener, err := ipc.Listen(sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	w := &Worker{ID: "worker-1", token: "secret-token", state: StateSpawning}

	clientDone := make(chan error, 1)
	go func() {
		tr, err := ipc.Dial(context.Background(), sockPath)
		if err != nil {
			clientDone <- err
			return
		}
		defer tr.Close()

		hs, _ := ipc.Encode(ipc.Handshake, "req", ipc.HandshakePayload{
			WorkerID: "worker-1", Token: "secret-token", WorktreePath: "/tmp/wt",
		})
		if err := tr.WriteFrame(hs); err != nil {
			clientDone <- err
			return
		}
		ack, err := tr.ReadFrame(context.Background(), time.Second)
		if err != nil {
			clientDone <- err
			return
		}
		if ack.Type != ipc.HandshakeAck {
			clientDone <- err
		}
		clientDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.acceptAndHandshake(ctx, listener); err != nil {
		t.Fatalf("acceptAndHandshake: %v", err)
	}
	if w.State() != StateReady {
		t.Fatalf("expected StateReady, got %v", w.State())
	}
	if err := <-clientDone; err != nil {
		t.Fatalf("client side failed: %v", err)
	}
}

func TestAcceptAndHandshakeRejectsWrongToken(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "w.sock")

	listener, err := ipc.Listen(sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	w := &Worker{ID: "worker-1", token: "expected-token", state: StateSpawning}

	go func() {
		tr, err := ipc.Dial(context.Background(), sockPath)
		if err != nil {
			return
		}
		defer tr.Close()
		hs, _ := ipc.Encode(ipc.Handshake, "req", ipc.HandshakePayload{
			WorkerID: "worker-1", Token: "wrong-token", WorktreePath: "/tmp/wt",
		})
		tr.WriteFrame(hs)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.acceptAndHandshake(ctx, listener); err == nil {
		t.Fatal("expected handshake to be rejected for mismatched token")
	}
}

func TestRemoteApproverForwardsRequestAndDecodesResponse(t *testing.T) {
	clientTr, serverTr := pipeTransports()
	defer clientTr.Close()
	defer serverTr.Close()

	approver := NewRemoteApprover(clientTr)

	serverDone := make(chan error, 1)
	go func() {
		msg, err := serverTr.ReadFrame(context.Background(), time.Second)
		if err != nil {
			serverDone <- err
			return
		}
		if msg.Type != ipc.PermissionRequest {
			serverDone <- err
			return
		}
		reply, _ := ipc.Encode(ipc.PermissionResp, msg.ID, ipc.PermissionResponsePayload{Approved: true, Always: "tool"})
		serverDone <- serverTr.WriteFrame(reply)
	}()

	decision, err := approver.Ask(context.Background(), approvalRequest("bash", "execute", -1, "", "ls -la"))
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !decision.Approved || decision.Always != "tool" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server side failed: %v", err)
	}
}
