package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ct := NewTransport(client)
	st := NewTransport(server)

	msg, err := Encode(Handshake, "req-1", HandshakePayload{WorkerID: "w1", Token: "tok", WorktreePath: "/tmp/wt"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ct.WriteFrame(msg) }()

	got, err := st.ReadFrame(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if got.Type != Handshake || got.ID != "req-1" {
		t.Fatalf("unexpected message: %+v", got)
	}
	var payload HandshakePayload
	if err := Decode(got, &payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.WorkerID != "w1" || payload.Token != "tok" || payload.WorktreePath != "/tmp/wt" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := []byte{0x7F, 0xFF, 0xFF, 0xFF} // huge length, exceeds maxFrameSize
		client.Write(header)
	}()

	st := NewTransport(server)
	_, err := st.ReadFrame(context.Background(), time.Second)
	if err == nil {
		t.Fatal("expected error for oversized frame")
	}
}

func TestReadFrameRejectsMalformedJSON(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	body := []byte("{not json")
	go func() {
		header := make([]byte, 4)
		header[3] = byte(len(body))
		client.Write(header)
		client.Write(body)
	}()
	st := NewTransport(server)
	_, err := st.ReadFrame(context.Background(), time.Second)
	if err == nil {
		t.Fatal("expected error for malformed JSON frame")
	}
}

func TestListenAndDialRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "sub", "codi.sock")

	l, err := Listen(sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	acceptDone := make(chan Message, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		srv := NewTransport(conn)
		m, err := srv.ReadFrame(context.Background(), time.Second)
		if err != nil {
			return
		}
		acceptDone <- m
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tr, err := Dial(ctx, sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	msg, _ := Encode(Ping, "", nil)
	if err := tr.WriteFrame(msg); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case got := <-acceptDone:
		if got.Type != Ping {
			t.Fatalf("expected Ping, got %v", got.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted frame")
	}
}

func TestReadMessageUsesUnboundedTimeoutForPermissionResponse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	msg, _ := Encode(PermissionResp, "req-1", PermissionResponsePayload{Approved: true})
	go NewTransport(client).WriteFrame(msg)

	st := NewTransport(server)
	got, err := st.ReadMessage(context.Background(), PermissionResp)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Type != PermissionResp {
		t.Fatalf("unexpected type: %v", got.Type)
	}
}
