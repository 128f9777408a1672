package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// maxFrameSize bounds a single frame's payload; anything larger is
	// treated the same as a malformed frame and closes the connection.
	maxFrameSize = 16 << 20 // 16 MiB

	defaultReadTimeout = 60 * time.Second
)

// Transport wraps a net.Conn (a Unix domain socket in practice) with the
// length-prefixed JSON framing the commander and worker speak. It is safe
// for one reader and one writer goroutine to use concurrently; it is not
// safe for concurrent writers or concurrent readers.
type Transport struct {
	conn net.Conn
}

// NewTransport wraps an already-established connection.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// Close closes the underlying connection.
func (t *Transport) Close() error { return t.conn.Close() }

// WriteFrame encodes m and writes it as one length-prefixed frame.
func (t *Transport) WriteFrame(m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("ipc: marshal frame: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("ipc: frame of %d bytes exceeds max %d", len(body), maxFrameSize)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := t.conn.Write(header[:]); err != nil {
		return fmt.Errorf("ipc: write frame header: %w", err)
	}
	if _, err := t.conn.Write(body); err != nil {
		return fmt.Errorf("ipc: write frame body: %w", err)
	}
	return nil
}

// ReadFrame blocks until one complete frame is available, ctx is done, or
// the connection is closed. deadline bounds the read; pass 0 for
// PermissionResponse-style unbounded reads (the caller still governs
// overall lifetime via ctx). A malformed or oversized frame returns an
// error and the caller must treat the connection as dead — ReadFrame does
// not attempt to resynchronize the stream.
func (t *Transport) ReadFrame(ctx context.Context, deadline time.Duration) (Message, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(dl)
	} else if deadline > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(deadline))
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { _ = t.conn.SetReadDeadline(time.Now()) })
	defer stop()

	var header [4]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return Message{}, wrapReadErr(err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		_ = t.conn.Close()
		return Message{}, fmt.Errorf("ipc: frame size %d exceeds max %d, connection closed", size, maxFrameSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return Message{}, wrapReadErr(err)
	}

	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		_ = t.conn.Close()
		return Message{}, fmt.Errorf("ipc: malformed frame, connection closed: %w", err)
	}
	return m, nil
}

// ReadMessage is ReadFrame with the type-dependent default timeout
// (unbounded for PermissionResponse, defaultReadTimeout otherwise).
func (t *Transport) ReadMessage(ctx context.Context, want MessageType) (Message, error) {
	timeout := defaultReadTimeout
	if want == PermissionResp {
		timeout = 0
	}
	return t.ReadFrame(ctx, timeout)
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("ipc: read frame: %w", err)
}

// Listen binds a Unix domain socket at socketPath. The socket's parent
// directory is created with mode 0700 if missing, and the socket file
// itself is chmod'd to 0700 after binding (the umask otherwise widens it).
// Listen never binds a TCP interface — socketPath is always a filesystem
// path, never a host:port.
func Listen(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("ipc: create socket dir: %w", err)
	}
	_ = os.Remove(socketPath) // stale socket from a crashed prior run

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0700); err != nil {
		l.Close()
		return nil, fmt.Errorf("ipc: chmod socket: %w", err)
	}
	return l, nil
}

// Dial connects to a Unix domain socket at socketPath, wrapping the
// connection in a Transport.
func Dial(ctx context.Context, socketPath string) (*Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", socketPath, err)
	}
	return NewTransport(conn), nil
}
