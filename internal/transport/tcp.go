// Package transport carries CRLF-terminated lines over TCP.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

const terminator = "\r\n"

// ErrNotConnected is returned by operations on a closed transport.
var ErrNotConnected = errors.New("not connected")

// TCPTransport is a line transport over one TCP connection.
type TCPTransport struct {
	addr    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewTCPTransport creates a new TCP transport.
func NewTCPTransport(addr string, timeout time.Duration) *TCPTransport {
	return &TCPTransport{
		addr:    addr,
		timeout: timeout,
	}
}

// Connect establishes a TCP connection.
func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	dialer := &net.Dialer{
		Timeout:   t.timeout,
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("tcp connect: %w", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	t.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the TCP connection.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

// IsConnected returns true if the transport is connected.
func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Send writes line with a terminator. If expectReply is set it then reads
// one reply line and returns it without its terminator.
// The lock is held for the whole exchange so replies cannot be interleaved.
func (t *TCPTransport) Send(ctx context.Context, line string, expectReply bool) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return "", ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.timeout)
	}
	if err := t.conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := t.conn.Write([]byte(line + terminator)); err != nil {
		t.closeConnLocked()
		return "", fmt.Errorf("write: %w", err)
	}
	if !expectReply {
		return "", nil
	}

	reply, err := t.reader.ReadString('\n')
	if err != nil {
		t.closeConnLocked()
		return "", fmt.Errorf("read reply: %w", err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(reply, "\n"), "\r"), nil
}

// closeConnLocked closes the connection without acquiring the lock.
// Must be called with mu held.
func (t *TCPTransport) closeConnLocked() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
		t.reader = nil
	}
}
