// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gpiopanel

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer serves a fresh panel on a loopback port.
func startServer(t *testing.T, opts ...ServerOption) (*Server, *Panel, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	panel := newTestPanel()
	opts = append([]ServerOption{WithServerLogger(discardLogger())}, opts...)
	srv := NewServer(panel, opts...)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	t.Cleanup(func() {
		srv.Close()
		assert.ErrorIs(t, <-done, ErrServerClosed)
	})

	return srv, panel, ln.Addr().String()
}

type testConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testConn) send(s string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(s))
	require.NoError(c.t, err)
}

func (c *testConn) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	require.True(c.t, strings.HasSuffix(line, "\r\n"), "reply %q not CRLF terminated", line)
	return strings.TrimSuffix(line, "\r\n")
}

func TestNewServer(t *testing.T) {
	server := NewServer(newTestPanel())
	require.NotNil(t, server)
	assert.Nil(t, server.Addr())
	assert.Equal(t, 0, server.ActiveSessions())
}

func TestServerWriteThenRead(t *testing.T) {
	_, _, addr := startServer(t)
	c := dial(t, addr)

	c.send("GPIO W a 20 3\r\nGPIO R a 16\r\n")
	assert.Equal(t, "GPIO R a0000000000000011", c.readLine())

	c.send("GPIO S a 16 5\r\nGPIO R a 16\r\n")
	assert.Equal(t, "GPIO R a0000000000000101", c.readLine())
}

func TestServerSplitLines(t *testing.T) {
	_, _, addr := startServer(t)
	c := dial(t, addr)

	for _, part := range []string{"GPIO S b 1", "6 1\r", "\nGPIO R", " b 16\r", "\n"} {
		c.send(part)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "GPIO R b0000000000000001", c.readLine())
}

func TestServerRejectedLinesKeepSession(t *testing.T) {
	_, panel, addr := startServer(t)
	c := dial(t, addr)

	c.send("junk\r\nGPIO W a 16 3\r\nGPIO R a 20\r\n\r\nGPIO R z 16\r\n")
	assert.Equal(t, ReplyUnsupported, c.readLine())

	c.send("GPIO R a 16\r\n")
	assert.Equal(t, "GPIO R a0000000000000000", c.readLine())
	assert.Equal(t, int64(2), panel.Metrics().Rejected.Value())
}

func TestServerDiscardsOverlongInput(t *testing.T) {
	srv, _, addr := startServer(t)
	c := dial(t, addr)

	c.send(strings.Repeat("x", MaxLineLength+1000))
	c.send("\r\nGPIO R c 16\r\n")
	assert.Equal(t, "GPIO R c0000000000000000", c.readLine())
	assert.GreaterOrEqual(t, srv.Metrics().Overflows.Value(), int64(1))
}

func TestServerSharedBanks(t *testing.T) {
	_, _, addr := startServer(t)
	writer := dial(t, addr)
	reader := dial(t, addr)

	writer.send("GPIO W d 20 65535\r\nGPIO R d 16\r\n")
	require.Equal(t, "GPIO R d1111111111111111", writer.readLine())

	reader.send("GPIO R d 16\r\n")
	assert.Equal(t, "GPIO R d1111111111111111", reader.readLine())
}

func TestServerConcurrentWriteRead(t *testing.T) {
	_, _, addr := startServer(t)
	writer := dial(t, addr)
	reader := dial(t, addr)

	ones := "GPIO R a" + strings.Repeat("1", PinCount)
	zeros := "GPIO R a" + strings.Repeat("0", PinCount)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := writer.conn.Write([]byte("GPIO W a 20 65535\r\nGPIO S a 16 0\r\n")); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		reader.send("GPIO R a 16\r\n")
		got := reader.readLine()
		if got != ones && got != zeros {
			t.Fatalf("torn read %q", got)
		}
	}
	wg.Wait()
}

func TestServerSessionRegistry(t *testing.T) {
	srv, _, addr := startServer(t)
	c := dial(t, addr)

	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 2*time.Second, 5*time.Millisecond)

	session, ok := srv.Session(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), session.ID())
	assert.Equal(t, c.conn.LocalAddr().String(), session.RemoteAddr().String())
	assert.NotEqual(t, StateClosed, session.State())

	c.conn.Close()
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)

	_, ok = srv.Session(1)
	assert.False(t, ok)
	assert.Equal(t, StateClosed, session.State())
	assert.Equal(t, int64(1), srv.Metrics().TotalSessions.Value())
	assert.Equal(t, int64(0), srv.Metrics().ActiveSessions.Value())
}

func TestServerMaxSessions(t *testing.T) {
	srv, _, addr := startServer(t, WithMaxSessions(1))
	first := dial(t, addr)
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 2*time.Second, 5*time.Millisecond)

	second := dial(t, addr)
	second.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := second.r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	first.send("GPIO R a 16\r\n")
	assert.Equal(t, "GPIO R a0000000000000000", first.readLine())
}

func TestServerIdleTimeout(t *testing.T) {
	srv, _, addr := startServer(t, WithIdleTimeout(50*time.Millisecond))
	c := dial(t, addr)

	c.send("GPIO R a 16\r\n")
	assert.Equal(t, "GPIO R a0000000000000000", c.readLine())

	require.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServerCloseEndsSessions(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(newTestPanel(), WithServerLogger(discardLogger()))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	c := dial(t, ln.Addr().String())
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, <-done, ErrServerClosed)
	assert.Equal(t, 0, srv.ActiveSessions())

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = c.r.ReadByte()
	assert.Error(t, err)

	// Close is idempotent and Serve refuses to restart.
	assert.NoError(t, srv.Close())
	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(ln2), ErrServerClosed)
}

func TestServerListenAndServeContext(t *testing.T) {
	srv := NewServer(newTestPanel(), WithServerLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServeContext(ctx, "127.0.0.1:0") }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	c := dial(t, srv.Addr().String())
	c.send("GPIO R b 16\r\n")
	assert.Equal(t, "GPIO R b0000000000000000", c.readLine())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(newTestPanel(), WithServerLogger(discardLogger()))
	err = srv.ListenAndServe(ln.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
