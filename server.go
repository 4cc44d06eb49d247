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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Server accepts panel connections and runs one Session per connection, all
// bound to the same Handler.
type Server struct {
	handler Handler
	opts    *serverOptions

	mu       sync.Mutex
	listener net.Listener
	sessions map[uint64]*Session
	nextID   uint64
	closed   int32
	wg       sync.WaitGroup
	metrics  *ServerMetrics
}

// NewServer creates a new panel server.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	options := defaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Server{
		handler:  handler,
		opts:     options,
		sessions: make(map[uint64]*Session),
		metrics:  &ServerMetrics{},
	}
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *ServerMetrics {
	return s.metrics
}

// ListenAndServe starts the server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(listener)
}

// ListenAndServeContext starts the server and closes it when ctx is done.
// A shutdown caused by ctx returns nil.
func (s *Server) ListenAndServeContext(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	err = s.Serve(listener)
	if errors.Is(err, ErrServerClosed) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Serve accepts connections on listener until Close is called. It always
// returns a non-nil error; after Close that error is ErrServerClosed.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if atomic.LoadInt32(&s.closed) == 1 {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()
	s.opts.logger.Info("serving access to gpio panel", slog.String("addr", listener.Addr().String()))

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closed) == 1 {
				return ErrServerClosed
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.opts.logger.Error("accept error",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.onAccept(conn)
	}
}

// onAccept registers a session for conn and starts reading from it.
func (s *Server) onAccept(conn net.Conn) {
	s.mu.Lock()
	if atomic.LoadInt32(&s.closed) == 1 {
		s.mu.Unlock()
		conn.Close()
		return
	}
	if s.opts.maxSessions > 0 && len(s.sessions) >= s.opts.maxSessions {
		s.mu.Unlock()
		s.opts.logger.Warn("max sessions reached, rejecting",
			slog.String("remote", conn.RemoteAddr().String()))
		conn.Close()
		return
	}
	s.nextID++
	session := newSession(s.nextID, conn, s.handler, s.opts, s.metrics)
	s.sessions[session.id] = session
	s.metrics.ActiveSessions.Add(1)
	s.metrics.TotalSessions.Add(1)
	s.wg.Add(1)
	s.mu.Unlock()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		if s.opts.keepAlive > 0 {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(s.opts.keepAlive)
		}
	}

	go s.handleSession(session)
}

func (s *Server) handleSession(session *Session) {
	defer func() {
		if r := recover(); r != nil {
			session.logger.Error("panic in session",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		s.onSessionClosed(session)
		s.wg.Done()
	}()

	session.logger.Info("accepting connection")

	err := session.run()
	if err != nil && !errors.Is(err, io.EOF) && atomic.LoadInt32(&s.closed) == 0 {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			session.logger.Debug("session error", slog.String("error", err.Error()))
		}
	}
}

// onSessionClosed removes session from the registry and releases its
// connection.
func (s *Server) onSessionClosed(session *Session) {
	session.setState(StateClosed)
	session.conn.Close()

	s.mu.Lock()
	if _, ok := s.sessions[session.id]; ok {
		delete(s.sessions, session.id)
		s.metrics.ActiveSessions.Add(-1)
	}
	s.mu.Unlock()

	session.logger.Info("closing the handle")
}

// Close stops accepting, closes every session and waits for them to finish.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for _, session := range s.sessions {
		session.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.opts.logger.Info("server stopped")
	return err
}

// Addr returns the server's address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ActiveSessions returns the number of registered sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Session returns the registered session with id.
func (s *Server) Session(id uint64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// timeNow is a variable for testing
var timeNow = time.Now
