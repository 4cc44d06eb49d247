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
	"bytes"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

const readChunkSize = 512

var terminator = []byte(LineTerminator)

// Session is one live client connection. It buffers inbound bytes until a
// line terminator arrives and dispatches complete lines in arrival order.
type Session struct {
	id          uint64
	conn        net.Conn
	handler     Handler
	logger      *slog.Logger
	metrics     *ServerMetrics
	idleTimeout time.Duration

	state int32
	buf   []byte
}

func newSession(id uint64, conn net.Conn, handler Handler, opts *serverOptions, metrics *ServerMetrics) *Session {
	return &Session{
		id:          id,
		conn:        conn,
		handler:     handler,
		logger:      opts.logger.With(slog.Uint64("session", id), slog.String("remote", conn.RemoteAddr().String())),
		metrics:     metrics,
		idleTimeout: opts.idleTimeout,
	}
}

// ID returns the registry key of the session.
func (s *Session) ID() uint64 {
	return s.id
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(st SessionState) {
	atomic.StoreInt32(&s.state, int32(st))
}

// run reads until the peer disconnects or an I/O error occurs. The returned
// error is the one that ended the session.
func (s *Session) run() error {
	chunk := make([]byte, readChunkSize)
	for {
		if s.idleTimeout > 0 {
			s.conn.SetReadDeadline(timeNow().Add(s.idleTimeout))
		}

		n, err := s.conn.Read(chunk)
		if n > 0 {
			if ferr := s.feed(chunk[:n]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// feed appends data to the buffer and dispatches every complete line in it.
func (s *Session) feed(data []byte) error {
	s.buf = append(s.buf, data...)

	consumed := false
	for {
		i := bytes.Index(s.buf, terminator)
		if i < 0 {
			break
		}
		line := string(s.buf[:i])
		s.buf = s.buf[i+len(terminator):]
		consumed = true

		if err := s.dispatch(line); err != nil {
			return err
		}
	}

	if len(s.buf) > MaxLineLength {
		s.metrics.Overflows.Add(1)
		s.logger.Warn("discarding unterminated input",
			slog.Int("bytes", len(s.buf)))
		s.buf = nil
		return nil
	}

	if consumed {
		s.buf = append([]byte(nil), s.buf...)
	}
	return nil
}

func (s *Session) dispatch(line string) error {
	s.setState(StateDispatching)
	defer s.setState(StateAwaitingData)

	s.metrics.Lines.Add(1)
	reply, err := s.handler.Execute(line)
	if err != nil {
		s.logger.Debug("line dropped",
			slog.String("line", strconv.Quote(line)),
			slog.String("error", err.Error()))
	}
	if reply == "" {
		return nil
	}

	if _, err := s.conn.Write([]byte(reply + LineTerminator)); err != nil {
		s.metrics.WriteErrors.Add(1)
		return err
	}
	s.metrics.Replies.Add(1)
	return nil
}
