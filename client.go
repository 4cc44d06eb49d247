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
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/edgeo-scada/gpiopanel/internal/transport"
)

// Client drives a remote panel over its line protocol.
type Client struct {
	addr string
	opts *clientOptions

	transport *transport.TCPTransport

	mu     sync.Mutex
	closed bool
	logger *slog.Logger
}

// NewClient creates a new panel client for addr.
func NewClient(addr string, opts ...ClientOption) (*Client, error) {
	if addr == "" {
		return nil, errors.New("gpiopanel: address cannot be empty")
	}

	options := defaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Client{
		addr:      addr,
		opts:      options,
		transport: transport.NewTCPTransport(addr, options.timeout),
		logger:    options.logger,
	}, nil
}

// Connect establishes the connection to the panel.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	c.logger.Debug("connecting", slog.String("addr", c.addr))
	if err := c.transport.Connect(ctx); err != nil {
		return errors.Wrapf(err, "connect %s", c.addr)
	}
	c.logger.Info("connected", slog.String("addr", c.addr))
	return nil
}

// Close closes the client connection. A closed client cannot reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Debug("closing connection", slog.String("addr", c.addr))
	return c.transport.Close()
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

// Address returns the panel address.
func (c *Client) Address() string {
	return c.addr
}

// Exec sends one raw command line. The line is parsed locally first so that
// only a read waits for a reply; every other command returns "".
func (c *Client) Exec(ctx context.Context, line string) (string, error) {
	cmd, err := ParseCommand(strings.TrimSpace(line))
	if err != nil {
		return "", err
	}
	return c.send(ctx, cmd)
}

// ReadBank reads the named bank.
func (c *Client) ReadBank(ctx context.Context, name string) (Bank, error) {
	reply, err := c.do(ctx, Command{Op: OpRead, Bank: name, Register: RegisterReadSet})
	if err != nil {
		return Bank{}, err
	}
	return ParseReadReply(name, reply)
}

// WriteBank sends a scattered write of value to the named bank. A value
// wider than a bank is rejected locally with ErrValueOverflow, since the
// panel drops it without a reply.
func (c *Client) WriteBank(ctx context.Context, name string, value uint32) error {
	if value > (1<<PinCount)-1 {
		return errors.Wrapf(ErrValueOverflow, "%d", value)
	}
	_, err := c.do(ctx, Command{Op: OpWrite, Bank: name, Register: RegisterWrite, Value: value})
	return err
}

// SetBank sends a set of value to the named bank. Any value the grammar
// accepts is valid; the panel keeps its 15 low-order bits.
func (c *Client) SetBank(ctx context.Context, name string, value uint32) error {
	_, err := c.do(ctx, Command{Op: OpSet, Bank: name, Register: RegisterReadSet, Value: value})
	return err
}

// Pan sends a pan angle.
func (c *Client) Pan(ctx context.Context, angle int) error {
	_, err := c.do(ctx, Command{Op: OpPWMPan, Angle: angle})
	return err
}

// Tilt sends a tilt angle.
func (c *Client) Tilt(ctx context.Context, angle int) error {
	_, err := c.do(ctx, Command{Op: OpPWMTilt, Angle: angle})
	return err
}

// do checks cmd against the grammar before sending it. A line the panel
// would reject as malformed gets no reply, so a read of it would only time out.
func (c *Client) do(ctx context.Context, cmd Command) (string, error) {
	if _, err := ParseCommand(cmd.String()); err != nil {
		return "", err
	}
	return c.send(ctx, cmd)
}

func (c *Client) send(ctx context.Context, cmd Command) (string, error) {
	line := cmd.String()
	c.logger.Debug("sending", slog.String("line", line))

	reply, err := c.transport.Send(ctx, line, cmd.Op == OpRead)
	if errors.Is(err, transport.ErrNotConnected) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", errors.Wrapf(err, "send %q", line)
	}
	return reply, nil
}
