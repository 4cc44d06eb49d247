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
	"log/slog"
	"time"
)

// PanelOption is a functional option for configuring the panel.
type PanelOption func(*panelOptions)

type panelOptions struct {
	logger        *slog.Logger
	notifier      Notifier
	readSeparator string
}

func defaultPanelOptions() *panelOptions {
	return &panelOptions{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the panel.
func WithLogger(logger *slog.Logger) PanelOption {
	return func(o *panelOptions) {
		o.logger = logger
	}
}

// WithNotifier sets a notifier that receives every bank mutation.
func WithNotifier(n Notifier) PanelOption {
	return func(o *panelOptions) {
		o.notifier = n
	}
}

// WithReadSeparator sets the text placed between the bank tag and the bits
// in a read reply. The default is empty ("GPIO R a0000...").
func WithReadSeparator(sep string) PanelOption {
	return func(o *panelOptions) {
		o.readSeparator = sep
	}
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger      *slog.Logger
	maxSessions int
	idleTimeout time.Duration
	keepAlive   time.Duration
}

func defaultServerOptions() *serverOptions {
	return &serverOptions{
		logger:    slog.Default(),
		keepAlive: 30 * time.Second,
	}
}

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithMaxSessions caps concurrent sessions. Zero means unlimited.
func WithMaxSessions(n int) ServerOption {
	return func(o *serverOptions) {
		o.maxSessions = n
	}
}

// WithIdleTimeout closes a session that sends nothing for d. Zero disables
// the timeout.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.idleTimeout = d
	}
}

// WithKeepAlive sets the TCP keep-alive period. Zero disables keep-alive.
func WithKeepAlive(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.keepAlive = d
	}
}

// ConsoleOption is a functional option for configuring the console.
type ConsoleOption func(*consoleOptions)

type consoleOptions struct {
	logger  *slog.Logger
	prompt  string
	timeout time.Duration
}

func defaultConsoleOptions() *consoleOptions {
	return &consoleOptions{
		logger:  slog.Default(),
		prompt:  DefaultPrompt,
		timeout: DefaultInputTimeout,
	}
}

// WithConsoleLogger sets the logger for the console.
func WithConsoleLogger(logger *slog.Logger) ConsoleOption {
	return func(o *consoleOptions) {
		o.logger = logger
	}
}

// WithPrompt sets the console prompt.
func WithPrompt(prompt string) ConsoleOption {
	return func(o *consoleOptions) {
		o.prompt = prompt
	}
}

// WithInputTimeout sets how long the console waits for a line before
// re-prompting.
func WithInputTimeout(d time.Duration) ConsoleOption {
	return func(o *consoleOptions) {
		o.timeout = d
	}
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	logger  *slog.Logger
}

func defaultClientOptions() *clientOptions {
	return &clientOptions{
		timeout: 5 * time.Second,
		logger:  slog.Default(),
	}
}

// WithTimeout sets the dial and reply timeout for the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}
