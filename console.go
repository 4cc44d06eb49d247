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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Console is the local command source. It reads command lines from an
// interactive input and applies them to the handler directly; replies are
// logged rather than written back.
type Console struct {
	in      io.Reader
	out     io.Writer
	handler Handler
	opts    *consoleOptions
	logger  *slog.Logger
}

// NewConsole creates a console reading from in and prompting on out.
func NewConsole(in io.Reader, out io.Writer, handler Handler, opts ...ConsoleOption) *Console {
	options := defaultConsoleOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Console{
		in:      in,
		out:     out,
		handler: handler,
		opts:    options,
		logger:  options.logger,
	}
}

// Run prompts and executes lines until the input ends or ctx is done.
// Each wait for a line is bounded by the input timeout; after a timeout the
// next prompt is empty. End of input returns nil and is the caller's signal
// to shut down.
//
// When ctx ends first, Run returns at once but the goroutine reading the
// input stays blocked until that read returns; closing the input releases
// it. With os.Stdin it lives until the process exits.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go c.readLines(ctx, lines, readErr)

	prompt := c.opts.prompt
	for {
		fmt.Fprint(c.out, prompt)

		var timeout <-chan time.Time
		if c.opts.timeout > 0 {
			timeout = time.After(c.opts.timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			prompt = ""
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read console: %w", err)
				}
				c.logger.Info("end of console input")
				return nil
			}
			prompt = c.opts.prompt
			c.execute(line)
		}
	}
}

// readLines feeds lines until EOF, then closes lines. A read error other
// than EOF is delivered on errc.
func (c *Console) readLines(ctx context.Context, lines chan<- string, errc chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	errc <- scanner.Err()
}

func (c *Console) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	reply, err := c.handler.Execute(line)
	if reply != "" {
		c.logger.Info("console reply", slog.String("reply", reply))
	}
	if err != nil {
		c.logger.Debug("console line dropped", slog.String("error", err.Error()))
	}
}
