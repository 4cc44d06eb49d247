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
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *recordingHandler) Execute(line string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
	return "", nil
}

func (h *recordingHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

func TestConsoleRunsUntilEOF(t *testing.T) {
	panel := newTestPanel()
	var out bytes.Buffer
	console := NewConsole(strings.NewReader("GPIO W a 20 3\nGPIO R a 16\n"), &out, panel,
		WithConsoleLogger(discardLogger()))

	require.NoError(t, console.Run(context.Background()))

	bank, err := panel.Store().Bank("a")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000011", bank.String())
	assert.Equal(t, strings.Repeat(DefaultPrompt, 3), out.String())
}

func TestConsoleSkipsBlankLines(t *testing.T) {
	h := &recordingHandler{}
	console := NewConsole(strings.NewReader("\n   \n  GPIO R a 16  \n"), io.Discard, h,
		WithConsoleLogger(discardLogger()))

	require.NoError(t, console.Run(context.Background()))
	assert.Equal(t, []string{"GPIO R a 16"}, h.recorded())
}

func TestConsoleTimeoutClearsPrompt(t *testing.T) {
	panel := newTestPanel()
	pr, pw := io.Pipe()
	var out bytes.Buffer
	console := NewConsole(pr, &out, panel,
		WithConsoleLogger(discardLogger()),
		WithPrompt("> "),
		WithInputTimeout(20*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- console.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	_, err := pw.Write([]byte("GPIO S a 16 1\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}

	// One prompt before the timeouts, one after the line.
	assert.Equal(t, "> > ", out.String())

	bank, err := panel.Store().Bank("a")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000001", bank.String())
}

func TestConsoleContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	console := NewConsole(pr, io.Discard, &recordingHandler{}, WithConsoleLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- console.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
}

func TestConsoleReadError(t *testing.T) {
	boom := errors.New("boom")
	console := NewConsole(iotest.ErrReader(boom), io.Discard, &recordingHandler{},
		WithConsoleLogger(discardLogger()))

	err := console.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
