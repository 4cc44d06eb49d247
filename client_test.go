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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	client, err := NewClient(addr,
		WithTimeout(2*time.Second),
		WithClientLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Connect(context.Background()))
	require.True(t, client.IsConnected())
	return client
}

func TestNewClientEmptyAddress(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestClientBanks(t *testing.T) {
	_, _, addr := startServer(t)
	client := newTestClient(t, addr)
	ctx := context.Background()

	require.NoError(t, client.WriteBank(ctx, "a", 3))
	bank, err := client.ReadBank(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000011", bank.String())

	require.NoError(t, client.SetBank(ctx, "b", 5))
	bank, err = client.ReadBank(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000101", bank.String())

	require.NoError(t, client.Pan(ctx, -4))
	require.NoError(t, client.Tilt(ctx, 9))
}

func TestClientReadUnknownBank(t *testing.T) {
	_, _, addr := startServer(t)
	client := newTestClient(t, addr)

	_, err := client.ReadBank(context.Background(), "z")
	assert.ErrorIs(t, err, ErrUnknownBank)
}

func TestClientExec(t *testing.T) {
	_, panel, addr := startServer(t)
	client := newTestClient(t, addr)
	ctx := context.Background()

	reply, err := client.Exec(ctx, "GPIO S c 16 255")
	require.NoError(t, err)
	assert.Empty(t, reply)

	reply, err = client.Exec(ctx, "  GPIO R c 16 ")
	require.NoError(t, err)
	assert.Equal(t, "GPIO R c0000000011111111", reply)

	_, err = client.Exec(ctx, "hello")
	assert.True(t, IsMalformed(err))
	assert.Equal(t, int64(0), panel.Metrics().Rejected.Value())
}

func TestClientRejectsLocally(t *testing.T) {
	_, panel, addr := startServer(t)
	client := newTestClient(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := client.ReadBank(ctx, "zz")
	assert.ErrorIs(t, err, ErrMalformedCommand)

	_, err = client.ReadBank(ctx, "")
	assert.ErrorIs(t, err, ErrMalformedCommand)

	assert.ErrorIs(t, client.SetBank(ctx, "a", 100000), ErrMalformedCommand)
	assert.ErrorIs(t, client.Pan(ctx, 15), ErrMalformedCommand)
	assert.ErrorIs(t, client.WriteBank(ctx, "a", 65536), ErrValueOverflow)

	// Nothing reached the panel and the connection is still usable.
	require.NoError(t, client.WriteBank(ctx, "a", 65535))
	bank, err := client.ReadBank(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1111111111111111", bank.String())
	assert.Equal(t, int64(0), panel.Metrics().Rejected.Value())
}

func TestClientClosed(t *testing.T) {
	_, _, addr := startServer(t)
	client := newTestClient(t, addr)
	ctx := context.Background()

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())

	_, err := client.ReadBank(ctx, "a")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, client.Connect(ctx), ErrNotConnected)
	assert.NoError(t, client.Close())
}

func TestClientConnectRefused(t *testing.T) {
	client, err := NewClient("127.0.0.1:1", WithTimeout(time.Second), WithClientLogger(discardLogger()))
	require.NoError(t, err)
	assert.Error(t, client.Connect(context.Background()))
	assert.Equal(t, "127.0.0.1:1", client.Address())
}
