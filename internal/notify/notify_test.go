package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/gpiopanel"
)

// Compile-time interface checks.
var (
	_ Publisher          = (*FakePublisher)(nil)
	_ Publisher          = (*RealPublisher)(nil)
	_ gpiopanel.Notifier = (*FakePublisher)(nil)
	_ gpiopanel.Notifier = (*RealPublisher)(nil)
)

func TestBankTopic(t *testing.T) {
	assert.Equal(t, "gpiopanel/banks/a", BankTopic(DefaultTopic, "a"))
	assert.Equal(t, "lab/panel/c", BankTopic("lab/panel/", "c"))
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()
	require.NoError(t, f.PublishBank("a", "0000000000000011"))
	require.NoError(t, f.PublishBank("b", "1111111111111111"))

	assert.Equal(t, []Message{
		{Topic: "gpiopanel/banks/a", Payload: "0000000000000011"},
		{Topic: "gpiopanel/banks/b", Payload: "1111111111111111"},
	}, f.Recorded())

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)

	f.Reset()
	assert.Empty(t, f.Recorded())
	assert.False(t, f.Closed)
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	assert.EqualError(t, f.PublishBank("a", "0000000000000000"), "broker down")
	assert.Empty(t, f.Recorded())
}

func TestPanelPublishesMutations(t *testing.T) {
	f := NewFakePublisher()
	panel := gpiopanel.NewPanel(gpiopanel.NewStore(gpiopanel.Low), gpiopanel.WithNotifier(f))

	_, err := panel.Execute("GPIO W a 20 3")
	require.NoError(t, err)
	_, err = panel.Execute("GPIO S b 16 5")
	require.NoError(t, err)
	_, err = panel.Execute("GPIO R a 16")
	require.NoError(t, err)

	assert.Equal(t, []Message{
		{Topic: "gpiopanel/banks/a", Payload: "0000000000000011"},
		{Topic: "gpiopanel/banks/b", Payload: "0000000000000101"},
	}, f.Recorded())
}
