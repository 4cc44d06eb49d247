// Package notify publishes bank state to an MQTT broker.
package notify

import (
	"strings"
	"sync"
)

// DefaultTopic is the topic prefix bank states are published under.
const DefaultTopic = "gpiopanel/banks"

// Publisher publishes bank state. It satisfies gpiopanel.Notifier.
type Publisher interface {
	// PublishBank sends the bits of one bank.
	// Returns error if publishing fails (must not crash the panel).
	PublishBank(name, bits string) error

	// Close disconnects from the broker.
	Close() error
}

// BankTopic returns the topic for bank name under prefix.
func BankTopic(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// Message is one recorded publication.
type Message struct {
	Topic   string
	Payload string
}

// FakePublisher records published banks for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Topic is the prefix recorded messages are placed under.
	Topic string

	// Messages contains every publication in order.
	Messages []Message

	// PublishError, if set, will be returned by PublishBank.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Topic: DefaultTopic}
}

// PublishBank records the bank.
func (f *FakePublisher) PublishBank(name, bits string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Topic: BankTopic(f.Topic, name), Payload: bits})
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Recorded returns a copy of the recorded messages.
func (f *FakePublisher) Recorded() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.Messages...)
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.PublishError = nil
	f.Closed = false
}
