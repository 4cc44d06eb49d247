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
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Notifier receives the new content of a bank after every Write or Set.
type Notifier interface {
	PublishBank(name, bits string) error
}

// Panel applies command lines to a Store. It implements Handler and is the
// single entry point shared by socket sessions and the local console.
type Panel struct {
	store   *Store
	opts    *panelOptions
	logger  *slog.Logger
	metrics *PanelMetrics

	// publishMu is held from a mutation until its state is published, so
	// the last retained publication always matches the store.
	publishMu sync.Mutex
}

// NewPanel creates a Panel bound to store.
func NewPanel(store *Store, opts ...PanelOption) *Panel {
	options := defaultPanelOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Panel{
		store:   store,
		opts:    options,
		logger:  options.logger,
		metrics: NewPanelMetrics(),
	}
}

// Store returns the store the panel mutates.
func (p *Panel) Store() *Store {
	return p.store
}

// Metrics returns the panel metrics.
func (p *Panel) Metrics() *PanelMetrics {
	return p.metrics
}

// Execute parses and applies one line. The returned reply is empty for every
// command except Read. A non-nil error means the line was dropped; it never
// signals a connection fault.
func (p *Panel) Execute(line string) (string, error) {
	start := timeNow()

	cmd, err := ParseCommand(line)
	if err != nil {
		p.metrics.Rejected.Add(1)
		p.logger.Info("received invalid command",
			slog.String("line", strconv.Quote(line)),
			slog.String("error", err.Error()))
		return "", err
	}

	reply, err := p.apply(cmd)
	p.metrics.observe(cmd.Op, timeNow().Sub(start), err)
	return reply, err
}

func (p *Panel) apply(cmd Command) (string, error) {
	switch cmd.Op {
	case OpWrite:
		return "", p.write(cmd)
	case OpRead:
		return p.read(cmd)
	case OpSet:
		return "", p.set(cmd)
	case OpPWMPan, OpPWMTilt:
		p.logger.Info("pwm angle",
			slog.String("axis", cmd.Op.String()),
			slog.Int("degrees", cmd.Angle))
		return "", nil
	default:
		return "", errors.Wrapf(ErrMalformedCommand, "op %d", cmd.Op)
	}
}

func (p *Panel) write(cmd Command) error {
	p.logger.Info("write",
		slog.String("bank", cmd.Bank),
		slog.String("address", "0x"+strconv.FormatUint(uint64(cmd.Register), 16)),
		slog.String("value", "0b"+strconv.FormatUint(uint64(cmd.Value), 2)))

	if cmd.Register != RegisterWrite {
		err := errors.Wrapf(ErrUnexpectedRegister, "write addressed to %d", cmd.Register)
		p.logger.Warn("write dropped", slog.String("error", err.Error()))
		return err
	}

	err := p.mutate(cmd.Bank, func(b Bank) (Bank, error) {
		return EncodeWrite(b, cmd.Value)
	})
	if err != nil {
		p.logger.Warn("write dropped", slog.String("error", err.Error()))
	}
	return err
}

func (p *Panel) read(cmd Command) (string, error) {
	p.logger.Debug("read",
		slog.String("bank", cmd.Bank),
		slog.String("address", "0x"+strconv.FormatUint(uint64(cmd.Register), 16)))

	if cmd.Register != RegisterReadSet {
		return "", errors.Wrapf(ErrUnexpectedRegister, "read addressed to %d", cmd.Register)
	}

	bank, err := p.store.Bank(cmd.Bank)
	if errors.Is(err, ErrUnknownBank) {
		return ReplyUnsupported, nil
	}
	if err != nil {
		return "", err
	}
	return FormatRead(cmd.Bank, bank, p.opts.readSeparator), nil
}

func (p *Panel) set(cmd Command) error {
	p.logger.Info("set",
		slog.String("bank", cmd.Bank),
		slog.String("address", "0x"+strconv.FormatUint(uint64(cmd.Register), 16)),
		slog.String("value", "0b"+strconv.FormatUint(uint64(cmd.Value), 2)))

	if cmd.Register != RegisterReadSet {
		err := errors.Wrapf(ErrUnexpectedRegister, "set addressed to %d", cmd.Register)
		p.logger.Warn("set dropped", slog.String("error", err.Error()))
		return err
	}

	err := p.mutate(cmd.Bank, func(Bank) (Bank, error) {
		return EncodeSet(cmd.Value), nil
	})
	if err != nil {
		p.logger.Warn("set dropped", slog.String("error", err.Error()))
	}
	return err
}

// mutate applies fn to the named bank and publishes the result. With a
// notifier configured, mutations and their publications are serialized.
func (p *Panel) mutate(name string, fn func(Bank) (Bank, error)) error {
	if p.opts.notifier != nil {
		p.publishMu.Lock()
		defer p.publishMu.Unlock()
	}

	bank, err := p.store.Update(name, fn)
	if err != nil {
		return err
	}
	p.notify(name, bank)
	return nil
}

func (p *Panel) notify(name string, bank Bank) {
	if p.opts.notifier == nil {
		return
	}
	if err := p.opts.notifier.PublishBank(name, bank.String()); err != nil {
		p.metrics.NotifyErrors.Add(1)
		p.logger.Warn("bank publish failed",
			slog.String("bank", name),
			slog.String("error", err.Error()))
	}
}
