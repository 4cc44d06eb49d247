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
	"sync"

	"github.com/pkg/errors"
)

// Bank is one 16-pin register. Every element is Low or High.
type Bank [PinCount]byte

// NewBank returns a bank with every pin at level.
func NewBank(level byte) Bank {
	var b Bank
	for i := range b {
		b[i] = level
	}
	return b
}

// ParseBank parses a 16 character string of '0' and '1'.
func ParseBank(s string) (Bank, error) {
	var b Bank
	if len(s) != PinCount {
		return b, errors.Wrapf(ErrInvalidBank, "length %d", len(s))
	}
	copy(b[:], s)
	if err := b.Validate(); err != nil {
		return Bank{}, err
	}
	return b, nil
}

// Validate checks that every pin holds a binary level.
func (b Bank) Validate() error {
	for i, c := range b {
		if c != Low && c != High {
			return errors.Wrapf(ErrInvalidBank, "pin %d holds %q", i, c)
		}
	}
	return nil
}

// String returns the pins concatenated in stored order.
func (b Bank) String() string {
	return string(b[:])
}

// Store holds the six pin banks shared by every session and the console.
// It is safe for concurrent use; every replace is atomic with respect to
// readers.
type Store struct {
	mu    sync.RWMutex
	banks map[string]*Bank
}

// NewStore creates a store with all pins of all banks at level.
func NewStore(level byte) *Store {
	s := &Store{banks: make(map[string]*Bank, len(bankNames))}
	for _, name := range bankNames {
		b := NewBank(level)
		s.banks[name] = &b
	}
	return s
}

// Names returns the bank tags a..f.
func (s *Store) Names() []string {
	names := make([]string, len(bankNames))
	copy(names, bankNames)
	return names
}

// Bank returns a copy of the named bank.
func (s *Store) Bank(name string) (Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.banks[name]
	if !ok {
		return Bank{}, errors.Wrapf(ErrUnknownBank, "%q", name)
	}
	return *b, nil
}

// SetBank replaces all pins of the named bank.
func (s *Store) SetBank(name string, bank Bank) error {
	if err := bank.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.banks[name]
	if !ok {
		return errors.Wrapf(ErrUnknownBank, "%q", name)
	}
	*b = bank
	return nil
}

// Update replaces the named bank with the result of fn applied to its
// current content. fn runs under the store lock, so no other mutation can
// interleave. The bank is left untouched if fn returns an error.
func (s *Store) Update(name string, fn func(Bank) (Bank, error)) (Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.banks[name]
	if !ok {
		return Bank{}, errors.Wrapf(ErrUnknownBank, "%q", name)
	}

	next, err := fn(*b)
	if err != nil {
		return *b, err
	}
	if err := next.Validate(); err != nil {
		return *b, err
	}
	*b = next
	return next, nil
}

// Snapshot returns a consistent copy of every bank.
func (s *Store) Snapshot() map[string]Bank {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Bank, len(s.banks))
	for name, b := range s.banks {
		out[name] = *b
	}
	return out
}
