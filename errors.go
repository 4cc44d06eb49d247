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
	"github.com/pkg/errors"
)

// Common errors.
var (
	// ErrMalformedCommand indicates a line that matches no command pattern.
	ErrMalformedCommand = errors.New("gpiopanel: malformed command")

	// ErrUnexpectedRegister indicates a recognized command addressed to the
	// wrong register.
	ErrUnexpectedRegister = errors.New("gpiopanel: unexpected register address")

	// ErrUnknownBank indicates a bank tag outside a..f.
	ErrUnknownBank = errors.New("gpiopanel: unknown bank")

	// ErrValueOverflow indicates a write value wider than a bank.
	ErrValueOverflow = errors.New("gpiopanel: value wider than bank")

	// ErrInvalidBank indicates bank content that is not 16 binary characters.
	ErrInvalidBank = errors.New("gpiopanel: invalid bank content")

	// ErrServerClosed indicates the server has been closed.
	ErrServerClosed = errors.New("gpiopanel: server closed")

	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("gpiopanel: not connected")
)

// IsMalformed reports whether err was caused by an unparseable line.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedCommand)
}

// IsRejected reports whether err is a per-line rejection, as opposed to a
// fault. Rejected lines never close a session.
func IsRejected(err error) bool {
	return errors.Is(err, ErrMalformedCommand) ||
		errors.Is(err, ErrUnexpectedRegister) ||
		errors.Is(err, ErrUnknownBank) ||
		errors.Is(err, ErrValueOverflow)
}
