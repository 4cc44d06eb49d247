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

// Package gpiopanel emulates a GPIO/PWM controller panel behind a TCP line
// protocol. Remote sessions and a local console drive the same six virtual
// 16-pin banks.
package gpiopanel

import "time"

// Protocol constants.
const (
	// PinCount is the number of pins in every bank.
	PinCount = 16

	// RegisterWrite is the register address accepted by GPIO W.
	RegisterWrite = 20

	// RegisterReadSet is the register address accepted by GPIO R and GPIO S.
	RegisterReadSet = 16

	// MaxNumberDigits bounds the decimal register and value tokens.
	MaxNumberDigits = 5

	// MaxLineLength is the longest partial line a session buffers before
	// discarding it.
	MaxLineLength = 4096

	// LineTerminator ends every line on a socket session.
	LineTerminator = "\r\n"

	// ReplyUnsupported is sent for a read of an unknown bank.
	ReplyUnsupported = "Unsupported"

	// DefaultPort is the default panel TCP port.
	DefaultPort = 4321

	// DefaultPrompt is the local console prompt.
	DefaultPrompt = "(Netduino Plus 2) "

	// DefaultInputTimeout bounds a single wait for console input.
	DefaultInputTimeout = 5 * time.Second
)

// Pin levels as stored in a bank.
const (
	Low  byte = '0'
	High byte = '1'
)

// bankNames lists the bank tags in address order.
var bankNames = []string{"a", "b", "c", "d", "e", "f"}

// IsBankName reports whether name is one of the bank tags a..f.
func IsBankName(name string) bool {
	for _, n := range bankNames {
		if n == name {
			return true
		}
	}
	return false
}

// Op identifies a parsed command family.
type Op int

const (
	OpWrite Op = iota + 1
	OpRead
	OpSet
	OpPWMPan
	OpPWMTilt
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpSet:
		return "set"
	case OpPWMPan:
		return "pwm_pan"
	case OpPWMTilt:
		return "pwm_tilt"
	default:
		return "unknown"
	}
}

// Handler executes one command line and returns the reply to send back, if
// any. An empty reply means nothing is written to the peer.
type Handler interface {
	Execute(line string) (string, error)
}

// SessionState represents the state of a client session.
type SessionState int

const (
	StateAwaitingData SessionState = iota
	StateDispatching
	StateClosed
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case StateAwaitingData:
		return "awaiting_data"
	case StateDispatching:
		return "dispatching"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
