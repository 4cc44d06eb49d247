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
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Command keywords.
const (
	keywordGPIO = "GPIO"
	keywordPWM  = "PWM"
	verbWrite   = "W"
	verbRead    = "R"
	verbSet     = "S"
	axisPan     = "Pan"
	axisTilt    = "Tilt"
)

// binaryPrefix is the marker that precedes the digits in the rendering walked
// by EncodeSet.
const binaryPrefix = "0b"

// Command is a parsed command line.
type Command struct {
	Op       Op
	Bank     string // GPIO commands only
	Register uint32 // GPIO commands only
	Value    uint32 // GPIO W and GPIO S only
	Angle    int    // PWM commands only
}

// String renders the command in its canonical line form, without terminator.
func (c Command) String() string {
	switch c.Op {
	case OpWrite:
		return fmt.Sprintf("%s %s %s %d %d", keywordGPIO, verbWrite, c.Bank, c.Register, c.Value)
	case OpRead:
		return fmt.Sprintf("%s %s %s %d", keywordGPIO, verbRead, c.Bank, c.Register)
	case OpSet:
		return fmt.Sprintf("%s %s %s %d %d", keywordGPIO, verbSet, c.Bank, c.Register, c.Value)
	case OpPWMPan:
		return fmt.Sprintf("%s %s %s %d", keywordPWM, verbWrite, axisPan, c.Angle)
	case OpPWMTilt:
		return fmt.Sprintf("%s %s %s %d", keywordPWM, verbWrite, axisTilt, c.Angle)
	default:
		return ""
	}
}

// ParseCommand parses one line into a Command. Tokens are separated by
// exactly one space; leading, trailing or repeated spaces and any other
// whitespace make the line malformed. It checks syntax only; the register
// precondition and the bank tag are checked when the command is applied.
// Every error wraps ErrMalformedCommand.
func ParseCommand(line string) (Command, error) {
	if line == "" {
		return Command{}, errors.Wrap(ErrMalformedCommand, "empty line")
	}
	fields := strings.Split(line, " ")
	for i, f := range fields {
		if f == "" {
			return Command{}, errors.Wrapf(ErrMalformedCommand, "empty token at %d", i)
		}
	}

	switch fields[0] {
	case keywordGPIO:
		return parseGPIO(fields)
	case keywordPWM:
		return parsePWM(fields)
	default:
		return Command{}, errors.Wrapf(ErrMalformedCommand, "unknown keyword %q", fields[0])
	}
}

func parseGPIO(fields []string) (Command, error) {
	if len(fields) < 2 {
		return Command{}, errors.Wrap(ErrMalformedCommand, "missing GPIO verb")
	}

	var cmd Command
	want := 5
	switch fields[1] {
	case verbWrite:
		cmd.Op = OpWrite
	case verbRead:
		cmd.Op = OpRead
		want = 4
	case verbSet:
		cmd.Op = OpSet
	default:
		return Command{}, errors.Wrapf(ErrMalformedCommand, "unknown GPIO verb %q", fields[1])
	}
	if len(fields) != want {
		return Command{}, errors.Wrapf(ErrMalformedCommand, "GPIO %s takes %d tokens, got %d",
			fields[1], want, len(fields))
	}

	if len(fields[2]) != 1 {
		return Command{}, errors.Wrapf(ErrMalformedCommand, "bank tag %q", fields[2])
	}
	cmd.Bank = fields[2]

	reg, err := parseNumber(fields[3])
	if err != nil {
		return Command{}, errors.Wrap(err, "register")
	}
	cmd.Register = reg

	if cmd.Op != OpRead {
		val, err := parseNumber(fields[4])
		if err != nil {
			return Command{}, errors.Wrap(err, "value")
		}
		cmd.Value = val
	}
	return cmd, nil
}

func parsePWM(fields []string) (Command, error) {
	if len(fields) != 4 || fields[1] != verbWrite {
		return Command{}, errors.Wrap(ErrMalformedCommand, "PWM takes the form PWM W <axis> <angle>")
	}

	var cmd Command
	switch fields[2] {
	case axisPan:
		cmd.Op = OpPWMPan
	case axisTilt:
		cmd.Op = OpPWMTilt
	default:
		return Command{}, errors.Wrapf(ErrMalformedCommand, "unknown PWM axis %q", fields[2])
	}

	angle, err := parseAngle(fields[3])
	if err != nil {
		return Command{}, err
	}
	cmd.Angle = angle
	return cmd, nil
}

// parseNumber accepts 1 to MaxNumberDigits decimal digits.
func parseNumber(tok string) (uint32, error) {
	if len(tok) == 0 || len(tok) > MaxNumberDigits || !isDigits(tok) {
		return 0, errors.Wrapf(ErrMalformedCommand, "number %q", tok)
	}
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedCommand, "number %q: %v", tok, err)
	}
	return uint32(n), nil
}

// parseAngle accepts a single digit with an optional '-', '+' or '0' lead.
func parseAngle(tok string) (int, error) {
	ok := false
	switch len(tok) {
	case 1:
		ok = isDigits(tok)
	case 2:
		ok = strings.ContainsRune("-+0", rune(tok[0])) && isDigits(tok[1:])
	}
	if !ok {
		return 0, errors.Wrapf(ErrMalformedCommand, "angle %q", tok)
	}
	return strconv.Atoi(tok)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// EncodeWrite scatters the binary digits of value into a copy of existing.
// Digit i, counted from the most significant digit, lands at position 15-i.
// Positions beyond the digit width keep their prior level, so a shorter write
// leaves the residue of an earlier longer one in place.
func EncodeWrite(existing Bank, value uint32) (Bank, error) {
	digits := strconv.FormatUint(uint64(value), 2)
	if len(digits) > PinCount {
		return existing, errors.Wrapf(ErrValueOverflow, "%d needs %d pins", value, len(digits))
	}

	out := existing
	for i := 0; i < len(digits); i++ {
		out[PinCount-1-i] = digits[i]
	}
	return out, nil
}

// EncodeSet zeroes a bank and walks the prefixed binary rendering of value
// from its least significant digit, filling positions 15, 14, ... until the
// walk meets the 'b' marker.
//
// The walk starts one step early: step 0 reads the first character of the
// rendering (the prefix's '0') into position 0. Only 15 steps remain after
// that, so at most 15 low-order digits survive.
func EncodeSet(value uint32) Bank {
	out := NewBank(Low)
	rendered := binaryPrefix + strconv.FormatUint(uint64(value), 2)
	n := len(rendered)

	for i := 0; i < PinCount; i++ {
		c := rendered[(n-i)%n]
		if c == binaryPrefix[1] {
			break
		}
		out[(PinCount-i)%PinCount] = c
	}
	return out
}

// FormatRead renders the reply to a read of bank.
func FormatRead(name string, bank Bank, separator string) string {
	return keywordGPIO + " " + verbRead + " " + name + separator + bank.String()
}

// ParseReadReply parses the reply to a read of bank name. A reply of
// ReplyUnsupported yields ErrUnknownBank. Any run of spaces between the tag
// and the bits is accepted.
func ParseReadReply(name, reply string) (Bank, error) {
	if reply == ReplyUnsupported {
		return Bank{}, errors.Wrapf(ErrUnknownBank, "%q", name)
	}
	prefix := keywordGPIO + " " + verbRead + " " + name
	if !strings.HasPrefix(reply, prefix) {
		return Bank{}, errors.Wrapf(ErrMalformedCommand, "reply %q", reply)
	}
	return ParseBank(strings.TrimLeft(reply[len(prefix):], " "))
}
