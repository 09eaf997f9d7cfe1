// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mailbox

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Line format: xb@00:13:a2:00:40:d9:68:9c;3;ECO
const (
	addressPrefix  = "xb@"
	fieldSeparator = ";"
	fieldCount     = 3
)

var (
	ErrMalformedLine  = errors.New("mailbox: malformed line")
	ErrBadAddress     = errors.New("mailbox: bad address")
	ErrBadSensorID    = errors.New("mailbox: bad sensor id")
	ErrUnknownCommand = errors.New("mailbox: unknown command")
)

// Command is an operator order for a heating node.
type Command uint8

const (
	Confort Command = iota
	ConfortM1
	ConfortM2
	Eco
	HG
	Stop
)

var commandNames = [...]string{
	Confort:   "CONFORT",
	ConfortM1: "CONFORT_M1",
	ConfortM2: "CONFORT_M2",
	Eco:       "ECO",
	HG:        "HG",
	Stop:      "STOP",
}

// Commands lists every command in wire order.
var Commands = []Command{Confort, ConfortM1, ConfortM2, Eco, HG, Stop}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// ParseCommand returns the command with the given wire name.
func ParseCommand(name string) (Command, error) {
	for i, n := range commandNames {
		if n == name {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// Entry is one decoded mailbox line.
type Entry struct {
	Dest     xbee.Address64
	SensorID uint32
	Command  Command
}

func (e Entry) String() string {
	return fmt.Sprintf("%s sensor=%d %s", e.Dest, e.SensorID, e.Command)
}

// ParseLine decodes one mailbox line. A trailing newline is accepted.
func ParseLine(line string) (Entry, error) {
	var e Entry

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, fieldSeparator)
	if len(fields) != fieldCount {
		return e, fmt.Errorf("%w: %d fields, want %d", ErrMalformedLine, len(fields), fieldCount)
	}

	addr, ok := strings.CutPrefix(fields[0], addressPrefix)
	if !ok {
		return e, fmt.Errorf("%w: missing %q prefix", ErrBadAddress, addressPrefix)
	}
	dest, err := xbee.ParseAddress64(addr)
	if err != nil {
		return e, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}

	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return e, fmt.Errorf("%w: %q", ErrBadSensorID, fields[1])
	}

	cmd, err := ParseCommand(fields[2])
	if err != nil {
		return e, err
	}

	e.Dest = dest
	e.SensorID = uint32(id)
	e.Command = cmd
	return e, nil
}

// FormatLine encodes e as a mailbox line, newline included.
func FormatLine(e Entry) string {
	return fmt.Sprintf("%s%s;%d;%s\n", addressPrefix, e.Dest, e.SensorID, e.Command)
}
