// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
	"strconv"
	"strings"
)

// Address64 is a 64-bit IEEE module address, most significant byte first.
type Address64 [8]byte

// AddressBroadcast64 reaches every node of the PAN.
var AddressBroadcast64 = Address64{0, 0, 0, 0, 0, 0, 0xFF, 0xFF}

// String formats the address as colon separated lowercase hex bytes.
func (a Address64) String() string {
	var b strings.Builder
	for i, v := range a {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprintf(&b, "%02x", v)
	}
	return b.String()
}

// Uint64 returns the address as a big-endian integer.
func (a Address64) Uint64() uint64 {
	var v uint64
	for _, b := range a {
		v = v<<8 | uint64(b)
	}
	return v
}

// ParseAddress64 parses eight colon separated hex bytes ("00:13:a2:...").
func ParseAddress64(s string) (Address64, error) {
	var addr Address64
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return addr, fmt.Errorf("address %q: expected %d bytes, got %d", s, len(addr), len(parts))
	}
	for i, p := range parts {
		if len(p) != 2 {
			return addr, fmt.Errorf("address %q: byte %d is not two hex digits", s, i)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("address %q: byte %d: %w", s, i, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// PanID is the 64-bit extended PAN identifier.
type PanID [8]byte

func (p PanID) String() string {
	return fmt.Sprintf("%X", p[:])
}

// Frame is a decoded or encodable API frame. The concrete type identifies
// the variant; use a type switch to access its fields.
type Frame interface {
	FrameType() uint8
	isFrame()
}

// ATCommand is a local AT command request (0x08).
type ATCommand struct {
	FrameID uint8
	Command [2]byte
	Params  []byte
}

// TransmitRequest sends an RF payload to a remote node (0x10).
type TransmitRequest struct {
	FrameID uint8
	Dest64  Address64
	Dest16  uint16
	Radius  uint8
	Options uint8
	Payload []byte
}

// ATCommandResponse is the module's reply to an AT command (0x88).
type ATCommandResponse struct {
	FrameID uint8
	Command [2]byte
	Status  uint8
	Data    []byte
}

// ModemStatus is an unsolicited module state report (0x8A).
type ModemStatus struct {
	Status uint8
}

// TransmitStatus reports the outcome of a transmit request (0x8B).
type TransmitStatus struct {
	FrameID         uint8
	Dest16          uint16
	RetryCount      uint8
	DeliveryStatus  uint8
	DiscoveryStatus uint8
}

// ReceivePacket carries an RF payload received from a remote node (0x90).
type ReceivePacket struct {
	Source64 Address64
	Source16 uint16
	Options  uint8
	Payload  []byte
}

func (*ATCommand) FrameType() uint8         { return FrameATCommand }
func (*TransmitRequest) FrameType() uint8   { return FrameTransmitRequest }
func (*ATCommandResponse) FrameType() uint8 { return FrameATCommandResponse }
func (*ModemStatus) FrameType() uint8       { return FrameModemStatus }
func (*TransmitStatus) FrameType() uint8    { return FrameTransmitStatus }
func (*ReceivePacket) FrameType() uint8     { return FrameReceivePacket }

func (*ATCommand) isFrame()         {}
func (*TransmitRequest) isFrame()   {}
func (*ATCommandResponse) isFrame() {}
func (*ModemStatus) isFrame()       {}
func (*TransmitStatus) isFrame()    {}
func (*ReceivePacket) isFrame()     {}

// CommandName returns the two letter mnemonic of the response.
func (r *ATCommandResponse) CommandName() string {
	return string(r.Command[:])
}

// CommandName returns the two letter mnemonic of the request.
func (c *ATCommand) CommandName() string {
	return string(c.Command[:])
}

// Delivered reports whether the remote node acknowledged the transmission.
func (s *TransmitStatus) Delivered() bool {
	return s.DeliveryStatus == DeliverySuccess
}

// Broadcast reports whether the packet was sent as a broadcast.
func (p *ReceivePacket) Broadcast() bool {
	return p.Options&ReceiveOptionBroadcast != 0
}
