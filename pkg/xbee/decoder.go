// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"encoding/binary"
	"fmt"
)

// DecodeHeader validates the 3 byte frame header and returns the length
// field. The caller then reads length+1 bytes (body plus checksum).
func DecodeHeader(b []byte) (uint16, error) {
	if len(b) != HeaderSize {
		return 0, fmt.Errorf("%w: header is %d bytes", ErrShortFrame, len(b))
	}
	if b[0] != StartDelimiter {
		return 0, fmt.Errorf("%w: 0x%02X", ErrBadDelimiter, b[0])
	}
	return binary.BigEndian.Uint16(b[1:3]), nil
}

// DecodeFrame decodes a frame body. b starts at the frame type and ends with
// the checksum byte (length+1 bytes). Returned slices never alias b.
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	if !validChecksum(b) {
		expected := Checksum(b[:len(b)-1])
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, expected, b[len(b)-1])
	}

	switch b[0] {
	case FrameATCommandResponse:
		return decodeATResponse(b)
	case FrameModemStatus:
		if len(b) < minModemStatusSize {
			return nil, shortFrame(b)
		}
		return &ModemStatus{Status: b[1]}, nil
	case FrameTransmitStatus:
		if len(b) < minTransmitStatusSize {
			return nil, shortFrame(b)
		}
		return &TransmitStatus{
			FrameID:         b[1],
			Dest16:          binary.BigEndian.Uint16(b[2:4]),
			RetryCount:      b[4],
			DeliveryStatus:  b[5],
			DiscoveryStatus: b[6],
		}, nil
	case FrameReceivePacket:
		return decodeReceivePacket(b)
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownFrameType, b[0])
	}
}

// DecodeRequest decodes a host originated frame body (AT command or
// transmit request). It is used by radio simulators and stream monitors
// that see both directions of the link.
func DecodeRequest(b []byte) (Frame, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	if !validChecksum(b) {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrChecksum, b[len(b)-1])
	}

	switch b[0] {
	case FrameATCommand:
		if len(b) < atCommandOverhead-HeaderSize {
			return nil, shortFrame(b)
		}
		return &ATCommand{
			FrameID: b[1],
			Command: [2]byte{b[2], b[3]},
			Params:  clone(b[4 : len(b)-1]),
		}, nil
	case FrameTransmitRequest:
		if len(b) < transmitRequestOverhead-HeaderSize {
			return nil, shortFrame(b)
		}
		r := &TransmitRequest{
			FrameID: b[1],
			Dest16:  binary.BigEndian.Uint16(b[10:12]),
			Radius:  b[12],
			Options: b[13],
			Payload: clone(b[14 : len(b)-1]),
		}
		copy(r.Dest64[:], b[2:10])
		return r, nil
	default:
		return DecodeFrame(b)
	}
}

func decodeATResponse(b []byte) (Frame, error) {
	if len(b) < minATResponseSize {
		return nil, shortFrame(b)
	}
	r := &ATCommandResponse{
		FrameID: b[1],
		Command: [2]byte{b[2], b[3]},
		Status:  b[4],
	}
	r.Data = clone(b[5 : len(b)-1])
	return r, nil
}

func decodeReceivePacket(b []byte) (Frame, error) {
	if len(b) < minReceivePacketSize {
		return nil, shortFrame(b)
	}
	p := &ReceivePacket{
		Source16: binary.BigEndian.Uint16(b[9:11]),
		Options:  b[11],
	}
	copy(p.Source64[:], b[1:9])
	p.Payload = clone(b[12 : len(b)-1])
	return p, nil
}

func shortFrame(b []byte) error {
	return fmt.Errorf("%w: type 0x%02X with %d bytes", ErrShortFrame, b[0], len(b))
}

// clone copies b into a new non-nil slice, empty when b is empty.
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Unmarshal decodes a complete wire frame, delimiter through checksum.
func Unmarshal(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	length, err := DecodeHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if want := HeaderSize + int(length) + ChecksumSize; len(data) != want {
		return nil, fmt.Errorf("%w: length field says %d bytes, got %d", ErrShortFrame, want, len(data))
	}
	return DecodeFrame(data[HeaderSize:])
}
