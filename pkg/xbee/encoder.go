// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"encoding/binary"
	"fmt"
)

// EncodeATCommand writes an AT command frame into dst and returns the
// encoded slice of dst. It fails without writing when dst cannot hold
// 8+len(params) bytes.
func EncodeATCommand(dst []byte, frameID uint8, cmd string, params []byte) ([]byte, error) {
	if len(cmd) != atCommandMnemonicWidth {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd)
	}
	frame, err := reserve(dst, atCommandOverhead+len(params))
	if err != nil {
		return nil, err
	}

	frame[3] = FrameATCommand
	frame[4] = frameID
	frame[5] = cmd[0]
	frame[6] = cmd[1]
	copy(frame[7:], params)

	seal(frame)
	return frame, nil
}

// EncodeTransmitRequest writes a transmit request frame into dst. Broadcast
// radius and options are left at zero (module defaults).
func EncodeTransmitRequest(dst []byte, frameID uint8, dest64 Address64, dest16 uint16, payload []byte) ([]byte, error) {
	return encodeTransmitRequest(dst, &TransmitRequest{
		FrameID: frameID,
		Dest64:  dest64,
		Dest16:  dest16,
		Payload: payload,
	})
}

// Encode writes any frame variant into dst.
func Encode(dst []byte, f Frame) ([]byte, error) {
	switch f := f.(type) {
	case *ATCommand:
		return EncodeATCommand(dst, f.FrameID, string(f.Command[:]), f.Params)
	case *TransmitRequest:
		return encodeTransmitRequest(dst, f)
	case *ATCommandResponse:
		frame, err := reserve(dst, minATResponseSize+HeaderSize+len(f.Data))
		if err != nil {
			return nil, err
		}
		frame[3] = FrameATCommandResponse
		frame[4] = f.FrameID
		frame[5] = f.Command[0]
		frame[6] = f.Command[1]
		frame[7] = f.Status
		copy(frame[8:], f.Data)
		seal(frame)
		return frame, nil
	case *ModemStatus:
		frame, err := reserve(dst, minModemStatusSize+HeaderSize)
		if err != nil {
			return nil, err
		}
		frame[3] = FrameModemStatus
		frame[4] = f.Status
		seal(frame)
		return frame, nil
	case *TransmitStatus:
		frame, err := reserve(dst, minTransmitStatusSize+HeaderSize)
		if err != nil {
			return nil, err
		}
		frame[3] = FrameTransmitStatus
		frame[4] = f.FrameID
		binary.BigEndian.PutUint16(frame[5:7], f.Dest16)
		frame[7] = f.RetryCount
		frame[8] = f.DeliveryStatus
		frame[9] = f.DiscoveryStatus
		seal(frame)
		return frame, nil
	case *ReceivePacket:
		frame, err := reserve(dst, minReceivePacketSize+HeaderSize+len(f.Payload))
		if err != nil {
			return nil, err
		}
		frame[3] = FrameReceivePacket
		copy(frame[4:12], f.Source64[:])
		binary.BigEndian.PutUint16(frame[12:14], f.Source16)
		frame[14] = f.Options
		copy(frame[15:], f.Payload)
		seal(frame)
		return frame, nil
	case nil:
		return nil, fmt.Errorf("%w: nil frame", ErrUnknownFrameType)
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownFrameType, f.FrameType())
	}
}

// Marshal encodes a frame into a newly allocated slice.
func Marshal(f Frame) ([]byte, error) {
	return Encode(make([]byte, EncodedSize(f)), f)
}

// MustMarshal encodes a frame and panics on error.
func MustMarshal(f Frame) []byte {
	data, err := Marshal(f)
	if err != nil {
		panic(fmt.Sprintf("xbee: encode error: %v", err))
	}
	return data
}

// EncodedSize returns the wire size of f, delimiter through checksum.
func EncodedSize(f Frame) int {
	switch f := f.(type) {
	case *ATCommand:
		return atCommandOverhead + len(f.Params)
	case *TransmitRequest:
		return transmitRequestOverhead + len(f.Payload)
	case *ATCommandResponse:
		return HeaderSize + minATResponseSize + len(f.Data)
	case *ModemStatus:
		return HeaderSize + minModemStatusSize
	case *TransmitStatus:
		return HeaderSize + minTransmitStatusSize
	case *ReceivePacket:
		return HeaderSize + minReceivePacketSize + len(f.Payload)
	default:
		return 0
	}
}

func encodeTransmitRequest(dst []byte, r *TransmitRequest) ([]byte, error) {
	frame, err := reserve(dst, transmitRequestOverhead+len(r.Payload))
	if err != nil {
		return nil, err
	}

	frame[3] = FrameTransmitRequest
	frame[4] = r.FrameID
	copy(frame[5:13], r.Dest64[:])
	binary.BigEndian.PutUint16(frame[13:15], r.Dest16)
	frame[15] = r.Radius
	frame[16] = r.Options
	copy(frame[17:], r.Payload)

	seal(frame)
	return frame, nil
}

// reserve checks capacity and returns dst[:size] with the delimiter set.
func reserve(dst []byte, size int) ([]byte, error) {
	if size-HeaderSize-ChecksumSize > 0xFFFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	if len(dst) < size {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(dst))
	}
	frame := dst[:size]
	frame[0] = StartDelimiter
	return frame, nil
}

// seal back-patches the length field and appends the checksum.
func seal(frame []byte) {
	last := len(frame) - ChecksumSize
	binary.BigEndian.PutUint16(frame[1:3], uint16(last-HeaderSize))
	frame[last] = Checksum(frame[HeaderSize:last])
}
