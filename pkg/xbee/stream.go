// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import "fmt"

// Decoder states
const (
	stateIdle = iota
	stateLengthHigh
	stateLengthLow
	stateBody
)

// Decoder reassembles frames from a byte stream one byte at a time. It is
// meant for passive monitoring where reads do not line up with frames.
type Decoder struct {
	state   int
	length  int
	body    []byte
	raw     []byte
	skipped int
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state: stateIdle,
		body:  make([]byte, 0, 64),
		raw:   make([]byte, 0, 64),
	}
}

// Reset drops any partial frame and returns to hunting for a delimiter
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.body = d.body[:0]
	d.raw = d.raw[:0]
}

// RawBytes returns the bytes of the frame currently being assembled, or of
// the last completed frame until the next delimiter arrives.
func (d *Decoder) RawBytes() []byte {
	return d.raw
}

// Skipped returns the number of bytes discarded while hunting for a
// start delimiter.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte feeds one byte. It returns a frame when b completes one, nil
// while a frame is in progress, and an error when a frame is rejected.
func (d *Decoder) DecodeByte(b byte) (Frame, error) {
	switch d.state {
	case stateIdle:
		if b != StartDelimiter {
			d.skipped++
			return nil, nil
		}
		d.Reset()
		d.raw = append(d.raw, b)
		d.state = stateLengthHigh
		return nil, nil

	case stateLengthHigh:
		d.raw = append(d.raw, b)
		d.length = int(b) << 8
		d.state = stateLengthLow
		return nil, nil

	case stateLengthLow:
		d.raw = append(d.raw, b)
		d.length |= int(b)
		if d.length == 0 {
			d.state = stateIdle
			return nil, fmt.Errorf("%w: zero length field", ErrShortFrame)
		}
		if d.length > MaxFrameLength {
			n := d.length
			d.state = stateIdle
			return nil, fmt.Errorf("%w: length %d (max %d)", ErrFrameTooLarge, n, MaxFrameLength)
		}
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.raw = append(d.raw, b)
		d.body = append(d.body, b)
		if len(d.body) < d.length+ChecksumSize {
			return nil, nil
		}
		d.state = stateIdle
		return DecodeRequest(d.body)

	default:
		d.Reset()
		return nil, fmt.Errorf("xbee: invalid decoder state %d", d.state)
	}
}
