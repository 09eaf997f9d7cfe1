// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import "errors"

// Codec errors. Framing faults discard the whole frame.
var (
	ErrBufferTooSmall   = errors.New("xbee: buffer too small for frame")
	ErrBadDelimiter     = errors.New("xbee: bad start delimiter")
	ErrChecksum         = errors.New("xbee: checksum mismatch")
	ErrUnknownFrameType = errors.New("xbee: unknown frame type")
	ErrShortFrame       = errors.New("xbee: frame too short")
	ErrFrameTooLarge    = errors.New("xbee: frame too large")
	ErrInvalidCommand   = errors.New("xbee: AT command must be two characters")
)
