// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sensor decodes the application payloads exchanged with the
// battery powered heating nodes.
//
// Uplink payload (receive packet):
//
//	data_type(1) counter(1) count(1) count * { type(1) status(1) raw(2, BE) }
//
// Downlink payload (transmit request): CBOR [msg_type, {key: value}].
package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Payload data types
const (
	DataReadings = 0x00
	DataDebug    = 0x01
)

// Reading kinds
const (
	KindTemperature = 0x01
	KindHumidity    = 0x02
	KindVoltage     = 0x03
)

// StatusValid marks a reading the node measured successfully.
const StatusValid = 0x03

const (
	headerSize  = 3
	readingSize = 4
)

var (
	ErrShortPayload = errors.New("sensor: payload too short")
	ErrTruncated    = errors.New("sensor: reading count exceeds payload")
)

// Reading is one converted measurement.
type Reading struct {
	// ID is the reading's position in the payload.
	ID     int
	Kind   uint8
	Status uint8
	Raw    uint16
	Value  float64
}

// Unit returns the script argument name for the reading kind.
func (r Reading) Unit() string {
	return Unit(r.Kind)
}

// Frame is a decoded uplink payload.
type Frame struct {
	DataType uint8
	Counter  uint8
	// Readings holds the valid readings of known kinds, in payload order.
	Readings []Reading
	// Skipped counts readings left out for a bad status or unknown kind.
	Skipped int
	// Debug holds the raw body of a debug payload.
	Debug []byte
}

// Counter returns the payload's sequence counter, used to detect
// retransmissions.
func Counter(payload []byte) (uint8, bool) {
	if len(payload) < 2 {
		return 0, false
	}
	return payload[1], true
}

// Decode parses an uplink payload.
func Decode(payload []byte) (*Frame, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(payload))
	}

	f := &Frame{
		DataType: payload[0],
		Counter:  payload[1],
	}

	switch f.DataType {
	case DataReadings:
	case DataDebug:
		f.Debug = append([]byte{}, payload[2:]...)
		return f, nil
	default:
		return nil, fmt.Errorf("sensor: unknown data type 0x%02X", f.DataType)
	}

	if len(payload) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(payload))
	}
	count := int(payload[2])
	body := payload[headerSize:]
	if len(body) < count*readingSize {
		return nil, fmt.Errorf("%w: %d readings in %d bytes", ErrTruncated, count, len(body))
	}

	for i := 0; i < count; i++ {
		b := body[i*readingSize : (i+1)*readingSize]
		r := Reading{
			ID:     i,
			Kind:   b[0],
			Status: b[1],
			Raw:    binary.BigEndian.Uint16(b[2:4]),
		}
		value, ok := Convert(r.Kind, r.Raw)
		if !ok || r.Status != StatusValid {
			f.Skipped++
			continue
		}
		r.Value = value
		f.Readings = append(f.Readings, r)
	}

	return f, nil
}

// Convert turns a raw reading into physical units: degrees Celsius,
// percent relative humidity or battery volts.
func Convert(kind uint8, raw uint16) (float64, bool) {
	switch kind {
	case KindTemperature:
		return 165.0*float64(raw)/16383 - 40, true
	case KindHumidity:
		return 100.0 * float64(raw) / 16383, true
	case KindVoltage:
		// 10 bit ADC at 3.3 V behind a 4.7k/2.2k divider
		v := float64(raw) * 3.3 / 1023
		return v * (2.2 + 4.7) / 2.2, true
	default:
		return 0, false
	}
}

// Unit returns the script argument name for a reading kind.
func Unit(kind uint8) string {
	switch kind {
	case KindTemperature:
		return "temp"
	case KindHumidity:
		return "humd"
	case KindVoltage:
		return "volt"
	default:
		return fmt.Sprintf("kind%d", kind)
	}
}

// Arguments returns the script arguments for f as sent by node addr:
// address=xb@.. followed by id=N unit=value for each reading.
func (f *Frame) Arguments(addr xbee.Address64) []string {
	args := []string{"address=xb@" + addr.String()}
	for _, r := range f.Readings {
		args = append(args,
			"id="+strconv.Itoa(r.ID),
			r.Unit()+"="+strconv.FormatFloat(r.Value, 'f', 6, 64),
		)
	}
	return args
}
