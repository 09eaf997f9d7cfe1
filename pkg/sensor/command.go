// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MsgCommand is the message type of a downlink heating command.
const MsgCommand = 0x02

// Command payload keys
const (
	keyCounter  = 0
	keySensorID = 1
	keyOrder    = 2
)

// Command is a downlink order for one sensor of a node.
type Command struct {
	Counter  uint8
	SensorID uint32
	Order    uint8
}

// EncodeCommand encodes c as CBOR [MsgCommand, {0: counter, 1: sensor_id,
// 2: order}].
func EncodeCommand(c Command) ([]byte, error) {
	msg := []interface{}{
		uint64(MsgCommand),
		map[int]interface{}{
			keyCounter:  uint64(c.Counter),
			keySensorID: uint64(c.SensorID),
			keyOrder:    uint64(c.Order),
		},
	}
	data, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return data, nil
}

// DecodeCommand parses a payload produced by EncodeCommand.
func DecodeCommand(data []byte) (*Command, error) {
	msgType, payload, err := parseMessage(data)
	if err != nil {
		return nil, err
	}
	if msgType != MsgCommand {
		return nil, fmt.Errorf("expected message type 0x%02X, got 0x%02X", MsgCommand, msgType)
	}

	counter, ok := mapUint(payload, keyCounter)
	if !ok || counter > 0xFF {
		return nil, fmt.Errorf("missing or invalid counter")
	}
	sensorID, ok := mapUint(payload, keySensorID)
	if !ok || sensorID > 0xFFFFFFFF {
		return nil, fmt.Errorf("missing or invalid sensor id")
	}
	order, ok := mapUint(payload, keyOrder)
	if !ok || order > 0xFF {
		return nil, fmt.Errorf("missing or invalid order")
	}

	return &Command{
		Counter:  uint8(counter),
		SensorID: uint32(sensorID),
		Order:    uint8(order),
	}, nil
}

// parseMessage decodes [msg_type, payload_map]. The map is nil for an
// empty payload.
func parseMessage(data []byte) (uint8, map[int]interface{}, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty CBOR payload")
	}

	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return 0, nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return 0, nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	v, ok := msg[0].(uint64)
	if !ok {
		return 0, nil, fmt.Errorf("expected uint for message type, got %T", msg[0])
	}
	if v > 255 {
		return 0, nil, fmt.Errorf("message type out of range: %d", v)
	}
	if msg[1] == nil {
		return uint8(v), nil, nil
	}

	raw, ok := msg[1].(map[interface{}]interface{})
	if !ok {
		return 0, nil, fmt.Errorf("expected map or nil for payload, got %T", msg[1])
	}
	payload := make(map[int]interface{}, len(raw))
	for key, val := range raw {
		switch k := key.(type) {
		case uint64:
			payload[int(k)] = val
		case int64:
			payload[int(k)] = val
		default:
			return 0, nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return uint8(v), payload, nil
}

func mapUint(m map[int]interface{}, key int) (uint64, bool) {
	switch v := m[key].(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}
