// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee/zigbeetest"
)

func nodeReport(addr16 uint16, addr64 xbee.Address64, ni string, deviceType uint8) []byte {
	data := []byte{byte(addr16 >> 8), byte(addr16)}
	data = append(data, addr64[:]...)
	data = append(data, ni...)
	data = append(data, 0)
	data = append(data, 0xFF, 0xFE, deviceType, 0x00, 0xC1, 0x05, 0x10, 0x1E)
	return data
}

func TestParseNodeInfo(t *testing.T) {
	addr := xbee.Address64{0x00, 0x13, 0xa2, 0x00, 0x40, 0xd9, 0x68, 0x9c}
	n, err := ParseNodeInfo(nodeReport(0x7A21, addr, "LIVING", DeviceEndDevice))
	if err != nil {
		t.Fatalf("ParseNodeInfo error: %v", err)
	}

	expected := NodeInfo{
		Addr16:         0x7A21,
		Addr64:         addr,
		Identifier:     "LIVING",
		Parent16:       0xFFFE,
		DeviceType:     DeviceEndDevice,
		ProfileID:      0xC105,
		ManufacturerID: 0x101E,
	}
	if n != expected {
		t.Errorf("node = %+v\nwant %+v", n, expected)
	}
	if n.DeviceTypeName() != "end device" {
		t.Errorf("DeviceTypeName = %q", n.DeviceTypeName())
	}
}

func TestParseNodeInfo_Errors(t *testing.T) {
	full := nodeReport(1, xbee.Address64{}, "N", DeviceRouter)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"addresses only", full[:10]},
		{"no terminator", append(full[:10:10], 'N', 'I')},
		{"truncated tail", full[:len(full)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseNodeInfo(tt.data); !errors.Is(err, ErrUnexpectedReply) {
				t.Errorf("error = %v, want ErrUnexpectedReply", err)
			}
		})
	}
}

func TestDiscoverNodes(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{})

	first := nodeReport(0x0001, xbee.Address64{0, 0x13, 0xa2, 0, 0, 0, 0, 1}, "R1", DeviceRouter)
	second := nodeReport(0x0002, xbee.Address64{0, 0x13, 0xa2, 0, 0, 0, 0, 2}, "E2", DeviceEndDevice)
	radio.Respond("ND", zigbeetest.Response{Data: first})
	// A second report with the same frame ID, queued ahead of the reply
	radio.Inject(&xbee.ATCommandResponse{FrameID: 2, Command: [2]byte{'N', 'D'}, Data: second})
	// A malformed report is skipped
	radio.Inject(&xbee.ATCommandResponse{FrameID: 2, Command: [2]byte{'N', 'D'}, Data: []byte{0x01}})

	nodes, err := s.DiscoverNodes(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("DiscoverNodes error: %v", err)
	}

	var names []string
	for _, n := range nodes {
		names = append(names, n.Identifier)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "E2" || names[1] != "R1" {
		t.Errorf("nodes = %v, want E2 and R1", names)
	}
}

func TestDiscoverNodes_NoReply(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond("ND", zigbeetest.Response{Drop: true})
	s := newTestSession(radio, Options{})

	if _, err := s.DiscoverNodes(time.Millisecond); !errors.Is(err, ErrNoReply) {
		t.Errorf("error = %v, want ErrNoReply", err)
	}
}
