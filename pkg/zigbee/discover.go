// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Device types reported by node discovery
const (
	DeviceCoordinator = 0
	DeviceRouter      = 1
	DeviceEndDevice   = 2
)

// NodeInfo is one node discovery report.
type NodeInfo struct {
	Addr16         uint16
	Addr64         xbee.Address64
	Identifier     string
	Parent16       uint16
	DeviceType     uint8
	Status         uint8
	ProfileID      uint16
	ManufacturerID uint16
}

// DeviceTypeName returns coordinator, router or end device.
func (n NodeInfo) DeviceTypeName() string {
	switch n.DeviceType {
	case DeviceCoordinator:
		return "coordinator"
	case DeviceRouter:
		return "router"
	case DeviceEndDevice:
		return "end device"
	default:
		return fmt.Sprintf("type %d", n.DeviceType)
	}
}

// ParseNodeInfo decodes the data of an ND response:
// MY(2) SH(4) SL(4) NI(\0 terminated) parent(2) type(1) status(1)
// profile(2) manufacturer(2).
func ParseNodeInfo(data []byte) (NodeInfo, error) {
	var n NodeInfo
	if len(data) < 11 {
		return n, fmt.Errorf("%w: node report of %d bytes", ErrUnexpectedReply, len(data))
	}
	n.Addr16 = binary.BigEndian.Uint16(data[0:2])
	copy(n.Addr64[:], data[2:10])

	rest := data[10:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return n, fmt.Errorf("%w: unterminated node identifier", ErrUnexpectedReply)
	}
	n.Identifier = string(rest[:end])
	rest = rest[end+1:]

	if len(rest) < 8 {
		return n, fmt.Errorf("%w: node report truncated after identifier", ErrUnexpectedReply)
	}
	n.Parent16 = binary.BigEndian.Uint16(rest[0:2])
	n.DeviceType = rest[2]
	n.Status = rest[3]
	n.ProfileID = binary.BigEndian.Uint16(rest[4:6])
	n.ManufacturerID = binary.BigEndian.Uint16(rest[6:8])
	return n, nil
}

// DiscoverNodes sends ND and collects node reports for wait. Reports that
// fail to parse are logged and skipped.
func (s *Session) DiscoverNodes(wait time.Duration) ([]NodeInfo, error) {
	deadline := time.Now().Add(wait)

	r, err := s.NodeDiscover()
	if err != nil {
		return nil, err
	}

	var nodes []NodeInfo
	add := func(r *xbee.ATCommandResponse) {
		if len(r.Data) == 0 {
			return
		}
		n, err := ParseNodeInfo(r.Data)
		if err != nil {
			s.log.Warn("bad node report", "error", err)
			return
		}
		nodes = append(nodes, n)
	}
	add(r)

	// Later reports carry the same frame ID and arrive after the exchange
	seen := xbee.Frame(r)
	for time.Now().Before(deadline) {
		s.Handle()
		f, ok := s.last.(*xbee.ATCommandResponse)
		if !ok || xbee.Frame(f) == seen || f.CommandName() != xbee.CmdNodeDiscover {
			continue
		}
		seen = f
		add(f)
	}
	return nodes, nil
}
