// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbgate/pkg/gateway"
	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee"
)

var (
	infoDiscover bool
	infoTimeout  int
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Query the radio module and optionally discover nodes",
	Long: `Read identification and network state from the XBee module.

Reports hardware and firmware versions, serial number, association state,
operating PAN and channel, maximum RF payload and the RSSI of the last
received packet. With --discover, an ND node discovery is issued and every
node that answers within --timeout seconds is listed.

Examples:
  xbgate info --port /dev/ttyUSB0 --baud 115200
  xbgate info --discover --timeout 10

Exit codes:
  0 - Module answered (and, with --discover, at least one node was found)
  1 - No node found
  2 - Connection or module error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoDiscover, "discover", false, "Run node discovery (ND)")
	infoCmd.Flags().IntVar(&infoTimeout, "timeout", 6, "Seconds to collect node discovery reports")
}

// newSession opens a protocol session on conn with the configured reply
// timeout
func newSession(conn Connection, cfg *gateway.Config, stats *xbee.Statistics) *zigbee.Session {
	return zigbee.New(conn, zigbee.Options{
		ReplyTimeout: cfg.ReplyTimeout(),
		Stats:        stats,
	})
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbgate - Module Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	s := newSession(conn, cfg, nil)

	hv, err := s.HardwareVersion()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Module not responding: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("Hardware version: 0x%04X\n", hv)

	if vr, err := s.FirmwareVersion(); err == nil {
		fmt.Printf("Firmware version: 0x%04X\n", vr)
	}
	if sn, err := s.SerialNumber(); err == nil {
		fmt.Printf("Serial number:    xb@%s\n", sn)
	}
	if ai, err := s.AssociationIndication(); err == nil {
		fmt.Printf("Association:      0x%02X %s\n", ai, xbee.AssociationMessage(ai))
	}
	if pan, err := s.PanID(); err == nil {
		fmt.Printf("Operating PAN:    %s\n", pan)
	}
	if ch, err := s.OperatingChannel(); err == nil {
		fmt.Printf("Channel:          0x%02X\n", ch)
	}
	if np, err := s.MaxRFPayload(); err == nil {
		fmt.Printf("Max RF payload:   %d bytes\n", np)
	}
	if db, err := s.SignalStrength(); err == nil {
		fmt.Printf("Last RSSI:        -%d dBm\n", db)
	}

	if !infoDiscover {
		return nil
	}

	fmt.Printf("\nDiscovering nodes for %d seconds...\n", infoTimeout)
	nodes, err := s.DiscoverNodes(time.Duration(infoTimeout) * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
		os.Exit(2)
	}

	for _, n := range nodes {
		fmt.Printf("\nNode found:\n")
		fmt.Printf("  Address:    xb@%s\n", n.Addr64)
		fmt.Printf("  Network:    0x%04X (parent 0x%04X)\n", n.Addr16, n.Parent16)
		fmt.Printf("  Identifier: %q\n", n.Identifier)
		fmt.Printf("  Type:       %s\n", n.DeviceTypeName())
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Nodes found: %d\n", len(nodes))
	if len(nodes) == 0 {
		fmt.Printf("No nodes discovered. Check that the nodes are awake and joined.\n")
		os.Exit(1)
	}
	return nil
}
