// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee"
)

var joinCommit bool

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Configure the module and join the network",
	Long: `Apply the network configuration from the config file and wait for the
module to associate.

The configuration is sent one AT command at a time (BD, ID, SC, SD, ZS, EE
and keys, SP, SN) and stops at the first rejected command. The node
identifier is then set, joining is opened with NJ and AI is polled until
the module leaves the scanning state.

With --commit the configuration is written to flash (WR).

Exit codes:
  0 - Joined
  1 - Association failed or timed out
  2 - Connection or configuration error`,
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().BoolVar(&joinCommit, "commit", false, "Write the configuration to flash")
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	network, err := cfg.ZigbeeConfig()
	if err != nil {
		return err
	}
	if joinCommit {
		network.CommitToFlash = true
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbgate - Join\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("PAN ID: %s\n\n", network.PanID)

	s := newSession(conn, cfg, nil)

	fmt.Printf("Configuring...\n")
	if err := s.Configure(network); err != nil {
		fmt.Fprintf(os.Stderr, "CONFIGURE FAILED: %v\n", err)
		os.Exit(2)
	}
	if cfg.Radio.NodeIdentifier != "" {
		if err := s.SetNodeIdentifier(cfg.Radio.NodeIdentifier); err != nil {
			fmt.Fprintf(os.Stderr, "NODE IDENTIFIER FAILED: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Printf("Waiting for association (timeout %s)...\n", cfg.AssociationTimeout())
	err = s.Join(cfg.Network.JoinTime, cfg.AssociationTimeout())

	var assoc *zigbee.AssociationError
	switch {
	case err == nil:
		fmt.Printf("JOINED: %s\n", xbee.AssociationMessage(xbee.AssociationSuccess))
	case errors.As(err, &assoc):
		fmt.Fprintf(os.Stderr, "ASSOCIATION FAILED: 0x%02X %s\n", assoc.Code, xbee.AssociationMessage(assoc.Code))
		os.Exit(1)
	case errors.Is(err, zigbee.ErrAssociationTimeout):
		fmt.Fprintf(os.Stderr, "TIMEOUT: %v\n", err)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "JOIN FAILED: %v\n", err)
		os.Exit(2)
	}

	if pan, err := s.PanID(); err == nil {
		fmt.Printf("Operating PAN: %s\n", pan)
	}
	return nil
}
