// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbgate/pkg/gateway"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "xbgate",
	Short: "XBee ZigBee coordinator gateway",
	Long: `xbgate - Coordinator gateway for battery powered ZigBee heating nodes.

Drives an XBee module in API mode: configures and joins the network, hands
sensor readings from the nodes to a script or a WebSocket collector, and
forwards operator commands written to the command FIFO.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Without --port or --url the port and baud rate come from the config file.

For WebSocket authentication, the password is read from the XBGATE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/xbgate/config.yaml", "Configuration file")
}

// loadConfig reads the config file and applies the connection flags that
// were given on the command line.
func loadConfig() *gateway.Config {
	cfg := gateway.LoadConfig(configPath)
	if portName != "" {
		cfg.Radio.Port = portName
	}
	if rootCmd.PersistentFlags().Changed("baud") {
		cfg.Radio.BaudRate = baudRate
	}
	return cfg
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
