// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// xbgate - XBee ZigBee coordinator gateway
//
// Drives an XBee module in API mode, hands sensor readings from battery
// powered heating nodes to a script or collector and forwards operator
// commands back to the nodes.

package main

import (
	"os"

	"github.com/Thermoquad/xbgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
