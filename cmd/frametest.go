// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

var (
	frameTestTimeout int
	frameTestQuery   bool
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid XBee frame",
	Long: `Wait for a valid XBee API frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores noise and waits for a complete frame with a good checksum.
With --query it first sends an AT HV request, so an idle module answers.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the baud rate and that the module is in API mode.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	frameTestCmd.Flags().BoolVar(&frameTestQuery, "query", true, "Send AT HV to provoke a response")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(loadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbgate - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)

	if frameTestQuery {
		request, err := xbee.Marshal(&xbee.ATCommand{FrameID: 1, Command: [2]byte{'H', 'V'}})
		if err != nil {
			return err
		}
		if _, err := conn.Write(request); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent AT HV\n")
	}
	fmt.Printf("Waiting for valid XBee frame...\n\n")

	decoder := xbee.NewDecoder()
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan xbee.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if frame != nil {
					if skipped := decoder.Skipped(); skipped > 0 {
						fmt.Printf("(skipped %d bytes before sync)\n", skipped)
					}
					frameChan <- frame
					return
				}
			}
		}
	}()

	// Wait for frame or timeout
	select {
	case frame := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", xbee.FormatFrameType(frame.FrameType()), frame.FrameType())
		fmt.Printf("  Length: %d bytes\n", len(decoder.RawBytes()))
		fmt.Print("  ", xbee.FormatFrame(frame, time.Now()))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
