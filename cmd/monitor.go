// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/xbgate/pkg/dedup"
	"github.com/Thermoquad/xbgate/pkg/sensor"
	"github.com/Thermoquad/xbgate/pkg/xbee"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch radio traffic and detect protocol errors",
	Long: `Passively decode the frames coming out of the module, track every node
that reports in and flag protocol anomalies.

This command validates each frame and detects:
  - Checksum failures and undecodable frames
  - Failed AT commands and undelivered transmissions
  - Modem resets and disassociation
  - Repeated sensor frames (same counter as the previous frame)

By default, only errors are displayed. Use --show-all to display valid frames too.

Nothing is written to the module, so the monitor can watch a WebSocket
bridge while a gateway is running.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// nodeState is what the monitor knows about one node
type nodeState struct {
	addr       xbee.Address64
	addr16     uint16
	frames     int
	duplicates int
	counter    uint8
	lastSeen   time.Time
	readings   []sensor.Reading
}

// nodeTracker folds receive packets into per-node state
type nodeTracker struct {
	detector *dedup.Detector
	nodes    map[xbee.Address64]*nodeState
}

func newNodeTracker() *nodeTracker {
	return &nodeTracker{
		detector: dedup.New(),
		nodes:    make(map[xbee.Address64]*nodeState),
	}
}

// observe records a receive packet and reports whether it repeated the
// node's previous counter. Payloads too short for a counter still count
// as frames.
func (t *nodeTracker) observe(p *xbee.ReceivePacket, at time.Time) (*nodeState, bool) {
	n, ok := t.nodes[p.Source64]
	if !ok {
		n = &nodeState{addr: p.Source64}
		t.nodes[p.Source64] = n
	}
	n.addr16 = p.Source16
	n.frames++
	n.lastSeen = at

	counter, ok := sensor.Counter(p.Payload)
	if !ok {
		return n, false
	}
	if t.detector.Update(p.Source64, counter) {
		n.duplicates++
		return n, true
	}
	n.counter = counter
	if frame, err := sensor.Decode(p.Payload); err == nil && len(frame.Readings) > 0 {
		n.readings = frame.Readings
	}
	return n, false
}

// list returns the nodes ordered by 64-bit address
func (t *nodeTracker) list() []*nodeState {
	nodes := make([]*nodeState, 0, len(t.nodes))
	for _, n := range t.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].addr.Uint64() < nodes[j].addr.Uint64()
	})
	return nodes
}

// formatReadings renders readings as "temp=21.50 humd=40.00"
func formatReadings(readings []sensor.Reading) string {
	s := ""
	for i, r := range readings {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%.2f", r.Unit(), r.Value)
	}
	if s == "" {
		return "-"
	}
	return s
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(loadConfig())
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// readLoop forwards everything read from conn until it closes
func readLoop(conn Connection, out chan<- []byte) {
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				close(out)
				return
			}
			log.Printf("Read error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		out <- data
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints the anomalies found in a frame
func printValidationErrors(f xbee.Frame, errs []xbee.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%02X)\n", timestamp, xbee.FormatFrameType(f.FrameType()), f.FrameType())

	for i, err := range errs {
		switch err.Type {
		case xbee.AnomalyATError, xbee.AnomalyDeliveryFailure, xbee.AnomalyDisassociated:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		}
	}
	fmt.Println()
}

// runTextMode prints frames and anomalies as they arrive
func runTextMode(conn Connection, connInfo string) error {
	fmt.Printf("xbgate - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := xbee.NewDecoder()
	stats := xbee.NewStatistics()
	nodes := newNodeTracker()
	synchronized := false

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	data := make(chan []byte, 10)
	go readLoop(conn, data)

	for {
		select {
		case chunk, ok := <-data:
			if !ok {
				fmt.Printf("Connection closed\n")
				fmt.Print(stats.String())
				return nil
			}
			for _, b := range chunk {
				frame, decodeErr := decoder.DecodeByte(b)

				if decodeErr != nil {
					// Garbage before the first frame is line noise, not an error
					if synchronized {
						stats.Update(nil, decodeErr, nil)
						printDecodeError(decodeErr)
					}
					continue
				}
				if frame == nil {
					continue
				}

				if !synchronized {
					synchronized = true
					if skipped := decoder.Skipped(); skipped > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", skipped)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				validationErrors := xbee.ValidateFrame(frame)
				stats.Update(frame, nil, validationErrors)

				if p, ok := frame.(*xbee.ReceivePacket); ok {
					n, dup := nodes.observe(p, time.Now())
					if dup {
						stats.RecordDuplicate()
						fmt.Printf("[%s] \033[1;33mDUPLICATE:\033[0m %s counter=%d\n\n",
							time.Now().Format("15:04:05.000"), n.addr, n.counter)
						continue
					}
				}

				if len(validationErrors) > 0 {
					printValidationErrors(frame, validationErrors)
				} else if showAll {
					fmt.Print(xbee.FormatFrame(frame, time.Now()))
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			for _, n := range nodes.list() {
				fmt.Printf("  %s  frames=%d dup=%d  %s\n", n.addr, n.frames, n.duplicates, formatReadings(n.readings))
			}
			fmt.Println()
		}
	}
}

// runTUIMode runs the monitor in the terminal UI
func runTUIMode(conn Connection, connInfo string) error {
	decoder := xbee.NewDecoder()
	synchronized := false

	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		data := make(chan []byte, 10)
		go readLoop(conn, data)

		for chunk := range data {
			for _, b := range chunk {
				frame, decodeErr := decoder.DecodeByte(b)
				if decodeErr != nil {
					if synchronized {
						p.Send(frameMsg{decodeErr: decodeErr, at: time.Now()})
					}
					continue
				}
				if frame == nil {
					continue
				}
				if !synchronized {
					synchronized = true
					p.Send(syncMsg{skipped: decoder.Skipped()})
				}
				p.Send(frameMsg{
					frame:            frame,
					validationErrors: xbee.ValidateFrame(frame),
					at:               time.Now(),
				})
			}
		}
		p.Send(closedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}
