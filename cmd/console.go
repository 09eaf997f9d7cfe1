// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/Thermoquad/xbgate/pkg/mailbox"
)

var consoleFIFO string

var consoleCmd = &cobra.Command{
	Use:   "console [line...]",
	Short: "Queue heating commands for the running gateway",
	Long: `Write commands to the mailbox FIFO of a running gateway.

Each line names the destination node, the sensor ID and the command:

  xb@00:13:a2:00:40:d9:68:9c;3;ECO

Valid commands are CONFORT, CONFORT_M1, CONFORT_M2, ECO, HG and STOP.

With arguments, every argument is validated and written as one line; nothing
is written if any line is invalid. Without arguments an interactive terminal
UI lets you pick the command and fill in the address and sensor ID.

The FIFO path comes from mailbox.path in the config file, or --fifo.

Exit codes:
  0 - All commands written
  1 - Invalid command line
  2 - No gateway is reading the FIFO`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleFIFO, "fifo", "", "Mailbox FIFO path (overrides the config file)")
}

// errNoReader means the FIFO exists but no gateway has it open
var errNoReader = errors.New("no gateway is reading the mailbox")

func runConsole(cmd *cobra.Command, args []string) error {
	path := consoleFIFO
	if path == "" {
		path = loadConfig().Mailbox.Path
	}

	if len(args) == 0 {
		m := initialConsoleModel(path)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	}

	entries := make([]mailbox.Entry, 0, len(args))
	for _, arg := range args {
		e, err := mailbox.ParseLine(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %q: %v\n", arg, err)
			os.Exit(1)
		}
		entries = append(entries, e)
	}

	if err := writeCommands(path, entries...); err != nil {
		fmt.Fprintf(os.Stderr, "WRITE FAILED: %v\n", err)
		if errors.Is(err, errNoReader) {
			os.Exit(2)
		}
		return err
	}

	for _, e := range entries {
		fmt.Printf("QUEUED: %s\n", e)
	}
	return nil
}

// writeCommands writes entries to the FIFO at path in a single write. The
// open never blocks: without a reader it fails with errNoReader.
func writeCommands(path string, entries ...mailbox.Entry) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return fmt.Errorf("%s is not a FIFO", path)
	}

	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return fmt.Errorf("%w: %s", errNoReader, path)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(mailbox.FormatLine(e))
	}
	_, err = f.WriteString(b.String())
	return err
}
