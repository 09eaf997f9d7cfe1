// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sys/unix"

	"github.com/Thermoquad/xbgate/pkg/mailbox"
	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// openFIFO creates a FIFO with a non-blocking reader attached
func openFIFO(t *testing.T) (string, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailbox")
	if err := unix.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	r := os.NewFile(uintptr(fd), path)
	t.Cleanup(func() { r.Close() })
	return path, r
}

func readAll(t *testing.T, r *os.File) string {
	t.Helper()
	buf := make([]byte, 512)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("read fifo: %v", err)
	}
	return string(buf[:n])
}

// ============================================================================
// writeCommands
// ============================================================================

func TestWriteCommands(t *testing.T) {
	path, r := openFIFO(t)
	dest := xbee.Address64{0x00, 0x13, 0xa2, 0x00, 0x40, 0xd9, 0x68, 0x9c}

	err := writeCommands(path,
		mailbox.Entry{Dest: dest, SensorID: 3, Command: mailbox.Eco},
		mailbox.Entry{Dest: dest, SensorID: 4, Command: mailbox.Stop},
	)
	if err != nil {
		t.Fatalf("writeCommands error: %v", err)
	}

	want := "xb@00:13:a2:00:40:d9:68:9c;3;ECO\nxb@00:13:a2:00:40:d9:68:9c;4;STOP\n"
	if got := readAll(t, r); got != want {
		t.Errorf("fifo got %q, want %q", got, want)
	}
}

func TestWriteCommands_Errors(t *testing.T) {
	dir := t.TempDir()

	noReader := filepath.Join(dir, "idle")
	if err := unix.Mkfifo(noReader, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	regular := filepath.Join(dir, "plain")
	if err := os.WriteFile(regular, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	e := mailbox.Entry{SensorID: 1, Command: mailbox.HG}

	if err := writeCommands(noReader, e); !errors.Is(err, errNoReader) {
		t.Errorf("no reader: error = %v, want errNoReader", err)
	}
	if err := writeCommands(regular, e); err == nil {
		t.Error("regular file: expected error")
	}
	if err := writeCommands(filepath.Join(dir, "missing"), e); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing: error = %v, want ErrNotExist", err)
	}
}

// ============================================================================
// consoleModel
// ============================================================================

func TestConsoleModel_Submit(t *testing.T) {
	path, r := openFIFO(t)
	m := initialConsoleModel(path)

	// Empty form is rejected without writing
	m.submit()
	if m.sent != 0 || len(m.errorLog) != 1 || !m.errorLog[0].isError {
		t.Fatalf("empty form: sent=%d log=%+v", m.sent, m.errorLog)
	}

	m.commandList.Select(3) // ECO
	m.addressInput.SetValue("00:13:a2:00:40:d9:68:9c")
	m.sensorInput.SetValue("12")
	if got := m.line(); got != "xb@00:13:a2:00:40:d9:68:9c;12;ECO" {
		t.Errorf("line = %q", got)
	}

	m.submit()
	if m.sent != 1 {
		t.Fatalf("sent = %d, log=%+v", m.sent, m.errorLog)
	}
	if got := readAll(t, r); got != "xb@00:13:a2:00:40:d9:68:9c;12;ECO\n" {
		t.Errorf("fifo got %q", got)
	}
}

func TestConsoleModel_Focus(t *testing.T) {
	var model tea.Model = initialConsoleModel("/nonexistent")

	order := []int{focusAddressInput, focusSensorInput, focusButton, focusCommandList}
	for _, want := range order {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
		if got := model.(consoleModel).focusedField; got != want {
			t.Fatalf("focus = %d, want %d", got, want)
		}
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := model.(consoleModel).focusedField; got != focusButton {
		t.Errorf("shift+tab focus = %d, want %d", got, focusButton)
	}

	// Enter with an empty form logs an error
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if log := model.(consoleModel).errorLog; len(log) != 1 || !log[0].isError {
		t.Errorf("log = %+v", log)
	}
}
