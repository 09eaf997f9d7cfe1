// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mailbox reads operator commands from a named pipe.
//
// Each line names a node, a sensor on it and a command. Lines are parsed
// into a bounded queue that the control loop drains one entry at a time.
// Reading never blocks: readiness is checked with a zero timeout before
// every read. Malformed lines and lines arriving while the queue is full
// are logged and counted, never returned as errors.
package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

const (
	readSize   = 255
	maxPartial = 1024
	fifoMode   = 0o660
)

// Mailbox is the command FIFO and its queue. It is not safe for concurrent
// use.
type Mailbox struct {
	path    string
	fd      int
	ring    Ring
	partial []byte
	dropped int
	log     *slog.Logger
}

// New creates a mailbox for the FIFO at path. Call Open before Poll.
func New(path string, logger *slog.Logger) *Mailbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailbox{
		path: path,
		fd:   -1,
		log:  logger.With("component", "mailbox"),
	}
}

// Path returns the FIFO path.
func (m *Mailbox) Path() string {
	return m.path
}

// Open creates the FIFO if it does not exist and opens it read-write and
// non-blocking. Holding a write end keeps reads from reporting end of file
// when the last writer goes away.
func (m *Mailbox) Open() error {
	if err := unix.Mkfifo(m.path, fifoMode); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("mkfifo %s: %w", m.path, err)
	}

	fd, err := unix.Open(m.path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", m.path, err)
	}
	m.fd = fd
	m.log.Debug("opened", "path", m.path)
	return nil
}

// Close closes the FIFO. Queued entries are kept.
func (m *Mailbox) Close() error {
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}

// Poll reads whatever is ready on the FIFO without blocking, queues the
// parsed lines, and returns the oldest queued entry.
func (m *Mailbox) Poll() (Entry, bool) {
	m.read()
	return m.ring.Pop()
}

// Push queues e directly. It returns false, counting a drop, when the queue
// is full.
func (m *Mailbox) Push(e Entry) bool {
	if !m.ring.Push(e) {
		m.dropped++
		m.log.Warn("queue full, dropping command", "entry", e.String(), "capacity", Capacity)
		return false
	}
	return true
}

// Len returns the number of queued entries.
func (m *Mailbox) Len() int {
	return m.ring.Len()
}

// Dropped returns the number of lines discarded as malformed or because the
// queue was full.
func (m *Mailbox) Dropped() int {
	return m.dropped
}

func (m *Mailbox) read() {
	if m.fd < 0 {
		if err := m.Open(); err != nil {
			m.log.Error("reopen failed", "error", err)
			return
		}
	}

	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return
		}
		m.log.Warn("poll failed, reopening", "error", err)
		m.reopen()
		return
	}
	if n == 0 || fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) == 0 {
		return
	}

	var buf [readSize]byte
	k, err := unix.Read(m.fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		m.log.Warn("read failed, reopening", "error", err)
		m.reopen()
		return
	}
	m.feed(buf[:k])
}

func (m *Mailbox) reopen() {
	m.Close()
	if err := m.Open(); err != nil {
		m.log.Error("reopen failed", "error", err)
	}
}

// feed splits data into lines. An unterminated tail is kept for the next
// read.
func (m *Mailbox) feed(data []byte) {
	m.partial = append(m.partial, data...)

	for {
		i := bytes.IndexByte(m.partial, '\n')
		if i < 0 {
			break
		}
		line := string(m.partial[:i+1])
		m.partial = m.partial[i+1:]
		m.accept(line)
	}

	if len(m.partial) > maxPartial {
		m.dropped++
		m.log.Warn("discarding unterminated input", "bytes", len(m.partial))
		m.partial = nil
	}
	if len(m.partial) == 0 {
		m.partial = nil
	}
}

func (m *Mailbox) accept(line string) {
	if line == "\n" || line == "\r\n" {
		return
	}
	e, err := ParseLine(line)
	if err != nil {
		m.dropped++
		m.log.Warn("dropping malformed command", "line", line, "error", err)
		return
	}
	if m.Push(e) {
		m.log.Info("queued command", "entry", e.String())
	}
}
