// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/xbgate/pkg/gateway"
	"github.com/Thermoquad/xbgate/pkg/zigbee"
)

// Connection is a byte link to the radio module, over serial or a WebSocket
// serial bridge
type Connection interface {
	zigbee.Transport
	Close() error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
	mode *serial.Mode
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) SetReadTimeout(timeout time.Duration) error {
	return s.port.SetReadTimeout(timeout)
}

// SetBaudRate switches the port to rate and drops anything received at the
// old rate
func (s *SerialConnection) SetBaudRate(rate int) error {
	s.mode.BaudRate = rate
	if err := s.port.SetMode(s.mode); err != nil {
		return err
	}
	return s.port.ResetInputBuffer()
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket serial bridge. A reader goroutine
// queues binary messages so that Read can honour the read timeout without
// putting a deadline on the socket.
type WebSocketConnection struct {
	conn      *websocket.Conn
	messages  chan []byte
	errc      chan error
	buf       []byte
	bufOffset int
	timeout   time.Duration
	closed    bool // Track if connection has failed/closed
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		messages: make(chan []byte, 64),
		errc:     make(chan error, 1),
		timeout:  time.Second,
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.errc <- err
			close(w.messages)
			return
		}
		// Text frames carry bridge status, not radio bytes
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.messages <- data
	}
}

// Read returns buffered bytes, or waits up to the read timeout for the
// next message. A timeout returns 0, nil like a serial port.
func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case data, ok := <-w.messages:
		if !ok {
			w.closed = true
			return 0, <-w.errc
		}
		w.buf = data
		w.bufOffset = copy(p, data)
		return w.bufOffset, nil
	case <-timer.C:
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) SetReadTimeout(timeout time.Duration) error {
	w.timeout = timeout
	return nil
}

// SetBaudRate is a no-op: the bridge owns the serial line
func (w *WebSocketConnection) SetBaudRate(rate int) error {
	return nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialConnection{port: port, mode: mode}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	conn, err := gateway.DialWebSocket(context.Background(), wsURL, username, password, skipSSLVerify)
	if err != nil {
		return nil, err
	}
	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("XBGATE_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens either a WebSocket connection or the serial port
// named by the flags or the config file
func OpenConnection(cfg *gateway.Config) (Connection, string, error) {
	if wsURL != "" {
		// WebSocket mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if cfg.Radio.Port != "" {
		// Serial mode
		conn, err := OpenSerialConnection(cfg.Radio.Port, cfg.Radio.BaudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Radio.Port, cfg.Radio.BaudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
