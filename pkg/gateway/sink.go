// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"github.com/Thermoquad/xbgate/pkg/sensor"
	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Delivery is one receive packet handed to a Sink.
type Delivery struct {
	Time     time.Time
	Source   xbee.Address64
	Source16 uint16
	Packet   *xbee.ReceivePacket
	// Frame is nil when the payload is not a sensor frame.
	Frame *sensor.Frame
	// Duplicate is set when the payload repeats the node's previous counter.
	Duplicate bool
}

// Sink consumes received packets. Deliver runs on the control loop and
// must return promptly.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d Delivery) error

func (f SinkFunc) Deliver(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// MultiSink delivers to every sink in order and joins their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, d Delivery) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ============================================================
// Script
// ============================================================

// ScriptSink runs an external program for every new sensor frame with the
// frame's readings as arguments:
//
//	script address=xb@00:13:a2:00:40:bd:47:18 id=0 temp=17.175426 ...
type ScriptSink struct {
	Path    string
	Timeout time.Duration
	log     *slog.Logger
}

// NewScriptSink creates a sink running path. A zero timeout leaves the run
// bounded only by ctx.
func NewScriptSink(path string, timeout time.Duration, logger *slog.Logger) *ScriptSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptSink{
		Path:    path,
		Timeout: timeout,
		log:     logger.With("component", "script"),
	}
}

func (s *ScriptSink) Deliver(ctx context.Context, d Delivery) error {
	if d.Duplicate || d.Frame == nil || len(d.Frame.Readings) == 0 {
		return nil
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := d.Frame.Arguments(d.Source)
	cmd := exec.CommandContext(ctx, s.Path, args...)
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		s.log.Debug("script output", "output", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("script %s: %w", s.Path, err)
	}
	s.log.Debug("script done", "args", args)
	return nil
}

// ============================================================
// Publish
// ============================================================

// Record is the CBOR message published for each delivery.
type Record struct {
	Time      int64           `cbor:"0,keyasint"`
	Source    string          `cbor:"1,keyasint"`
	Source16  uint16          `cbor:"2,keyasint"`
	Counter   uint8           `cbor:"3,keyasint"`
	Duplicate bool            `cbor:"4,keyasint"`
	Readings  []RecordReading `cbor:"5,keyasint,omitempty"`
	Payload   []byte          `cbor:"6,keyasint,omitempty"`
}

// RecordReading is one reading inside a Record.
type RecordReading struct {
	ID    int     `cbor:"0,keyasint"`
	Kind  uint8   `cbor:"1,keyasint"`
	Unit  string  `cbor:"2,keyasint"`
	Value float64 `cbor:"3,keyasint"`
}

// NewRecord builds the published form of d. Undecodable payloads are
// carried raw.
func NewRecord(d Delivery) Record {
	r := Record{
		Time:      d.Time.UnixMilli(),
		Source:    d.Source.String(),
		Source16:  d.Source16,
		Duplicate: d.Duplicate,
	}
	if d.Frame == nil {
		if d.Packet != nil {
			r.Payload = d.Packet.Payload
		}
		return r
	}
	r.Counter = d.Frame.Counter
	for _, rd := range d.Frame.Readings {
		r.Readings = append(r.Readings, RecordReading{
			ID:    rd.ID,
			Kind:  rd.Kind,
			Unit:  rd.Unit(),
			Value: rd.Value,
		})
	}
	return r
}

// PublishSink sends every delivery as a binary CBOR message over a
// WebSocket. The connection is dialed on first use and redialed after a
// write failure.
type PublishSink struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool

	conn *websocket.Conn
	log  *slog.Logger
}

// NewPublishSink creates a sink publishing to wsURL.
func NewPublishSink(wsURL string, skipSSLVerify bool, logger *slog.Logger) *PublishSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishSink{
		URL:           wsURL,
		SkipSSLVerify: skipSSLVerify,
		log:           logger.With("component", "publish"),
	}
}

func (p *PublishSink) Deliver(ctx context.Context, d Delivery) error {
	data, err := cbor.Marshal(NewRecord(d))
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if p.conn == nil {
		conn, err := DialWebSocket(ctx, p.URL, p.Username, p.Password, p.SkipSSLVerify)
		if err != nil {
			return err
		}
		p.conn = conn
		p.log.Info("connected", "url", p.URL)
	}

	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close closes the connection, if open.
func (p *PublishSink) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// DialWebSocket connects to a ws:// or wss:// URL with optional HTTP Basic
// auth.
func DialWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*websocket.Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}
	return conn, nil
}
