// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package zigbee drives an XBee ZigBee module over a Transport.
//
// A Session owns one frame buffer and runs at most one exchange at a time:
// it writes the pending request, then reads frames until the matching AT
// response arrives or a read fails. Receive packets that arrive during an
// exchange are handed to the receive handler immediately. A Session is not
// safe for concurrent use.
package zigbee

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Session defaults
const (
	DefaultBufferSize   = 256
	DefaultReplyTimeout = 2 * time.Second
	DefaultPollInterval = time.Second
)

// HandleStatus is the outcome of one Handle call.
type HandleStatus int

const (
	NoReply HandleStatus = iota
	ATReplyReceived
	RXFrameReceived
)

func (s HandleStatus) String() string {
	switch s {
	case NoReply:
		return "NO_REPLY"
	case ATReplyReceived:
		return "AT_REPLY_RECEIVED"
	case RXFrameReceived:
		return "RX_FRAME_RECEIVED"
	default:
		return fmt.Sprintf("HandleStatus(%d)", int(s))
	}
}

// ReceiveHandler is called synchronously for every decoded receive packet.
type ReceiveHandler func(p *xbee.ReceivePacket)

// Options configures a Session. Zero values select the defaults.
type Options struct {
	BufferSize   int
	ReplyTimeout time.Duration
	PollInterval time.Duration
	OnReceive    ReceiveHandler
	// Stats, when set, is updated with every frame sent or received.
	Stats *xbee.Statistics
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Session is the protocol state for one radio module.
type Session struct {
	t    Transport
	opts Options
	log  *slog.Logger

	buf           []byte
	pending       int
	frameID       uint16
	replyExpected bool

	last        xbee.Frame
	reply       *xbee.ATCommandResponse
	modemStatus uint8
	hasModem    bool
	lastErr     error
}

// New creates a session on t. The transport is borrowed; closing it is the
// caller's job.
func New(t Transport, opts Options) *Session {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Session{
		t:       t,
		opts:    opts,
		log:     opts.Logger.With("component", "zigbee"),
		buf:     make([]byte, opts.BufferSize),
		frameID: 1,
	}
}

// SetReceiveHandler replaces the receive packet handler.
func (s *Session) SetReceiveHandler(h ReceiveHandler) {
	s.opts.OnReceive = h
}

// FrameID returns the ID of the most recent request.
func (s *Session) FrameID() uint16 {
	return s.frameID
}

// LastFrame returns the most recently decoded frame, or nil.
func (s *Session) LastFrame() xbee.Frame {
	return s.last
}

// ModemStatus returns the last modem status reported by the module.
func (s *Session) ModemStatus() (uint8, bool) {
	return s.modemStatus, s.hasModem
}

// LastError returns the failure that ended the most recent Handle call, or
// nil when it ended normally.
func (s *Session) LastError() error {
	return s.lastErr
}

// Handle writes the pending request, if any, then reads frames. With no
// reply expected it reads at most one frame.
func (s *Session) Handle() HandleStatus {
	s.lastErr = nil

	status := NoReply
	if err := s.flush(); err != nil {
		s.lastErr = err
		s.log.Warn("write failed", "error", err)
	} else {
		status = s.receive()
	}

	s.replyExpected = false
	return status
}

// SendAndWait sends an AT command and waits for its response. A response
// with a non-zero status is returned together with an *ATStatusError.
func (s *Session) SendAndWait(cmd string, params []byte) (*xbee.ATCommandResponse, error) {
	id := s.nextFrameID()
	frame, err := xbee.EncodeATCommand(s.buf, uint8(id), cmd, params)
	if err != nil {
		return nil, fmt.Errorf("encode AT %s: %w", cmd, err)
	}
	s.pending = len(frame)
	s.replyExpected = true
	s.reply = nil

	if s.Handle() != ATReplyReceived {
		if s.lastErr != nil {
			return nil, fmt.Errorf("AT %s: %w: %w", cmd, ErrNoReply, s.lastErr)
		}
		return nil, fmt.Errorf("AT %s: %w", cmd, ErrNoReply)
	}

	if s.reply.Status != xbee.ATStatusOK {
		return s.reply, &ATStatusError{Command: cmd, Status: s.reply.Status}
	}
	return s.reply, nil
}

// Send transmits payload to a remote node. It does not wait for the
// transmit status; a receive packet read meanwhile is still dispatched.
func (s *Session) Send(dest64 xbee.Address64, dest16 uint16, payload []byte) (HandleStatus, error) {
	id := s.nextFrameID()
	frame, err := xbee.EncodeTransmitRequest(s.buf, uint8(id), dest64, dest16, payload)
	if err != nil {
		return NoReply, fmt.Errorf("encode transmit request: %w", err)
	}
	s.pending = len(frame)

	status := s.Handle()
	if errors.Is(s.lastErr, ErrTransport) {
		return status, s.lastErr
	}
	return status, nil
}

func (s *Session) nextFrameID() uint16 {
	s.frameID++
	// A zero frame ID on the wire suppresses the module's response
	for s.frameID&0xFF == 0 {
		s.frameID++
	}
	return s.frameID
}

func (s *Session) flush() error {
	if s.pending == 0 {
		return nil
	}
	frame := s.buf[:s.pending]
	s.pending = 0

	s.log.Debug("sent", "frame", fmt.Sprintf("% X", frame))
	if _, err := s.t.Write(frame); err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransport, err)
	}
	if s.opts.Stats != nil {
		s.opts.Stats.RecordSent()
	}
	return nil
}

func (s *Session) receive() HandleStatus {
	status := NoReply
	for {
		f, err := s.readFrame()
		if err != nil {
			s.lastErr = err
			s.record(nil, err)
			return status
		}
		s.last = f
		s.record(f, nil)

		switch f := f.(type) {
		case *xbee.ATCommandResponse:
			if s.replyExpected && f.FrameID == uint8(s.frameID) {
				s.reply = f
				status = ATReplyReceived
			} else {
				s.log.Debug("discarding AT response", "id", f.FrameID, "cmd", f.CommandName(), "want", uint8(s.frameID))
			}
		case *xbee.ModemStatus:
			s.modemStatus = f.Status
			s.hasModem = true
			s.log.Info("modem status", "status", xbee.FormatModemStatus(f.Status))
		case *xbee.TransmitStatus:
			if !f.Delivered() {
				s.log.Warn("delivery failed", "id", f.FrameID, "status", xbee.FormatDeliveryStatus(f.DeliveryStatus))
			}
		case *xbee.ReceivePacket:
			status = RXFrameReceived
			if s.opts.OnReceive != nil {
				s.opts.OnReceive(f)
			}
		}

		if !s.replyExpected || status == ATReplyReceived {
			return status
		}
	}
}

func (s *Session) record(f xbee.Frame, err error) {
	if s.opts.Stats == nil {
		return
	}
	switch {
	case errors.Is(err, ErrTimeout):
		s.opts.Stats.RecordTimeout()
	case errors.Is(err, ErrTransport):
	case err != nil:
		s.opts.Stats.Update(nil, err, nil)
	default:
		s.opts.Stats.Update(f, nil, xbee.ValidateFrame(f))
	}
}

func (s *Session) readFrame() (xbee.Frame, error) {
	header := s.buf[:xbee.HeaderSize]
	if err := s.readFull(header); err != nil {
		return nil, err
	}
	length, err := xbee.DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	n := int(length) + xbee.ChecksumSize
	if xbee.HeaderSize+n > len(s.buf) {
		s.drain(n)
		return nil, fmt.Errorf("%w: length %d exceeds %d byte buffer", xbee.ErrFrameTooLarge, length, len(s.buf))
	}

	body := s.buf[xbee.HeaderSize : xbee.HeaderSize+n]
	if err := s.readFull(body); err != nil {
		return nil, err
	}
	s.log.Debug("received", "frame", fmt.Sprintf("% X", s.buf[:xbee.HeaderSize+n]))

	return xbee.DecodeFrame(body)
}

// readFull fills p within one reply timeout.
func (s *Session) readFull(p []byte) error {
	deadline := time.Now().Add(s.opts.ReplyTimeout)
	for n := 0; n < len(p); {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.timeout(n, len(p))
		}
		if err := s.t.SetReadTimeout(remaining); err != nil {
			return fmt.Errorf("%w: set read timeout: %v", ErrTransport, err)
		}
		m, err := s.t.Read(p[n:])
		n += m
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrTransport, err)
		}
		if m == 0 {
			return s.timeout(n, len(p))
		}
	}
	return nil
}

func (s *Session) timeout(got, want int) error {
	if got == 0 {
		return ErrTimeout
	}
	return fmt.Errorf("%w: short read, %d of %d bytes", ErrTransport, got, want)
}

// drain discards the body of a frame that does not fit the buffer.
func (s *Session) drain(n int) {
	for n > 0 {
		chunk := s.buf[:min(n, len(s.buf))]
		if err := s.readFull(chunk); err != nil {
			return
		}
		n -= len(chunk)
	}
}
