// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee/zigbeetest"
)

func newTestSession(radio *zigbeetest.Radio, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return New(radio, opts)
}

// ============================================================
// Exchange Tests
// ============================================================

func TestSendAndWait_Success(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond(xbee.CmdHardwareVersion, zigbeetest.Response{Data: []byte{0x19, 0x4B}})
	s := newTestSession(radio, Options{})

	r, err := s.SendAndWait(xbee.CmdHardwareVersion, nil)
	if err != nil {
		t.Fatalf("SendAndWait error: %v", err)
	}
	if r.FrameID != 2 {
		t.Errorf("FrameID = %d, want 2 (first request after start)", r.FrameID)
	}
	if !bytes.Equal(r.Data, []byte{0x19, 0x4B}) {
		t.Errorf("Data = % X, want 19 4B", r.Data)
	}
	if s.LastError() != nil {
		t.Errorf("LastError = %v, want nil", s.LastError())
	}
}

func TestNextFrameID_SkipsZeroLowByte(t *testing.T) {
	tests := []struct {
		start    uint16
		expected uint16
	}{
		{1, 2},
		{0xFE, 0xFF},
		{0xFF, 0x101},
		{0x1FF, 0x201},
		{0xFFFF, 0x1},
	}

	for _, tt := range tests {
		s := newTestSession(zigbeetest.NewRadio(), Options{})
		s.frameID = tt.start
		if got := s.nextFrameID(); got != tt.expected {
			t.Errorf("nextFrameID from 0x%04X = 0x%04X, want 0x%04X", tt.start, got, tt.expected)
		}
	}
}

func TestSendAndWait_FrameIDWrapsOnWire(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{})
	s.frameID = 0x1FE

	r, err := s.SendAndWait(xbee.CmdApplyChanges, nil)
	if err != nil {
		t.Fatalf("SendAndWait error: %v", err)
	}
	if r.FrameID != 0xFF {
		t.Errorf("FrameID = 0x%02X, want 0xFF", r.FrameID)
	}

	if _, err := s.SendAndWait(xbee.CmdApplyChanges, nil); err != nil {
		t.Fatalf("SendAndWait after wrap error: %v", err)
	}
	if c := radio.LastCommand(); c.FrameID != 0x01 {
		t.Errorf("wire frame ID = 0x%02X, want 0x01", c.FrameID)
	}
}

func TestSendAndWait_StaleReplyIsNotAccepted(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond(xbee.CmdHardwareVersion, zigbeetest.Response{Stale: true, Data: []byte{0, 1}})
	s := newTestSession(radio, Options{})

	r, err := s.SendAndWait(xbee.CmdHardwareVersion, nil)
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("error = %v, want ErrNoReply", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want it to wrap ErrTimeout", err)
	}
	if r != nil {
		t.Errorf("response = %+v, want nil", r)
	}
}

func TestSendAndWait_SkipsStaleThenMatches(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond(xbee.CmdFirmwareVersion, zigbeetest.Response{Data: []byte{0x40, 0x5F}})
	s := newTestSession(radio, Options{})

	// A late answer to an earlier request is already in flight
	radio.Inject(&xbee.ATCommandResponse{FrameID: 1, Command: [2]byte{'H', 'V'}, Data: []byte{0xDE, 0xAD}})

	v, err := s.FirmwareVersion()
	if err != nil {
		t.Fatalf("FirmwareVersion error: %v", err)
	}
	if v != 0x405F {
		t.Errorf("version = 0x%04X, want 0x405F", v)
	}
}

func TestSendAndWait_DispatchesReceiveMidExchange(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond(xbee.CmdReceivedSignal, zigbeetest.Response{Data: []byte{0x2C}})

	var received []*xbee.ReceivePacket
	s := newTestSession(radio, Options{OnReceive: func(p *xbee.ReceivePacket) {
		received = append(received, p)
	}})

	radio.Inject(&xbee.ReceivePacket{Source64: xbee.Address64{1, 2, 3, 4, 5, 6, 7, 8}, Payload: []byte{0, 7, 0}})

	rssi, err := s.SignalStrength()
	if err != nil {
		t.Fatalf("SignalStrength error: %v", err)
	}
	if rssi != 0x2C {
		t.Errorf("rssi = 0x%02X, want 0x2C", rssi)
	}
	if len(received) != 1 {
		t.Fatalf("handler called %d times, want 1", len(received))
	}
	if received[0].Payload[1] != 7 {
		t.Errorf("payload = % X", received[0].Payload)
	}
}

func TestSendAndWait_StatusError(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond(xbee.CmdPanID, zigbeetest.Response{Status: xbee.ATStatusInvalidParameter})
	s := newTestSession(radio, Options{})

	r, err := s.SendAndWait(xbee.CmdPanID, make([]byte, 8))
	var statusErr *ATStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *ATStatusError", err)
	}
	if statusErr.Command != "ID" || statusErr.Status != xbee.ATStatusInvalidParameter {
		t.Errorf("status error = %+v", statusErr)
	}
	if r == nil || r.Status != xbee.ATStatusInvalidParameter {
		t.Errorf("response = %+v, want the failed response", r)
	}
}

func TestSendAndWait_EncodeFailureSendsNothing(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{BufferSize: 12})

	before := s.FrameID()
	err := s.SetNodeIdentifier("a name that does not fit")
	if !errors.Is(err, xbee.ErrBufferTooSmall) {
		t.Fatalf("error = %v, want ErrBufferTooSmall", err)
	}
	if len(radio.Commands()) != 0 {
		t.Errorf("commands sent = %v, want none", radio.Commands())
	}
	if s.FrameID() == before {
		t.Error("frame ID was not advanced")
	}
}

func TestSendAndWait_TransportErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *zigbeetest.Radio)
	}{
		{"read error", func(r *zigbeetest.Radio) { r.ReadErr = io.ErrUnexpectedEOF }},
		{"write error", func(r *zigbeetest.Radio) { r.WriteErr = io.ErrClosedPipe }},
		{"short read", func(r *zigbeetest.Radio) {
			r.Respond(xbee.CmdHardwareVersion, zigbeetest.Response{Drop: true})
			r.InjectBytes([]byte{0x7E, 0x00, 0x07, 0x88, 0x02})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			radio := zigbeetest.NewRadio()
			tt.setup(radio)
			s := newTestSession(radio, Options{})

			_, err := s.SendAndWait(xbee.CmdHardwareVersion, nil)
			if !errors.Is(err, ErrNoReply) || !errors.Is(err, ErrTransport) {
				t.Errorf("error = %v, want ErrNoReply wrapping ErrTransport", err)
			}
			if !errors.Is(s.LastError(), ErrTransport) {
				t.Errorf("LastError = %v, want ErrTransport", s.LastError())
			}
		})
	}
}

func TestSendAndWait_SplitReads(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.MaxRead = 1
	radio.Respond(xbee.CmdMaxRFPayload, zigbeetest.Response{Data: []byte{0x00, 0x54}})
	s := newTestSession(radio, Options{})

	np, err := s.MaxRFPayload()
	if err != nil {
		t.Fatalf("MaxRFPayload error: %v", err)
	}
	if np != 84 {
		t.Errorf("np = %d, want 84", np)
	}
}

// ============================================================
// Handle Tests
// ============================================================

func TestHandle_ReadsOneFrameWithoutReply(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{})

	radio.Inject(&xbee.ModemStatus{Status: xbee.ModemJoinedNetwork})
	radio.Inject(&xbee.ModemStatus{Status: xbee.ModemDisassociated})

	if got := s.Handle(); got != NoReply {
		t.Errorf("Handle = %v, want NO_REPLY", got)
	}
	status, ok := s.ModemStatus()
	if !ok || status != xbee.ModemJoinedNetwork {
		t.Errorf("ModemStatus = %d, %v, want %d", status, ok, xbee.ModemJoinedNetwork)
	}
	if radio.Pending() == 0 {
		t.Error("second frame was consumed")
	}

	s.Handle()
	if status, _ := s.ModemStatus(); status != xbee.ModemDisassociated {
		t.Errorf("ModemStatus = %d, want %d", status, xbee.ModemDisassociated)
	}
}

func TestHandle_ReceivePacket(t *testing.T) {
	radio := zigbeetest.NewRadio()
	calls := 0
	s := newTestSession(radio, Options{OnReceive: func(*xbee.ReceivePacket) { calls++ }})

	radio.Inject(&xbee.ReceivePacket{Payload: []byte{1}})
	if got := s.Handle(); got != RXFrameReceived {
		t.Errorf("Handle = %v, want RX_FRAME_RECEIVED", got)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}

	if got := s.Handle(); got != NoReply {
		t.Errorf("idle Handle = %v, want NO_REPLY", got)
	}
	if !errors.Is(s.LastError(), ErrTimeout) {
		t.Errorf("LastError = %v, want ErrTimeout", s.LastError())
	}
}

func TestHandle_OversizedFrameIsDrained(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{BufferSize: 24})

	radio.Inject(&xbee.ReceivePacket{Payload: make([]byte, 40)})
	radio.Inject(&xbee.ModemStatus{Status: xbee.ModemJoinedNetwork})

	s.Handle()
	if !errors.Is(s.LastError(), xbee.ErrFrameTooLarge) {
		t.Fatalf("LastError = %v, want ErrFrameTooLarge", s.LastError())
	}

	s.Handle()
	if status, ok := s.ModemStatus(); !ok || status != xbee.ModemJoinedNetwork {
		t.Errorf("frame after oversized one not decoded: %v", s.LastError())
	}
}

func TestHandle_Statistics(t *testing.T) {
	radio := zigbeetest.NewRadio()
	stats := xbee.NewStatistics()
	s := newTestSession(radio, Options{Stats: stats})

	radio.Inject(&xbee.ModemStatus{Status: xbee.ModemJoinedNetwork})
	s.Handle()
	radio.InjectBytes([]byte{0x7E, 0x00, 0x02, 0x8A, 0x02, 0x00})
	s.Handle()
	s.Handle()
	if _, err := s.SendAndWait(xbee.CmdWrite, nil); err != nil {
		t.Fatal(err)
	}

	if stats.ModemStatuses != 1 || stats.ChecksumErrors != 1 || stats.Timeouts != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SentFrames != 1 || stats.ATResponses != 1 {
		t.Errorf("SentFrames = %d, ATResponses = %d, want 1 and 1", stats.SentFrames, stats.ATResponses)
	}
}

// ============================================================
// Send Tests
// ============================================================

func TestSend(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{})

	dest := xbee.Address64{0x00, 0x13, 0xA2, 0x00, 0x40, 0xBD, 0x47, 0x18}
	status, err := s.Send(dest, xbee.AddressUnknown16, []byte{0x02, 0xA1})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if status != NoReply {
		t.Errorf("status = %v, want NO_REPLY", status)
	}

	tx := radio.Transmits()
	if len(tx) != 1 {
		t.Fatalf("transmits = %d, want 1", len(tx))
	}
	if tx[0].Dest64 != dest || tx[0].Dest16 != xbee.AddressUnknown16 || !bytes.Equal(tx[0].Payload, []byte{0x02, 0xA1}) {
		t.Errorf("transmit = %+v", tx[0])
	}
	if _, ok := s.LastFrame().(*xbee.TransmitStatus); !ok {
		t.Errorf("LastFrame = %T, want *xbee.TransmitStatus", s.LastFrame())
	}
}

func TestSend_EncodeFailure(t *testing.T) {
	radio := zigbeetest.NewRadio()
	s := newTestSession(radio, Options{BufferSize: 32})

	if _, err := s.Send(xbee.Address64{}, 0, make([]byte, 64)); !errors.Is(err, xbee.ErrBufferTooSmall) {
		t.Errorf("error = %v, want ErrBufferTooSmall", err)
	}
	if len(radio.Transmits()) != 0 {
		t.Error("frame was written")
	}
}

func TestSend_TransportError(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.WriteErr = io.ErrClosedPipe
	s := newTestSession(radio, Options{})

	if _, err := s.Send(xbee.Address64{}, 0, []byte{1}); !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}
