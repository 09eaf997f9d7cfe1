// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package zigbeetest provides an in-memory radio module for testing code
// built on zigbee.Session.
package zigbeetest

import (
	"bytes"
	"sync"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Response is a scripted answer to one AT command.
type Response struct {
	Status uint8
	Data   []byte
	// Drop suppresses the answer, so the session times out.
	Drop bool
	// Stale answers with a frame ID that does not match the request.
	Stale bool
}

// Radio simulates an XBee module in API mode. It implements
// zigbee.Transport. AT commands without a scripted response are answered
// with status OK and no data. Transmit requests are answered with a
// successful transmit status.
type Radio struct {
	mu        sync.Mutex
	responses map[string][]Response
	out       bytes.Buffer
	dec       *xbee.Decoder

	commands  []*xbee.ATCommand
	transmits []*xbee.TransmitRequest
	baudRates []int
	timeouts  []time.Duration

	// ReadErr and WriteErr, when set, are returned by Read and Write.
	ReadErr  error
	WriteErr error
	// MaxRead limits the bytes returned by one Read call.
	MaxRead int
}

// NewRadio creates a radio with no scripted responses.
func NewRadio() *Radio {
	return &Radio{
		responses: make(map[string][]Response),
		dec:       xbee.NewDecoder(),
	}
}

// Respond scripts the answers to cmd. Answers are used in order and the
// last one repeats.
func (r *Radio) Respond(cmd string, responses ...Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmd] = append([]Response(nil), responses...)
}

// Inject queues an unsolicited frame for the host to read.
func (r *Radio) Inject(f xbee.Frame) {
	r.InjectBytes(xbee.MustMarshal(f))
}

// InjectBytes queues raw bytes for the host to read.
func (r *Radio) InjectBytes(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Write(b)
}

// Pending returns the number of bytes queued for the host.
func (r *Radio) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Len()
}

// Commands returns the mnemonics of every AT command received, in order.
func (r *Radio) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.commands))
	for i, c := range r.commands {
		names[i] = c.CommandName()
	}
	return names
}

// LastCommand returns the most recent AT command, or nil.
func (r *Radio) LastCommand() *xbee.ATCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return nil
	}
	return r.commands[len(r.commands)-1]
}

// Command returns the most recent AT command with the given mnemonic.
func (r *Radio) Command(cmd string) *xbee.ATCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.commands) - 1; i >= 0; i-- {
		if r.commands[i].CommandName() == cmd {
			return r.commands[i]
		}
	}
	return nil
}

// Transmits returns every transmit request received.
func (r *Radio) Transmits() []*xbee.TransmitRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*xbee.TransmitRequest(nil), r.transmits...)
}

// BaudRates returns every rate passed to SetBaudRate.
func (r *Radio) BaudRates() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.baudRates...)
}

// Read returns queued bytes. With nothing queued it returns 0, nil, which a
// serial port reports when the read timeout elapses.
func (r *Radio) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ReadErr != nil {
		return 0, r.ReadErr
	}
	if r.out.Len() == 0 {
		return 0, nil
	}
	if r.MaxRead > 0 && len(p) > r.MaxRead {
		p = p[:r.MaxRead]
	}
	return r.out.Read(p)
}

// Write decodes host frames and queues the module's answers.
func (r *Radio) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.WriteErr != nil {
		return 0, r.WriteErr
	}
	for _, b := range p {
		f, err := r.dec.DecodeByte(b)
		if err != nil || f == nil {
			continue
		}
		r.handle(f)
	}
	return len(p), nil
}

// SetReadTimeout records the timeout.
func (r *Radio) SetReadTimeout(timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts = append(r.timeouts, timeout)
	return nil
}

// SetBaudRate records the rate.
func (r *Radio) SetBaudRate(rate int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baudRates = append(r.baudRates, rate)
	return nil
}

func (r *Radio) handle(f xbee.Frame) {
	switch f := f.(type) {
	case *xbee.ATCommand:
		r.commands = append(r.commands, f)
		resp := r.next(f.CommandName())
		if resp.Drop {
			return
		}
		id := f.FrameID
		if resp.Stale {
			id--
		}
		r.out.Write(xbee.MustMarshal(&xbee.ATCommandResponse{
			FrameID: id,
			Command: f.Command,
			Status:  resp.Status,
			Data:    resp.Data,
		}))

	case *xbee.TransmitRequest:
		r.transmits = append(r.transmits, f)
		if f.FrameID == 0 {
			return
		}
		r.out.Write(xbee.MustMarshal(&xbee.TransmitStatus{
			FrameID:        f.FrameID,
			Dest16:         f.Dest16,
			DeliveryStatus: xbee.DeliverySuccess,
		}))
	}
}

func (r *Radio) next(cmd string) Response {
	queue := r.responses[cmd]
	switch len(queue) {
	case 0:
		return Response{}
	case 1:
		return queue[0]
	default:
		r.responses[cmd] = queue[1:]
		return queue[0]
	}
}
