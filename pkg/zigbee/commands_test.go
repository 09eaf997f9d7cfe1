// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee/zigbeetest"
)

func TestSerialNumber(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond("SH", zigbeetest.Response{Data: []byte{0x00, 0x13, 0xA2, 0x00}})
	radio.Respond("SL", zigbeetest.Response{Data: []byte{0x40, 0xBD, 0x47, 0x18}})
	s := newTestSession(radio, Options{})

	addr, err := s.SerialNumber()
	if err != nil {
		t.Fatalf("SerialNumber error: %v", err)
	}
	if got := addr.String(); got != "00:13:a2:00:40:bd:47:18" {
		t.Errorf("serial = %s", got)
	}
}

func TestPanID(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond("OP", zigbeetest.Response{Data: []byte{'M', 'I', 'C', 'K', 0, 0, 0, 1}})
	s := newTestSession(radio, Options{})

	pan, err := s.PanID()
	if err != nil {
		t.Fatalf("PanID error: %v", err)
	}
	if pan != (xbee.PanID{'M', 'I', 'C', 'K', 0, 0, 0, 1}) {
		t.Errorf("pan = %v", pan)
	}
}

func TestQueries_UnexpectedReply(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		data []byte
		call func(s *Session) error
	}{
		{"HV short", "HV", []byte{0x19}, func(s *Session) error { _, err := s.HardwareVersion(); return err }},
		{"OP short", "OP", []byte{0, 1}, func(s *Session) error { _, err := s.PanID(); return err }},
		{"CH empty", "CH", nil, func(s *Session) error { _, err := s.OperatingChannel(); return err }},
		{"DB long", "DB", []byte{1, 2}, func(s *Session) error { _, err := s.SignalStrength(); return err }},
		{"SL short", "SL", []byte{1, 2, 3}, func(s *Session) error { _, err := s.SerialNumber(); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			radio := zigbeetest.NewRadio()
			radio.Respond("SH", zigbeetest.Response{Data: []byte{0, 0, 0, 0}})
			radio.Respond(tt.cmd, zigbeetest.Response{Data: tt.data})
			s := newTestSession(radio, Options{})

			if err := tt.call(s); !errors.Is(err, ErrUnexpectedReply) {
				t.Errorf("error = %v, want ErrUnexpectedReply", err)
			}
		})
	}
}

func TestSetters(t *testing.T) {
	tests := []struct {
		name   string
		call   func(s *Session) error
		cmds   []string
		params []byte
	}{
		{"node identifier", func(s *Session) error { return s.SetNodeIdentifier("ZBC1") }, []string{"NI"}, []byte("ZBC1")},
		{"sleep mode", func(s *Session) error { return s.SetSleepMode(SleepCyclicPinWake) }, []string{"SM"}, []byte{5}},
		{"sleep period", func(s *Session) error { return s.SetSleepPeriod(0x708) }, []string{"SP"}, []byte{0x07, 0x08}},
		{"encryption options", func(s *Session) error { return s.SetEncryptionOptions(2) }, []string{"EO"}, []byte{2}},
		{"apply", func(s *Session) error { return s.ApplyChanges() }, []string{"AC"}, []byte{}},
		{"IO", func(s *Session) error { return s.ConfigureIO() }, []string{"D5", "P0", "RP"}, []byte{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			radio := zigbeetest.NewRadio()
			s := newTestSession(radio, Options{})

			if err := tt.call(s); err != nil {
				t.Fatalf("error: %v", err)
			}
			if got := radio.Commands(); !reflect.DeepEqual(got, tt.cmds) {
				t.Errorf("commands = %v, want %v", got, tt.cmds)
			}
			if got := radio.LastCommand().Params; !reflect.DeepEqual(got, tt.params) {
				t.Errorf("params = % X, want % X", got, tt.params)
			}
		})
	}
}

func TestNodeDiscover(t *testing.T) {
	radio := zigbeetest.NewRadio()
	radio.Respond("ND", zigbeetest.Response{Data: []byte{0x12, 0x34, 0x00, 0x13}})
	s := newTestSession(radio, Options{})

	r, err := s.NodeDiscover()
	if err != nil {
		t.Fatalf("NodeDiscover error: %v", err)
	}
	if r.CommandName() != "ND" || len(r.Data) != 4 {
		t.Errorf("response = %+v", r)
	}
}
