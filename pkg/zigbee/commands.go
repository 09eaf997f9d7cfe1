// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// SleepMode is the SM parameter.
type SleepMode uint8

const (
	SleepDisabled      SleepMode = 0
	SleepPin           SleepMode = 1
	SleepCyclic        SleepMode = 4
	SleepCyclicPinWake SleepMode = 5
)

// HardwareVersion reads HV.
func (s *Session) HardwareVersion() (uint16, error) {
	return s.queryUint16(xbee.CmdHardwareVersion)
}

// FirmwareVersion reads VR.
func (s *Session) FirmwareVersion() (uint16, error) {
	return s.queryUint16(xbee.CmdFirmwareVersion)
}

// SerialNumber reads SH and SL and joins them into the module's 64-bit
// address.
func (s *Session) SerialNumber() (xbee.Address64, error) {
	var addr xbee.Address64

	high, err := s.queryExact(xbee.CmdSerialHigh, 4)
	if err != nil {
		return addr, err
	}
	low, err := s.queryExact(xbee.CmdSerialLow, 4)
	if err != nil {
		return addr, err
	}

	copy(addr[:4], high)
	copy(addr[4:], low)
	return addr, nil
}

// SetNodeIdentifier sets NI.
func (s *Session) SetNodeIdentifier(name string) error {
	return s.set(xbee.CmdNodeIdentifier, []byte(name))
}

// SetSleepMode sets SM.
func (s *Session) SetSleepMode(mode SleepMode) error {
	return s.set(xbee.CmdSleepMode, []byte{byte(mode)})
}

// SetSleepPeriod sets SP in units of 10 ms.
func (s *Session) SetSleepPeriod(period uint16) error {
	return s.set(xbee.CmdSleepPeriod, be16(period))
}

// SetSleepCount sets SN, the number of sleep periods between wakes.
func (s *Session) SetSleepCount(count uint16) error {
	return s.set(xbee.CmdSleepCount, be16(count))
}

// SetBaudRate sets BD and then switches the transport to rate. The transport
// is switched even when the module rejects the command.
func (s *Session) SetBaudRate(rate int) error {
	err := s.set(xbee.CmdBaudRate, []byte{xbee.BaudCode(rate)})
	if terr := s.t.SetBaudRate(rate); terr != nil {
		s.log.Warn("transport baud change failed", "rate", rate, "error", terr)
	}
	return err
}

// ApplyChanges sends AC.
func (s *Session) ApplyChanges() error {
	return s.set(xbee.CmdApplyChanges, nil)
}

// Write sends WR, saving the configuration to non-volatile memory.
func (s *Session) Write() error {
	return s.set(xbee.CmdWrite, nil)
}

// PanID reads OP, the PAN the module is operating on.
func (s *Session) PanID() (xbee.PanID, error) {
	var pan xbee.PanID
	data, err := s.queryExact(xbee.CmdOperatingPanID, len(pan))
	if err != nil {
		return pan, err
	}
	copy(pan[:], data)
	return pan, nil
}

// OperatingChannel reads CH.
func (s *Session) OperatingChannel() (uint8, error) {
	data, err := s.queryExact(xbee.CmdOperatingChannel, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// MaxRFPayload reads NP, the largest payload a transmit request can carry.
func (s *Session) MaxRFPayload() (uint16, error) {
	return s.queryUint16(xbee.CmdMaxRFPayload)
}

// SignalStrength reads DB, the RSSI of the last received packet in -dBm.
func (s *Session) SignalStrength() (uint8, error) {
	data, err := s.queryExact(xbee.CmdReceivedSignal, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// NodeDiscover sends ND. Only the first response is consumed; later node
// reports arrive as stale AT responses and are discarded.
func (s *Session) NodeDiscover() (*xbee.ATCommandResponse, error) {
	return s.SendAndWait(xbee.CmdNodeDiscover, nil)
}

// ConfigureIO routes the association LED and the RSSI PWM output:
// D5 disabled, P0 as RSSI PWM, RP timer 5 (500 ms).
func (s *Session) ConfigureIO() error {
	if err := s.set(xbee.CmdDIO5, []byte{0}); err != nil {
		return err
	}
	if err := s.set(xbee.CmdPWM0, []byte{1}); err != nil {
		return err
	}
	return s.set(xbee.CmdRSSIPWMTimer, []byte{5})
}

// SetEncryptionOptions sets EO.
func (s *Session) SetEncryptionOptions(opts uint8) error {
	return s.set(xbee.CmdEncryptionOptions, []byte{opts})
}

func (s *Session) set(cmd string, params []byte) error {
	_, err := s.SendAndWait(cmd, params)
	return err
}

func (s *Session) queryExact(cmd string, size int) ([]byte, error) {
	r, err := s.SendAndWait(cmd, nil)
	if err != nil {
		return nil, err
	}
	if len(r.Data) != size {
		return nil, fmt.Errorf("%w: %s returned %d bytes, want %d", ErrUnexpectedReply, cmd, len(r.Data), size)
	}
	return r.Data, nil
}

func (s *Session) queryUint16(cmd string) (uint16, error) {
	data, err := s.queryExact(cmd, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(data), nil
}

func be16(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}
