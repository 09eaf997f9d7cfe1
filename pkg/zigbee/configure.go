// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Config is the network configuration applied by Configure.
type Config struct {
	BaudRate       int
	PanID          xbee.PanID
	ChannelBitmask uint16
	ScanDuration   uint8
	StackProfile   uint8
	Encryption     bool
	NetworkKey     [16]byte
	LinkKey        [16]byte
	// SleepPeriod and SleepCount are skipped when zero.
	SleepPeriod   uint16
	SleepCount    uint16
	CommitToFlash bool
}

// DefaultConfig returns the settings used when nothing else is configured:
// all channels, scan exponent 3, stack profile 0, 115200 baud.
func DefaultConfig() Config {
	return Config{
		BaudRate:       115200,
		ChannelBitmask: xbee.DefaultChannelBitmask,
		ScanDuration:   xbee.DefaultScanDuration,
		StackProfile:   xbee.DefaultStackProfile,
	}
}

type step struct {
	name string
	cmd  string
	run  func() error
}

// Configure applies cfg one command at a time and stops at the first
// failure, returning it as a *StepError. Steps after the failure are not
// sent.
func (s *Session) Configure(cfg Config) error {
	steps := []step{
		{"baud rate", xbee.CmdBaudRate, func() error { return s.SetBaudRate(cfg.BaudRate) }},
		{"PAN ID", xbee.CmdPanID, func() error { return s.set(xbee.CmdPanID, cfg.PanID[:]) }},
		{"scan channels", xbee.CmdScanChannels, func() error { return s.set(xbee.CmdScanChannels, be16(cfg.ChannelBitmask)) }},
		{"scan duration", xbee.CmdScanDuration, func() error { return s.set(xbee.CmdScanDuration, []byte{cfg.ScanDuration}) }},
		{"stack profile", xbee.CmdStackProfile, func() error { return s.set(xbee.CmdStackProfile, []byte{cfg.StackProfile}) }},
	}

	if cfg.Encryption {
		steps = append(steps,
			step{"encryption", xbee.CmdEncryptionEnable, func() error { return s.set(xbee.CmdEncryptionEnable, []byte{1}) }},
			step{"network key", xbee.CmdNetworkKey, func() error { return s.set(xbee.CmdNetworkKey, cfg.NetworkKey[:]) }},
			step{"link key", xbee.CmdLinkKey, func() error { return s.set(xbee.CmdLinkKey, cfg.LinkKey[:]) }},
		)
	} else {
		steps = append(steps, step{"encryption", xbee.CmdEncryptionEnable, func() error { return s.set(xbee.CmdEncryptionEnable, []byte{0}) }})
	}

	if cfg.SleepPeriod != 0 {
		steps = append(steps, step{"sleep period", xbee.CmdSleepPeriod, func() error { return s.SetSleepPeriod(cfg.SleepPeriod) }})
	}
	if cfg.SleepCount != 0 {
		steps = append(steps, step{"sleep count", xbee.CmdSleepCount, func() error { return s.SetSleepCount(cfg.SleepCount) }})
	}
	if cfg.CommitToFlash {
		steps = append(steps, step{"write", xbee.CmdWrite, s.Write})
	}

	for _, st := range steps {
		if err := st.run(); err != nil {
			s.log.Error("configure failed", "step", st.name, "cmd", st.cmd, "error", err)
			return &StepError{Step: st.name, Err: err}
		}
		s.log.Debug("configured", "step", st.name, "cmd", st.cmd)
	}

	s.log.Info("configuration applied", "pan", cfg.PanID.String(), "encryption", cfg.Encryption)
	return nil
}
