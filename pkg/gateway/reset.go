// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"
	"os"
	"time"

	"github.com/stianeikeland/go-rpio"
)

// Resetter pulses the module's reset line.
type Resetter interface {
	Reset() error
}

// RPIOResetter drives a Raspberry Pi BCM pin wired to the module's /RESET.
type RPIOResetter struct {
	Pin    int
	Pulse  time.Duration
	Settle time.Duration
}

// NewRPIOResetter returns a resetter holding pin low for 250ms and then
// waiting 5s for the module to boot.
func NewRPIOResetter(pin int) *RPIOResetter {
	return &RPIOResetter{
		Pin:    pin,
		Pulse:  250 * time.Millisecond,
		Settle: 5 * time.Second,
	}
}

func (r *RPIOResetter) Reset() error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}
	defer rpio.Close()

	pin := rpio.Pin(r.Pin)
	pin.Output()
	pin.Low()
	time.Sleep(r.Pulse)
	pin.High()
	time.Sleep(r.Settle)
	return nil
}

// SysfsResetter writes to a GPIO value file such as
// /sys/class/gpio/gpio24/value. The pin must already be exported as an
// output.
type SysfsResetter struct {
	ValuePath string
	Pulse     time.Duration
	Wake      time.Duration
}

// NewSysfsResetter returns a resetter with a 200µs pulse and 500ms wake time.
func NewSysfsResetter(valuePath string) *SysfsResetter {
	return &SysfsResetter{
		ValuePath: valuePath,
		Pulse:     200 * time.Microsecond,
		Wake:      500 * time.Millisecond,
	}
}

func (r *SysfsResetter) Reset() error {
	f, err := os.OpenFile(r.ValuePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.ValuePath, err)
	}
	defer f.Close()

	if _, err := f.WriteString("0"); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	time.Sleep(r.Pulse)
	if _, err := f.WriteString("1"); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	time.Sleep(r.Wake)
	return nil
}

// NewResetter returns the resetter selected by cfg, or nil for "none".
func NewResetter(cfg ResetConfig) (Resetter, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "rpio":
		return NewRPIOResetter(cfg.Pin), nil
	case "sysfs":
		if cfg.ValuePath == "" {
			return nil, fmt.Errorf("sysfs reset needs a value path")
		}
		return NewSysfsResetter(cfg.ValuePath), nil
	default:
		return nil, fmt.Errorf("unknown reset driver %q", cfg.Driver)
	}
}
