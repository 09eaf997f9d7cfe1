// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSysfsResetter_PulsesLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	writeFile(t, path, "1")

	r := NewSysfsResetter(path)
	r.Pulse = 0
	r.Wake = 0
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "01" {
		t.Errorf("written = %q, want low then high", got)
	}
}

func TestSysfsResetter_MissingFile(t *testing.T) {
	r := NewSysfsResetter(filepath.Join(t.TempDir(), "gpio99", "value"))
	if err := r.Reset(); err == nil {
		t.Error("expected error")
	}
}

func TestNewResetter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ResetConfig
		want    string
		wantErr bool
	}{
		{"none", ResetConfig{Driver: "none"}, "", false},
		{"empty", ResetConfig{}, "", false},
		{"rpio", ResetConfig{Driver: "rpio", Pin: 24}, "rpio", false},
		{"sysfs", ResetConfig{Driver: "sysfs", ValuePath: "/sys/class/gpio/gpio24/value"}, "sysfs", false},
		{"sysfs without path", ResetConfig{Driver: "sysfs"}, "", true},
		{"unknown", ResetConfig{Driver: "relay"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResetter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}

			got := ""
			switch r := r.(type) {
			case *RPIOResetter:
				got = "rpio"
				if r.Pin != tt.cfg.Pin {
					t.Errorf("pin = %d, want %d", r.Pin, tt.cfg.Pin)
				}
			case *SysfsResetter:
				got = "sysfs"
			}
			if got != tt.want {
				t.Errorf("resetter = %q, want %q", got, tt.want)
			}
		})
	}
}
