// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	def := DefaultConfig()

	if cfg.Radio != def.Radio || cfg.Network != def.Network || cfg.Mailbox != def.Mailbox {
		t.Errorf("config = %+v, want defaults", cfg)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
radio:
  port: /dev/ttyAMA0
  baud_rate: 115200
network:
  pan_id: "0000000000001234"
  sleep_period: 0
mailbox:
  path: /run/xbgate/cmd
reset:
  driver: rpio
  pin: 17
`)

	cfg := LoadConfig(path)
	if cfg.Radio.Port != "/dev/ttyAMA0" || cfg.Radio.BaudRate != 115200 {
		t.Errorf("radio = %+v", cfg.Radio)
	}
	// Fields not in the file keep their defaults
	if cfg.Radio.NodeIdentifier != "ZBC1" || cfg.Network.SleepCount != 5 {
		t.Errorf("defaults lost: %+v %+v", cfg.Radio, cfg.Network)
	}
	if cfg.Network.SleepPeriod != 0 {
		t.Errorf("sleep_period = %d, want 0", cfg.Network.SleepPeriod)
	}
	if cfg.Mailbox.Path != "/run/xbgate/cmd" || cfg.Reset.Driver != "rpio" || cfg.Reset.Pin != 17 {
		t.Errorf("mailbox/reset = %+v %+v", cfg.Mailbox, cfg.Reset)
	}
	if cfg.Path() != path {
		t.Errorf("Path = %q", cfg.Path())
	}
}

func TestLoadConfig_ParseErrorUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "radio: [unterminated\n")

	cfg := LoadConfig(path)
	if cfg.Radio != DefaultConfig().Radio {
		t.Errorf("radio = %+v, want defaults", cfg.Radio)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("XBGATE_PORT", "/dev/ttyS1")
	t.Setenv("XBGATE_BAUD", "57600")
	t.Setenv("XBGATE_PAN_ID", "00000000000000AB")
	t.Setenv("XBGATE_MAILBOX", "/tmp/other.fifo")
	t.Setenv("XBGATE_SCRIPT", "/usr/local/bin/store")
	t.Setenv("XBGATE_PUBLISH_URL", "ws://collector:8080/readings")
	t.Setenv("XBGATE_RESET_DRIVER", "sysfs")
	t.Setenv("XBGATE_RESET_PIN", "not-a-number")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Radio.Port != "/dev/ttyS1" || cfg.Radio.BaudRate != 57600 {
		t.Errorf("radio = %+v", cfg.Radio)
	}
	if cfg.Network.PanID != "00000000000000AB" || cfg.Mailbox.Path != "/tmp/other.fifo" {
		t.Errorf("network/mailbox = %+v %+v", cfg.Network, cfg.Mailbox)
	}
	if cfg.Script.Path != "/usr/local/bin/store" || cfg.Publish.URL != "ws://collector:8080/readings" {
		t.Errorf("script/publish = %+v %+v", cfg.Script, cfg.Publish)
	}
	if cfg.Reset.Driver != "sysfs" || cfg.Reset.Pin != 24 {
		t.Errorf("reset = %+v, want sysfs on default pin", cfg.Reset)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), `
# gateway overrides
XBGATE_SCRIPT="/opt/store.sh"
XBGATE_MAILBOX='/tmp/env.fifo'
not a pair
`)
	t.Setenv("XBGATE_SCRIPT", "/preset")
	t.Cleanup(func() { os.Unsetenv("XBGATE_MAILBOX") })

	cfg := LoadConfig(filepath.Join(dir, "config.yaml"))
	if cfg.Script.Path != "/preset" {
		t.Errorf("script = %q, environment should win over .env", cfg.Script.Path)
	}
	if cfg.Mailbox.Path != "/tmp/env.fifo" {
		t.Errorf("mailbox = %q, want /tmp/env.fifo", cfg.Mailbox.Path)
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := LoadConfig(path)
	cfg.Radio.Port = "/dev/ttyUSB3"
	cfg.Network.Encryption = true
	cfg.Network.NetworkKey = strings.Repeat("11", 16)
	cfg.Network.LinkKey = strings.Repeat("22", 16)
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded := LoadConfig(path)
	if loaded.Radio != cfg.Radio || loaded.Network != cfg.Network {
		t.Errorf("loaded = %+v\nwant %+v", loaded, cfg)
	}
}

// ============================================================
// Conversion Tests
// ============================================================

func TestConfig_ZigbeeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.CommitToFlash = true

	zc, err := cfg.ZigbeeConfig()
	if err != nil {
		t.Fatalf("ZigbeeConfig error: %v", err)
	}
	if zc.PanID != (xbee.PanID{'M', 'I', 'C', 'K', 0, 0, 0, 1}) {
		t.Errorf("PanID = %s", zc.PanID)
	}
	if zc.BaudRate != 115200 || zc.ChannelBitmask != 0xFFFF || zc.ScanDuration != 3 {
		t.Errorf("zigbee config = %+v", zc)
	}
	if zc.SleepPeriod != 0x708 || zc.SleepCount != 5 || !zc.CommitToFlash || zc.Encryption {
		t.Errorf("zigbee config = %+v", zc)
	}
}

func TestConfig_ZigbeeConfigKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Encryption = true
	cfg.Network.NetworkKey = "0x" + strings.Repeat("A5", 16)
	cfg.Network.LinkKey = strings.Repeat("5a", 16)

	zc, err := cfg.ZigbeeConfig()
	if err != nil {
		t.Fatalf("ZigbeeConfig error: %v", err)
	}
	if zc.NetworkKey[0] != 0xA5 || zc.NetworkKey[15] != 0xA5 || zc.LinkKey[7] != 0x5A {
		t.Errorf("keys = % X / % X", zc.NetworkKey, zc.LinkKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no port", func(c *Config) { c.Radio.Port = "" }, true},
		{"zero baud", func(c *Config) { c.Radio.BaudRate = 0 }, true},
		{"long node identifier", func(c *Config) { c.Radio.NodeIdentifier = strings.Repeat("N", 21) }, true},
		{"no mailbox", func(c *Config) { c.Mailbox.Path = "" }, true},
		{"short PAN", func(c *Config) { c.Network.PanID = "1234" }, true},
		{"bad PAN hex", func(c *Config) { c.Network.PanID = "zz49434b00000001" }, true},
		{"missing keys", func(c *Config) { c.Network.Encryption = true }, true},
		{"unknown reset", func(c *Config) { c.Reset.Driver = "relay" }, true},
		{"sysfs without path", func(c *Config) { c.Reset.Driver = "sysfs" }, true},
		{"sysfs", func(c *Config) {
			c.Reset.Driver = "sysfs"
			c.Reset.ValuePath = "/sys/class/gpio/gpio24/value"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReplyTimeout() != 2*time.Second {
		t.Errorf("ReplyTimeout = %s", cfg.ReplyTimeout())
	}
	if cfg.AssociationTimeout() != 5*time.Minute {
		t.Errorf("AssociationTimeout = %s", cfg.AssociationTimeout())
	}
	if cfg.ScriptTimeout() != 10*time.Second {
		t.Errorf("ScriptTimeout = %s", cfg.ScriptTimeout())
	}
}
