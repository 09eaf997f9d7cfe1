// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/xbgate/pkg/xbee"
	"github.com/Thermoquad/xbgate/pkg/zigbee"
)

// DefaultConfigPath is used by Save when the config was not loaded from a file.
const DefaultConfigPath = "/etc/xbgate/config.yaml"

// Config is the gateway configuration.
type Config struct {
	Radio   RadioConfig   `yaml:"radio" json:"radio"`
	Network NetworkConfig `yaml:"network" json:"network"`
	Mailbox MailboxConfig `yaml:"mailbox" json:"mailbox"`
	Script  ScriptConfig  `yaml:"script" json:"script"`
	Publish PublishConfig `yaml:"publish" json:"publish"`
	Reset   ResetConfig   `yaml:"reset" json:"reset"`

	path string
}

// RadioConfig selects the serial link to the module.
type RadioConfig struct {
	Port string `yaml:"port" json:"port"`
	// BaudRate is the link rate the module is reached at after reset.
	BaudRate int `yaml:"baud_rate" json:"baud_rate"`
	// TargetBaudRate is programmed with BD during setup.
	TargetBaudRate int    `yaml:"target_baud_rate" json:"target_baud_rate"`
	ReplyTimeoutMs int    `yaml:"reply_timeout_ms" json:"reply_timeout_ms"`
	NodeIdentifier string `yaml:"node_identifier" json:"node_identifier"`
}

// NetworkConfig holds the ZigBee network parameters. Keys and the PAN ID are
// hex strings.
type NetworkConfig struct {
	PanID          string `yaml:"pan_id" json:"pan_id"`
	ChannelBitmask uint16 `yaml:"channel_bitmask" json:"channel_bitmask"`
	ScanDuration   uint8  `yaml:"scan_duration" json:"scan_duration"`
	StackProfile   uint8  `yaml:"stack_profile" json:"stack_profile"`
	Encryption     bool   `yaml:"encryption" json:"encryption"`
	NetworkKey     string `yaml:"network_key,omitempty" json:"network_key,omitempty"`
	LinkKey        string `yaml:"link_key,omitempty" json:"link_key,omitempty"`
	SleepPeriod    uint16 `yaml:"sleep_period" json:"sleep_period"`
	SleepCount     uint16 `yaml:"sleep_count" json:"sleep_count"`
	CommitToFlash  bool   `yaml:"commit_to_flash" json:"commit_to_flash"`
	JoinTime       uint8  `yaml:"join_time" json:"join_time"`
	// AssociationTimeoutSec bounds the wait for association; 0 waits forever.
	AssociationTimeoutSec int `yaml:"association_timeout_sec" json:"association_timeout_sec"`
}

// MailboxConfig locates the command FIFO.
type MailboxConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ScriptConfig names the program run for every sensor frame.
type ScriptConfig struct {
	Path       string `yaml:"path" json:"path"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
}

// PublishConfig enables the WebSocket publisher when URL is set.
type PublishConfig struct {
	URL                string `yaml:"url" json:"url"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// ResetConfig selects how the module is hardware reset at startup.
type ResetConfig struct {
	// Driver is "none", "rpio" or "sysfs".
	Driver string `yaml:"driver" json:"driver"`
	// Pin is the BCM pin for the rpio driver.
	Pin int `yaml:"pin" json:"pin"`
	// ValuePath is the GPIO value file for the sysfs driver.
	ValuePath string `yaml:"value_path,omitempty" json:"value_path,omitempty"`
}

// DefaultConfig returns the settings of a stock gateway.
func DefaultConfig() *Config {
	return &Config{
		Radio: RadioConfig{
			Port:           "/dev/ttyUSB0",
			BaudRate:       9600,
			TargetBaudRate: 115200,
			ReplyTimeoutMs: 2000,
			NodeIdentifier: "ZBC1",
		},
		Network: NetworkConfig{
			PanID:                 "4d49434b00000001",
			ChannelBitmask:        xbee.DefaultChannelBitmask,
			ScanDuration:          xbee.DefaultScanDuration,
			StackProfile:          xbee.DefaultStackProfile,
			SleepPeriod:           0x708,
			SleepCount:            5,
			JoinTime:              xbee.JoinAlways,
			AssociationTimeoutSec: 300,
		},
		Mailbox: MailboxConfig{
			Path: "/tmp/xbgate.fifo",
		},
		Script: ScriptConfig{
			TimeoutSec: 10,
		},
		Reset: ResetConfig{
			Driver: "none",
			Pin:    24,
		},
	}
}

// LoadConfig reads the config at path. A missing or unreadable file yields
// the defaults. Environment overrides, including those from .env files, are
// applied last.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	if path != "" {
		loadEnvFile(filepath.Join(filepath.Dir(path), ".env"))
	}
	loadEnvFile(".env")
	cfg.applyEnvOverrides()

	return cfg
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save writes the config back to its file.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	c.path = path
	return nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Radio.Port == "" {
		return fmt.Errorf("radio.port is required")
	}
	if c.Radio.BaudRate <= 0 {
		return fmt.Errorf("radio.baud_rate must be positive, got %d", c.Radio.BaudRate)
	}
	if len(c.Radio.NodeIdentifier) > 20 {
		return fmt.Errorf("radio.node_identifier longer than 20 characters")
	}
	if c.Mailbox.Path == "" {
		return fmt.Errorf("mailbox.path is required")
	}
	switch c.Reset.Driver {
	case "", "none", "rpio":
	case "sysfs":
		if c.Reset.ValuePath == "" {
			return fmt.Errorf("reset.value_path is required for the sysfs driver")
		}
	default:
		return fmt.Errorf("unknown reset driver %q", c.Reset.Driver)
	}
	_, err := c.ZigbeeConfig()
	return err
}

// ZigbeeConfig converts the network section for zigbee.Session.Configure.
func (c *Config) ZigbeeConfig() (zigbee.Config, error) {
	zc := zigbee.DefaultConfig()
	if c.Radio.TargetBaudRate > 0 {
		zc.BaudRate = c.Radio.TargetBaudRate
	}
	if err := decodeHex(c.Network.PanID, zc.PanID[:]); err != nil {
		return zc, fmt.Errorf("network.pan_id: %w", err)
	}
	zc.ChannelBitmask = c.Network.ChannelBitmask
	zc.ScanDuration = c.Network.ScanDuration
	zc.StackProfile = c.Network.StackProfile
	zc.Encryption = c.Network.Encryption
	if c.Network.Encryption {
		if err := decodeHex(c.Network.NetworkKey, zc.NetworkKey[:]); err != nil {
			return zc, fmt.Errorf("network.network_key: %w", err)
		}
		if err := decodeHex(c.Network.LinkKey, zc.LinkKey[:]); err != nil {
			return zc, fmt.Errorf("network.link_key: %w", err)
		}
	}
	zc.SleepPeriod = c.Network.SleepPeriod
	zc.SleepCount = c.Network.SleepCount
	zc.CommitToFlash = c.Network.CommitToFlash
	return zc, nil
}

// ReplyTimeout returns the AT reply timeout.
func (c *Config) ReplyTimeout() time.Duration {
	return time.Duration(c.Radio.ReplyTimeoutMs) * time.Millisecond
}

// AssociationTimeout returns the join wait bound.
func (c *Config) AssociationTimeout() time.Duration {
	return time.Duration(c.Network.AssociationTimeoutSec) * time.Second
}

// ScriptTimeout returns the bound on one script run.
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.Script.TimeoutSec) * time.Second
}

// decodeHex fills dst from s, which must hold exactly len(dst) bytes.
func decodeHex(s string, dst []byte) error {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("want %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

// loadEnvFile reads KEY=VALUE lines into the environment. Variables that
// are already set win.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("XBGATE_PORT"); v != "" {
		c.Radio.Port = v
	}
	if v := os.Getenv("XBGATE_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Radio.BaudRate = n
		} else {
			log.Printf("[config] ignoring XBGATE_BAUD=%q: %v", v, err)
		}
	}
	if v := os.Getenv("XBGATE_PAN_ID"); v != "" {
		c.Network.PanID = v
	}
	if v := os.Getenv("XBGATE_MAILBOX"); v != "" {
		c.Mailbox.Path = v
	}
	if v := os.Getenv("XBGATE_SCRIPT"); v != "" {
		c.Script.Path = v
	}
	if v := os.Getenv("XBGATE_PUBLISH_URL"); v != "" {
		c.Publish.URL = v
	}
	if v := os.Getenv("XBGATE_RESET_DRIVER"); v != "" {
		c.Reset.Driver = v
	}
	if v := os.Getenv("XBGATE_RESET_PIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Reset.Pin = n
		} else {
			log.Printf("[config] ignoring XBGATE_RESET_PIN=%q: %v", v, err)
		}
	}
}
