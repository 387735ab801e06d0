// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads bwactl settings from an optional YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/transport"
)

const (
	appName    = "bwactl"
	configFile = "config.yaml"
)

// Config is the full set of file settings. Command line flags override it.
type Config struct {
	URI         string        `yaml:"uri" toml:"uri"`
	Baud        int           `yaml:"baud" toml:"baud"`
	Source      uint8         `yaml:"source" toml:"source"`
	ToggleDelay time.Duration `yaml:"toggle_delay" toml:"toggle_delay"`
	LogLevel    string        `yaml:"log_level" toml:"log_level"`
	Verbosity   int           `yaml:"verbosity" toml:"verbosity"`
	Username    string        `yaml:"username" toml:"username"`
	NoSSLVerify bool          `yaml:"no_ssl_verify" toml:"no_ssl_verify"`

	Emulator Emulator `yaml:"emulator" toml:"emulator"`
	Proxy    Proxy    `yaml:"proxy" toml:"proxy"`
}

// Emulator configures the server command
type Emulator struct {
	Listen         string        `yaml:"listen" toml:"listen"`
	Name           string        `yaml:"name" toml:"name"`
	MAC            string        `yaml:"mac" toml:"mac"`
	MDNS           bool          `yaml:"mdns" toml:"mdns"`
	Advertise      bool          `yaml:"advertise" toml:"advertise"`
	StatusInterval time.Duration `yaml:"status_interval" toml:"status_interval"`
}

// Proxy configures the proxy command
type Proxy struct {
	Listen   string `yaml:"listen" toml:"listen"`
	Upstream string `yaml:"upstream" toml:"upstream"`
	Capture  string `yaml:"capture" toml:"capture"`
}

// Default returns the settings used when no file is present
func Default() Config {
	return Config{
		Baud:        transport.DefaultBaudRate,
		Source:      bwa.SourceClient,
		ToggleDelay: 100 * time.Millisecond,
		LogLevel:    "warn",
		Emulator: Emulator{
			Listen:         ":4257",
			Name:           "BWGSPA",
			MAC:            "00:15:27:00:00:01",
			StatusInterval: time.Second,
		},
		Proxy: Proxy{
			Listen: ":4257",
		},
	}
}

// GetConfigDir returns the per user configuration directory:
// $XDG_CONFIG_HOME/bwactl or ~/.config/bwactl, %LOCALAPPDATA%\bwactl on
// Windows.
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads path over the defaults. An empty path reads the default file
// if it exists and returns the defaults otherwise.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := GetConfigPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config file type %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values a file could get wrong
func (c Config) Validate() error {
	var errs []error
	if c.URI != "" {
		if _, err := transport.ParseURI(c.URI); err != nil {
			errs = append(errs, fmt.Errorf("uri: %w", err))
		}
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	if c.ToggleDelay <= 0 {
		errs = append(errs, fmt.Errorf("toggle_delay must be positive, got %s", c.ToggleDelay))
	}
	if c.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("verbosity must not be negative, got %d", c.Verbosity))
	}
	if c.Emulator.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("emulator.status_interval must be positive, got %s", c.Emulator.StatusInterval))
	}
	if c.Emulator.MAC != "" {
		if _, err := c.Emulator.HardwareAddr(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Proxy.Upstream != "" && strings.Contains(c.Proxy.Upstream, "://") {
		if _, err := transport.ParseURI(c.Proxy.Upstream); err != nil {
			errs = append(errs, fmt.Errorf("proxy.upstream: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HardwareAddr parses MAC, which must be six bytes
func (e Emulator) HardwareAddr() (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(e.MAC)
	if err != nil {
		return nil, fmt.Errorf("emulator.mac: %w", err)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("emulator.mac: %q is not a 6 byte address", e.MAC)
	}
	return mac, nil
}

// DiscoveryMAC formats MAC the way discovery replies carry it
func (e Emulator) DiscoveryMAC() string {
	mac, err := e.HardwareAddr()
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(mac.String(), ":", "-"))
}
