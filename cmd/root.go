// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/internal/config"
	"github.com/Thermoquad/bwactl/internal/logging"
)

var (
	// Connection flags
	spaURI   string
	baudRate int

	// WebSocket connection flags
	wsUsername    string
	wsNoSSLVerify bool

	// Settings
	configPath   string
	logLevel     string
	logVerbosity int

	// cfg is the loaded file with command line overrides applied
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "bwactl",
	Short: "Balboa spa controller tool",
	Long: `bwactl - A CLI tool for monitoring and controlling Balboa spa controllers.

Talks to the controller over its WiFi module (TCP port 4257), a local RS-485
adapter, a telnet serial bridge or a WebSocket bridge. It can also emulate a
spa and sit between a client and a real spa to record the conversation.

Connection URIs:
  TCP:       --uri tcp://192.168.1.50[:4257]
  Serial:    --uri /dev/ttyUSB0 [--baud 115200]
  Telnet:    --uri telnet://bridge:23 (also rfc2217://)
  WebSocket: --uri ws://host/path [--username user]

Settings are read from $XDG_CONFIG_HOME/bwactl/config.yaml when present, or
from the file named by --config. Flags override the file.

For WebSocket authentication, the password is read from the BWA_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&spaURI, "uri", "u", "", "Spa URI (tcp://, telnet://, ws://, wss:// or a serial device)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial and telnet only)")

	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error or off (default $BWA_LOG_LEVEL or warn)")
	rootCmd.PersistentFlags().IntVarP(&logVerbosity, "verbosity", "v", -1, "Frame verbosity: 1 shows configuration polls, 2 shows bus chatter (default $BWA_LOG_VERBOSITY)")
}

// loadSettings reads the config file, lays set flags over it and brings up
// logging
func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("uri") {
		cfg.URI = spaURI
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("verbosity") {
		cfg.Verbosity = logVerbosity
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.LogLevel
	if !flags.Changed("log-level") && level == config.Default().LogLevel {
		// BWA_LOG_LEVEL beats the built in default
		level = ""
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}

	if !flags.Changed("verbosity") && cfg.Verbosity == 0 {
		logging.SetVerbosity(-1)
	} else {
		logging.SetVerbosity(cfg.Verbosity)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
