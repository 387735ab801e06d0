// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
	"github.com/Thermoquad/bwactl/pkg/transport"
)

// PasswordEnvVar holds the WebSocket password so it never has to be typed
const PasswordEnvVar = "BWA_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnvVar); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// transportOptions builds connection options from the current settings
func transportOptions() transport.Options {
	return transport.Options{
		BaudRate:      cfg.Baud,
		Username:      cfg.Username,
		PasswordFunc:  GetPassword,
		SkipSSLVerify: cfg.NoSSLVerify,
	}
}

// clientOptions builds session options from the current settings
func clientOptions(stats *bwa.Statistics) client.Options {
	return client.Options{
		Source:      cfg.Source,
		ToggleDelay: cfg.ToggleDelay,
		Statistics:  stats,
	}
}

// OpenConnection opens the raw transport named by --uri
func OpenConnection(ctx context.Context) (transport.Conn, string, error) {
	if cfg.URI == "" {
		return nil, "", fmt.Errorf("--uri must be specified (or set uri in the config file)")
	}
	conn, err := transport.Open(ctx, cfg.URI, transportOptions())
	if err != nil {
		return nil, "", err
	}
	return conn, conn.String(), nil
}

// OpenClient opens a protocol session on the transport named by --uri
func OpenClient(ctx context.Context, stats *bwa.Statistics) (*client.Client, string, error) {
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return nil, "", err
	}
	return client.New(conn, clientOptions(stats)), connInfo, nil
}
