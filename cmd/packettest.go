// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/pkg/bwa"
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

This command connects to the spa and waits up to --timeout for any frame that passes the
CRC check. Bytes outside a valid frame are skipped and counted.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the wiring of an RS-485 adapter or the address of a
WiFi module.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()

	c, connInfo, err := OpenClient(ctx, bwa.NewStatistics())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	fmt.Printf("bwactl - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n", sessionTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	p, _, err := c.Poll(ctx)
	var ime *bwa.InvalidMessageError
	switch {
	case err == nil, errors.As(err, &ime):
		if skipped := c.Statistics().DiscardedBytes; skipped > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%04X)\n", bwa.TypeName(p.Type()), uint16(p.Type()))
		fmt.Printf("  Source: 0x%02X\n", p.Source())
		fmt.Printf("  Length: %d bytes\n", p.Length())
		fmt.Printf("  CRC: 0x%02X\n", p.CRC())
		if err != nil {
			fmt.Printf("  Payload: %v\n", err)
		}
		os.Exit(0)

	case ctx.Err() != nil:
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %s\n", sessionTimeout)
		os.Exit(1)

	default:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	return nil
}
