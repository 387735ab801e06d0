// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"error_detection"},
	Short:   "Detect and analyze malformed frames and anomalous values",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command validates each frame and detects:
  - Bytes discarded while hunting for a frame (noise, collisions, bad CRC)
  - Payloads whose length does not match their message type
  - Anomalous values (clock out of range, unknown heating mode, target
    temperature outside its range, equipment the spa does not have)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	statsCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	statsCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	c, connInfo, err := OpenClient(ctx, bwa.NewStatistics())
	if err != nil {
		return err
	}
	defer c.Close()

	if useTUI {
		return runStatsTUI(ctx, c, connInfo)
	}
	return runStatsText(ctx, c, connInfo)
}

// printDecodeError prints a frame whose payload did not decode
func printDecodeError(p *bwa.Packet, err error) {
	timestamp := p.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %s (0x%04X) %v\n",
		timestamp, bwa.TypeName(p.Type()), uint16(p.Type()), err)
	fmt.Printf("  %s\n", bwa.HexDump(p.Raw()))
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printError prints an Error frame from the controller
func printError(p *bwa.Packet, m bwa.Error) {
	timestamp := p.Timestamp().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;35mCONTROLLER ERROR:\033[0m %s\n\n", timestamp, m)
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(p *bwa.Packet, errors []bwa.ValidationError) {
	timestamp := p.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%04X)\n", timestamp, bwa.TypeName(p.Type()), uint16(p.Type()))
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case bwa.AnomalyInvalidTime:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case bwa.AnomalyExceedsCapability:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if max, ok := err.Details["max"].(uint8); ok {
				fmt.Printf("    installed maximum=%d\n", max)
			}

		case bwa.AnomalyInvalidTemp:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if target, ok := err.Details["target"].(float64); ok {
				fmt.Printf("    target=%.1f %s, range=%v\n", target, err.Details["scale"], err.Details["range"])
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  %s\n", bwa.HexDump(p.Raw()))
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// validate checks m against the inventory the session has seen so far
func validate(c *client.Client, m bwa.Message) []bwa.ValidationError {
	var caps *bwa.Capabilities
	if s := c.Snapshot(); s.Capabilities != nil {
		caps = &s.Capabilities.Capabilities
	}
	return bwa.ValidateMessage(m, caps)
}

// runStatsTUI runs error detection in TUI mode
func runStatsTUI(ctx context.Context, c *client.Client, connInfo string) error {
	m := initialStatsModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	// Reader goroutine. The model keeps its own counters so the
	// statistics are only touched from the UI goroutine.
	go func() {
		synchronized := false
		err := readFrames(ctx, c, func(pkt *bwa.Packet, msg bwa.Message, decodeErr error) {
			if !synchronized {
				synchronized = true
				p.Send(syncMsg{invalidBytes: int(c.Statistics().DiscardedBytes)})
			}
			frame := frameDataMsg{
				packet:    pkt,
				message:   msg,
				decodeErr: decodeErr,
				discarded: c.Statistics().DiscardedBytes,
			}
			if decodeErr == nil {
				frame.validationErrors = validate(c, msg)
			}
			p.Send(frame)
		})
		p.Send(sessionEndedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runStatsText runs error detection in text mode
func runStatsText(ctx context.Context, c *client.Client, connInfo string) error {
	fmt.Printf("bwactl - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	type frame struct {
		p         *bwa.Packet
		m         bwa.Message
		err       error
		discarded uint64
	}
	frames := make(chan frame, 64)
	done := make(chan error, 1)
	go func() {
		done <- readFrames(ctx, c, func(p *bwa.Packet, m bwa.Message, err error) {
			frames <- frame{p, m, err, c.Statistics().DiscardedBytes}
		})
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Sync tracking - bytes before the first frame are not errors
	synchronized := false
	stats := bwa.NewStatistics()

	for {
		select {
		case f := <-frames:
			if !synchronized {
				synchronized = true
				if f.discarded > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", f.discarded)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			stats.DiscardedBytes = f.discarded

			if f.err != nil {
				stats.Update(f.p, nil, f.err, nil)
				printDecodeError(f.p, f.err)
				continue
			}
			errs := validate(c, f.m)
			stats.Update(f.p, f.m, nil, errs)
			if e, ok := f.m.(bwa.Error); ok {
				printError(f.p, e)
				continue
			}
			if len(errs) > 0 {
				printValidationErrors(f.p, errs)
			} else if showAll {
				fmt.Print(bwa.FormatPacket(f.p))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-done:
			fmt.Println()
			fmt.Print(stats.String())
			return err
		}
	}
}
