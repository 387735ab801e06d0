// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/capture"
)

var (
	monitorAll     bool
	monitorRaw     bool
	monitorCapture string
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"raw_log"},
	Short:   "Display frames from the spa in human-readable format",
	Long: `Continuously decode and display frames as they arrive.

Each frame is shown with its timestamp, message type, source address and the
decoded message. Bus chatter (Ready, NothingToSend) and configuration polls
are hidden at the default verbosity; raise --verbosity or pass --all to see
them.

With --capture every frame is also recorded to a file that the replay
command can read back.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorAll, "all", false, "Show every frame regardless of verbosity")
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Also print each frame as hex")
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record frames to this file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	c, connInfo, err := OpenClient(ctx, bwa.NewStatistics())
	if err != nil {
		return err
	}
	defer c.Close()

	var recorder *capture.Writer
	if monitorCapture != "" {
		f, err := os.Create(monitorCapture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		recorder = capture.NewWriter(f)
	}

	fmt.Printf("bwactl - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if recorder != nil {
		fmt.Printf("Capture: %s\n", monitorCapture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = readFrames(ctx, c, func(p *bwa.Packet, m bwa.Message, decodeErr error) {
		if recorder != nil {
			if err := recorder.Record(capture.FromSpa, p.Raw()); err != nil {
				fmt.Fprintf(os.Stderr, "[ERROR] capture: %v\n", err)
			}
		}
		if decodeErr == nil && !monitorAll && !logging.ShouldLog(m) {
			return
		}
		fmt.Print(bwa.FormatPacket(p))
		if monitorRaw {
			fmt.Println("  " + bwa.FormatRaw("raw", p.Raw()))
		}
	})

	if recorder != nil {
		fmt.Printf("\nRecorded %d frames to %s\n", recorder.Count(), monitorCapture)
	}
	return err
}
