// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/capture"
)

var (
	replayAll   bool
	replayStats bool
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture recorded by monitor or proxy",
	Long: `Read a capture file and print its frames as monitor would have shown them,
tagged with the direction they travelled. A truncated file is decoded up to
the last complete record.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayAll, "all", false, "Show every frame regardless of verbosity")
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print statistics for each direction at the end")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	scanners := map[capture.Direction]*bwa.Scanner{
		capture.FromSpa: bwa.NewScanner(),
		capture.ToSpa:   bwa.NewScanner(),
	}
	stats := map[capture.Direction]*bwa.Statistics{
		capture.FromSpa: bwa.NewStatistics(),
		capture.ToSpa:   bwa.NewStatistics(),
	}
	var caps *bwa.Capabilities

	r := capture.NewReader(f)
	records := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				fmt.Fprintf(os.Stderr, "capture truncated after %d records\n", records)
				break
			}
			return fmt.Errorf("record %d: %w", records+1, err)
		}
		records++

		scanner, ok := scanners[rec.Direction]
		if !ok {
			return fmt.Errorf("record %d: unknown direction %d", records, rec.Direction)
		}
		scanner.Write(rec.Data)
		for {
			before := scanner.Discarded()
			p, err := scanner.Next()
			stats[rec.Direction].AddDiscarded(scanner.Discarded() - before)
			if err != nil {
				break
			}
			p.SetTimestamp(rec.Time)

			m, decodeErr := bwa.DecodePacket(p)
			var anomalies []bwa.ValidationError
			if decodeErr == nil {
				if cc2, ok := m.(bwa.ControlConfiguration2); ok {
					caps = &cc2.Capabilities
				}
				anomalies = bwa.ValidateMessage(m, caps)
			}
			stats[rec.Direction].Update(p, m, decodeErr, anomalies)

			if decodeErr == nil && !replayAll && !logging.ShouldLog(m) {
				continue
			}
			fmt.Printf("%-8s %s", rec.Direction.String()+":", bwa.FormatPacket(p))
			for _, a := range anomalies {
				fmt.Printf("  \033[1;33m%s\033[0m\n", a.Message)
			}
		}
	}

	if replayStats {
		for _, dir := range []capture.Direction{capture.FromSpa, capture.ToSpa} {
			fmt.Printf("\n%s\n%s", dir, stats[dir])
		}
	}
	return nil
}
