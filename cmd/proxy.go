// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/capture"
	"github.com/Thermoquad/bwactl/pkg/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Relay a client to a spa and log both directions",
	Long: `Accept a client on the listen address, open the upstream spa and relay bytes
verbatim in both directions. Every frame is decoded and logged with the
side that sent it. With --capture the conversation is recorded for replay.

The upstream may be any spa URI. A bare host:port is taken as TCP.`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().String("listen", "", "Listen address (default from config, :4257)")
	proxyCmd.Flags().String("upstream", "", "Spa to relay to (defaults to --uri)")
	proxyCmd.Flags().String("capture", "", "Record the conversation to this file")
}

func runProxy(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	pcfg := cfg.Proxy
	if flags.Changed("listen") {
		pcfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("upstream") {
		pcfg.Upstream, _ = flags.GetString("upstream")
	}
	if flags.Changed("capture") {
		pcfg.Capture, _ = flags.GetString("capture")
	}
	if pcfg.Upstream == "" {
		pcfg.Upstream = cfg.URI
	}
	if pcfg.Upstream == "" {
		return fmt.Errorf("--upstream or --uri must be specified")
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var recorder *capture.Writer
	if pcfg.Capture != "" {
		f, err := os.Create(pcfg.Capture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()
		recorder = capture.NewWriter(f)
	}

	var printMu sync.Mutex
	p := proxy.New(proxy.Options{
		Listen:    pcfg.Listen,
		Upstream:  pcfg.Upstream,
		Transport: transportOptions(),
		Capture:   recorder,
		OnFrame: func(dir capture.Direction, pkt *bwa.Packet, m bwa.Message, err error) {
			if err == nil && !logging.ShouldLog(m) {
				return
			}
			printMu.Lock()
			defer printMu.Unlock()
			fmt.Printf("%-8s %s", dir.String()+":", bwa.FormatPacket(pkt))
		},
	})
	if err := p.Listen(); err != nil {
		return err
	}

	fmt.Printf("bwactl - Proxy\n")
	fmt.Printf("Listening: %s\n", p.Addr())
	fmt.Printf("Upstream: %s\n", pcfg.Upstream)
	if recorder != nil {
		fmt.Printf("Capture: %s\n", pcfg.Capture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err := p.Serve(ctx)
	if recorder != nil {
		fmt.Printf("\nRecorded %d chunks to %s\n", recorder.Count(), pcfg.Capture)
	}
	return err
}
