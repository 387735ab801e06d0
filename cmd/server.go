// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/logging"
	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/discovery"
	"github.com/Thermoquad/bwactl/pkg/emulator"
)

var serverCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"emulate"},
	Short:   "Emulate a spa controller on TCP port 4257",
	Long: `Run a simulated spa that clients can connect to as if it were a WiFi module.

The simulated spa broadcasts Status once per interval, answers configuration
requests and obeys toggles, temperature, clock, scale and filter changes.
The water temperature drifts toward the target while the heater runs.

With --advertise it also answers the UDP discovery query, and with --mdns
it publishes a _bwa._tcp service.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("listen", "", "Listen address (default from config, :4257)")
	serverCmd.Flags().String("name", "", "Name used in discovery replies")
	serverCmd.Flags().String("mac", "", "MAC address reported by the module")
	serverCmd.Flags().Bool("advertise", false, "Answer UDP discovery queries")
	serverCmd.Flags().Bool("mdns", false, "Publish an mDNS service")
	serverCmd.Flags().Duration("status-interval", 0, "Status broadcast interval")
}

func runServer(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	ecfg := cfg.Emulator
	if flags.Changed("listen") {
		ecfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("name") {
		ecfg.Name, _ = flags.GetString("name")
	}
	if flags.Changed("mac") {
		ecfg.MAC, _ = flags.GetString("mac")
	}
	if flags.Changed("advertise") {
		ecfg.Advertise, _ = flags.GetBool("advertise")
	}
	if flags.Changed("mdns") {
		ecfg.MDNS, _ = flags.GetBool("mdns")
	}
	if flags.Changed("status-interval") {
		ecfg.StatusInterval, _ = flags.GetDuration("status-interval")
	}

	mac, err := ecfg.HardwareAddr()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	srv := emulator.New(emulator.Options{
		Listen:         ecfg.Listen,
		StatusInterval: ecfg.StatusInterval,
		MAC:            mac,
	})
	if err := srv.Listen(); err != nil {
		return err
	}

	fmt.Printf("bwactl - Spa Emulator\n")
	fmt.Printf("Listening: %s\n", srv.Addr())
	fmt.Printf("MAC: %s\n", mac)
	fmt.Printf("Equipment: %s\n", bwa.ControlConfiguration2{Capabilities: emulator.DefaultCapabilities})
	fmt.Printf("Press Ctrl+C to exit\n\n")

	errc := make(chan error, 2)
	running := 1
	go func() { errc <- srv.Serve(ctx) }()

	if ecfg.Advertise {
		responder, err := discovery.Listen("", ecfg.Name, ecfg.DiscoveryMAC())
		if err != nil {
			cancel()
			<-errc
			return err
		}
		fmt.Printf("Discovery: answering on %s as %s\n", responder.Addr(), ecfg.Name)
		running++
		go func() { errc <- responder.Serve(ctx) }()
	}

	if ecfg.MDNS {
		_, portText, _ := net.SplitHostPort(srv.Addr().String())
		port, _ := strconv.Atoi(portText)
		instance := ecfg.Name
		if host, err := os.Hostname(); err == nil {
			instance = ecfg.Name + " on " + host
		}
		mdns, err := discovery.Register(instance, port, mac.String())
		if err != nil {
			logging.Warn("mDNS registration failed", zap.Error(err))
		} else {
			defer mdns.Shutdown()
			fmt.Printf("mDNS: %s %s\n", discovery.ServiceType, instance)
		}
	}

	// The first failure stops everything
	var first error
	for ; running > 0; running-- {
		if err := <-errc; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}
