// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/pkg/discovery"
)

var (
	discoveryTimeout    time.Duration
	discoveryExhaustive bool
	discoveryMDNS       bool
	discoveryBroadcast  string
)

var discoverCmd = &cobra.Command{
	Use:     "discover",
	Aliases: []string{"discovery"},
	Short:   "Find spa WiFi modules on the local network",
	Long: `Broadcast the WiFi module discovery query on UDP port 30303 and list the
modules that answer.

Modes:
  UDP (default): Modules answer with their name and MAC address. Only
                 addresses in the Balboa range (00-15-27) are accepted.

  mDNS (--mdns): Browse for _bwa._tcp services, as published by the
                 server command.

Examples:
  # Stop at the first module
  bwactl discover

  # Wait for every module on the network
  bwactl discover --exhaustive

Exit codes:
  0 - Discovery successful (at least one spa found)
  1 - Discovery failed (no spas or timeout)
  2 - Network error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().DurationVar(&discoveryTimeout, "wait", discovery.DefaultTimeout, "How long to wait for a reply")
	discoverCmd.Flags().BoolVar(&discoveryExhaustive, "exhaustive", false, "Keep listening after the first reply")
	discoverCmd.Flags().BoolVar(&discoveryMDNS, "mdns", false, "Browse mDNS instead of the UDP query")
	discoverCmd.Flags().StringVar(&discoveryBroadcast, "broadcast", "", "Send the query to this host:port instead of the broadcast address")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	fmt.Printf("bwactl - Spa Discovery\n")
	if discoveryMDNS {
		fmt.Printf("Mode: mDNS %s\n", discovery.ServiceType)
	} else {
		fmt.Printf("Mode: UDP port %d\n", discovery.Port)
	}
	fmt.Printf("Timeout: %s\n\n", discoveryTimeout)

	if discoveryMDNS {
		services, err := discovery.Browse(ctx, discoveryTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
			os.Exit(2)
		}
		if len(services) == 0 {
			fmt.Fprintf(os.Stderr, "No spas found\n")
			os.Exit(1)
		}
		for _, s := range services {
			fmt.Printf("%-24s %-18s %s\n", s.Instance, s.MAC, s.URI())
		}
		return nil
	}

	spas, err := discovery.Discover(ctx, discovery.Options{
		Timeout:    discoveryTimeout,
		Exhaustive: discoveryExhaustive,
		Broadcast:  discoveryBroadcast,
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
		os.Exit(2)
	}
	if len(spas) == 0 {
		fmt.Fprintf(os.Stderr, "No spas found\n")
		os.Exit(1)
	}

	ips := make([]string, 0, len(spas))
	for ip := range spas {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	for _, ip := range ips {
		s := spas[ip]
		fmt.Printf("%-24s %-18s %s\n", s.Name, s.MAC, s.URI())
	}
	return nil
}
