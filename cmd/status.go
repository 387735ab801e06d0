// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
)

var (
	sessionTimeout time.Duration
	statusYAML     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the spa configuration and current state",
	Long: `Request the full configuration, wait for it and a status frame, then print
them and exit.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "Print as YAML")
	rootCmd.PersistentFlags().DurationVar(&sessionTimeout, "timeout", 30*time.Second, "Give up when the spa has not answered in this long")
}

// statusReport is the printable form of a full configuration
type statusReport struct {
	Model        string           `yaml:"model"`
	Firmware     string           `yaml:"firmware"`
	MAC          string           `yaml:"mac,omitempty"`
	Capabilities bwa.Capabilities `yaml:"capabilities"`
	FilterCycles bwa.FilterCycles `yaml:"filter_cycles"`
	Status       bwa.Status       `yaml:"status"`
}

// withSession opens a session, waits until ready holds and runs fn. On
// turn-taking transports it keeps polling until every queued command has
// been written.
func withSession(parent context.Context, ready func(client.State) bool, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := signalContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, sessionTimeout)
	defer cancelTimeout()

	c, _, err := OpenClient(ctx, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	if ready != nil {
		if err := c.RequestAll(); err != nil {
			return err
		}
		if err := waitFor(ctx, c, ready); err != nil {
			return err
		}
	}

	if err := fn(ctx, c); err != nil {
		return err
	}
	return waitFor(ctx, c, func(client.State) bool { return c.QueueLength() == 0 })
}

func waitFor(ctx context.Context, c *client.Client, cond func(client.State) bool) error {
	err := c.WaitFor(ctx, cond)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("no answer from the spa within %s", sessionTimeout)
	}
	return err
}

func hasStatus(s client.State) bool { return s.Status != nil }

func hasStatusAndCapabilities(s client.State) bool {
	return s.Status != nil && s.Capabilities != nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), client.State.FullConfiguration, func(ctx context.Context, c *client.Client) error {
		s := c.Snapshot()
		report := statusReport{
			Model:        s.ControlConfiguration.Model(),
			Firmware:     s.ControlConfiguration.Version(),
			Capabilities: s.Capabilities.Capabilities,
			FilterCycles: *s.FilterCycles,
			Status:       *s.Status,
		}
		if s.Configuration != nil {
			report.MAC = s.Configuration.MAC().String()
		}

		if statusYAML {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(report)
		}

		fmt.Printf("Model:        %s\n", report.Model)
		fmt.Printf("Firmware:     %s\n", report.Firmware)
		if report.MAC != "" {
			fmt.Printf("MAC:          %s\n", report.MAC)
		}
		fmt.Printf("Equipment:    %s\n", bwa.ControlConfiguration2{Capabilities: report.Capabilities})
		fmt.Printf("Filters:      %s\n", report.FilterCycles)
		fmt.Printf("State:        %s\n", report.Status)
		return nil
	})
}
