// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a spa setting",
	Long: `Change one setting and exit once the command has been written.

Equipment numbers start at 1. Speeds are 0 (off), 1 (low) or 2 (high);
"on" means the highest speed the equipment supports.`,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle ITEM",
	Short: "Press a panel button",
	Long: "Send one ToggleItem. ITEM is a name (" + strings.Join(bwa.ItemNames(), ", ") + `)
or a numeric code such as 0x04.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := bwa.ParseItem(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), nil, func(_ context.Context, c *client.Client) error {
			return c.ToggleItem(item)
		})
	},
}

var (
	setTime24h     bool
	filterCycle1   string
	filterCycle2   string
	filterDisable2 bool
)

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(toggleCmd)

	setCmd.AddCommand(
		speedCommand("pump N SPEED", "Set a pump speed", true, func(ctx context.Context, c *client.Client, index, speed int) error {
			return c.SetPump(ctx, index, speed)
		}),
		speedCommand("blower SPEED", "Set the blower speed", false, func(ctx context.Context, c *client.Client, _, speed int) error {
			return c.SetBlower(ctx, speed)
		}),
		switchCommand("light N on|off", "Switch a light", true, func(c *client.Client, index int, on bool) error {
			return c.SetLight(index, on)
		}),
		switchCommand("aux N on|off", "Switch an auxiliary output", true, func(c *client.Client, index int, on bool) error {
			return c.SetAux(index, on)
		}),
		switchCommand("mister on|off", "Switch the mister", false, func(c *client.Client, _ int, on bool) error {
			return c.SetMister(on)
		}),
		switchCommand("hold on|off", "Hold or resume all equipment", false, func(c *client.Client, _ int, on bool) error {
			return c.SetHold(on)
		}),
		setTemperatureCmd,
		setScaleCmd,
		setTimeCmd,
		setHeatingModeCmd,
		setRangeCmd,
		setFilterCmd,
	)

	setTimeCmd.Flags().BoolVar(&setTime24h, "24h", false, "Display the clock in 24 hour format")
	setFilterCmd.Flags().StringVar(&filterCycle1, "cycle1", "", "First cycle as HH:MM/DURATION, for example 20:00/2h")
	setFilterCmd.Flags().StringVar(&filterCycle2, "cycle2", "", "Second cycle as HH:MM/DURATION; enables it")
	setFilterCmd.Flags().BoolVar(&filterDisable2, "disable-cycle2", false, "Disable the second cycle")
}

// parseIndex turns a 1-based equipment number into an index
func parseIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > count {
		return 0, fmt.Errorf("equipment number must be 1-%d, got %q", count, s)
	}
	return n - 1, nil
}

// parseSpeed accepts 0-255, "off", "low", "high" or "on"
func parseSpeed(s string) (int, error) {
	switch strings.ToLower(s) {
	case "off":
		return 0, nil
	case "low":
		return 1, nil
	case "high":
		return 2, nil
	case "on", "max":
		return 255, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid speed %q", s)
	}
	return n, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func speedCommand(use, short string, indexed bool, fn func(ctx context.Context, c *client.Client, index, speed int) error) *cobra.Command {
	nargs := 1
	if indexed {
		nargs = 2
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if indexed {
				var err error
				if index, err = parseIndex(args[0], 6); err != nil {
					return err
				}
			}
			speed, err := parseSpeed(args[nargs-1])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), hasStatusAndCapabilities, func(ctx context.Context, c *client.Client) error {
				return fn(ctx, c, index, speed)
			})
		},
	}
}

func switchCommand(use, short string, indexed bool, fn func(c *client.Client, index int, on bool) error) *cobra.Command {
	nargs := 1
	if indexed {
		nargs = 2
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := 0
			if indexed {
				var err error
				if index, err = parseIndex(args[0], 2); err != nil {
					return err
				}
			}
			on, err := parseOnOff(args[nargs-1])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), hasStatus, func(_ context.Context, c *client.Client) error {
				return fn(c, index, on)
			})
		},
	}
}

var setTemperatureCmd = &cobra.Command{
	Use:   "temperature DEGREES",
	Short: "Set the target temperature in the spa's current scale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		degrees, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", args[0])
		}
		return withSession(cmd.Context(), hasStatus, func(_ context.Context, c *client.Client) error {
			return c.SetTargetTemperature(degrees)
		})
	},
}

var setScaleCmd = &cobra.Command{
	Use:   "scale fahrenheit|celsius",
	Short: "Set the temperature scale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scale, err := bwa.ParseTemperatureScale(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), nil, func(_ context.Context, c *client.Client) error {
			return c.SetTemperatureScale(scale)
		})
	},
}

var setTimeCmd = &cobra.Command{
	Use:   "time [HH:MM]",
	Short: "Set the spa clock (local time when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		hour, minute := now.Hour(), now.Minute()
		if len(args) == 1 {
			var err error
			if hour, minute, err = parseClock(args[0]); err != nil {
				return err
			}
		}
		return withSession(cmd.Context(), nil, func(_ context.Context, c *client.Client) error {
			return c.SetTime(hour, minute, setTime24h)
		})
	},
}

var setHeatingModeCmd = &cobra.Command{
	Use:   "heating-mode ready|rest",
	Short: "Set the heating mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := bwa.ParseHeatingMode(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), hasStatus, func(ctx context.Context, c *client.Client) error {
			return c.SetHeatingMode(ctx, mode)
		})
	},
}

var setRangeCmd = &cobra.Command{
	Use:   "range low|high",
	Short: "Set the temperature range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r bwa.TemperatureRange
		switch strings.ToLower(args[0]) {
		case "low":
			r = bwa.RangeLow
		case "high":
			r = bwa.RangeHigh
		default:
			return fmt.Errorf("range must be low or high, got %q", args[0])
		}
		return withSession(cmd.Context(), hasStatus, func(_ context.Context, c *client.Client) error {
			return c.SetTemperatureRange(r)
		})
	},
}

var setFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Change the filter cycle schedule",
	Long: `Change the filter cycle schedule. Cycles not named keep their current
setting, so the current schedule is read first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if filterCycle1 == "" && filterCycle2 == "" && !filterDisable2 {
			return fmt.Errorf("nothing to change: pass --cycle1, --cycle2 or --disable-cycle2")
		}
		hasFilters := func(s client.State) bool { return s.FilterCycles != nil }
		return withSession(cmd.Context(), hasFilters, func(_ context.Context, c *client.Client) error {
			fc := *c.Snapshot().FilterCycles
			if filterCycle1 != "" {
				cycle, err := parseFilterCycle(filterCycle1)
				if err != nil {
					return err
				}
				fc.Cycle1 = cycle
			}
			if filterCycle2 != "" {
				cycle, err := parseFilterCycle(filterCycle2)
				if err != nil {
					return err
				}
				fc.Cycle2 = cycle
				fc.Cycle2Enabled = true
			}
			if filterDisable2 {
				fc.Cycle2Enabled = false
			}
			fmt.Println(fc)
			return c.UpdateFilterCycles(fc)
		})
	},
}

// parseClock parses HH:MM
func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}

// parseFilterCycle parses HH:MM/DURATION
func parseFilterCycle(s string) (bwa.FilterCycle, error) {
	start, length, ok := strings.Cut(s, "/")
	if !ok {
		return bwa.FilterCycle{}, fmt.Errorf("invalid filter cycle %q (use HH:MM/DURATION)", s)
	}
	hour, minute, err := parseClock(start)
	if err != nil {
		return bwa.FilterCycle{}, err
	}
	d, err := time.ParseDuration(length)
	if err != nil {
		return bwa.FilterCycle{}, fmt.Errorf("invalid filter cycle duration %q: %w", length, err)
	}
	return bwa.FilterCycle{
		StartHour:   uint8(hour),
		StartMinute: uint8(minute),
		Duration:    int(d / time.Minute),
	}, nil
}
