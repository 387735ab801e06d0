// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import (
	"context"
	"fmt"
	"math"

	"github.com/Thermoquad/bwactl/pkg/bwa"
)

// ============================================================
// Requests
// ============================================================

// RequestConfiguration asks for the WiFi module Configuration block
func (c *Client) RequestConfiguration() error {
	return c.Send(bwa.ConfigurationRequest{})
}

// RequestControlInfo asks for the model and firmware version
func (c *Client) RequestControlInfo() error {
	return c.Send(bwa.ControlConfigurationRequest{Kind: bwa.RequestControlInfo})
}

// RequestCapabilities asks for the equipment inventory
func (c *Client) RequestCapabilities() error {
	return c.Send(bwa.ControlConfigurationRequest{Kind: bwa.RequestCapabilities})
}

// RequestFilterCycles asks for the filter cycle schedule
func (c *Client) RequestFilterCycles() error {
	return c.Send(bwa.ControlConfigurationRequest{Kind: bwa.RequestFilterCycles})
}

// RequestAll asks for everything FullConfiguration waits on
func (c *Client) RequestAll() error {
	for _, request := range []func() error{
		c.RequestConfiguration,
		c.RequestControlInfo,
		c.RequestCapabilities,
		c.RequestFilterCycles,
	} {
		if err := request(); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================
// Toggles
// ============================================================

// ToggleItem presses a panel button
func (c *Client) ToggleItem(item bwa.Item) error {
	return c.Send(bwa.ToggleItem{Item: item})
}

// TogglePump presses the button of pump index 0 to 5
func (c *Client) TogglePump(index int) error {
	item, err := bwa.PumpItem(index)
	if err != nil {
		return err
	}
	return c.ToggleItem(item)
}

// ToggleLight presses the button of light index 0 or 1
func (c *Client) ToggleLight(index int) error {
	item, err := bwa.LightItem(index)
	if err != nil {
		return err
	}
	return c.ToggleItem(item)
}

// ToggleAux presses the button of aux index 0 or 1
func (c *Client) ToggleAux(index int) error {
	item, err := bwa.AuxItem(index)
	if err != nil {
		return err
	}
	return c.ToggleItem(item)
}

func (c *Client) ToggleMister() error           { return c.ToggleItem(bwa.ItemMister) }
func (c *Client) ToggleBlower() error           { return c.ToggleItem(bwa.ItemBlower) }
func (c *Client) ToggleHold() error             { return c.ToggleItem(bwa.ItemHold) }
func (c *Client) ToggleTemperatureRange() error { return c.ToggleItem(bwa.ItemTemperatureRange) }
func (c *Client) ToggleHeatingMode() error      { return c.ToggleItem(bwa.ItemHeatingMode) }

// toggleTimes presses item n times with the toggle delay between presses
func (c *Client) toggleTimes(ctx context.Context, item bwa.Item, n int) error {
	for i := 0; i < n; i++ {
		if err := c.ToggleItem(item); err != nil {
			return err
		}
		if i < n-1 {
			if err := c.sleep(ctx, c.opts.ToggleDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleSteps returns how many presses move a cycling control from current to
// desired when it wraps after max
func cycleSteps(current, desired, max uint8) int {
	if desired > max {
		desired = max
	}
	if current > max {
		current = max
	}
	period := int(max) + 1
	return ((int(desired)-int(current))%period + period) % period
}

// ============================================================
// Derived operations
// ============================================================

func (c *Client) statusAndCapabilities() (*bwa.Status, *bwa.Capabilities, error) {
	s := c.Snapshot()
	if s.Status == nil || s.Capabilities == nil {
		return nil, nil, fmt.Errorf("%w: need status and capabilities", ErrStateUnavailable)
	}
	return s.Status, &s.Capabilities.Capabilities, nil
}

func (c *Client) status() (*bwa.Status, error) {
	s := c.Snapshot()
	if s.Status == nil {
		return nil, fmt.Errorf("%w: need status", ErrStateUnavailable)
	}
	return s.Status, nil
}

// SetPump steps pump index to speed. Speeds above the pump's maximum are
// clamped, so a large value means "highest speed".
func (c *Client) SetPump(ctx context.Context, index int, speed int) error {
	item, err := bwa.PumpItem(index)
	if err != nil {
		return err
	}
	status, caps, err := c.statusAndCapabilities()
	if err != nil {
		return err
	}
	n := cycleSteps(status.Pumps[index], clampSpeed(speed), caps.Pumps[index])
	return c.toggleTimes(ctx, item, n)
}

// SetBlower steps the blower to speed, clamped to its maximum
func (c *Client) SetBlower(ctx context.Context, speed int) error {
	status, caps, err := c.statusAndCapabilities()
	if err != nil {
		return err
	}
	n := cycleSteps(status.Blower, clampSpeed(speed), caps.Blower)
	return c.toggleTimes(ctx, bwa.ItemBlower, n)
}

func clampSpeed(speed int) uint8 {
	if speed < 0 {
		return 0
	}
	if speed > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(speed)
}

// SetLight switches light index on or off
func (c *Client) SetLight(index int, on bool) error {
	item, err := bwa.LightItem(index)
	if err != nil {
		return err
	}
	status, err := c.status()
	if err != nil {
		return err
	}
	if status.Lights[index] == on {
		return nil
	}
	return c.ToggleItem(item)
}

// SetAux switches aux index on or off
func (c *Client) SetAux(index int, on bool) error {
	item, err := bwa.AuxItem(index)
	if err != nil {
		return err
	}
	status, err := c.status()
	if err != nil {
		return err
	}
	if status.Aux[index] == on {
		return nil
	}
	return c.ToggleItem(item)
}

// SetMister switches the mister on or off
func (c *Client) SetMister(on bool) error {
	status, err := c.status()
	if err != nil {
		return err
	}
	if status.Mister == on {
		return nil
	}
	return c.ToggleMister()
}

// SetHold switches hold mode on or off
func (c *Client) SetHold(on bool) error {
	status, err := c.status()
	if err != nil {
		return err
	}
	if status.Hold == on {
		return nil
	}
	return c.ToggleHold()
}

// SetTemperatureRange selects the high or low range
func (c *Client) SetTemperatureRange(r bwa.TemperatureRange) error {
	status, err := c.status()
	if err != nil {
		return err
	}
	if status.TemperatureRange == r {
		return nil
	}
	return c.ToggleTemperatureRange()
}

// SetTargetTemperature asks for a new set point in the spa's current scale.
// Values below 50 can only be Celsius and are sent doubled.
func (c *Client) SetTargetTemperature(degrees float64) error {
	status, err := c.status()
	if err != nil {
		return err
	}
	if status.TargetTemperature == degrees {
		return nil
	}
	raw := degrees
	if status.TemperatureScale == bwa.Celsius || degrees < 50 {
		raw *= 2
	}
	raw = math.Round(raw)
	if raw < 0 || raw > math.MaxUint8 {
		return fmt.Errorf("%w: target temperature %v", bwa.ErrInvalidArgument, degrees)
	}
	return c.Send(bwa.SetTargetTemperature{Temperature: uint8(raw)})
}

// SetTime sets the controller clock
func (c *Client) SetTime(hour, minute int, twentyFourHour bool) error {
	m, err := bwa.NewSetTime(hour, minute, twentyFourHour)
	if err != nil {
		return err
	}
	return c.Send(m)
}

// SetTemperatureScale switches between Fahrenheit and Celsius
func (c *Client) SetTemperatureScale(scale bwa.TemperatureScale) error {
	m, err := bwa.NewSetTemperatureScale(scale)
	if err != nil {
		return err
	}
	return c.Send(m)
}

// heatingModeSteps maps the current mode to the presses needed for each
// target. Only ready and rest can be selected.
var heatingModeSteps = map[bwa.HeatingMode]map[bwa.HeatingMode]int{
	bwa.HeatingModeReady:       {bwa.HeatingModeReady: 0, bwa.HeatingModeRest: 1},
	bwa.HeatingModeRest:        {bwa.HeatingModeReady: 1, bwa.HeatingModeRest: 0},
	bwa.HeatingModeReadyInRest: {bwa.HeatingModeReady: 2, bwa.HeatingModeRest: 1},
}

// SetHeatingMode selects ready or rest
func (c *Client) SetHeatingMode(ctx context.Context, mode bwa.HeatingMode) error {
	if mode != bwa.HeatingModeReady && mode != bwa.HeatingModeRest {
		return fmt.Errorf("%w: heating mode must be ready or rest, got %s", bwa.ErrInvalidArgument, mode)
	}
	status, err := c.status()
	if err != nil {
		return err
	}
	return c.toggleTimes(ctx, bwa.ItemHeatingMode, heatingModeSteps[status.HeatingMode][mode])
}

// UpdateFilterCycles sends a new schedule, caches it and asks the controller
// to report the stored schedule back
func (c *Client) UpdateFilterCycles(fc bwa.FilterCycles) error {
	if err := fc.Validate(); err != nil {
		return err
	}
	if err := c.Send(fc); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.apply(fc)
	c.mu.Unlock()
	return c.RequestFilterCycles()
}
