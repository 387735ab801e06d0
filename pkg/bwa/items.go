// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import (
	"sort"
	"strconv"
)

// Item identifies a panel button for ToggleItem. Values outside the named set
// are kept as raw codes.
type Item uint8

// Toggle items
const (
	ItemNormalOperation   Item = 0x01
	ItemClearNotification Item = 0x03
	ItemPump1             Item = 0x04
	ItemPump2             Item = 0x05
	ItemPump3             Item = 0x06
	ItemPump4             Item = 0x07
	ItemPump5             Item = 0x08
	ItemPump6             Item = 0x09
	ItemBlower            Item = 0x0C
	ItemMister            Item = 0x0E
	ItemLight1            Item = 0x11
	ItemLight2            Item = 0x12
	ItemAux1              Item = 0x16
	ItemAux2              Item = 0x17
	ItemSoak              Item = 0x1D
	ItemHold              Item = 0x3C
	ItemTemperatureRange  Item = 0x50
	ItemHeatingMode       Item = 0x51
)

var itemNames = map[Item]string{
	ItemNormalOperation:   "normal_operation",
	ItemClearNotification: "clear_notification",
	ItemPump1:             "pump1",
	ItemPump2:             "pump2",
	ItemPump3:             "pump3",
	ItemPump4:             "pump4",
	ItemPump5:             "pump5",
	ItemPump6:             "pump6",
	ItemBlower:            "blower",
	ItemMister:            "mister",
	ItemLight1:            "light1",
	ItemLight2:            "light2",
	ItemAux1:              "aux1",
	ItemAux2:              "aux2",
	ItemSoak:              "soak",
	ItemHold:              "hold",
	ItemTemperatureRange:  "temperature_range",
	ItemHeatingMode:       "heating_mode",
}

// String returns the item name, or its decimal code when it has none
func (i Item) String() string {
	if name, ok := itemNames[i]; ok {
		return name
	}
	return strconv.Itoa(int(i))
}

// Known reports whether the item has a name
func (i Item) Known() bool {
	_, ok := itemNames[i]
	return ok
}

// PumpItem returns the toggle item for pump index 0 to 5
func PumpItem(index int) (Item, error) {
	if index < 0 || index > 5 {
		return 0, invalidArgument("pump index %d", index)
	}
	return ItemPump1 + Item(index), nil
}

// LightItem returns the toggle item for light index 0 or 1
func LightItem(index int) (Item, error) {
	if index < 0 || index > 1 {
		return 0, invalidArgument("light index %d", index)
	}
	return ItemLight1 + Item(index), nil
}

// AuxItem returns the toggle item for aux index 0 or 1
func AuxItem(index int) (Item, error) {
	if index < 0 || index > 1 {
		return 0, invalidArgument("aux index %d", index)
	}
	return ItemAux1 + Item(index), nil
}

// ParseItem accepts an item name or a decimal / 0x-prefixed code
func ParseItem(s string) (Item, error) {
	for item, name := range itemNames {
		if name == s {
			return item, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, invalidArgument("toggle item %q", s)
	}
	return Item(v), nil
}

// ItemNames returns every named item, sorted
func ItemNames() []string {
	names := make([]string, 0, len(itemNames))
	for _, name := range itemNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
