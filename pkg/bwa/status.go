// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import (
	"fmt"
	"math"
	"strings"
)

// Status is the periodic state broadcast from the controller.
//
// Temperatures are in the unit given by TemperatureScale. On the wire Celsius
// values are doubled, giving half degree resolution.
type Status struct {
	Hold               bool
	Priming            bool
	HeatingMode        HeatingMode
	TemperatureScale   TemperatureScale
	TwentyFourHourTime bool
	FilterRunning      [2]bool
	Heating            bool
	TemperatureRange   TemperatureRange
	Hour               uint8
	Minute             uint8
	CirculationPump    bool
	Blower             uint8
	Pumps              [6]uint8
	Lights             [2]bool
	Mister             bool
	Aux                [2]bool
	Notification       uint8

	// CurrentTemperatureKnown is false while the controller has no reading
	CurrentTemperatureKnown bool
	CurrentTemperature      float64
	TargetTemperature       float64
}

func (Status) Type() MessageType { return TypeStatus }
func (Status) isMessage()        {}

// DefaultStatus returns the state of a freshly powered spa
func DefaultStatus() Status {
	return Status{
		HeatingMode:       HeatingModeReady,
		TemperatureScale:  Fahrenheit,
		TemperatureRange:  RangeHigh,
		TargetTemperature: 100,
	}
}

// ConvertScale returns a copy of s with its temperatures expressed in scale.
// Fahrenheit results are rounded to whole degrees, Celsius to half degrees.
func (s Status) ConvertScale(scale TemperatureScale) Status {
	if s.TemperatureScale == scale {
		return s
	}
	if scale == Fahrenheit {
		s.CurrentTemperature = CelsiusToFahrenheit(s.CurrentTemperature)
		s.TargetTemperature = CelsiusToFahrenheit(s.TargetTemperature)
	} else {
		s.CurrentTemperature = FahrenheitToCelsius(s.CurrentTemperature)
		s.TargetTemperature = FahrenheitToCelsius(s.TargetTemperature)
	}
	if !s.CurrentTemperatureKnown {
		s.CurrentTemperature = 0
	}
	s.TemperatureScale = scale
	return s
}

// CelsiusToFahrenheit converts and rounds to a whole degree
func CelsiusToFahrenheit(c float64) float64 {
	return math.Round(c*9/5 + 32)
}

// FahrenheitToCelsius converts and rounds to a half degree
func FahrenheitToCelsius(f float64) float64 {
	return math.Round((f-32)*5/9*2) / 2
}

// String returns a one line summary of the spa state
func (s Status) String() string {
	var items []string

	if s.Priming {
		items = append(items, "priming")
	}
	if s.Hold {
		items = append(items, "hold")
	}
	items = append(items, FormatTime(s.Hour, s.Minute, s.TwentyFourHourTime))

	current := "--"
	if s.CurrentTemperatureKnown {
		current = formatDegrees(s.CurrentTemperature)
	}
	unit := strings.ToUpper(s.TemperatureScale.String()[:1])
	items = append(items, fmt.Sprintf("%s/%s°%s", current, formatDegrees(s.TargetTemperature), unit))
	items = append(items, fmt.Sprintf("filter=%v", s.FilterRunning))
	items = append(items, s.HeatingMode.String())
	if s.Heating {
		items = append(items, "heating")
	}
	items = append(items, s.TemperatureRange.String())
	if s.CirculationPump {
		items = append(items, "circ_pump")
	}
	if s.Blower > 0 {
		items = append(items, fmt.Sprintf("blower=%d", s.Blower))
	}
	items = append(items, fmt.Sprintf("pumps=%v", s.Pumps))
	items = append(items, fmt.Sprintf("lights=%v", s.Lights))
	items = append(items, fmt.Sprintf("aux=%v", s.Aux))
	if s.Mister {
		items = append(items, "mister")
	}
	if s.Notification != 0 {
		items = append(items, fmt.Sprintf("notification=0x%02x", s.Notification))
	}

	return "Status " + strings.Join(items, " ")
}

func formatDegrees(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// ============================================================
// Wire form
// ============================================================

func decodeStatus(data []byte) Message {
	s := Status{}

	s.Hold = data[0]&0x05 != 0
	s.Priming = data[1]&0x01 != 0
	s.Hour = data[3]
	s.Minute = data[4]
	s.HeatingMode = HeatingMode(data[5] & 0x03)
	s.Notification = data[6]

	flags := data[9]
	if flags&0x01 != 0 {
		s.TemperatureScale = Celsius
	}
	s.TwentyFourHourTime = flags&0x02 != 0
	s.FilterRunning[0] = flags&0x04 != 0
	s.FilterRunning[1] = flags&0x08 != 0

	flags = data[10]
	s.Heating = flags&0x30 != 0
	if flags&0x04 != 0 {
		s.TemperatureRange = RangeHigh
	}

	flags = data[11]
	for i := 0; i < 4; i++ {
		s.Pumps[i] = (flags >> (2 * i)) & 0x03
	}
	flags = data[12]
	s.Pumps[4] = flags & 0x03
	s.Pumps[5] = (flags >> 2) & 0x03

	flags = data[13]
	s.CirculationPump = flags&0x02 != 0
	s.Blower = (flags >> 2) & 0x03

	flags = data[14]
	s.Lights[0] = flags&0x03 != 0
	s.Lights[1] = (flags>>2)&0x03 != 0

	flags = data[15]
	s.Mister = flags&0x01 != 0
	s.Aux[0] = flags&0x08 != 0
	s.Aux[1] = flags&0x10 != 0

	if data[2] != 0xFF {
		s.CurrentTemperatureKnown = true
		s.CurrentTemperature = float64(data[2])
	}
	s.TargetTemperature = float64(data[20])
	if s.TemperatureScale == Celsius {
		s.CurrentTemperature /= 2
		s.TargetTemperature /= 2
	}

	return s
}

func encodeStatus(s Status) []byte {
	data := make([]byte, StatusLength)

	if s.Hold {
		data[0] |= 0x05
	}
	if s.Priming {
		data[1] |= 0x01
	}
	data[3] = s.Hour
	data[4] = s.Minute
	data[5] = uint8(s.HeatingMode) & 0x03
	data[6] = s.Notification

	if s.TemperatureScale == Celsius {
		data[9] |= 0x01
	}
	if s.TwentyFourHourTime {
		data[9] |= 0x02
	}
	if s.FilterRunning[0] {
		data[9] |= 0x04
	}
	if s.FilterRunning[1] {
		data[9] |= 0x08
	}

	if s.Heating {
		data[10] |= 0x30
	}
	if s.TemperatureRange == RangeHigh {
		data[10] |= 0x04
	}

	for i := 0; i < 4; i++ {
		data[11] |= (s.Pumps[i] & 0x03) << (2 * i)
	}
	data[12] = s.Pumps[4]&0x03 | (s.Pumps[5]&0x03)<<2

	if s.CirculationPump {
		data[13] |= 0x02
	}
	data[13] |= (s.Blower & 0x03) << 2

	if s.Lights[0] {
		data[14] |= 0x03
	}
	if s.Lights[1] {
		data[14] |= 0x0C
	}

	if s.Mister {
		data[15] |= 0x01
	}
	if s.Aux[0] {
		data[15] |= 0x08
	}
	if s.Aux[1] {
		data[15] |= 0x10
	}

	data[2] = 0xFF
	if s.CurrentTemperatureKnown {
		data[2] = temperatureByte(s.CurrentTemperature, s.TemperatureScale)
	}
	data[20] = temperatureByte(s.TargetTemperature, s.TemperatureScale)

	return data
}

// temperatureByte converts a temperature to its wire value
func temperatureByte(t float64, scale TemperatureScale) uint8 {
	if scale == Celsius {
		t *= 2
	}
	return uint8(math.Max(0, math.Min(255, math.Round(t))))
}
