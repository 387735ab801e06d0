// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emulator is a fake spa controller for development without
// hardware. It speaks the controller side of the protocol over TCP, the way a
// WiFi module does.
package emulator

import (
	"net"
	"sync"
	"time"

	"github.com/Thermoquad/bwactl/pkg/bwa"
)

// Canned replies captured from a BP2000 series controller
var (
	defaultControlConfiguration = bwa.ControlConfiguration{Data: [bwa.ControlConfigurationLength]byte{
		0x64, 0xdc, 0x11, 0x00, 0x42, 0x46, 0x42, 0x50, 0x32, 0x30, 0x20, 0x20,
		0x01, 0x3d, 0x12, 0x38, 0x2e, 0x01, 0x0a, 0x04, 0x00,
	}}

	defaultConfiguration = [bwa.ConfigurationLength]byte{
		0x02, 0x02, 0x80, 0x00, 0x15, 0x27, 0x10, 0xab, 0xd2,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x15, 0x27, 0xff, 0xff, 0x10, 0xab, 0xd2,
	}

	// DefaultCapabilities matches the canned controller: two two speed
	// pumps, one light and a circulation pump
	DefaultCapabilities = bwa.Capabilities{
		Pumps:           [6]uint8{2, 2, 0, 0, 0, 0},
		Lights:          [2]bool{true, false},
		CirculationPump: true,
	}

	// DefaultMAC is the address reported when none is configured
	DefaultMAC = net.HardwareAddr{0x00, 0x15, 0x27, 0x00, 0x00, 0x01}
)

// Spa is the simulated controller state. It is shared by every connection
// of a Server and is safe for concurrent use.
type Spa struct {
	mu            sync.Mutex
	status        bwa.Status
	caps          bwa.Capabilities
	filterCycles  bwa.FilterCycles
	configuration bwa.Configuration
	clockOffset   time.Duration
	now           func() time.Time
}

// NewSpa returns a spa with the given inventory reporting mac. A nil mac
// uses DefaultMAC.
func NewSpa(caps bwa.Capabilities, mac net.HardwareAddr) *Spa {
	if len(mac) != 6 {
		mac = DefaultMAC
	}
	s := &Spa{
		status: bwa.DefaultStatus(),
		caps:   caps,
		filterCycles: bwa.FilterCycles{
			Cycle1:        bwa.FilterCycle{StartHour: 20, Duration: 120},
			Cycle2Enabled: true,
			Cycle2:        bwa.FilterCycle{StartHour: 8, Duration: 120},
		},
		now: time.Now,
	}
	s.status.CurrentTemperatureKnown = true
	s.status.CurrentTemperature = 98
	s.status.CirculationPump = caps.CirculationPump

	s.configuration.Data = defaultConfiguration
	copy(s.configuration.Data[3:9], mac)
	copy(s.configuration.Data[17:20], mac[0:3])
	copy(s.configuration.Data[22:25], mac[3:6])
	return s
}

// Status returns the current state with the clock filled in
func (s *Spa) Status() bwa.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Spa) statusLocked() bwa.Status {
	st := s.status
	t := s.now().Add(s.clockOffset)
	st.Hour = uint8(t.Hour())
	st.Minute = uint8(t.Minute())
	return st
}

// Tick advances the simulation one step: the water moves a unit toward the
// set point while the heater is allowed to run.
func (s *Spa) Tick() bwa.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := 1.0
	if s.status.TemperatureScale == bwa.Celsius {
		step = 0.5
	}
	st := &s.status
	canHeat := st.HeatingMode == bwa.HeatingModeReady || st.Pumps[0] > 0
	switch {
	case canHeat && st.CurrentTemperature < st.TargetTemperature:
		st.Heating = true
		st.CurrentTemperature += step
	case st.CurrentTemperature > st.TargetTemperature:
		st.Heating = false
		st.CurrentTemperature -= step
	default:
		st.Heating = false
	}
	return s.statusLocked()
}

// Apply handles one message from a client and returns the replies to send
// back
func (s *Spa) Apply(m bwa.Message) []bwa.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := m.(type) {
	case bwa.ConfigurationRequest:
		return []bwa.Message{s.configuration}
	case bwa.ControlConfigurationRequest:
		switch m.Kind {
		case bwa.RequestControlInfo:
			return []bwa.Message{defaultControlConfiguration}
		case bwa.RequestFilterCycles:
			return []bwa.Message{s.filterCycles}
		default:
			return []bwa.Message{bwa.ControlConfiguration2{Capabilities: s.caps}}
		}
	case bwa.SetTargetTemperature:
		s.status.TargetTemperature = m.Degrees(s.status.TemperatureScale)
	case bwa.SetTemperatureScale:
		s.status = s.status.ConvertScale(m.Scale)
	case bwa.SetTime:
		st := s.now()
		want := time.Date(st.Year(), st.Month(), st.Day(), int(m.Hour), int(m.Minute), st.Second(), st.Nanosecond(), st.Location())
		s.clockOffset = want.Sub(st)
		s.status.TwentyFourHourTime = m.TwentyFourHour
	case bwa.FilterCycles:
		s.filterCycles = m
	case bwa.ToggleItem:
		s.toggleLocked(m.Item)
	}
	return nil
}

func (s *Spa) toggleLocked(item bwa.Item) {
	st := &s.status
	switch {
	case item == bwa.ItemHeatingMode:
		if st.HeatingMode == bwa.HeatingModeRest {
			st.HeatingMode = bwa.HeatingModeReady
		} else {
			st.HeatingMode = bwa.HeatingModeRest
		}
	case item == bwa.ItemTemperatureRange:
		if st.TemperatureRange == bwa.RangeLow {
			st.TemperatureRange = bwa.RangeHigh
		} else {
			st.TemperatureRange = bwa.RangeLow
		}
	case item >= bwa.ItemPump1 && item <= bwa.ItemPump6:
		i := int(item - bwa.ItemPump1)
		if max := s.caps.Pumps[i]; max > 0 {
			st.Pumps[i] = (st.Pumps[i] + 1) % (max + 1)
		}
	case item == bwa.ItemLight1 || item == bwa.ItemLight2:
		if i := int(item - bwa.ItemLight1); s.caps.Lights[i] {
			st.Lights[i] = !st.Lights[i]
		}
	case item == bwa.ItemAux1 || item == bwa.ItemAux2:
		if i := int(item - bwa.ItemAux1); s.caps.Aux[i] {
			st.Aux[i] = !st.Aux[i]
		}
	case item == bwa.ItemMister:
		if s.caps.Mister {
			st.Mister = !st.Mister
		}
	case item == bwa.ItemBlower:
		if s.caps.Blower > 0 {
			st.Blower = (st.Blower + 1) % (s.caps.Blower + 1)
		}
	case item == bwa.ItemHold:
		st.Hold = !st.Hold
	}
}
