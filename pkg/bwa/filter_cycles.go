// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

// FilterCycle is one daily filtration window. Duration is in minutes.
type FilterCycle struct {
	StartHour   uint8
	StartMinute uint8
	Duration    int
}

// FilterCycles holds both filtration windows. The first cycle is always
// enabled.
type FilterCycles struct {
	Cycle1        FilterCycle
	Cycle2Enabled bool
	Cycle2        FilterCycle
}

func (FilterCycles) Type() MessageType { return TypeFilterCycles }
func (FilterCycles) isMessage()        {}

func (m FilterCycles) String() string {
	state := "disabled"
	if m.Cycle2Enabled {
		state = "enabled"
	}
	return "FilterCycles cycle1 " + formatCycle(m.Cycle1) +
		" cycle2(" + state + ") " + formatCycle(m.Cycle2)
}

func formatCycle(c FilterCycle) string {
	return FormatDuration(c.Duration) + "@" + FormatTime(c.StartHour, c.StartMinute, true)
}

// Validate checks both cycles for a representable start time and duration
func (m FilterCycles) Validate() error {
	for i, c := range []FilterCycle{m.Cycle1, m.Cycle2} {
		if c.StartHour > 23 {
			return invalidArgument("filter cycle %d start hour %d", i+1, c.StartHour)
		}
		if c.StartMinute > 59 {
			return invalidArgument("filter cycle %d start minute %d", i+1, c.StartMinute)
		}
		if c.Duration < 0 || c.Duration > 24*60 {
			return invalidArgument("filter cycle %d duration %d minutes", i+1, c.Duration)
		}
	}
	return nil
}

func decodeFilterCycles(data []byte) Message {
	m := FilterCycles{}
	m.Cycle1 = FilterCycle{
		StartHour:   data[0],
		StartMinute: data[1],
		Duration:    int(data[2])*60 + int(data[3]),
	}
	m.Cycle2Enabled = data[4]&0x80 != 0
	m.Cycle2 = FilterCycle{
		StartHour:   data[4] & 0x7F,
		StartMinute: data[5],
		Duration:    int(data[6])*60 + int(data[7]),
	}
	return m
}

func encodeFilterCycles(m FilterCycles) []byte {
	hour2 := m.Cycle2.StartHour & 0x7F
	if m.Cycle2Enabled {
		hour2 |= 0x80
	}
	h1, m1 := splitDuration(m.Cycle1.Duration)
	h2, m2 := splitDuration(m.Cycle2.Duration)
	return []byte{
		m.Cycle1.StartHour,
		m.Cycle1.StartMinute,
		h1,
		m1,
		hour2,
		m.Cycle2.StartMinute,
		h2,
		m2,
	}
}

// splitDuration returns the hour and minute bytes for minutes. Durations
// past 255 hours keep the excess in the minute byte.
func splitDuration(minutes int) (uint8, uint8) {
	if minutes < 0 {
		minutes = 0
	}
	hours := minutes / 60
	if hours > 0xFF {
		hours = 0xFF
	}
	rest := minutes - hours*60
	if rest > 0xFF {
		rest = 0xFF
	}
	return uint8(hours), uint8(rest)
}
