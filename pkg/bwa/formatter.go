// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FormatTime formats a clock value as "13:05" or "1:05PM"
func FormatTime(hour, minute uint8, twentyFourHour bool) string {
	if twentyFourHour {
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}
	printHour := hour % 12
	if printHour == 0 {
		printHour = 12
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d%s", printHour, minute, suffix)
}

// FormatDuration formats minutes as "h:mm"
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// HexDump formats bytes as space separated lower case hex
func HexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	encoded := hex.EncodeToString(data)
	var sb strings.Builder
	sb.Grow(len(encoded) + len(data))
	for i := 0; i < len(encoded); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(encoded[i : i+2])
	}
	return sb.String()
}

// FormatPacket formats a frame header and its decoded message
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%04X) src=0x%02X len=%d\n",
		timestamp, TypeName(p.Type()), uint16(p.Type()), p.Source(), p.Length())

	m, err := DecodePacket(p)
	if err != nil {
		result += fmt.Sprintf("  Error: %v\n", err)
		return result
	}
	result += "  " + m.String() + "\n"
	return result
}

// FormatRaw formats a frame as a single hex line with its direction label
func FormatRaw(label string, raw []byte) string {
	return fmt.Sprintf("%s: %s", label, HexDump(raw))
}

// Verbosity returns the log verbosity at which m becomes interesting.
// The bus repeats some frames many times per second; those need a higher
// verbosity to be shown.
func Verbosity(m Message) int {
	switch m := m.(type) {
	case Ready, NothingToSend, NewClientClearToSend:
		return 2
	case ToggleItem:
		if m.Item == 0 {
			return 2
		}
		return 0
	case Status, Error, ControlConfigurationRequest:
		return 1
	}
	return 0
}
