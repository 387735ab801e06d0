// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bwa implements the Balboa spa controller wire protocol.
//
// A frame on the bus looks like:
//
//	7E <len> <src> <type hi> <type lo> <payload...> <crc> 7E
//
// where len counts itself, the source byte, the two type bytes, the payload
// and the checksum. The checksum is a CRC-8 over len through the end of the
// payload. This package finds frames in a noisy byte stream, decodes them into
// typed messages and encodes messages back into frames.
package bwa

// Protocol framing bytes
const (
	Delimiter = 0x7E
)

// Frame size limits
const (
	MinLength      = 5    // len, src, type(2), crc
	MaxLength      = 0x7D // len must stay below the delimiter value
	FrameOverhead  = 7    // delimiters, len, src, type(2), crc
	HeaderSize     = 5    // 7E, len, src, type(2)
	MaxPayloadSize = MaxLength - MinLength
	MaxFrameSize   = MaxLength + 2
	ReadChunkSize  = 64 * 1024
)

// Source addresses
const (
	SourceClient     = 0x0A // default address used by a WiFi module or client
	SourceController = 0xFF // spa controller broadcasts
	SourcePanel      = 0x10 // topside panel
)

// MessageType is the two byte type code carried by every frame
type MessageType uint16

// Message types
const (
	TypeNewClientClearToSend        MessageType = 0xBF00
	TypeConfigurationRequest        MessageType = 0xBF04
	TypeReady                       MessageType = 0xBF06
	TypeNothingToSend               MessageType = 0xBF07
	TypeToggleItem                  MessageType = 0xBF11
	TypeStatus                      MessageType = 0xAF13
	TypeSetTargetTemperature        MessageType = 0xBF20
	TypeSetTime                     MessageType = 0xBF21
	TypeControlConfigurationRequest MessageType = 0xBF22
	TypeFilterCycles                MessageType = 0xBF23
	TypeControlConfiguration        MessageType = 0xBF24
	TypeSetTemperatureScale         MessageType = 0xBF27
	TypeControlConfiguration2       MessageType = 0xBF2E
	TypeConfiguration               MessageType = 0xBF94
	TypeError                       MessageType = 0xBFE1
)

// Payload lengths
const (
	StatusLength                      = 24
	ToggleItemLength                  = 2
	SetTargetTemperatureLength        = 1
	SetTimeLength                     = 2
	ControlConfigurationRequestLength = 3
	FilterCyclesLength                = 8
	ControlConfigurationLength        = 21
	SetTemperatureScaleLength         = 2
	ControlConfiguration2Length       = 6
	ConfigurationLength               = 25
	ErrorMaxLength                    = 1
)

// Temperature scales
type TemperatureScale uint8

const (
	Fahrenheit TemperatureScale = iota
	Celsius
)

// String returns the short scale name
func (s TemperatureScale) String() string {
	if s == Celsius {
		return "celsius"
	}
	return "fahrenheit"
}

// Heating modes reported in Status
type HeatingMode uint8

const (
	HeatingModeReady HeatingMode = iota
	HeatingModeRest
	HeatingModeReadyInRest
)

// String returns the mode name used on the command line and in logs
func (m HeatingMode) String() string {
	switch m {
	case HeatingModeReady:
		return "ready"
	case HeatingModeRest:
		return "rest"
	case HeatingModeReadyInRest:
		return "ready_in_rest"
	default:
		return fmtUnknown(int(m))
	}
}

// ParseHeatingMode parses a heating mode name
func ParseHeatingMode(s string) (HeatingMode, error) {
	switch s {
	case "ready":
		return HeatingModeReady, nil
	case "rest":
		return HeatingModeRest, nil
	case "ready_in_rest":
		return HeatingModeReadyInRest, nil
	}
	return 0, invalidArgument("heating mode %q", s)
}

// Temperature ranges reported in Status
type TemperatureRange uint8

const (
	RangeLow TemperatureRange = iota
	RangeHigh
)

// String returns the range name
func (r TemperatureRange) String() string {
	if r == RangeHigh {
		return "high"
	}
	return "low"
}

// ControlConfigurationRequest kinds
const (
	RequestKindUnknown  = 0
	RequestControlInfo  = 1
	RequestCapabilities = 2
	RequestFilterCycles = 3
)
