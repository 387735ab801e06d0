// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import (
	"fmt"
	"net"
	"strings"
)

// Message is a decoded frame payload. The set of implementations is closed:
// every kind the registry knows plus Unrecognized.
type Message interface {
	Type() MessageType
	String() string
	isMessage()
}

// ============================================================
// Handshake
// ============================================================

// NewClientClearToSend is broadcast by the controller to invite new clients
type NewClientClearToSend struct{}

// ConfigurationRequest asks the controller for its Configuration
type ConfigurationRequest struct{}

// Ready tells the addressed client it may send one frame
type Ready struct{}

// NothingToSend is the client's answer to Ready when it has no command queued
type NothingToSend struct{}

func (NewClientClearToSend) Type() MessageType { return TypeNewClientClearToSend }
func (ConfigurationRequest) Type() MessageType { return TypeConfigurationRequest }
func (Ready) Type() MessageType                { return TypeReady }
func (NothingToSend) Type() MessageType        { return TypeNothingToSend }

func (NewClientClearToSend) String() string { return "NewClientClearToSend" }
func (ConfigurationRequest) String() string { return "ConfigurationRequest" }
func (Ready) String() string                { return "Ready" }
func (NothingToSend) String() string        { return "NothingToSend" }

func (NewClientClearToSend) isMessage() {}
func (ConfigurationRequest) isMessage() {}
func (Ready) isMessage()                {}
func (NothingToSend) isMessage()        {}

// ============================================================
// Commands
// ============================================================

// ToggleItem presses a virtual button on the topside panel
type ToggleItem struct {
	Item Item
}

func (ToggleItem) Type() MessageType { return TypeToggleItem }
func (ToggleItem) isMessage()        {}
func (m ToggleItem) String() string  { return "ToggleItem " + m.Item.String() }

// SetTargetTemperature carries the raw wire byte. In Celsius mode the value is
// twice the temperature.
type SetTargetTemperature struct {
	Temperature uint8
}

func (SetTargetTemperature) Type() MessageType { return TypeSetTargetTemperature }
func (SetTargetTemperature) isMessage()        {}
func (m SetTargetTemperature) String() string {
	return fmt.Sprintf("SetTargetTemperature %d°", m.Temperature)
}

// Degrees returns the temperature the command asks for in the given scale
func (m SetTargetTemperature) Degrees(scale TemperatureScale) float64 {
	if scale == Celsius {
		return float64(m.Temperature) / 2
	}
	return float64(m.Temperature)
}

// SetTime sets the controller clock
type SetTime struct {
	Hour           uint8
	Minute         uint8
	TwentyFourHour bool
}

func (SetTime) Type() MessageType { return TypeSetTime }
func (SetTime) isMessage()        {}
func (m SetTime) String() string {
	return "SetTime " + FormatTime(m.Hour, m.Minute, m.TwentyFourHour)
}

// NewSetTime validates the clock fields
func NewSetTime(hour, minute int, twentyFourHour bool) (SetTime, error) {
	if hour < 0 || hour > 23 {
		return SetTime{}, invalidArgument("hour %d", hour)
	}
	if minute < 0 || minute > 59 {
		return SetTime{}, invalidArgument("minute %d", minute)
	}
	return SetTime{Hour: uint8(hour), Minute: uint8(minute), TwentyFourHour: twentyFourHour}, nil
}

// ControlConfigurationRequest asks for one of the control information blocks.
// Kind is one of the Request constants; RequestKindUnknown is used for payloads
// that match none of them.
type ControlConfigurationRequest struct {
	Kind uint8
}

func (ControlConfigurationRequest) Type() MessageType { return TypeControlConfigurationRequest }
func (ControlConfigurationRequest) isMessage()        {}
func (m ControlConfigurationRequest) String() string {
	return fmt.Sprintf("ControlConfigurationRequest %d", m.Kind)
}

// NewControlConfigurationRequest validates the request kind
func NewControlConfigurationRequest(kind int) (ControlConfigurationRequest, error) {
	if kind < RequestControlInfo || kind > RequestFilterCycles {
		return ControlConfigurationRequest{}, invalidArgument("control configuration request kind %d", kind)
	}
	return ControlConfigurationRequest{Kind: uint8(kind)}, nil
}

// SetTemperatureScale switches the controller between Fahrenheit and Celsius
type SetTemperatureScale struct {
	Scale TemperatureScale
}

func (SetTemperatureScale) Type() MessageType { return TypeSetTemperatureScale }
func (SetTemperatureScale) isMessage()        {}
func (m SetTemperatureScale) String() string {
	return "SetTemperatureScale °" + strings.ToUpper(m.Scale.String()[:1])
}

// NewSetTemperatureScale validates the scale
func NewSetTemperatureScale(scale TemperatureScale) (SetTemperatureScale, error) {
	if scale != Fahrenheit && scale != Celsius {
		return SetTemperatureScale{}, invalidArgument("temperature scale %d", scale)
	}
	return SetTemperatureScale{Scale: scale}, nil
}

// ParseTemperatureScale accepts "f", "fahrenheit", "c" or "celsius"
func ParseTemperatureScale(s string) (TemperatureScale, error) {
	switch strings.ToLower(s) {
	case "f", "fahrenheit":
		return Fahrenheit, nil
	case "c", "celsius":
		return Celsius, nil
	}
	return 0, invalidArgument("temperature scale %q", s)
}

// ============================================================
// Configuration
// ============================================================

// ControlConfiguration holds the controller model and firmware information.
// Only the model and version bytes are understood; the rest is kept as is.
type ControlConfiguration struct {
	Data [ControlConfigurationLength]byte
}

func (ControlConfiguration) Type() MessageType { return TypeControlConfiguration }
func (ControlConfiguration) isMessage()        {}
func (m ControlConfiguration) String() string {
	return fmt.Sprintf("ControlConfiguration model=%s version=%s", m.Model(), m.Version())
}

// Version returns the firmware version as "V<major>.<minor>"
func (m ControlConfiguration) Version() string {
	return fmt.Sprintf("V%d.%d", m.Data[2], m.Data[3])
}

// Model returns the model name with its padding trimmed
func (m ControlConfiguration) Model() string {
	return strings.TrimSpace(strings.TrimRight(string(m.Data[4:12]), "\x00"))
}

// Capabilities is the equipment inventory reported by ControlConfiguration2.
// Pump values are the highest speed each pump supports; zero means absent.
type Capabilities struct {
	Pumps           [6]uint8
	Lights          [2]bool
	CirculationPump bool
	Blower          uint8
	Mister          bool
	Aux             [2]bool
}

// ControlConfiguration2 reports which equipment is installed
type ControlConfiguration2 struct {
	Capabilities
}

func (ControlConfiguration2) Type() MessageType { return TypeControlConfiguration2 }
func (ControlConfiguration2) isMessage()        {}
func (m ControlConfiguration2) String() string {
	var items []string
	items = append(items, fmt.Sprintf("pumps=%v", m.Pumps))
	items = append(items, fmt.Sprintf("lights=%v", m.Lights))
	if m.CirculationPump {
		items = append(items, "circulation_pump")
	}
	items = append(items, fmt.Sprintf("blower=%d", m.Blower))
	if m.Mister {
		items = append(items, "mister")
	}
	items = append(items, fmt.Sprintf("aux=%v", m.Aux))
	return "ControlConfiguration2 " + strings.Join(items, " ")
}

// Configuration is an opaque block from the WiFi module. It carries the
// module MAC address.
type Configuration struct {
	Data [ConfigurationLength]byte
}

func (Configuration) Type() MessageType { return TypeConfiguration }
func (Configuration) isMessage()        {}
func (m Configuration) String() string  { return "Configuration mac=" + m.MAC().String() }

// MAC returns the hardware address stored in bytes 3 to 8
func (m Configuration) MAC() net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), m.Data[3:9]...))
}

// ============================================================
// Errors and unknown frames
// ============================================================

// Error is sent by the controller when it rejects something. The fault byte
// is not documented.
type Error struct {
	Data []byte
}

func (Error) Type() MessageType { return TypeError }
func (Error) isMessage()        {}
func (m Error) String() string {
	if code, ok := m.Code(); ok {
		return fmt.Sprintf("Error 0x%02x", code)
	}
	return "Error"
}

// Code returns the fault byte when present
func (m Error) Code() (byte, bool) {
	if len(m.Data) == 0 {
		return 0, false
	}
	return m.Data[0], true
}

// Unrecognized is any frame with a type the registry does not know
type Unrecognized struct {
	TypeCode MessageType
	Data     []byte
}

func (m Unrecognized) Type() MessageType { return m.TypeCode }
func (Unrecognized) isMessage()          {}
func (m Unrecognized) String() string {
	return fmt.Sprintf("Unrecognized 0x%04X %s", uint16(m.TypeCode), HexDump(m.Data))
}
