// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import "fmt"

// codec describes one known message kind
type codec struct {
	name   string
	minLen int
	maxLen int
	decode func(payload []byte) Message
}

func fixed(name string, length int, decode func([]byte) Message) codec {
	return codec{name: name, minLen: length, maxLen: length, decode: decode}
}

func empty(m Message) func([]byte) Message {
	return func([]byte) Message { return m }
}

// registry maps every known type code to its codec
var registry = map[MessageType]codec{
	TypeNewClientClearToSend: fixed("NEW_CLIENT_CLEAR_TO_SEND", 0, empty(NewClientClearToSend{})),
	TypeConfigurationRequest: fixed("CONFIGURATION_REQUEST", 0, empty(ConfigurationRequest{})),
	TypeReady:                fixed("READY", 0, empty(Ready{})),
	TypeNothingToSend:        fixed("NOTHING_TO_SEND", 0, empty(NothingToSend{})),
	TypeToggleItem: fixed("TOGGLE_ITEM", ToggleItemLength, func(p []byte) Message {
		return ToggleItem{Item: Item(p[0])}
	}),
	TypeStatus: fixed("STATUS", StatusLength, decodeStatus),
	TypeSetTargetTemperature: fixed("SET_TARGET_TEMPERATURE", SetTargetTemperatureLength, func(p []byte) Message {
		return SetTargetTemperature{Temperature: p[0]}
	}),
	TypeSetTime: fixed("SET_TIME", SetTimeLength, func(p []byte) Message {
		return SetTime{Hour: p[0] & 0x7F, Minute: p[1], TwentyFourHour: p[0]&0x80 != 0}
	}),
	TypeControlConfigurationRequest: fixed("CONTROL_CONFIGURATION_REQUEST", ControlConfigurationRequestLength,
		decodeControlConfigurationRequest),
	TypeFilterCycles: fixed("FILTER_CYCLES", FilterCyclesLength, decodeFilterCycles),
	TypeControlConfiguration: fixed("CONTROL_CONFIGURATION", ControlConfigurationLength, func(p []byte) Message {
		m := ControlConfiguration{}
		copy(m.Data[:], p)
		return m
	}),
	TypeSetTemperatureScale: fixed("SET_TEMPERATURE_SCALE", SetTemperatureScaleLength, func(p []byte) Message {
		if p[1] == 0 {
			return SetTemperatureScale{Scale: Fahrenheit}
		}
		return SetTemperatureScale{Scale: Celsius}
	}),
	TypeControlConfiguration2: fixed("CONTROL_CONFIGURATION_2", ControlConfiguration2Length, decodeControlConfiguration2),
	TypeConfiguration: fixed("CONFIGURATION", ConfigurationLength, func(p []byte) Message {
		m := Configuration{}
		copy(m.Data[:], p)
		return m
	}),
	TypeError: {name: "ERROR", minLen: 0, maxLen: ErrorMaxLength, decode: func(p []byte) Message {
		return Error{Data: append([]byte(nil), p...)}
	}},
}

// Known reports whether the registry has a codec for t
func Known(t MessageType) bool {
	_, ok := registry[t]
	return ok
}

// TypeName returns the upper case name of a message type
func TypeName(t MessageType) string {
	if c, ok := registry[t]; ok {
		return c.name
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(t))
}

// Decode turns a payload into a typed message. Unknown types decode to
// Unrecognized. A known type with the wrong payload length is an
// *InvalidMessageError.
func Decode(t MessageType, payload []byte) (Message, error) {
	c, ok := registry[t]
	if !ok {
		return Unrecognized{TypeCode: t, Data: append([]byte(nil), payload...)}, nil
	}
	if len(payload) < c.minLen || len(payload) > c.maxLen {
		expected := fmt.Sprintf("%d", c.minLen)
		if c.minLen != c.maxLen {
			expected = fmt.Sprintf("%d-%d", c.minLen, c.maxLen)
		}
		return nil, &InvalidMessageError{Type: t, Length: len(payload), Expected: expected}
	}
	return c.decode(payload), nil
}

// DecodePacket decodes the payload of a scanned frame
func DecodePacket(p *Packet) (Message, error) {
	m, err := Decode(p.Type(), p.Payload())
	if err != nil {
		if ime, ok := err.(*InvalidMessageError); ok {
			ime.Raw = p.Raw()
		}
		return nil, err
	}
	return m, nil
}

func decodeControlConfigurationRequest(p []byte) Message {
	switch {
	case p[0] == 0x02 && p[1] == 0x00 && p[2] == 0x00:
		return ControlConfigurationRequest{Kind: RequestControlInfo}
	case p[0] == 0x00 && p[1] == 0x00 && p[2] == 0x01:
		return ControlConfigurationRequest{Kind: RequestCapabilities}
	case p[0] == 0x01 && p[1] == 0x00 && p[2] == 0x00:
		return ControlConfigurationRequest{Kind: RequestFilterCycles}
	}
	return ControlConfigurationRequest{Kind: RequestKindUnknown}
}

func decodeControlConfiguration2(p []byte) Message {
	c := Capabilities{}
	for i := 0; i < 4; i++ {
		c.Pumps[i] = (p[0] >> (2 * i)) & 0x03
	}
	c.Pumps[4] = p[1] & 0x03
	c.Pumps[5] = (p[1] >> 6) & 0x03
	c.Lights[0] = p[2]&0x03 != 0
	c.Lights[1] = (p[2]>>6)&0x03 != 0
	c.Blower = p[3] & 0x03
	c.CirculationPump = (p[3]>>6)&0x03 != 0
	c.Mister = p[4]&0x30 != 0
	c.Aux[0] = p[4]&0x01 != 0
	c.Aux[1] = p[4]&0x02 != 0
	return ControlConfiguration2{Capabilities: c}
}
