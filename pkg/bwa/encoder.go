// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import "fmt"

// EncodePayload returns the payload bytes for m. Bits the message does not
// own are left zero.
func EncodePayload(m Message) ([]byte, error) {
	switch m := m.(type) {
	case NewClientClearToSend, ConfigurationRequest, Ready, NothingToSend:
		return []byte{}, nil
	case ToggleItem:
		return []byte{uint8(m.Item), 0x00}, nil
	case Status:
		return encodeStatus(m), nil
	case SetTargetTemperature:
		return []byte{m.Temperature}, nil
	case SetTime:
		hour := m.Hour & 0x7F
		if m.TwentyFourHour {
			hour |= 0x80
		}
		return []byte{hour, m.Minute}, nil
	case ControlConfigurationRequest:
		switch m.Kind {
		case RequestControlInfo:
			return []byte{0x02, 0x00, 0x00}, nil
		case RequestCapabilities:
			return []byte{0x00, 0x00, 0x01}, nil
		case RequestFilterCycles:
			return []byte{0x01, 0x00, 0x00}, nil
		}
		return []byte{0x00, 0x00, 0x00}, nil
	case FilterCycles:
		return encodeFilterCycles(m), nil
	case ControlConfiguration:
		return append([]byte(nil), m.Data[:]...), nil
	case SetTemperatureScale:
		if m.Scale == Celsius {
			return []byte{0x01, 0x01}, nil
		}
		return []byte{0x01, 0x00}, nil
	case ControlConfiguration2:
		return encodeCapabilities(m.Capabilities), nil
	case Configuration:
		return append([]byte(nil), m.Data[:]...), nil
	case Error:
		if len(m.Data) > ErrorMaxLength {
			return nil, fmt.Errorf("%w: error payload of %d bytes", ErrUnencodable, len(m.Data))
		}
		return append([]byte{}, m.Data...), nil
	case Unrecognized:
		return append([]byte{}, m.Data...), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnencodable, m)
}

// EncodeFrame builds a complete frame for m from the given source address
func EncodeFrame(source uint8, m Message) ([]byte, error) {
	payload, err := EncodePayload(m)
	if err != nil {
		return nil, err
	}
	return BuildFrame(source, m.Type(), payload)
}

// BuildFrame wraps a raw payload in delimiters, header and checksum
func BuildFrame(source uint8, t MessageType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrUnencodable, len(payload), MaxPayloadSize)
	}

	length := len(payload) + MinLength
	frame := make([]byte, 0, length+2)
	frame = append(frame, Delimiter, uint8(length), source, uint8(t>>8), uint8(t))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame[1:]), Delimiter)
	return frame, nil
}

func encodeCapabilities(c Capabilities) []byte {
	data := make([]byte, ControlConfiguration2Length)
	for i := 0; i < 4; i++ {
		data[0] |= (c.Pumps[i] & 0x03) << (2 * i)
	}
	data[1] = c.Pumps[4]&0x03 | (c.Pumps[5]&0x03)<<6
	if c.Lights[0] {
		data[2] |= 0x01
	}
	if c.Lights[1] {
		data[2] |= 0x40
	}
	data[3] = c.Blower & 0x03
	if c.CirculationPump {
		data[3] |= 0x40
	}
	if c.Mister {
		data[4] |= 0x30
	}
	if c.Aux[0] {
		data[4] |= 0x01
	}
	if c.Aux[1] {
		data[4] |= 0x02
	}
	return data
}
