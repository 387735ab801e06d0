// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConnection wraps an RS-485 adapter on the spa bus
type SerialConnection struct {
	port serial.Port
	name string
	baud int
}

// OpenSerial opens a serial port at 8N1
func OpenSerial(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port, name: portName, baud: baudRate}, nil
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// TurnTaking is true: the adapter sits directly on the bus
func (s *SerialConnection) TurnTaking() bool {
	return true
}

// SetReadTimeout maps zero to the library's blocking mode
func (s *SerialConnection) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		d = serial.NoTimeout
	}
	return s.port.SetReadTimeout(d)
}

func (s *SerialConnection) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.name, s.baud)
}

// ListPorts returns the serial ports present on this machine
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
