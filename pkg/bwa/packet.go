// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import "time"

// Packet is one validated frame taken off the wire
type Packet struct {
	raw       []byte
	timestamp time.Time
}

// NewPacket wraps a complete frame, delimiters included. The slice is copied.
func NewPacket(raw []byte) *Packet {
	return &Packet{
		raw:       append([]byte(nil), raw...),
		timestamp: time.Now(),
	}
}

// Raw returns the complete frame including both delimiters
func (p *Packet) Raw() []byte {
	return p.raw
}

// Length returns the frame's length byte
func (p *Packet) Length() uint8 {
	return p.raw[1]
}

// Source returns the frame's source address
func (p *Packet) Source() uint8 {
	return p.raw[2]
}

// Type returns the two byte message type
func (p *Packet) Type() MessageType {
	return MessageType(p.raw[3])<<8 | MessageType(p.raw[4])
}

// Payload returns the bytes between the type and the checksum
func (p *Packet) Payload() []byte {
	return p.raw[HeaderSize : len(p.raw)-2]
}

// CRC returns the frame's checksum byte
func (p *Packet) CRC() uint8 {
	return p.raw[len(p.raw)-2]
}

// Timestamp returns when the frame was scanned
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// SetTimestamp overrides the scan time, used when replaying captures
func (p *Packet) SetTimestamp(t time.Time) {
	p.timestamp = t
}
