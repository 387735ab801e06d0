// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// Telnet protocol bytes
const (
	telnetSE   = 240
	telnetSB   = 250
	telnetWILL = 251
	telnetWONT = 252
	telnetDO   = 253
	telnetDONT = 254
	telnetIAC  = 255
)

// Telnet options
const (
	optBinary  = 0
	optSGA     = 3
	optComPort = 44
)

// RFC 2217 client to server subcommands
const (
	comSetBaudRate = 1
	comSetDataSize = 2
	comSetParity   = 3
	comSetStopSize = 4

	comParityNone = 1
	comStopOne    = 1
)

// TelnetConnection talks to a serial server over Telnet with RFC 2217 line
// control. Telnet commands are stripped from the data stream and 0xFF data
// bytes are escaped on write.
type TelnetConnection struct {
	conn   net.Conn
	baud   int
	filter telnetFilter
	raw    []byte

	writeMu sync.Mutex
	mu      sync.Mutex
	timeout time.Duration
}

// DialTelnet connects to a serial server and configures the line
func DialTelnet(ctx context.Context, addr string, baudRate int, timeout time.Duration) (*TelnetConnection, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	t, err := NewTelnetConnection(conn, baudRate)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// NewTelnetConnection negotiates binary mode and the serial line settings
// on an established stream
func NewTelnetConnection(conn net.Conn, baudRate int) (*TelnetConnection, error) {
	t := &TelnetConnection{conn: conn, baud: baudRate, raw: make([]byte, 4096)}
	if _, err := conn.Write(negotiation(baudRate)); err != nil {
		return nil, fmt.Errorf("telnet negotiation failed: %w", err)
	}
	return t, nil
}

// negotiation returns the option offers and RFC 2217 line setup
func negotiation(baudRate int) []byte {
	var b bytes.Buffer
	b.Write([]byte{
		telnetIAC, telnetWILL, optBinary,
		telnetIAC, telnetDO, optBinary,
		telnetIAC, telnetWILL, optSGA,
		telnetIAC, telnetDO, optSGA,
		telnetIAC, telnetWILL, optComPort,
	})

	baud := make([]byte, 4)
	binary.BigEndian.PutUint32(baud, uint32(baudRate))
	writeSubnegotiation(&b, comSetBaudRate, baud)
	writeSubnegotiation(&b, comSetDataSize, []byte{8})
	writeSubnegotiation(&b, comSetParity, []byte{comParityNone})
	writeSubnegotiation(&b, comSetStopSize, []byte{comStopOne})
	return b.Bytes()
}

func writeSubnegotiation(b *bytes.Buffer, command byte, value []byte) {
	b.Write([]byte{telnetIAC, telnetSB, optComPort, command})
	b.Write(escapeIAC(value))
	b.Write([]byte{telnetIAC, telnetSE})
}

// escapeIAC doubles every 0xFF byte
func escapeIAC(p []byte) []byte {
	if bytes.IndexByte(p, telnetIAC) < 0 {
		return p
	}
	out := make([]byte, 0, len(p)+4)
	for _, c := range p {
		out = append(out, c)
		if c == telnetIAC {
			out = append(out, telnetIAC)
		}
	}
	return out
}

func (t *TelnetConnection) Read(p []byte) (int, error) {
	t.mu.Lock()
	timeout := t.timeout
	t.mu.Unlock()

	for {
		size := len(p)
		if size > len(t.raw) {
			size = len(t.raw)
		}
		n, err := readWithDeadline(t.conn, timeout, t.raw[:size])
		if n == 0 {
			return 0, err
		}

		data, reply := t.filter.feed(t.raw[:n], p[:0])
		if len(reply) > 0 {
			if _, werr := t.write(reply); werr != nil {
				return len(data), werr
			}
		}
		if len(data) > 0 || err != nil {
			return len(data), err
		}
	}
}

func (t *TelnetConnection) Write(p []byte) (int, error) {
	if _, err := t.write(escapeIAC(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *TelnetConnection) write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.Write(p)
}

func (t *TelnetConnection) Close() error {
	return t.conn.Close()
}

// TurnTaking is true: the serial server relays raw bus traffic
func (t *TelnetConnection) TurnTaking() bool {
	return true
}

func (t *TelnetConnection) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	t.timeout = d
	t.mu.Unlock()
	return nil
}

func (t *TelnetConnection) String() string {
	return fmt.Sprintf("Telnet: %s @ %d baud", t.conn.RemoteAddr(), t.baud)
}

// ============================================================
// Command filter
// ============================================================

const (
	filterData = iota
	filterIAC
	filterOption
	filterSub
	filterSubIAC
)

// telnetFilter separates data from Telnet commands across reads
type telnetFilter struct {
	state   int
	command byte
}

// feed appends the data bytes of in to out and returns any replies the
// peer's option requests need
func (f *telnetFilter) feed(in, out []byte) (data, reply []byte) {
	for _, c := range in {
		switch f.state {
		case filterData:
			if c == telnetIAC {
				f.state = filterIAC
				continue
			}
			out = append(out, c)

		case filterIAC:
			switch c {
			case telnetIAC:
				out = append(out, telnetIAC)
				f.state = filterData
			case telnetWILL, telnetWONT, telnetDO, telnetDONT:
				f.command = c
				f.state = filterOption
			case telnetSB:
				f.state = filterSub
			default:
				// NOP, GA and friends carry no argument
				f.state = filterData
			}

		case filterOption:
			reply = append(reply, f.answer(c)...)
			f.state = filterData

		case filterSub:
			if c == telnetIAC {
				f.state = filterSubIAC
			}

		case filterSubIAC:
			if c == telnetSE {
				f.state = filterData
			} else {
				f.state = filterSub
			}
		}
	}
	return out, reply
}

// answer refuses options we did not offer
func (f *telnetFilter) answer(option byte) []byte {
	supported := option == optBinary || option == optSGA || option == optComPort
	switch f.command {
	case telnetDO:
		if !supported {
			return []byte{telnetIAC, telnetWONT, option}
		}
	case telnetWILL:
		if !supported {
			return []byte{telnetIAC, telnetDONT, option}
		}
	}
	return nil
}
