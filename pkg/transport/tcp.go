// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// TCPConnection is a full duplex link to a WiFi module
type TCPConnection struct {
	conn net.Conn

	mu      sync.Mutex
	timeout time.Duration
}

// DialTCP connects to a WiFi module at addr
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (*TCPConnection, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewTCPConnection(conn), nil
}

// NewTCPConnection wraps an established stream
func NewTCPConnection(conn net.Conn) *TCPConnection {
	return &TCPConnection{conn: conn}
}

func (t *TCPConnection) Read(p []byte) (int, error) {
	return readWithDeadline(t.conn, t.readTimeout(), p)
}

func (t *TCPConnection) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPConnection) Close() error {
	return t.conn.Close()
}

// TurnTaking is false: the WiFi module relays writes at any time
func (t *TCPConnection) TurnTaking() bool {
	return false
}

func (t *TCPConnection) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	t.timeout = d
	t.mu.Unlock()
	return nil
}

func (t *TCPConnection) readTimeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

func (t *TCPConnection) String() string {
	return "TCP: " + t.conn.RemoteAddr().String()
}

// readWithDeadline reads once, mapping a deadline expiry to (0, nil)
func readWithDeadline(conn net.Conn, timeout time.Duration, p []byte) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
