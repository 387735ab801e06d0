// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport opens byte streams to a spa controller.
//
// Supported endpoints:
//
//	tcp://host[:4257]        WiFi module, full duplex
//	/dev/ttyUSB0             RS-485 adapter (serial:// prefix optional)
//	telnet://host[:23]       serial server speaking RFC 2217
//	rfc2217://host[:23]      same as telnet://
//	ws://host/path           WebSocket serial bridge (wss:// for TLS)
//
// Everything except tcp:// sits directly on the bus, where a client may only
// transmit after the controller addresses it with a Ready frame. Those
// connections report TurnTaking.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// Default ports and line settings
const (
	DefaultTCPPort     = 4257
	DefaultTelnetPort  = 23
	DefaultBaudRate    = 115200
	DefaultDialTimeout = 10 * time.Second
)

var (
	// ErrClosed is returned by reads and writes after Close
	ErrClosed = errors.New("transport: connection closed")

	// ErrUnsupportedScheme is returned by Open and ParseURI for unknown schemes
	ErrUnsupportedScheme = errors.New("transport: unsupported URI scheme")
)

// Conn is a byte stream to the controller.
//
// A Read that times out returns (0, nil) so callers can tell "no data yet"
// apart from a dead connection.
type Conn interface {
	io.ReadWriteCloser

	// TurnTaking reports whether writes must wait for a Ready frame
	TurnTaking() bool

	// SetReadTimeout bounds each subsequent Read. Zero blocks forever.
	SetReadTimeout(d time.Duration) error

	// String describes the endpoint for logs
	String() string
}

// Kind identifies a transport implementation
type Kind int

const (
	KindTCP Kind = iota
	KindSerial
	KindTelnet
	KindWebSocket
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindSerial:
		return "serial"
	case KindTelnet:
		return "telnet"
	case KindWebSocket:
		return "websocket"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Endpoint is a parsed connection URI
type Endpoint struct {
	Kind    Kind
	Address string // host:port, device path or full WebSocket URL
	URL     *url.URL
}

// ParseURI parses a connection URI and fills in default ports
func ParseURI(uri string) (Endpoint, error) {
	if uri == "" {
		return Endpoint{}, fmt.Errorf("%w: empty URI", ErrUnsupportedScheme)
	}
	if strings.HasPrefix(uri, "/") {
		return Endpoint{Kind: KindSerial, Address: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case "tcp":
		return Endpoint{Kind: KindTCP, Address: hostPort(u, DefaultTCPPort), URL: u}, nil
	case "telnet", "rfc2217":
		return Endpoint{Kind: KindTelnet, Address: hostPort(u, DefaultTelnetPort), URL: u}, nil
	case "serial":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return Endpoint{}, fmt.Errorf("serial URI %q has no device path", uri)
		}
		return Endpoint{Kind: KindSerial, Address: path, URL: u}, nil
	case "ws", "wss":
		return Endpoint{Kind: KindWebSocket, Address: u.String(), URL: u}, nil
	}
	return Endpoint{}, fmt.Errorf("%w: %s (use tcp://, telnet://, rfc2217://, ws://, wss:// or a device path)", ErrUnsupportedScheme, u.Scheme)
}

func hostPort(u *url.URL, defaultPort int) string {
	if u.Port() != "" {
		return u.Host
	}
	return fmt.Sprintf("%s:%d", u.Hostname(), defaultPort)
}

// Options tunes how a connection is opened
type Options struct {
	BaudRate      int
	DialTimeout   time.Duration
	Username      string
	Password      string
	PasswordFunc  func() (string, error) // consulted when Username is set and Password is empty
	SkipSSLVerify bool
}

func (o Options) withDefaults() Options {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	return o
}

// Open connects to the endpoint named by uri
func Open(ctx context.Context, uri string, opts Options) (Conn, error) {
	ep, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	switch ep.Kind {
	case KindTCP:
		return DialTCP(ctx, ep.Address, opts.DialTimeout)
	case KindSerial:
		return OpenSerial(ep.Address, opts.BaudRate)
	case KindTelnet:
		return DialTelnet(ctx, ep.Address, opts.BaudRate, opts.DialTimeout)
	case KindWebSocket:
		if opts.Username != "" && opts.Password == "" && opts.PasswordFunc != nil {
			pw, err := opts.PasswordFunc()
			if err != nil {
				return nil, err
			}
			opts.Password = pw
		}
		return DialWebSocket(ctx, ep.Address, opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ep.Kind)
}
