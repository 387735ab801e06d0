// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/bwactl/internal/logging"
)

const (
	// Port is the UDP port WiFi modules listen on
	Port = 30303

	// Query is the broadcast payload a module answers
	Query = "Discovery: Who is out there?"

	// MACPrefix is the Balboa OUI as modules report it
	MACPrefix = "00-15-27-"

	// DefaultName and DefaultMAC are what Advertise replies with when unset
	DefaultName = "BWGSPA"
	DefaultMAC  = "00-15-27-00-00-01"

	// DefaultTimeout is how long Discover waits for each reply
	DefaultTimeout = 5 * time.Second

	maxReplySize = 64
)

// Spa is one module that answered
type Spa struct {
	Name string
	MAC  string
	IP   net.IP
}

// URI returns the tcp:// address of the module's control port
func (s Spa) URI() string {
	return "tcp://" + net.JoinHostPort(s.IP.String(), "4257")
}

// Options configures Discover
type Options struct {
	// Timeout bounds the wait for each reply
	Timeout time.Duration

	// Exhaustive keeps listening after the first module answers
	Exhaustive bool

	// Broadcast overrides the destination, host:port. Defaults to
	// 255.255.255.255:30303.
	Broadcast string
}

// Discover broadcasts a query and collects replies keyed by IP address. It
// returns after the first valid reply unless Exhaustive is set, or when
// Timeout passes with no new reply.
func Discover(ctx context.Context, opts Options) (map[string]Spa, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	dst := opts.Broadcast
	if dst == "" {
		dst = net.JoinHostPort(net.IPv4bcast.String(), strconv.Itoa(Port))
	}
	raddr, err := net.ResolveUDPAddr("udp4", dst)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", dst, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	if _, err := conn.WriteToUDP([]byte(Query), raddr); err != nil {
		return nil, fmt.Errorf("discovery: send query: %w", err)
	}
	logging.Debug("Sent discovery query", zap.String("to", raddr.String()))

	spas := make(map[string]Spa)
	buf := make([]byte, maxReplySize)
	for {
		if ctx.Err() != nil {
			return spas, ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(opts.Timeout))
		if ctx.Err() != nil {
			return spas, ctx.Err()
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if ctx.Err() != nil {
					return spas, ctx.Err()
				}
				return spas, nil
			}
			return spas, fmt.Errorf("discovery: read: %w", err)
		}

		spa, ok := ParseReply(buf[:n])
		if !ok {
			logging.Debug("Ignoring discovery reply", zap.String("from", from.String()), zap.ByteString("data", buf[:n]))
			continue
		}
		spa.IP = from.IP
		spas[from.IP.String()] = spa
		logging.Info("Found spa", zap.String("name", spa.Name), zap.String("mac", spa.MAC), zap.String("ip", from.IP.String()))
		if !opts.Exhaustive {
			return spas, nil
		}
	}
}

// ParseReply splits a "name\r\nMAC" reply. Replies whose MAC is not a Balboa
// address are rejected.
func ParseReply(data []byte) (Spa, bool) {
	parts := strings.Split(string(data), "\r\n")
	if len(parts) < 2 {
		return Spa{}, false
	}
	mac := strings.ToUpper(strings.TrimSpace(parts[1]))
	if !strings.HasPrefix(mac, MACPrefix) {
		return Spa{}, false
	}
	return Spa{Name: strings.TrimSpace(parts[0]), MAC: mac}, true
}

// FormatReply builds the reply a module sends
func FormatReply(name, mac string) []byte {
	return []byte(name + "\r\n" + mac + "\r\n")
}

// Responder answers discovery queries
type Responder struct {
	conn  *net.UDPConn
	reply []byte
}

// Listen binds a responder to addr, ":30303" when empty. Empty name and mac
// take the defaults.
func Listen(addr, name, mac string) (*Responder, error) {
	if addr == "" {
		addr = ":" + strconv.Itoa(Port)
	}
	if name == "" {
		name = DefaultName
	}
	if mac == "" {
		mac = DefaultMAC
	}
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen %s: %w", addr, err)
	}
	return &Responder{conn: conn, reply: FormatReply(name, mac)}, nil
}

// Addr returns the bound address
func (r *Responder) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Serve answers queries until ctx is cancelled, then closes the socket
func (r *Responder) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()
	defer r.conn.Close()

	buf := make([]byte, 32)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("discovery: read: %w", err)
		}
		if string(buf[:n]) != Query {
			continue
		}
		logging.Info("Advertising", zap.String("to", from.String()))
		if _, err := r.conn.WriteToUDP(r.reply, from); err != nil {
			logging.Warn("Discovery reply failed", zap.String("to", from.String()), zap.Error(err))
		}
	}
}

// Advertise answers discovery queries on addr until ctx is cancelled
func Advertise(ctx context.Context, addr, name, mac string) error {
	r, err := Listen(addr, name, mac)
	if err != nil {
		return err
	}
	return r.Serve(ctx)
}
