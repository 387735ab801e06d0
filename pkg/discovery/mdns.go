// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service the emulator publishes
	ServiceType = "_bwa._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultBrowseTimeout bounds Browse when the context has no deadline
	DefaultBrowseTimeout = 3 * time.Second
)

// Service is one _bwa._tcp instance
type Service struct {
	Instance string
	Host     string
	IP       net.IP
	Port     int
	MAC      string
}

// URI returns the tcp:// address of the service
func (s Service) URI() string {
	return "tcp://" + net.JoinHostPort(s.IP.String(), strconv.Itoa(s.Port))
}

// Register publishes a service on every multicast interface. Call Shutdown
// on the result to withdraw it.
func Register(instance string, port int, mac string) (*zeroconf.Server, error) {
	var text []string
	if mac != "" {
		text = append(text, "mac="+mac)
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return server, nil
}

// Browse lists services seen before ctx is done or timeout passes
func Browse(ctx context.Context, timeout time.Duration) ([]Service, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu       sync.Mutex
		services []Service
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		for entry := range entries {
			if s, ok := parseServiceEntry(entry); ok {
				mu.Lock()
				services = append(services, s)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]Service(nil), services...), nil
}

// parseServiceEntry converts a zeroconf entry, preferring IPv4
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Service, bool) {
	if entry == nil || entry.Port == 0 {
		return Service{}, false
	}
	var ip net.IP
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0]
	}
	if ip == nil {
		return Service{}, false
	}

	s := Service{
		Instance: entry.Instance,
		Host:     entry.HostName,
		IP:       ip,
		Port:     entry.Port,
	}
	for _, txt := range entry.Text {
		if key, value, ok := strings.Cut(txt, "="); ok && key == "mac" {
			s.MAC = value
		}
	}
	return s, true
}
