// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package discovery finds spa WiFi modules on the local network.
//
// The WiFi module answers a UDP broadcast on port 30303 with its name and MAC
// address. Advertise implements the module side of that exchange so the
// emulator can be found the same way. Register and Browse offer the same
// over mDNS as the _bwa._tcp service.
package discovery
