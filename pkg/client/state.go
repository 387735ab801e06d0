// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import "github.com/Thermoquad/bwactl/pkg/bwa"

// State is the last known value of each cached message kind. A nil field has
// not been received yet.
type State struct {
	Status               *bwa.Status
	Configuration        *bwa.Configuration
	ControlConfiguration *bwa.ControlConfiguration
	Capabilities         *bwa.ControlConfiguration2
	FilterCycles         *bwa.FilterCycles
}

// FullConfiguration reports whether everything a front end needs has arrived
func (s State) FullConfiguration() bool {
	return s.Status != nil && s.ControlConfiguration != nil && s.Capabilities != nil && s.FilterCycles != nil
}

// apply overwrites the cached value for m's kind
func (s *State) apply(m bwa.Message) {
	switch m := m.(type) {
	case bwa.Status:
		s.Status = &m
	case bwa.Configuration:
		s.Configuration = &m
	case bwa.ControlConfiguration:
		s.ControlConfiguration = &m
	case bwa.ControlConfiguration2:
		s.Capabilities = &m
	case bwa.FilterCycles:
		s.FilterCycles = &m
	}
}

// clone copies every cached value so the result shares nothing with s
func (s State) clone() State {
	out := State{}
	if s.Status != nil {
		v := *s.Status
		out.Status = &v
	}
	if s.Configuration != nil {
		v := *s.Configuration
		out.Configuration = &v
	}
	if s.ControlConfiguration != nil {
		v := *s.ControlConfiguration
		out.ControlConfiguration = &v
	}
	if s.Capabilities != nil {
		v := *s.Capabilities
		out.Capabilities = &v
	}
	if s.FilterCycles != nil {
		v := *s.FilterCycles
		out.FilterCycles = &v
	}
	return out
}

// Snapshot returns a copy of the cached state
func (c *Client) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// FullConfiguration reports whether status, control information,
// capabilities and filter cycles have all been received
func (c *Client) FullConfiguration() bool {
	return c.Snapshot().FullConfiguration()
}

func (c *Client) capabilitiesLocked() *bwa.Capabilities {
	if c.state.Capabilities == nil {
		return nil
	}
	caps := c.state.Capabilities.Capabilities
	return &caps
}
