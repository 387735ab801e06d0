// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/bwactl/pkg/bwa"
	"github.com/Thermoquad/bwactl/pkg/client"
)

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type controlModel struct {
	connMgr  *connectionManager
	connInfo string

	// Spa state, replaced on every update from the reader
	state   client.State
	updated time.Time

	// Event log
	errorLog      []errorLogEntry
	maxLogEntries int

	// Target temperature entry
	tempInput   textinput.Model
	editingTemp bool

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type stateMsg struct {
	state client.State
}

type eventMsg struct {
	text    string
	isError bool
}

type actionResultMsg struct {
	what string
	err  error
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "102"
	ti.CharLimit = 5
	ti.Width = 10

	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		tempInput:     ti,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editingTemp {
			return m.handleTempInput(msg)
		}
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		return m, controlTickCmd()

	case stateMsg:
		m.state = msg.state
		m.updated = time.Now()

	case eventMsg:
		m.addLogEntry(msg.text, msg.isError)

	case actionResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.what, msg.err), true)
		} else {
			m.addLogEntry(msg.what, false)
		}

	case connectionLostMsg:
		m.connectionLost = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		} else {
			m.addLogEntry("Connection lost - reconnecting...", true)
		}

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected - requesting configuration", false)
	}

	return m, nil
}

func (m controlModel) handleTempInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editingTemp = false
		m.tempInput.Blur()
		m.tempInput.SetValue("")
		return m, nil

	case "enter":
		m.editingTemp = false
		m.tempInput.Blur()
		text := strings.TrimSpace(m.tempInput.Value())
		m.tempInput.SetValue("")
		degrees, err := strconv.ParseFloat(text, 64)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid temperature %q", text), true)
			return m, nil
		}
		return m, m.connMgr.action(fmt.Sprintf("Set target temperature to %g", degrees),
			func(_ context.Context, c *client.Client) error { return c.SetTargetTemperature(degrees) })
	}

	var cmd tea.Cmd
	m.tempInput, cmd = m.tempInput.Update(msg)
	return m, cmd
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "1", "2", "3", "4", "5", "6":
		index := int(key[0] - '1')
		return m, m.connMgr.action(fmt.Sprintf("Toggle pump %d", index+1),
			func(_ context.Context, c *client.Client) error { return c.TogglePump(index) })

	case "l", "L":
		index := 0
		if key == "L" {
			index = 1
		}
		return m, m.connMgr.action(fmt.Sprintf("Toggle light %d", index+1),
			func(_ context.Context, c *client.Client) error { return c.ToggleLight(index) })

	case "a", "A":
		index := 0
		if key == "A" {
			index = 1
		}
		return m, m.connMgr.action(fmt.Sprintf("Toggle aux %d", index+1),
			func(_ context.Context, c *client.Client) error { return c.ToggleAux(index) })

	case "b":
		return m, m.connMgr.action("Toggle blower",
			func(_ context.Context, c *client.Client) error { return c.ToggleBlower() })

	case "m":
		return m, m.connMgr.action("Toggle mister",
			func(_ context.Context, c *client.Client) error { return c.ToggleMister() })

	case "h":
		return m, m.connMgr.action("Toggle hold",
			func(_ context.Context, c *client.Client) error { return c.ToggleHold() })

	case "r":
		return m, m.connMgr.action("Toggle temperature range",
			func(_ context.Context, c *client.Client) error { return c.ToggleTemperatureRange() })

	case "e":
		mode := bwa.HeatingModeRest
		if st := m.state.Status; st != nil && st.HeatingMode != bwa.HeatingModeReady {
			mode = bwa.HeatingModeReady
		}
		return m, m.connMgr.action(fmt.Sprintf("Set heating mode to %s", mode),
			func(ctx context.Context, c *client.Client) error { return c.SetHeatingMode(ctx, mode) })

	case "s":
		scale := bwa.Celsius
		if st := m.state.Status; st != nil && st.TemperatureScale == bwa.Celsius {
			scale = bwa.Fahrenheit
		}
		return m, m.connMgr.action(fmt.Sprintf("Set temperature scale to %s", scale),
			func(_ context.Context, c *client.Client) error { return c.SetTemperatureScale(scale) })

	case "c":
		now := time.Now()
		twentyFour := m.state.Status != nil && m.state.Status.TwentyFourHourTime
		return m, m.connMgr.action(fmt.Sprintf("Set clock to %s", now.Format("15:04")),
			func(_ context.Context, c *client.Client) error {
				return c.SetTime(now.Hour(), now.Minute(), twentyFour)
			})

	case "t":
		m.editingTemp = true
		return m, m.tempInput.Focus()
	}

	return m, nil
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("BWACTL CONTROL"))
	s.WriteString(" ")
	connStatus := statsValueStyle.Render(m.connInfo)
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q quit", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderSpaPanel())
	s.WriteString("\n")
	s.WriteString(m.renderControlPanel())
	s.WriteString("\n")

	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")
	logHeight := m.height - 20
	if logHeight < 3 {
		logHeight = 3
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderEventLog(m.errorLog, logHeight)))
	return s.String()
}

func (m controlModel) renderSpaPanel() string {
	if m.state.Status == nil {
		return boxStyle.Width(m.width - 4).Render(warningStyle.Render("Waiting for status..."))
	}

	var caps *bwa.Capabilities
	if m.state.Capabilities != nil {
		caps = &m.state.Capabilities.Capabilities
	}

	var s strings.Builder
	if cc := m.state.ControlConfiguration; cc != nil {
		s.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Model:"), statsValueStyle.Render(cc.Model()),
			statsLabelStyle.Render("Firmware:"), statsValueStyle.Render(cc.Version())))
		if conf := m.state.Configuration; conf != nil {
			s.WriteString(fmt.Sprintf("   %s %s", statsLabelStyle.Render("MAC:"), statsValueStyle.Render(conf.MAC().String())))
		}
		s.WriteString("\n")
	}
	s.WriteString(renderStatus(*m.state.Status, caps))
	if fc := m.state.FilterCycles; fc != nil {
		s.WriteString("\n")
		s.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Filters:"), headerStyle.Render(strings.TrimPrefix(fc.String(), "FilterCycles "))))
	}
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("updated %s ago", time.Since(m.updated).Round(time.Second))))
	return boxStyle.Width(m.width - 4).Render(s.String())
}

func (m controlModel) renderControlPanel() string {
	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("238")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("Target: "))
	if m.editingTemp {
		s.WriteString(m.tempInput.View())
		s.WriteString(headerStyle.Render("  enter to send, esc to cancel"))
	} else {
		s.WriteString(buttonStyle.Render("t"))
		s.WriteString(headerStyle.Render(" edit"))
	}
	s.WriteString("\n")

	keys := []string{"1-6 pump", "l/L light", "a/A aux", "b blower", "m mister", "h hold", "r range", "e mode", "s scale", "c clock"}
	for i, k := range keys {
		if i > 0 {
			s.WriteString(" ")
		}
		s.WriteString(buttonStyle.Render(k))
	}
	return boxStyle.Width(m.width - 4).Render(s.String())
}
