// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/bwactl/pkg/bwa"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// Stats TUI model
type statsModel struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *bwa.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	ended         error
	lastStatus    *bwa.Status
	lastCaps      *bwa.Capabilities
}

// Messages
type tickMsg time.Time
type frameDataMsg struct {
	packet           *bwa.Packet
	message          bwa.Message
	decodeErr        error
	validationErrors []bwa.ValidationError
	discarded        uint64
}
type syncMsg struct {
	invalidBytes int
}
type sessionEndedMsg struct {
	err error
}

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialStatsModel(connInfo string, statsInterval int, showAll bool) statsModel {
	return statsModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         bwa.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m statsModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case frameDataMsg:
		m.processFrame(msg)

	case sessionEndedMsg:
		m.ended = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", false)
		}
	}

	return m, nil
}

func (m *statsModel) processFrame(msg frameDataMsg) {
	m.stats.DiscardedBytes = msg.discarded
	typeName := bwa.TypeName(msg.packet.Type())

	if msg.decodeErr != nil {
		m.stats.Update(msg.packet, nil, msg.decodeErr, nil)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %s: %v", typeName, msg.decodeErr), true)
		return
	}
	m.stats.Update(msg.packet, msg.message, nil, msg.validationErrors)

	switch v := msg.message.(type) {
	case bwa.Status:
		m.lastStatus = &v
	case bwa.ControlConfiguration2:
		m.lastCaps = &v.Capabilities
	case bwa.Error:
		m.addLogEntry(v.String(), true)
	}

	if len(msg.validationErrors) > 0 {
		for _, err := range msg.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", typeName, err.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", typeName), false)
	}
}

func (m *statsModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// Styles shared by the terminal UIs
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m statsModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("BWACTL - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Uptime: %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatUptime(uint64(time.Since(m.stats.StartTime).Milliseconds())))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.ended != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	s.WriteString(boxStyle.Render(renderStatistics(m.stats)))
	s.WriteString("\n\n")

	// Spa section (only shown once a Status has been seen)
	if m.lastStatus != nil {
		s.WriteString(statsLabelStyle.Render("Latest Status:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderStatus(*m.lastStatus, m.lastCaps)))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22 // Reserve space for header, stats and status
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderEventLog(m.errorLog, logHeight)))

	return s.String()
}

// renderStatistics renders the counter block
func renderStatistics(stats *bwa.Statistics) string {
	stats.CalculateRates()
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.ErrorCount()) * 100.0 / float64(stats.TotalFrames)
	}

	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ErrorCount(), errorPercent)),
	))

	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Discarded Bytes:"), warningStyle.Render(fmt.Sprintf("%d", stats.DiscardedBytes)),
		statsLabelStyle.Render("Unrecognized:"), warningStyle.Render(fmt.Sprintf("%d", stats.Unrecognized)),
	))

	if stats.DecodeErrors > 0 || stats.LengthMismatches > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Length Mismatches:"), errorStyle.Render(fmt.Sprintf("%d", stats.LengthMismatches)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
		))
	}

	if stats.AnomalousValues > 0 {
		content.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
			headerStyle.Render("time"), stats.InvalidTimes,
			headerStyle.Render("temp"), stats.InvalidTemps,
			headerStyle.Render("mode"), stats.InvalidModes,
			headerStyle.Render("over capability"), stats.OverCapability,
		))
	}

	rate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		rate = errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), rate,
	))
	return content.String()
}

// renderStatus renders the spa state, hiding equipment the spa does not have
// once the inventory is known
func renderStatus(st bwa.Status, caps *bwa.Capabilities) string {
	content := strings.Builder{}

	current := "--"
	if st.CurrentTemperatureKnown {
		current = fmt.Sprintf("%g", st.CurrentTemperature)
	}
	unit := "F"
	if st.TemperatureScale == bwa.Celsius {
		unit = "C"
	}
	heating := ""
	if st.Heating {
		heating = warningStyle.Render(" heating")
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s%s\n",
		statsLabelStyle.Render("Water:"), statsValueStyle.Render(current+"°"+unit),
		statsLabelStyle.Render("Target:"), statsValueStyle.Render(fmt.Sprintf("%g°%s (%s)", st.TargetTemperature, unit, st.TemperatureRange)),
		statsLabelStyle.Render("Mode:"), statsValueStyle.Render(st.HeatingMode.String()), heating,
	))

	flags := []string{}
	if st.Hold {
		flags = append(flags, "hold")
	}
	if st.Priming {
		flags = append(flags, "priming")
	}
	if st.FilterRunning[0] || st.FilterRunning[1] {
		flags = append(flags, "filtering")
	}
	if st.CirculationPump {
		flags = append(flags, "circulation pump")
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Clock:"), statsValueStyle.Render(bwa.FormatTime(st.Hour, st.Minute, st.TwentyFourHourTime)),
		statsLabelStyle.Render("Flags:"), statsValueStyle.Render(strings.Join(flags, ", ")),
	))

	var gear []string
	for i, speed := range st.Pumps {
		if caps != nil && caps.Pumps[i] == 0 {
			continue
		}
		if caps == nil && speed == 0 && i >= 2 {
			continue
		}
		gear = append(gear, fmt.Sprintf("Pump %d: %s", i+1, onOff(speed > 0, speedName(speed))))
	}
	for i, on := range st.Lights {
		if caps != nil && !caps.Lights[i] {
			continue
		}
		gear = append(gear, fmt.Sprintf("Light %d: %s", i+1, onOff(on, "on")))
	}
	if caps == nil || caps.Blower > 0 {
		gear = append(gear, fmt.Sprintf("Blower: %s", onOff(st.Blower > 0, speedName(st.Blower))))
	}
	if caps == nil || caps.Mister {
		gear = append(gear, fmt.Sprintf("Mister: %s", onOff(st.Mister, "on")))
	}
	for i, on := range st.Aux {
		if caps != nil && !caps.Aux[i] {
			continue
		}
		gear = append(gear, fmt.Sprintf("Aux %d: %s", i+1, onOff(on, "on")))
	}
	content.WriteString(strings.Join(gear, "   "))
	return content.String()
}

func speedName(speed uint8) string {
	switch speed {
	case 1:
		return "low"
	case 2:
		return "high"
	}
	return fmt.Sprintf("speed %d", speed)
}

func onOff(on bool, label string) string {
	if on {
		return statsValueStyle.Render(label)
	}
	return headerStyle.Render("off")
}

// renderEventLog renders the newest height entries
func renderEventLog(log []errorLogEntry, height int) string {
	var content strings.Builder
	startIdx := len(log) - height
	if startIdx < 0 {
		startIdx = 0
	}

	if len(log) == 0 {
		content.WriteString(headerStyle.Render("  (no events yet)"))
		return content.String()
	}
	for i := startIdx; i < len(log); i++ {
		entry := log[i]
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			content.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				errorStyle.Render("✗ "+entry.message),
			))
		} else {
			content.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				warningStyle.Render("ℹ "+entry.message),
			))
		}
	}
	return content.String()
}
