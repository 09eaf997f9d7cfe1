// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *xbee.Statistics
	nodes         *nodeTracker
	nodeTable     table.Model
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skippedBytes  int
	closed        bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type frameMsg struct {
	frame            xbee.Frame
	decodeErr        error
	validationErrors []xbee.ValidationError
	at               time.Time
}
type syncMsg struct {
	skipped int
}
type closedMsg struct{}

var uptimeUnits = []struct {
	name string
	size time.Duration
}{
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// formatUptime formats a duration as "2 hours, 5 minutes, and 1 second"
func formatUptime(d time.Duration) string {
	parts := []string{}
	for _, u := range uptimeUnits {
		n := int64(d / u.size)
		d -= time.Duration(n) * u.size
		if n == 0 && (u.size != time.Second || len(parts) > 0) {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + last
}

func newNodeTable() table.Model {
	columns := []table.Column{
		{Title: "Address", Width: 23},
		{Title: "Net", Width: 6},
		{Title: "Frames", Width: 7},
		{Title: "Dup", Width: 5},
		{Title: "Ctr", Width: 4},
		{Title: "Last Seen", Width: 12},
		{Title: "Readings", Width: 32},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(6),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)
	return t
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         xbee.NewStatistics(),
		nodes:         newNodeTracker(),
		nodeTable:     newNodeTable(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
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

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.nodeTable, cmd = m.nodeTable.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		m.refreshNodes()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.skippedBytes = msg.skipped
		if msg.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", msg.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case closedMsg:
		m.closed = true
		m.addLogEntry("Connection closed", true)

	case frameMsg:
		m.handleFrame(msg)
	}

	return m, nil
}

func (m *model) handleFrame(msg frameMsg) {
	if msg.decodeErr != nil {
		m.stats.Update(nil, msg.decodeErr, nil)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}

	m.stats.Update(msg.frame, nil, msg.validationErrors)
	frameType := xbee.FormatFrameType(msg.frame.FrameType())

	if p, ok := msg.frame.(*xbee.ReceivePacket); ok {
		n, dup := m.nodes.observe(p, msg.at)
		if dup {
			m.stats.RecordDuplicate()
			m.addLogEntry(fmt.Sprintf("Duplicate from %s (counter %d)", n.addr, n.counter), false)
		}
		m.refreshNodes()
	}

	if len(msg.validationErrors) > 0 {
		for _, err := range msg.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", frameType, err.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", frameType), false)
	}
}

// refreshNodes rebuilds the table rows from the tracker
func (m *model) refreshNodes() {
	rows := []table.Row{}
	for _, n := range m.nodes.list() {
		rows = append(rows, table.Row{
			n.addr.String(),
			fmt.Sprintf("0x%04X", n.addr16),
			fmt.Sprintf("%d", n.frames),
			fmt.Sprintf("%d", n.duplicates),
			fmt.Sprintf("%d", n.counter),
			fmt.Sprintf("%s ago", time.Since(n.lastSeen).Truncate(time.Second)),
			formatReadings(n.readings),
		})
	}
	m.nodeTable.SetRows(rows)
}

func (m *model) addLogEntry(message string, isError bool) {
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

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("XBGATE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up %s | Press 'q' to quit",
		m.connInfo, mode, formatUptime(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skippedBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	st := m.stats
	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(st.Errors()) * 100.0 / float64(st.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Errors(), errorPercent)),
	))

	if st.ChecksumErrors > 0 || st.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.DecodeErrors)),
		))
	}

	if st.ATFailures > 0 || st.DeliveryFailures > 0 || st.ModemAnomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalies:"),
			warningStyle.Render(fmt.Sprintf("%d", st.ATFailures+st.DeliveryFailures+st.ModemAnomalies)),
			headerStyle.Render("AT"), st.ATFailures,
			headerStyle.Render("delivery"), st.DeliveryFailures,
			headerStyle.Render("modem"), st.ModemAnomalies,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Duplicates:"), warningStyle.Render(fmt.Sprintf("%d", st.Duplicates)),
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Nodes
	s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Nodes (%d):", len(m.nodes.nodes))))
	s.WriteString("\n")
	if len(m.nodes.nodes) == 0 {
		s.WriteString(boxStyle.Render(headerStyle.Render("(no nodes heard yet)")))
	} else {
		s.WriteString(boxStyle.Render(m.nodeTable.View()))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 24 // header, stats and node table
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
