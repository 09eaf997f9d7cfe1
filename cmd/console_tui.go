// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/xbgate/pkg/mailbox"
)

// Focus states
const (
	focusCommandList = iota
	focusAddressInput
	focusSensorInput
	focusButton
)

// commandItem adapts a mailbox command to the list
type commandItem mailbox.Command

var commandDescriptions = map[mailbox.Command]string{
	mailbox.Confort:   "Comfort setpoint",
	mailbox.ConfortM1: "Comfort minus 1°C",
	mailbox.ConfortM2: "Comfort minus 2°C",
	mailbox.Eco:       "Economy setpoint",
	mailbox.HG:        "Frost protection",
	mailbox.Stop:      "Heating off",
}

func (c commandItem) Title() string       { return mailbox.Command(c).String() }
func (c commandItem) Description() string { return commandDescriptions[mailbox.Command(c)] }
func (c commandItem) FilterValue() string { return mailbox.Command(c).String() }

// consoleModel is the Bubble Tea model for the command console
type consoleModel struct {
	fifoPath string

	commandList  list.Model
	addressInput textinput.Model
	sensorInput  textinput.Model
	focusedField int

	sent          int
	errorLog      []errorLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

func initialConsoleModel(fifoPath string) consoleModel {
	addr := textinput.New()
	addr.Placeholder = "xb@00:13:a2:00:40:d9:68:9c"
	addr.CharLimit = 26
	addr.Width = 28

	sensorID := textinput.New()
	sensorID.Placeholder = "3"
	sensorID.CharLimit = 10
	sensorID.Width = 12

	items := make([]list.Item, len(mailbox.Commands))
	for i, c := range mailbox.Commands {
		items[i] = commandItem(c)
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commandList := list.New(items, delegate, 30, 14)
	commandList.Title = "Commands"
	commandList.SetShowStatusBar(false)
	commandList.SetShowHelp(false)
	commandList.SetFilteringEnabled(false)

	return consoleModel{
		fifoPath:      fifoPath,
		commandList:   commandList,
		addressInput:  addr,
		sensorInput:   sensorID,
		focusedField:  focusCommandList,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.focusedField == focusCommandList || m.focusedField == focusButton {
				m.quitting = true
				return m, tea.Quit
			}
		case "tab":
			m.cycleFocus(1)
			return m, nil
		case "shift+tab":
			m.cycleFocus(-1)
			return m, nil
		case "enter":
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case focusCommandList:
		m.commandList, cmd = m.commandList.Update(msg)
	case focusAddressInput:
		m.addressInput, cmd = m.addressInput.Update(msg)
	case focusSensorInput:
		m.sensorInput, cmd = m.sensorInput.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) cycleFocus(delta int) {
	m.focusedField = (m.focusedField + delta + focusButton + 1) % (focusButton + 1)

	m.addressInput.Blur()
	m.sensorInput.Blur()
	switch m.focusedField {
	case focusAddressInput:
		m.addressInput.Focus()
	case focusSensorInput:
		m.sensorInput.Focus()
	}
}

// line builds the mailbox line from the form
func (m consoleModel) line() string {
	addr := strings.TrimSpace(m.addressInput.Value())
	if addr != "" && !strings.HasPrefix(addr, "xb@") {
		addr = "xb@" + addr
	}
	cmd := ""
	if item, ok := m.commandList.SelectedItem().(commandItem); ok {
		cmd = mailbox.Command(item).String()
	}
	return fmt.Sprintf("%s;%s;%s", addr, strings.TrimSpace(m.sensorInput.Value()), cmd)
}

// submit validates the form and writes it to the FIFO
func (m *consoleModel) submit() {
	e, err := mailbox.ParseLine(m.line())
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid command: %v", err), true)
		return
	}
	if err := writeCommands(m.fifoPath, e); err != nil {
		m.addLogEntry(fmt.Sprintf("Write failed: %v", err), true)
		return
	}
	m.sent++
	m.addLogEntry(fmt.Sprintf("Queued %s", e), false)
}

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("XBGATE CONSOLE"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | sent %d | Tab=switch Enter=send ctrl+c=quit", m.fifoPath, m.sent)))
	s.WriteString("\n\n")

	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 34 {
		rightWidth = 34
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusCommandList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	commandPanel := listStyle.Render(m.commandList.View())

	var form strings.Builder
	form.WriteString(labelStyle.Render("Node address:"))
	form.WriteString("\n")
	form.WriteString(m.addressInput.View())
	form.WriteString("\n\n")
	form.WriteString(labelStyle.Render("Sensor ID:"))
	form.WriteString("\n")
	form.WriteString(m.sensorInput.View())
	form.WriteString("\n\n")
	form.WriteString(headerStyle.Render(m.line()))
	form.WriteString("\n\n")
	if m.focusedField == focusButton {
		form.WriteString(focusedButtonStyle.Render("Send"))
	} else {
		form.WriteString(buttonStyle.Render("Send"))
	}
	formPanel := boxStyle.Width(rightWidth).Render(form.String())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, commandPanel, " ", formPanel))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.errorLog[startIdx:] {
		timestamp := entry.timestamp.Format("15:04:05")
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
