package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/gfhanger/internal/gateway"
)

// CommandFunc runs a motor command and waits for a resting position.
type CommandFunc func(ctx context.Context, deviceID string, op gateway.Operation) (gateway.Position, error)

// DashboardConfig wires the dashboard to a gateway session.
type DashboardConfig struct {
	Addr    string
	Devices []gateway.Device
	Events  <-chan gateway.StatusEvent
	Command CommandFunc
}

type statusMsg gateway.StatusEvent

type eventsClosedMsg struct{}

type commandDoneMsg struct {
	deviceID string
	op       gateway.Operation
	position gateway.Position
	err      error
}

type dashboardKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Raise key.Binding
	Lower key.Binding
	Stop  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Raise, k.Lower, k.Stop, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Raise, k.Lower, k.Stop},
		{k.Help, k.Quit},
	}
}

var dashboardKeys = dashboardKeyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Raise: key.NewBinding(key.WithKeys("r", "u"), key.WithHelp("r", "raise")),
	Lower: key.NewBinding(key.WithKeys("l", "d"), key.WithHelp("l", "lower")),
	Stop:  key.NewBinding(key.WithKeys("s", " "), key.WithHelp("s", "stop")),
	Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// DashboardModel shows live device positions and sends commands for the
// selected device.
type DashboardModel struct {
	cfg     DashboardConfig
	devices []gateway.Device
	cursor  int
	width   int

	busy    bool
	message string
	failed  bool
	spinner spinner.Model

	help help.Model
	keys dashboardKeyMap
}

// NewDashboard creates the dashboard model.
func NewDashboard(cfg DashboardConfig) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = MovingStyle

	devices := make([]gateway.Device, len(cfg.Devices))
	copy(devices, cfg.Devices)

	return DashboardModel{
		cfg:     cfg,
		devices: devices,
		width:   GetTerminalWidth(),
		spinner: s,
		help:    help.New(),
		keys:    dashboardKeys,
	}
}

// RunDashboard runs the dashboard until the user quits.
func RunDashboard(cfg DashboardConfig) error {
	_, err := tea.NewProgram(NewDashboard(cfg), tea.WithAltScreen()).Run()
	return err
}

func waitForEvent(events <-chan gateway.StatusEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return statusMsg(ev)
	}
}

func runCommand(fn CommandFunc, id string, op gateway.Operation) tea.Cmd {
	return func() tea.Msg {
		pos, err := fn(context.Background(), id, op)
		return commandDoneMsg{deviceID: id, op: op, position: pos, err: err}
	}
}

// Init implements tea.Model
func (m DashboardModel) Init() tea.Cmd {
	return waitForEvent(m.cfg.Events)
}

// Update implements tea.Model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width, nil)
		m.help.Width = m.width
		return m, nil

	case statusMsg:
		m.apply(gateway.StatusEvent(msg))
		return m, waitForEvent(m.cfg.Events)

	case eventsClosedMsg:
		m.message = "Gateway session ended"
		m.failed = true
		return m, nil

	case commandDoneMsg:
		m.busy = false
		name := m.nameOf(msg.deviceID)
		if msg.err != nil {
			m.failed = true
			m.message = fmt.Sprintf("%s %s failed: %v", msg.op, name, msg.err)
		} else {
			m.failed = false
			m.message = fmt.Sprintf("%s is %s", name, msg.position)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.devices)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Raise):
		return m.command(gateway.OperationRaise)

	case key.Matches(msg, m.keys.Lower):
		return m.command(gateway.OperationLower)

	case key.Matches(msg, m.keys.Stop):
		return m.command(gateway.OperationStop)
	}

	return m, nil
}

func (m DashboardModel) command(op gateway.Operation) (tea.Model, tea.Cmd) {
	if m.busy || m.cfg.Command == nil || len(m.devices) == 0 {
		return m, nil
	}
	dev := m.devices[m.cursor]
	m.busy = true
	m.failed = false
	m.message = fmt.Sprintf("Sending %s to %s", op, dev.Name)
	return m, tea.Batch(m.spinner.Tick, runCommand(m.cfg.Command, dev.ID, op))
}

// apply merges an event into the device list, appending unknown devices.
func (m *DashboardModel) apply(ev gateway.StatusEvent) {
	for i := range m.devices {
		if m.devices[i].ID == ev.DeviceID {
			m.devices[i].Status = ev.Status
			m.devices[i].Position = ev.Position
			m.devices[i].UpdatedAt = ev.Time
			if ev.Name != "" {
				m.devices[i].Name = ev.Name
			}
			return
		}
	}
	m.devices = append(m.devices, gateway.Device{
		ID:        ev.DeviceID,
		Name:      ev.Name,
		Status:    ev.Status,
		Position:  ev.Position,
		UpdatedAt: ev.Time,
	})
}

func (m DashboardModel) nameOf(id string) string {
	for _, d := range m.devices {
		if d.ID == id {
			return d.Name
		}
	}
	return id
}

// View implements tea.Model
func (m DashboardModel) View() string {
	header := RenderHeader("Hanger Dashboard", "gfhanger watch", []Param{
		{Key: "Gateway", Value: m.cfg.Addr},
		{Key: "Devices", Value: fmt.Sprint(len(m.devices))},
	}, m.width)

	status := ""
	switch {
	case m.busy:
		status = StatusLineStyle.Render(m.spinner.View() + " " + m.message)
	case m.failed && m.message != "":
		status = ErrorMessageStyle.PaddingLeft(2).Render(FailureMarker + " " + m.message)
	case m.message != "":
		status = StatusLineStyle.Render(SuccessMarker + " " + m.message)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		renderTable(m.devices, m.cursor, m.width),
		"",
		status,
		"",
		lipgloss.NewStyle().PaddingLeft(2).Render(m.help.View(m.keys)),
	)
}

// renderTable renders devices as aligned rows. selected < 0 disables the
// cursor.
func renderTable(devices []gateway.Device, selected, width int) string {
	if len(devices) == 0 {
		return StatusLineStyle.Render("No devices")
	}

	nameWidth := width - 48
	if nameWidth < 12 {
		nameWidth = 12
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("    %-*s  %-10s  %-9s  %s", nameWidth, "NAME", "STATUS", "POSITION", "UPDATED")))
	for i, d := range devices {
		marker := " "
		rowStyle := RowStyle
		if i == selected {
			marker = SelectedMarker
			rowStyle = SelectedRowStyle
		}

		posStyle := MovingStyle
		if d.Position.Terminal() {
			posStyle = RestingStyle
		}

		updated := "-"
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Format(time.TimeOnly)
		}

		b.WriteString("\n")
		b.WriteString(rowStyle.Render(fmt.Sprintf("  %s %-*s  %-10s  ", marker, nameWidth, truncate(d.Name, nameWidth), truncate(d.Status, 10))))
		b.WriteString(posStyle.Render(fmt.Sprintf("%-9s", d.Position)))
		b.WriteString("  " + StatusLineStyle.UnsetPaddingLeft().Render(updated))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
