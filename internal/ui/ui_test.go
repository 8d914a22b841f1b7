package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/gfhanger/internal/gateway"
)

func testDevices() []gateway.Device {
	return []gateway.Device{
		{ID: "a", Name: "Balcony", Status: "online", Position: gateway.PositionOpen},
		{ID: "b", Name: "Laundry", Status: "online", Position: gateway.PositionClosed},
	}
}

func press(m tea.Model, r rune) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestDashboardAppliesEvents(t *testing.T) {
	events := make(chan gateway.StatusEvent, 1)
	m := NewDashboard(DashboardConfig{Addr: "gw:13015", Devices: testDevices(), Events: events})

	updated, cmd := m.Update(statusMsg(gateway.StatusEvent{
		DeviceID: "b", Name: "Laundry", Status: "online", Position: gateway.PositionOpening, Time: time.Now(),
	}))
	require.NotNil(t, cmd)

	dm := updated.(DashboardModel)
	assert.Equal(t, gateway.PositionOpening, dm.devices[1].Position)

	updated, _ = dm.Update(statusMsg(gateway.StatusEvent{DeviceID: "c", Name: "New", Position: gateway.PositionStopped}))
	assert.Len(t, updated.(DashboardModel).devices, 3)

	view := updated.(DashboardModel).View()
	assert.Contains(t, view, "Balcony")
	assert.Contains(t, view, "opening")
	assert.Contains(t, view, "gw:13015")
}

func TestDashboardWaitForEvent(t *testing.T) {
	events := make(chan gateway.StatusEvent, 1)
	events <- gateway.StatusEvent{DeviceID: "a"}

	msg := waitForEvent(events)()
	assert.Equal(t, "a", gateway.StatusEvent(msg.(statusMsg)).DeviceID)

	close(events)
	assert.IsType(t, eventsClosedMsg{}, waitForEvent(events)())
	assert.Nil(t, waitForEvent(nil))
}

func TestDashboardSendsCommandForSelection(t *testing.T) {
	var gotID string
	var gotOp gateway.Operation
	m := NewDashboard(DashboardConfig{
		Devices: testDevices(),
		Command: func(_ context.Context, id string, op gateway.Operation) (gateway.Position, error) {
			gotID, gotOp = id, op
			return gateway.PositionClosed, nil
		},
	})

	var model tea.Model = m
	model, _ = press(model, 'j')
	model, cmd := press(model, 'l')
	require.NotNil(t, cmd)
	assert.True(t, model.(DashboardModel).busy)

	// Ignored while a command is running.
	_, again := press(model, 'r')
	assert.Nil(t, again)

	done := runCommand(model.(DashboardModel).cfg.Command, "b", gateway.OperationLower)()
	assert.Equal(t, "b", gotID)
	assert.Equal(t, gateway.OperationLower, gotOp)

	model, _ = model.Update(done)
	dm := model.(DashboardModel)
	assert.False(t, dm.busy)
	assert.Contains(t, dm.message, "Laundry is closed")
}

func TestDashboardCommandFailure(t *testing.T) {
	m := NewDashboard(DashboardConfig{Devices: testDevices()})
	model, _ := m.Update(commandDoneMsg{deviceID: "a", op: gateway.OperationRaise, err: errors.New("boom")})

	dm := model.(DashboardModel)
	assert.True(t, dm.failed)
	assert.Contains(t, dm.View(), "boom")
}

func TestDashboardCursorBounds(t *testing.T) {
	var model tea.Model = NewDashboard(DashboardConfig{Devices: testDevices()})
	model, _ = press(model, 'k')
	assert.Equal(t, 0, model.(DashboardModel).cursor)
	model, _ = press(model, 'j')
	model, _ = press(model, 'j')
	assert.Equal(t, 1, model.(DashboardModel).cursor)

	_, cmd := press(model, 'q')
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPlainPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	assert.False(t, p.Styled())

	p.PrintHeader("ignored", "cmd", nil)
	p.PrintDevices(testDevices())
	p.PrintSuccess("Command complete", []Param{{Key: "Position", Value: "open"}})
	p.PrintError("Command failed", gateway.ErrLoginRejected)

	out := buf.String()
	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, "a\tBalcony\tonline\topen")
	assert.Contains(t, out, "Position: open")
	assert.Contains(t, out, "rejected the login")
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	line := FormatEvent(gateway.StatusEvent{
		DeviceID: "a", Name: "Balcony", Status: "online", Position: gateway.PositionClosing, Time: ts,
	})
	assert.True(t, strings.HasPrefix(line, "2024-05-01T12:00:00Z status"))
	assert.Contains(t, line, "position=closing(3)")
}

func TestRenderBoxes(t *testing.T) {
	ok := RenderSuccessBox("Done", []Param{{Key: "Device", Value: "Balcony"}}, 80)
	assert.Contains(t, ok, "SUCCESS")
	assert.Contains(t, ok, "Balcony")

	fail := RenderErrorBox("Failed", errors.New("boom"), "line one\nline two", 80)
	assert.Contains(t, fail, "boom")
	assert.Contains(t, fail, "line two")

	assert.Equal(t, MinTerminalWidth, clampWidth(10, nil))
	assert.Equal(t, MaxContentWidth, clampWidth(500, nil))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}
