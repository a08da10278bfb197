package tui

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

	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/discovery"
)

// dashboardTimeout bounds each device exchange issued from the dashboard
const dashboardTimeout = 5 * time.Second

// brightnessStep is how far one keypress moves the dimmer
const brightnessStep = 10

// Messages for async operations
type deviceReadyMsg struct {
	appliance device.Appliance
	info      device.SysInfo
	err       error
}

type actionDoneMsg struct {
	info device.SysInfo // state refreshed after the action
	note string         // status line text, e.g. "Turned on"
	err  error
}

// dashboardKeyMap defines key bindings for the dashboard screen
type dashboardKeyMap struct {
	Toggle   key.Binding
	Brighter key.Binding
	Dimmer   key.Binding
	Refresh  key.Binding
	Back     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Brighter, k.Dimmer, k.Refresh, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Refresh},
		{k.Brighter, k.Dimmer},
		{k.Back, k.Quit},
	}
}

// DashboardModel is the live control screen for a single device. It owns
// one appliance handle and a cached sysinfo snapshot; every action runs as
// a command and comes back with a refreshed snapshot.
type DashboardModel struct {
	Desc discovery.Descriptor

	Appliance device.Appliance
	Info      device.SysInfo

	Loading   bool   // initial connect in flight
	Busy      bool   // an action is in flight
	Err       error  // connect failure, replaces the panel
	Status    string // transient line under the panel
	StatusErr bool   // status line describes a failure

	Width  int
	Height int

	Spinner spinner.Model
	Help    help.Model
	Keys    dashboardKeyMap
}

// NewDashboardModel creates the dashboard for a chosen device
func NewDashboardModel(desc discovery.Descriptor, width, height int) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	h := help.New()

	keys := dashboardKeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("t", " "),
			key.WithHelp("t", "toggle power"),
		),
		Brighter: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "brighter"),
		),
		Dimmer: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "dimmer"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}
	// Off until the device reports a dimmer
	keys.Brighter.SetEnabled(false)
	keys.Dimmer.SetEnabled(false)

	return DashboardModel{
		Desc:    desc,
		Loading: true,
		Width:   width,
		Height:  height,
		Spinner: s,
		Help:    h,
		Keys:    keys,
	}
}

// Init starts the connection to the device
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, connectDevice(m.Desc))
}

// connectDevice resolves the descriptor into a concrete device family and
// fetches its state. Manual entries carry no discovery payload, so the
// device is probed for sysinfo first to learn what family it is.
func connectDevice(desc discovery.Descriptor) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		if desc.SysInfo() == nil {
			probe := device.New(desc.Addr, device.WithPort(desc.Port))
			info, err := probe.SysInfo(ctx)
			if err != nil {
				return deviceReadyMsg{err: err}
			}
			desc.Info = map[string]any{
				"system": map[string]any{"get_sysinfo": map[string]any(info)},
			}
		}

		appliance, err := device.FromDescriptor(desc)
		if err != nil {
			return deviceReadyMsg{err: err}
		}

		info, err := appliance.SysInfo(ctx)
		if err != nil {
			return deviceReadyMsg{err: err}
		}
		return deviceReadyMsg{appliance: appliance, info: info}
	}
}

// togglePower flips the relay and reports the refreshed state
func togglePower(appliance device.Appliance) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		on, err := appliance.IsOn(ctx)
		if err != nil {
			return actionDoneMsg{err: err}
		}

		note := "Turned on"
		if on {
			note = "Turned off"
			err = appliance.TurnOff(ctx)
		} else {
			err = appliance.TurnOn(ctx)
		}
		if err != nil {
			return actionDoneMsg{err: err}
		}

		info, err := appliance.SysInfo(ctx)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: info, note: note}
	}
}

// setBrightness drives the dimmer on families that have one
func setBrightness(appliance device.Appliance, percent int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		var err error
		switch d := appliance.(type) {
		case *device.Bulb:
			err = d.SetBrightness(ctx, percent)
		case *device.Plug:
			err = d.SetBrightness(ctx, percent)
		default:
			err = device.NewUnsupportedError("set_brightness", "device has no dimmer")
		}
		if err != nil {
			return actionDoneMsg{err: err}
		}

		info, err := appliance.SysInfo(ctx)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: info, note: fmt.Sprintf("Brightness %d%%", percent)}
	}
}

// refreshState re-reads sysinfo without changing anything
func refreshState(appliance device.Appliance) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()

		info, err := appliance.SysInfo(ctx)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: info, note: "Refreshed"}
	}
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.Loading || m.Busy {
			var cmd tea.Cmd
			m.Spinner, cmd = m.Spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case deviceReadyMsg:
		m.Loading = false
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Err = nil
		m.Appliance = msg.appliance
		m.Info = msg.info
		dimmable := msg.info.IsDimmable()
		m.Keys.Brighter.SetEnabled(dimmable)
		m.Keys.Dimmer.SetEnabled(dimmable)
		m.Status = "Connected"
		m.StatusErr = false
		return m, nil

	case actionDoneMsg:
		m.Busy = false
		if msg.err != nil {
			m.Status = msg.err.Error()
			m.StatusErr = true
			return m, nil
		}
		m.Info = msg.info
		m.Status = msg.note
		m.StatusErr = false
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

// updateKeys routes keyboard input according to the dashboard state
func (m DashboardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Back):
		return m, func() tea.Msg { return backToDiscoveryMsg{} }
	}

	if m.Loading || m.Busy {
		// Actions are serialized; drop keystrokes until the device answers
		return m, nil
	}

	if m.Err != nil {
		if key.Matches(msg, m.Keys.Refresh) {
			m.Loading = true
			m.Err = nil
			return m, tea.Batch(m.Spinner.Tick, connectDevice(m.Desc))
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Toggle):
		m.Busy = true
		m.Status = "Switching..."
		m.StatusErr = false
		return m, tea.Batch(m.Spinner.Tick, togglePower(m.Appliance))

	case key.Matches(msg, m.Keys.Brighter):
		return m.adjustBrightness(brightnessStep)

	case key.Matches(msg, m.Keys.Dimmer):
		return m.adjustBrightness(-brightnessStep)

	case key.Matches(msg, m.Keys.Refresh):
		m.Busy = true
		m.Status = "Refreshing..."
		m.StatusErr = false
		return m, tea.Batch(m.Spinner.Tick, refreshState(m.Appliance))
	}

	return m, nil
}

// adjustBrightness steps the dimmer relative to the cached level
func (m DashboardModel) adjustBrightness(delta int) (tea.Model, tea.Cmd) {
	if !m.Info.IsDimmable() {
		m.Status = "Device has no dimmer"
		m.StatusErr = true
		return m, nil
	}

	current, ok := currentBrightness(m.Info)
	if !ok {
		current = 100
	}
	target := current + delta
	if target < 1 {
		target = 1
	}
	if target > 100 {
		target = 100
	}
	if target == current {
		return m, nil
	}

	m.Busy = true
	m.Status = fmt.Sprintf("Setting brightness to %d%%...", target)
	m.StatusErr = false
	return m, tea.Batch(m.Spinner.Tick, setBrightness(m.Appliance, target))
}

// View renders the dashboard
func (m DashboardModel) View() string {
	var content string
	switch {
	case m.Loading:
		content = m.renderConnecting()
	case m.Err != nil:
		content = m.renderConnectError()
	default:
		content = m.renderPanel()
	}

	helpText := m.Help.View(m.Keys)
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderConnecting renders a centered progress display while connecting
func (m DashboardModel) renderConnecting() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	title := fmt.Sprintf("%s CONNECTING", m.Spinner.View())
	subtitle := fmt.Sprintf("Querying %s...", addrLabel(m.Desc))

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(title),
		"",
		SubtitleStyle.Render(subtitle),
		"",
	)

	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderConnectError renders the failure state with recovery hints
func (m DashboardModel) renderConnectError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(RenderError(fmt.Sprintf("Could not reach %s: %v", addrLabel(m.Desc), m.Err)))
	b.WriteString("\n\n")
	b.WriteString("  Troubleshooting:\n")
	b.WriteString("    • Check the device is powered and on this network\n")
	b.WriteString("    • Confirm the address and port are right\n")
	b.WriteString("    • Press 'r' to retry, or Esc to go back\n")

	return b.String()
}

// renderPanel renders the device state panel
func (m DashboardModel) renderPanel() string {
	info := m.Info

	name := info.Alias()
	if name == "" {
		name = m.Desc.Addr
	}

	title := RenderTitle(name)
	subtitle := RenderSubtitle(fmt.Sprintf("%s · %s · %s",
		info.Model(), info.DeviceType(), addrLabel(m.Desc)))

	divider := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(strings.Repeat("─", 50))

	parts := []string{"", title, subtitle, divider, ""}

	// Power state leads the panel
	if on, known := info.PowerState(); known {
		parts = append(parts, renderPanelRow("Power", PowerBadge(on)))
	}
	for _, row := range m.stateRows() {
		parts = append(parts, renderPanelRow(row.label, row.value))
	}

	// Strips list each socket under the shared fields
	if children := info.Children(); len(children) > 0 {
		parts = append(parts, "", PanelLabelStyle.Render("Outlets"))
		for i, child := range children {
			alias := child.Alias
			if alias == "" {
				alias = fmt.Sprintf("Outlet %d", i)
			}
			line := fmt.Sprintf("  %d. %-20s %s", i, alias, PowerBadge(child.IsOn()))
			parts = append(parts, line)
		}
	}

	parts = append(parts, "", m.renderStatusLine())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// panelRow is one label/value pair in the state panel
type panelRow struct {
	label string
	value string
}

// stateRows projects the cached sysinfo into display rows, including only
// the fields this device family reports
func (m DashboardModel) stateRows() []panelRow {
	info := m.Info
	var rows []panelRow

	if b, ok := currentBrightness(info); ok && info.IsDimmable() {
		rows = append(rows, panelRow{"Brightness", fmt.Sprintf("%d%%", b)})
	}
	if info.IsVariableColorTemp() {
		if state := info.LightState(); state != nil {
			if kelvin, ok := lightStateNumber(state, "color_temp"); ok && kelvin > 0 {
				rows = append(rows, panelRow{"Color temp", fmt.Sprintf("%d K", kelvin)})
			}
		}
	}
	if info.IsColor() {
		if state := info.LightState(); state != nil {
			hue, hueOK := lightStateNumber(state, "hue")
			sat, satOK := lightStateNumber(state, "saturation")
			if hueOK && satOK {
				rows = append(rows, panelRow{"Color", fmt.Sprintf("hue %d° · sat %d%%", hue, sat)})
			}
		}
	}
	if _, ok := info["led_off"]; ok {
		led := "on"
		if info.LEDOff() {
			led = "off"
		}
		rows = append(rows, panelRow{"Status LED", led})
	}
	if onTime, ok := info.OnTime(); ok && onTime > 0 {
		rows = append(rows, panelRow{"On for", onTime.Round(time.Second).String()})
	}
	if mac := info.MAC(); mac != "" {
		rows = append(rows, panelRow{"MAC", mac})
	}
	if rssi, ok := info.RSSI(); ok {
		rows = append(rows, panelRow{"Signal", fmt.Sprintf("%d dBm", rssi)})
	}
	if id := info.DeviceID(); id != "" {
		rows = append(rows, panelRow{"Device ID", id})
	}

	return rows
}

func renderPanelRow(label, value string) string {
	return PanelLabelStyle.Render(label) + PanelValueStyle.Render(value)
}

// renderStatusLine renders the transient action feedback under the panel
func (m DashboardModel) renderStatusLine() string {
	if m.Busy {
		return SubtitleStyle.Render(fmt.Sprintf("%s %s", m.Spinner.View(), m.Status))
	}
	if m.Status == "" {
		return ""
	}
	if m.StatusErr {
		return WarningStyle.Render("⚠ " + m.Status)
	}
	return SubtitleStyle.Render(m.Status)
}

// currentBrightness reads the dimmer level from cached sysinfo. Dimmer
// plugs report it at the top level; bulbs keep it inside light_state, or
// under dft_on_state while switched off.
func currentBrightness(info device.SysInfo) (int, bool) {
	if b, ok := info.Brightness(); ok {
		return b, true
	}
	state := info.LightState()
	if state == nil {
		return 0, false
	}
	if b, ok := lightStateNumber(state, "brightness"); ok {
		return b, true
	}
	if parked, ok := state["dft_on_state"].(map[string]any); ok {
		if b, ok := lightStateNumber(parked, "brightness"); ok {
			return b, true
		}
	}
	return 0, false
}

// lightStateNumber reads an integer field from a raw light-state map
func lightStateNumber(state map[string]any, field string) (int, bool) {
	switch v := state[field].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
