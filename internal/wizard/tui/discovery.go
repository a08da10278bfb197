package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/discovery"
	"github.com/muurk/kasalink/internal/protocol"
)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	descriptors []discovery.Descriptor
	err         error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual address entry mode
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.Confirm, m.Cancel},
	}
}

// scanningKeyMap defines key bindings while a sweep is in flight
type scanningKeyMap struct {
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (s scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{s.Manual, s.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (s scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{s.Manual, s.Quit},
	}
}

// emptyScreenKeyMap defines key bindings when the sweep found nothing
type emptyScreenKeyMap struct {
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (e emptyScreenKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{e.Rescan, e.Manual, e.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (e emptyScreenKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{e.Rescan, e.Manual, e.Quit},
	}
}

// deviceItem wraps a discovered descriptor for use with bubbles/list
type deviceItem struct {
	desc discovery.Descriptor
}

// FilterValue matches against the alias, model, and address
func (d deviceItem) FilterValue() string {
	return d.desc.Alias() + " " + d.desc.Model() + " " + d.desc.Addr
}

// Title returns the device name for list display
func (d deviceItem) Title() string {
	if alias := d.desc.Alias(); alias != "" {
		return alias
	}
	if d.desc.Info == nil {
		return fmt.Sprintf("Manual: %s", d.desc.Addr)
	}
	return "(unnamed)"
}

// Description returns device details for list display
func (d deviceItem) Description() string {
	if d.desc.Info == nil {
		return fmt.Sprintf("%s • identified on connect", addrLabel(d.desc))
	}
	return fmt.Sprintf("%s • %s • %s", d.desc.Model(), d.desc.Type(), addrLabel(d.desc))
}

// addrLabel formats a descriptor address with its port when one is known
func addrLabel(desc discovery.Descriptor) string {
	if desc.Port > 0 {
		return fmt.Sprintf("%s:%d", desc.Addr, desc.Port)
	}
	return desc.Addr
}

// deviceDelegate is a custom list delegate for rendering device cards
type deviceDelegate struct{}

func (d deviceDelegate) Height() int { return 6 } // Card height including borders

func (d deviceDelegate) Spacing() int { return 1 } // Spacing between cards

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(deviceItem)
	if !ok {
		return
	}

	desc := entry.desc
	selected := index == m.Index()

	var content strings.Builder

	// Name line with selection indicator and power state
	name := entry.Title()
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + name))
	} else {
		content.WriteString("  " + name)
	}
	info := device.SysInfo(desc.SysInfo())
	if on, known := info.PowerState(); known {
		content.WriteString("  " + PowerBadge(on))
	}
	content.WriteString("\n")

	// Device details
	if desc.Info == nil {
		content.WriteString("  Model:    identified on connect\n")
		content.WriteString(fmt.Sprintf("  Address:  %s\n", addrLabel(desc)))
		content.WriteString("  Power:    -")
	} else {
		content.WriteString(fmt.Sprintf("  Model:    %s (%s)\n", desc.Model(), desc.Type()))
		address := addrLabel(desc)
		if mac := desc.MAC(); mac != "" {
			address += " • " + mac
		}
		content.WriteString(fmt.Sprintf("  Address:  %s\n", address))
		content.WriteString(fmt.Sprintf("  Power:    %s", powerDrawLabel(desc)))
	}

	// Responsive card, highlighted when selected
	cardWidth := m.Width() - 6 // 2 for margin-left, 4 for border + padding
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// powerDrawLabel formats the consumption a device reported during the
// sweep. Devices without a meter answered that half of the query with an
// error, so they show a dash.
func powerDrawLabel(desc discovery.Descriptor) string {
	realtime := desc.EmeterRealtime()
	if realtime == nil {
		return "-"
	}
	if mw, ok := realtime["power_mw"].(float64); ok {
		return fmt.Sprintf("%.1f W", mw/1000)
	}
	if w, ok := realtime["power"].(float64); ok {
		return fmt.Sprintf("%.1f W", w)
	}
	return "-"
}

// DiscoveryModel represents the device discovery screen state
type DiscoveryModel struct {
	// Sweep carries the scan parameters; zero values use protocol defaults
	Sweep discovery.Sweep

	// Discovery state
	Scanning   bool
	DeviceList list.Model
	Err        error

	// Manual address entry state
	ManualMode bool
	AddrInput  textinput.Model
	ManualErr  string

	// UI state
	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap
	ScanningKeys  scanningKeyMap
	EmptyKeys     emptyScreenKeyMap
}

// NewDiscoveryModel creates a new discovery screen model
func NewDiscoveryModel(sweep discovery.Sweep) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addrInput := textinput.New()
	addrInput.Placeholder = "192.168.0.30"
	addrInput.CharLimit = 64
	addrInput.Width = 30

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, deviceDelegate{}, 0, 0)
	deviceList.Title = "Discovered Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(false)
	deviceList.SetShowHelp(false)
	deviceList.Styles.Title = TitleStyle

	h := help.New()

	keys := discoveryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "open"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	manualKeys := manualModeKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	scanningKeys := scanningKeyMap{
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	emptyKeys := emptyScreenKeyMap{
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	return DiscoveryModel{
		Sweep:        sweep,
		DeviceList:   deviceList,
		AddrInput:    addrInput,
		Spinner:      s,
		ProgressBar:  progressBar,
		Help:         h,
		Keys:         keys,
		ManualKeys:   manualKeys,
		ScanningKeys: scanningKeys,
		EmptyKeys:    emptyKeys,
	}
}

// sweepWindow returns how long the sweep collects replies
func (m DiscoveryModel) sweepWindow() time.Duration {
	if m.Sweep.Timeout > 0 {
		return m.Sweep.Timeout
	}
	return discovery.DefaultSweepTimeout
}

// sweepTarget returns the broadcast destination shown while scanning
func (m DiscoveryModel) sweepTarget() string {
	target := m.Sweep.Target
	if target == "" {
		target = discovery.DefaultTarget
	}
	port := m.Sweep.Port
	if port == 0 {
		port = protocol.DefaultPort
	}
	return fmt.Sprintf("%s:%d", target, port)
}

// Init starts the first sweep immediately
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		runSweep(m.Sweep),
		m.Spinner.Tick,
	)
}

// runSweep is a command that broadcasts the discovery query and collects
// replies for the sweep window
func runSweep(sweep discovery.Sweep) tea.Cmd {
	return func() tea.Msg {
		window := sweep.Timeout
		if window <= 0 {
			window = discovery.DefaultSweepTimeout
		}
		// Grace beyond the collection window so the context never cuts
		// the sweep short.
		ctx, cancel := context.WithTimeout(context.Background(), window+2*time.Second)
		defer cancel()

		found, err := sweep.Run(ctx)
		return scanCompleteMsg{descriptors: found, err: err}
	}
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		if m.Scanning {
			return m.updateScanningMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 10) // Leave room for header/footer

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.descriptors))
		for i, desc := range msg.descriptors {
			items[i] = deviceItem{desc: desc}
		}
		m.DeviceList.SetItems(items)
		if len(items) > 0 {
			m.DeviceList.Select(0)
		}

	case spinner.TickMsg:
		if m.Scanning {
			m.Spinner, cmd = m.Spinner.Update(msg)
		}
		return m, cmd
	}

	return m, cmd
}

// updateNormalMode handles keyboard input in the device list
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Enter):
		if selected := m.DeviceList.SelectedItem(); selected != nil {
			if item, ok := selected.(deviceItem); ok {
				return m, chooseDevice(item.desc)
			}
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		m.DeviceList.SetItems([]list.Item{})
		m.Err = nil
		return m, tea.Batch(
			func() tea.Msg { return scanStartMsg{} },
			runSweep(m.Sweep),
			m.Spinner.Tick,
		)

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.ManualErr = ""
		m.AddrInput.SetValue("")
		m.AddrInput.Focus()
		return m, textinput.Blink
	}

	// Everything else is list navigation
	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// updateScanningMode handles keyboard input while the sweep runs
func (m DiscoveryModel) updateScanningMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.ScanningKeys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.ScanningKeys.Manual):
		m.ManualMode = true
		m.ManualErr = ""
		m.AddrInput.SetValue("")
		m.AddrInput.Focus()
		return m, textinput.Blink
	}

	return m, nil
}

// updateManualMode handles keyboard input in manual address entry mode
func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "ctrl+c", "esc":
		m.ManualMode = false
		m.ManualErr = ""
		m.AddrInput.SetValue("")
		m.AddrInput.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.AddrInput.Value())
		if value == "" || strings.ContainsAny(value, " \t") {
			m.ManualErr = "Enter an IP address or hostname"
			return m, nil
		}

		// A manual entry carries no discovery payload; the dashboard
		// probes sysinfo on connect to learn what it is.
		desc := discovery.Descriptor{
			Addr:         value,
			Port:         m.Sweep.Port,
			DiscoveredAt: time.Now(),
		}
		entry := deviceItem{desc: desc}
		items := append([]list.Item{entry}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)

		m.ManualMode = false
		m.ManualErr = ""
		m.AddrInput.SetValue("")
		m.AddrInput.Blur()
		return m, nil
	}

	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// chooseDevice asks the app coordinator to open the dashboard
func chooseDevice(desc discovery.Descriptor) tea.Cmd {
	return func() tea.Msg {
		return deviceChosenMsg{desc: desc}
	}
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content string
	if m.ManualMode {
		content = m.renderManualEntry()
	} else if m.Scanning {
		content = m.renderScanning(width)
	} else {
		content = m.renderResults()
	}

	var helpText string
	if m.ManualMode {
		helpText = m.Help.View(m.ManualKeys)
	} else if m.Scanning {
		helpText = m.Help.View(m.ScanningKeys)
	} else if len(m.DeviceList.Items()) > 0 {
		helpText = m.Help.View(m.Keys)
	} else {
		helpText = m.Help.View(m.EmptyKeys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderScanning renders a centered progress display while the sweep runs
func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	window := m.sweepWindow()

	// The sweep has a fixed collection window, so progress is real time
	// rather than an estimate.
	fraction := float64(elapsed) / float64(window)
	if fraction > 1 {
		fraction = 1
	}

	title := fmt.Sprintf("%s SWEEPING FOR DEVICES", m.Spinner.View())
	subtitle := fmt.Sprintf("Broadcasting to %s and collecting replies...", m.sweepTarget())
	progressBar := m.ProgressBar.ViewAs(fraction)
	elapsedText := fmt.Sprintf("Elapsed: %s", elapsed.Round(100*time.Millisecond))

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(title),
		"",
		SubtitleStyle.Render(subtitle),
		"",
		progressBar,
		"",
		SubtitleStyle.Render(elapsedText),
		"",
	)

	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderResults renders the device list or the empty/error state
func (m DiscoveryModel) renderResults() string {
	var b strings.Builder

	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Sweep failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(m.renderTroubleshooting())
	} else if len(m.DeviceList.Items()) == 0 {
		b.WriteString("  ")
		b.WriteString(WarningStyle.Render("⚠ No devices answered the sweep"))
		b.WriteString("\n\n")
		b.WriteString(m.renderTroubleshooting())
	} else {
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}

func (m DiscoveryModel) renderTroubleshooting() string {
	var b strings.Builder
	b.WriteString("  Troubleshooting:\n")
	b.WriteString("    • Ensure devices are powered and on this subnet\n")
	b.WriteString("    • Guest or isolated WiFi often blocks broadcast traffic\n")
	b.WriteString("    • Point the sweep at your subnet broadcast address\n")
	b.WriteString("    • Use 'm' to connect to a known address directly\n")
	return b.String()
}

// renderManualEntry renders the manual address entry dialog
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(RenderSubtitle("Enter the device IP address or hostname"))
	b.WriteString("\n\n")
	b.WriteString("  Address: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n")
	if m.ManualErr != "" {
		b.WriteString("\n  ")
		b.WriteString(WarningStyle.Render(m.ManualErr))
		b.WriteString("\n")
	}

	return b.String()
}
