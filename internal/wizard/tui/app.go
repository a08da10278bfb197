package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/kasalink/internal/discovery"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenDashboard Screen = "dashboard"
)

// deviceChosenMsg moves the wizard to the dashboard for the chosen device
type deviceChosenMsg struct {
	desc discovery.Descriptor
}

// backToDiscoveryMsg returns to the device list, keeping its scan results
type backToDiscoveryMsg struct{}

// Options configures the wizard's discovery sweep before it starts
type Options struct {
	// Target is the sweep broadcast destination, DefaultTarget when empty
	Target string

	// Port is the device port, the protocol default when zero
	Port int

	// Timeout is the sweep collection window, DefaultSweepTimeout when zero
	Timeout time.Duration
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	Discovery DiscoveryModel
	Dashboard DashboardModel

	Width  int
	Height int
}

// NewAppModel creates the application model starting at the discovery screen
func NewAppModel(opts Options) AppModel {
	sweep := discovery.Sweep{
		Port:    opts.Port,
		Timeout: opts.Timeout,
		Target:  opts.Target,
	}
	return AppModel{
		CurrentScreen: ScreenDiscovery,
		Discovery:     NewDiscoveryModel(sweep),
	}
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	return m.Discovery.Init()
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		// Both screens track the size so neither renders stale dimensions
		// after a transition.
		updatedDiscovery, _ := m.Discovery.Update(msg)
		m.Discovery = updatedDiscovery.(DiscoveryModel)
		updatedDashboard, _ := m.Dashboard.Update(msg)
		m.Dashboard = updatedDashboard.(DashboardModel)
		return m, nil

	case tea.KeyMsg:
		// Global quit handler
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case deviceChosenMsg:
		m.Dashboard = NewDashboardModel(msg.desc, m.Width, m.Height)
		m.CurrentScreen = ScreenDashboard
		return m, m.Dashboard.Init()

	case backToDiscoveryMsg:
		m.CurrentScreen = ScreenDiscovery
		return m, nil
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.CurrentScreen {
	case ScreenDashboard:
		updated, cmd := m.Dashboard.Update(msg)
		m.Dashboard = updated.(DashboardModel)
		return m, cmd

	default:
		updated, cmd := m.Discovery.Update(msg)
		m.Discovery = updated.(DiscoveryModel)
		return m, cmd
	}
}

// View renders the current screen. Each screen wraps itself in
// RenderApplicationContainer so the chrome stays consistent.
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDashboard:
		return m.Dashboard.View()
	default:
		return m.Discovery.View()
	}
}

// Run starts the wizard in the alternate screen and blocks until it exits
func Run(opts Options) error {
	program := tea.NewProgram(NewAppModel(opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
