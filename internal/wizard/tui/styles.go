package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/kasalink/internal/version"
)

// Application branding constants
const (
	AppName   = "KASALINK DEVICE WIZARD"
	GitHubURL = "github.com/muurk/kasalink"
)

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72  // Minimum supported terminal width
	MaxContentWidth  = 120 // Maximum content width before capping
)

// Color palette
var (
	// Primary colors
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red

	// Neutral colors
	TextColor      = lipgloss.Color("#FFFFFF") // White
	SubtleColor    = lipgloss.Color("#626262") // Gray
	BorderColor    = lipgloss.Color("#7D56F4") // Purple (same as primary)
	HighlightColor = lipgloss.Color("#43BF6D") // Green (same as secondary)
)

// Common styles
var (
	// Title style - large, bold
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	// Subtitle style
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// Menu item style (selected)
	SelectedMenuItemStyle = lipgloss.NewStyle().
				Foreground(HighlightColor).
				Bold(true)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor)

	// Spinner style
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// Warning line style
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// On/off badge styles for power state
	BadgeOnStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	BadgeOffStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// Panel field styles for the dashboard
	PanelLabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(14)

	PanelValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)
)

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderSubtitle renders a subtitle with consistent styling
func RenderSubtitle(text string) string {
	return SubtitleStyle.Render(text)
}

// RenderError renders an error message
func RenderError(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

// PowerBadge renders the on/off state as a colored badge
func PowerBadge(on bool) string {
	if on {
		return BadgeOnStyle.Render("● ON")
	}
	return BadgeOffStyle.Render("○ OFF")
}

// BuildHeaderContent creates header content with app name and GitHub URL
// Returns a string formatted for use in the application container
func BuildHeaderContent() string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + AppVersion())

	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(GitHubURL)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

// BuildFooterContent creates footer content with help text
// Returns a styled string for use in the application container
func BuildFooterContent(helpText string) string {
	return lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(helpText)
}

// RenderApplicationContainer is the shared wrapper for every wizard screen.
// It provides:
// - Consistent full-screen panel using terminal width/height
// - Application header (name, version, GitHub URL)
// - Context-sensitive footer (help text)
// - Bordered outer container
//
// Every screen funnels its View through this function so the frame stays
// identical across transitions:
//
//	func (m Model) View() string {
//	    content := m.buildContent()
//	    helpText := m.Help.View(m.Keys)
//	    return RenderApplicationContainer(content, helpText, m.Width, m.Height)
//	}
func RenderApplicationContainer(content string, footerText string, terminalWidth int, terminalHeight int) string {
	if terminalWidth <= 0 {
		terminalWidth = MinTerminalWidth + 8
	}
	if terminalHeight <= 0 {
		terminalHeight = 24
	}

	header := BuildHeaderContent()
	footer := BuildFooterContent(footerText)

	// Header section with bottom border
	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth - 4). // Leave room for outer border
		Padding(0, 1)

	styledHeader := headerStyle.Render(header)

	// Footer section with top border
	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth - 4).
		Padding(0, 1)

	styledFooter := footerStyle.Render(footer)

	// Content area. No padding here so callers control their own margins
	// and Width(terminalWidth-4) is the actual usable content width.
	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth - 4)

	styledContent := contentStyle.Render(content)

	innerContent := lipgloss.JoinVertical(
		lipgloss.Left,
		styledHeader,
		styledContent,
		styledFooter,
	)

	// Outer border container with full terminal height
	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top)

	bordered := borderStyle.Render(innerContent)

	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Left,
		lipgloss.Top,
		bordered,
	)
}
