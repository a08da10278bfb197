package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmAction prints a prompt and reads a y/N answer from stdin.
// Anything but "y" or "yes" declines.
func ConfirmAction(prompt string) bool {
	promptStyle := lipgloss.NewStyle().Foreground(WarningColor)
	fmt.Print(promptStyle.Render(prompt + " [y/N]: "))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}

// ConfirmDangerousOperation displays a warning box and prompts the user to
// type "I AGREE" to proceed. Returns true if the user confirmed.
func ConfirmDangerousOperation(title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string

	titleLine := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf("   ⚠  WARNING  ─  %s", title))
	lines = append(lines, "")
	lines = append(lines, titleLine)
	lines = append(lines, "")

	for _, warning := range warnings {
		bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	if disclaimer != "" {
		disclaimerStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, disclaimerStyle.Render(disclaimer))
		lines = append(lines, "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	fmt.Println(box)
	fmt.Println()

	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	fmt.Print(promptStyle.Render("To proceed, type \"I AGREE\" and press Enter: "))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}

	if strings.TrimSpace(input) == "I AGREE" {
		fmt.Println()
		return true
	}

	fmt.Println()
	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	fmt.Println(cancelStyle.Render("  Operation cancelled."))
	fmt.Println()
	return false
}

// MacChangeConfirmation is a pre-configured confirmation for rewriting a
// device's hardware address, which can cut it off from the network until
// reconfigured.
func MacChangeConfirmation(host, mac string) bool {
	return ConfirmDangerousOperation(
		"MAC ADDRESS CHANGE",
		[]string{
			fmt.Sprintf("This will rewrite the hardware address of the device at %s to %s", host, mac),
			"DHCP reservations and router rules tied to the old address will stop matching",
			"A device with a mistyped address may become unreachable until factory reset",
		},
		"Changing the MAC address is rarely necessary. Make sure you have "+
			"physical access to the device before proceeding, in case it needs "+
			"a manual reset afterwards.",
	)
}
