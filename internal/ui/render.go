package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/discovery"
)

// KV is one ordered key-value row in a panel or header. Rows render in
// slice order, so callers control what the reader sees first.
type KV struct {
	Key   string
	Value string
}

// RenderScanResults renders discovered devices as a table. Nicknames, if
// any, come from the registry keyed by device ID and render in place of
// the device's own alias.
func RenderScanResults(descriptors []discovery.Descriptor, nicknames map[string]string, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	if len(descriptors) == 0 {
		return NoteStyle.Render("  No devices answered the sweep.")
	}

	rows := make([][]string, 0, len(descriptors))
	for _, desc := range descriptors {
		name := desc.Alias()
		if nickname, ok := nicknames[desc.DeviceID()]; ok && nickname != "" {
			name = nickname
		}
		if name == "" {
			name = "(unnamed)"
		}

		power := "-"
		if realtime := desc.EmeterRealtime(); realtime != nil {
			power = formatPower(realtime)
		}

		rows = append(rows, []string{
			name,
			desc.Model(),
			desc.Type().String(),
			fmt.Sprintf("%s:%d", desc.Addr, desc.Port),
			power,
		})
	}

	table := renderTable([]string{"NAME", "MODEL", "TYPE", "ADDRESS", "POWER"}, rows)
	count := NoteStyle.Render(fmt.Sprintf("  %d device(s) found", len(descriptors)))
	return lipgloss.JoinVertical(lipgloss.Left, table, "", count)
}

// RenderStateInfo renders a device state panel. The rows arrive ordered;
// typically identity first, then live state.
func RenderStateInfo(title string, rows []KV, width int) string {
	return RenderPanel(title, rows, width)
}

// RenderEmeter renders a realtime meter reading as a panel
func RenderEmeter(title string, reading device.EmeterReading, width int) string {
	rows := []KV{
		{"Power", fmt.Sprintf("%.1f W", reading.PowerW)},
	}
	if reading.VoltageMV != 0 {
		rows = append(rows, KV{"Voltage", fmt.Sprintf("%.1f V", reading.VoltageV)})
	}
	if reading.CurrentMA != 0 {
		rows = append(rows, KV{"Current", fmt.Sprintf("%.3f A", reading.CurrentA)})
	}
	if reading.TotalWH != 0 {
		rows = append(rows, KV{"Total", fmt.Sprintf("%.3f kWh", reading.TotalKWh)})
	}
	return RenderPanel(title, rows, width)
}

// RenderEnergySeries renders per-day or per-month energy totals, keyed by
// day-of-month or month number, in key order.
func RenderEnergySeries(title string, keys []int, totals map[int]device.EnergyTotal, width int) string {
	rows := make([]KV, 0, len(keys))
	for _, key := range keys {
		total, ok := totals[key]
		if !ok {
			continue
		}
		rows = append(rows, KV{fmt.Sprintf("%d", key), fmt.Sprintf("%.3f kWh", total.KWh)})
	}
	if len(rows) == 0 {
		return NoteStyle.Render("  No usage recorded for that period.")
	}
	return RenderPanel(title, rows, width)
}

// RenderPanel renders ordered key-value rows in a bordered panel
func RenderPanel(title string, rows []KV, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string
	if title != "" {
		lines = append(lines, TableHeaderStyle.Render(title))
		lines = append(lines, "")
	}
	for _, row := range rows {
		keyStyled := PanelKeyStyle.Render(row.Key)
		valueStyled := PanelValueStyle.Render(row.Value)
		lines = append(lines, keyStyled+" "+valueStyled)
	}

	return PanelBorderStyle(width).Render(strings.Join(lines, "\n"))
}

// renderTable renders header and rows with columns padded to their widest
// cell. Styling is applied after padding so ANSI sequences do not skew
// the measured widths.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		return "  " + strings.Join(parts, "  ")
	}

	var lines []string
	lines = append(lines, TableHeaderStyle.Render(pad(header)))
	for _, row := range rows {
		lines = append(lines, TableCellStyle.Render(pad(row)))
	}
	return strings.Join(lines, "\n")
}

// formatPower formats the power field of a raw emeter block, whichever
// unit generation the device reports in.
func formatPower(realtime map[string]any) string {
	if mw, ok := realtime["power_mw"].(float64); ok {
		return fmt.Sprintf("%.1f W", mw/1000)
	}
	if w, ok := realtime["power"].(float64); ok {
		return fmt.Sprintf("%.1f W", w)
	}
	return "-"
}
