package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/ui"
)

// Emeter command flags
var (
	emeterYear  int
	emeterMonth int
	emeterErase bool
)

func init() {
	rootCmd.AddCommand(emeterCmd)
}

// emeterHistory is the statistics behaviour shared by every metered
// family. The methods dispatch to the family's own metering namespace,
// so a bulb handle satisfies it just like a plug handle does.
type emeterHistory interface {
	EmeterDaily(ctx context.Context, year int, month time.Month) (map[int]device.EnergyTotal, error)
	EmeterMonthly(ctx context.Context, year int) (map[int]device.EnergyTotal, error)
	EraseEmeterStats(ctx context.Context) error
}

// emeterCmd reads the energy meter
var emeterCmd = &cobra.Command{
	Use:   "emeter",
	Short: "Read the energy meter",
	Long: `Read a device's energy meter.

Without flags, the live reading is shown: power draw, voltage, current
and the lifetime total. On a power strip, every outlet meters
independently and each is shown. --month selects per-day totals for one
month, --year per-month totals for one year, and --erase deletes all
accumulated statistics on the device.

Only metered models (HS110, HS300, and all bulbs) answer; plain plugs
have no meter.`,
	Example: `  # Live reading
  kasalink-ctl emeter --device 192.168.1.40

  # Daily totals for this month
  kasalink-ctl emeter --month 8 --device 192.168.1.40

  # Monthly totals for last year
  kasalink-ctl emeter --year 2025 --device 192.168.1.40

  # Start over
  kasalink-ctl emeter --erase --device 192.168.1.40`,
	RunE: runEmeter,
}

func init() {
	emeterCmd.Flags().IntVar(&emeterYear, "year", 0, "Show per-month totals for this year")
	emeterCmd.Flags().IntVar(&emeterMonth, "month", 0, "Show per-day totals for this month (1-12)")
	emeterCmd.Flags().BoolVar(&emeterErase, "erase", false, "Erase all energy statistics on the device")
}

func runEmeter(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}

	ctx := context.Background()
	appliance, info, err := connectAppliance(ctx, host)
	if err != nil {
		return reportFailure("Device query failed", err)
	}

	// Gate before choosing a view, so a meterless device fails cleanly
	// instead of mid-prompt.
	has, err := appliance.HasEmeter(ctx)
	if err != nil {
		return reportFailure("Device query failed", err)
	}
	if !has {
		err := device.NewUnsupportedError("emeter", "device has no energy meter")
		return reportFailure("Energy meter unavailable", err)
	}

	meter, ok := appliance.(emeterHistory)
	if !ok {
		err := device.NewUnsupportedError("emeter", "device has no energy statistics")
		return reportFailure("Energy meter unavailable", err)
	}

	name := displayName(info, host)

	switch {
	case emeterErase:
		if !ui.ConfirmAction(fmt.Sprintf("Erase all energy statistics on %s?", name)) {
			out.PrintNote("Erase cancelled.")
			return nil
		}
		if err := meter.EraseEmeterStats(ctx); err != nil {
			return reportFailure("Erase failed", err)
		}
		out.PrintSuccess("Energy statistics erased", []ui.KV{
			{Key: "Device", Value: name},
		})
		return nil

	case emeterMonth != 0:
		if emeterMonth < 1 || emeterMonth > 12 {
			return fmt.Errorf("invalid month %d (expected 1-12)", emeterMonth)
		}
		year := emeterYear
		if year == 0 {
			year = time.Now().Year()
		}
		month := time.Month(emeterMonth)
		totals, err := meter.EmeterDaily(ctx, year, month)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(totalsReport(totals))
		}
		title := fmt.Sprintf("Daily Usage - %s %d", month, year)
		out.Println(ui.RenderEnergySeries(title, seriesKeys(31), totals, out.Width()))
		return nil

	case emeterYear != 0:
		totals, err := meter.EmeterMonthly(ctx, emeterYear)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(totalsReport(totals))
		}
		title := fmt.Sprintf("Monthly Usage - %d", emeterYear)
		out.Println(ui.RenderEnergySeries(title, seriesKeys(12), totals, out.Width()))
		return nil
	}

	// No period selected: live reading. Strips meter per outlet.
	if strip, ok := appliance.(*device.Strip); ok {
		return runStripRealtime(ctx, strip, info)
	}

	reading, err := appliance.EmeterRealtime(ctx)
	if err != nil {
		return reportFailure("Device query failed", err)
	}
	if jsonOutput {
		return printJSON(reading.Raw)
	}
	out.Println(ui.RenderEmeter(name, reading, out.Width()))
	return nil
}

// runStripRealtime renders one meter reading per strip outlet
func runStripRealtime(ctx context.Context, strip *device.Strip, info device.SysInfo) error {
	children := info.Children()
	readings, err := strip.EmeterRealtimeAll(ctx)
	if err != nil {
		return reportFailure("Device query failed", err)
	}

	if jsonOutput {
		report := make([]map[string]any, 0, len(children))
		for i, child := range children {
			entry := map[string]any{"index": i, "alias": child.Alias}
			if reading, ok := readings[i]; ok {
				entry["realtime"] = reading.Raw
			}
			report = append(report, entry)
		}
		return printJSON(report)
	}

	for i, child := range children {
		reading, ok := readings[i]
		if !ok {
			continue
		}
		title := fmt.Sprintf("Outlet %d", i)
		if child.Alias != "" {
			title = fmt.Sprintf("Outlet %d - %s", i, child.Alias)
		}
		out.Println(ui.RenderEmeter(title, reading, out.Width()))
	}
	return nil
}

// seriesKeys returns 1..max, the key order for an energy series
func seriesKeys(max int) []int {
	keys := make([]int, max)
	for i := range keys {
		keys[i] = i + 1
	}
	return keys
}

// totalsReport projects energy totals into kWh values for JSON output
func totalsReport(totals map[int]device.EnergyTotal) map[int]float64 {
	report := make(map[int]float64, len(totals))
	for key, total := range totals {
		report[key] = total.KWh
	}
	return report
}
