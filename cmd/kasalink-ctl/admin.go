package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/config"
	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/ui"
)

// Admin command flags
var rebootDelay int

func init() {
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(macCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(timeCmd)
}

// aliasCmd renames a device
var aliasCmd = &cobra.Command{
	Use:   "alias <name>",
	Short: "Rename a device",
	Long: `Set the device's alias, the name it reports in scans and apps.

When the device is already in the registry, the recorded alias updates
alongside so lookups stay consistent.`,
	Example: `  kasalink-ctl alias "Porch Light" --device 192.168.1.40
  kasalink-ctl alias heater --device porch-plug`,
	Args: cobra.ExactArgs(1),
	RunE: runAlias,
}

func runAlias(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	alias := strings.TrimSpace(args[0])
	if alias == "" {
		return fmt.Errorf("alias must not be empty")
	}

	host, err := resolveHost()
	if err != nil {
		return err
	}

	ctx := context.Background()
	dev := newDevice(host)
	if err := dev.SetAlias(ctx, alias); err != nil {
		return reportFailure("Rename failed", err)
	}

	details := []ui.KV{
		{Key: "Device", Value: hostAddress(host)},
		{Key: "Alias", Value: alias},
	}

	// Update the registry entry when the device is known there. Best
	// effort: renaming succeeded either way.
	if info, err := dev.SysInfo(ctx); err == nil && info.DeviceID() != "" {
		if registry, err := config.LoadRegistry(); err == nil {
			registry.RecordSighting(info.DeviceID(), host, info.Alias(), info.Model(), "")
			if err := registry.Save(); err == nil {
				details = append(details, ui.KV{Key: "Registry", Value: "updated"})
			}
		}
	}

	out.PrintSuccess("Device renamed", details)
	return nil
}

// macAddressPattern matches colon or dash separated hardware addresses
var macAddressPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// macCmd shows or rewrites the hardware address
var macCmd = &cobra.Command{
	Use:   "mac [address]",
	Short: "Show or set the device MAC address",
	Long: `Show the device's hardware address, or rewrite it when an address is
given.

Rewriting the MAC address can cut the device off from DHCP reservations
and router rules tied to the old address, so setting one requires an
explicit confirmation.`,
	Example: `  # Show the current address
  kasalink-ctl mac --device 192.168.1.40

  # Rewrite it (prompts for confirmation)
  kasalink-ctl mac 50:C7:BF:11:22:33 --device 192.168.1.40`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMac,
}

func runMac(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}

	ctx := context.Background()
	dev := newDevice(host)

	if len(args) == 0 {
		mac, err := dev.MAC(ctx)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"mac": mac})
		}
		out.PrintPanel("Hardware Address", []ui.KV{
			{Key: "Device", Value: hostAddress(host)},
			{Key: "MAC", Value: mac},
		})
		return nil
	}

	mac := strings.TrimSpace(args[0])
	if !macAddressPattern.MatchString(mac) {
		return fmt.Errorf("invalid MAC address %q (expected aa:bb:cc:dd:ee:ff)", mac)
	}

	if !ui.MacChangeConfirmation(host, mac) {
		return nil
	}

	if err := dev.SetMAC(ctx, mac); err != nil {
		return reportFailure("MAC change failed", err)
	}

	out.PrintSuccess("MAC address changed", []ui.KV{
		{Key: "Device", Value: hostAddress(host)},
		{Key: "MAC", Value: mac},
	})
	return nil
}

// ledControl is the slice of plug behaviour the led command needs. Plugs
// and power strips satisfy it; bulbs have no status LED.
type ledControl interface {
	LED(ctx context.Context) (bool, error)
	SetLED(ctx context.Context, on bool) error
}

// ledCmd controls the status LED
var ledCmd = &cobra.Command{
	Use:   "led [on|off]",
	Short: "Show or switch the status LED",
	Long: `Show the state of the status LED on a plug or power strip, or switch
it with an explicit on/off argument.

The LED only indicates status; switching it does not affect the relay.
Bulbs have no status LED.`,
	Example: `  # Show the LED state
  kasalink-ctl led --device 192.168.1.40

  # Night mode
  kasalink-ctl led off --device bedroom-plug`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLed,
}

func runLed(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	var want bool
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on":
			want = true
		case "off":
			want = false
		default:
			return fmt.Errorf("invalid LED state %q (use on or off)", args[0])
		}
	}

	host, err := resolveHost()
	if err != nil {
		return err
	}

	ctx := context.Background()
	appliance, info, err := connectAppliance(ctx, host)
	if err != nil {
		return reportFailure("Device query failed", err)
	}

	leds, ok := appliance.(ledControl)
	if !ok {
		err := device.NewUnsupportedError("led", fmt.Sprintf("%s has no status LED", familyName(appliance)))
		return reportFailure("LED control failed", err)
	}

	if len(args) == 0 {
		on, err := leds.LED(ctx)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"led": on})
		}
		out.PrintPanel("Status LED", []ui.KV{
			{Key: "Device", Value: displayName(info, host)},
			{Key: "LED", Value: ui.OnOffBadge(on)},
		})
		return nil
	}

	if err := leds.SetLED(ctx, want); err != nil {
		return reportFailure("LED control failed", err)
	}
	out.PrintSuccess("Status LED switched", []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "LED", Value: ui.OnOffBadge(want)},
	})
	return nil
}

// rebootCmd restarts a device
var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot a device",
	Long: `Reboot a device after a short delay.

The relay state survives the reboot: an outlet that was powering
something keeps powering it once the device is back. Expect the device
to be unreachable for a few seconds.`,
	Example: `  kasalink-ctl reboot --device 192.168.1.40
  kasalink-ctl reboot --delay 5 --device porch-light`,
	RunE: runReboot,
}

func init() {
	rebootCmd.Flags().IntVar(&rebootDelay, "delay", 1, "Seconds to wait before rebooting")
}

func runReboot(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}

	if !ui.ConfirmAction(fmt.Sprintf("Reboot the device at %s?", hostAddress(host))) {
		out.PrintNote("Reboot cancelled.")
		return nil
	}

	if err := newDevice(host).Reboot(context.Background(), rebootDelay); err != nil {
		return reportFailure("Reboot failed", err)
	}

	out.PrintSuccess("Reboot requested", []ui.KV{
		{Key: "Device", Value: hostAddress(host)},
		{Key: "Delay", Value: fmt.Sprintf("%ds", rebootDelay)},
		{Key: "Note", Value: "relay state is preserved"},
	})
	return nil
}

// timeCmd shows the device clock
var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Show the device clock",
	Long: `Show the device's wall-clock time next to this machine's, with the
drift between them.

Schedule rules fire on the device clock, so drift here explains rules
firing early or late.`,
	Example: `  kasalink-ctl time --device 192.168.1.40`,
	RunE: runTime,
}

func runTime(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}

	ctx := context.Background()
	dev := newDevice(host)

	deviceTime, err := dev.Time(ctx)
	if err != nil {
		return reportFailure("Device query failed", err)
	}
	local := time.Now()

	if jsonOutput {
		return printJSON(map[string]any{
			"device_time": deviceTime.Format(time.RFC3339),
			"local_time":  local.Format(time.RFC3339),
			"drift_sec":   int(deviceTime.Sub(local).Round(time.Second).Seconds()),
		})
	}

	rows := []ui.KV{
		{Key: "Device time", Value: deviceTime.Format("2006-01-02 15:04:05")},
		{Key: "Local time", Value: local.Format("2006-01-02 15:04:05")},
		{Key: "Drift", Value: deviceTime.Sub(local).Round(time.Second).String()},
	}

	// The timezone index is informational; some firmware omits it
	if tz, err := dev.Timezone(ctx); err == nil {
		if idx, ok := tz["index"].(float64); ok {
			rows = append(rows, ui.KV{Key: "Timezone index", Value: fmt.Sprintf("%.0f", idx)})
		}
	}

	out.PrintPanel("Device Clock", rows)
	return nil
}
