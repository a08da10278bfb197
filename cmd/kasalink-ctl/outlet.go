package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/config"
	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/ui"
)

// Outlet command flags
var outletIndex int

func init() {
	outletCmd.AddCommand(outletListCmd)
	outletCmd.AddCommand(outletOnCmd)
	outletCmd.AddCommand(outletOffCmd)
	outletCmd.AddCommand(outletAliasCmd)

	rootCmd.AddCommand(outletCmd)
}

// outletCmd groups the per-outlet operations of power strips
var outletCmd = &cobra.Command{
	Use:   "outlet",
	Short: "Control individual power strip outlets",
	Long: `Control the outlets of a power strip individually.

Outlets are addressed by index, counting from 0 in the order the strip
reports them. 'outlet list' shows the indexes. Whole-strip switching is
the plain 'on' and 'off' commands.`,
	Example: `  kasalink-ctl outlet list --device 192.168.1.60
  kasalink-ctl outlet on --index 2 --device 192.168.1.60
  kasalink-ctl outlet alias "Desk Lamp" --index 2 --device 192.168.1.60`,
}

// stripFor returns the appliance as a power strip
func stripFor(appliance device.Appliance) (*device.Strip, error) {
	strip, ok := appliance.(*device.Strip)
	if !ok {
		return nil, device.NewUnsupportedError("outlet",
			fmt.Sprintf("%s has no individually controllable outlets", familyName(appliance)))
	}
	return strip, nil
}

// outletListCmd lists the strip's outlets
var outletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List outlets with their state",
	Example: `  kasalink-ctl outlet list --device 192.168.1.60
  kasalink-ctl outlet list --device workbench --json`,
	RunE: runOutletList,
}

func runOutletList(cmd *cobra.Command, args []string) error {
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
	if _, err := stripFor(appliance); err != nil {
		return reportFailure("Outlet listing failed", err)
	}

	children := info.Children()

	if jsonOutput {
		report := make([]map[string]any, 0, len(children))
		for i, child := range children {
			report = append(report, map[string]any{
				"index": i,
				"id":    child.ID,
				"alias": child.Alias,
				"on":    child.IsOn(),
			})
		}
		return printJSON(report)
	}

	rows := make([]ui.KV, 0, len(children))
	for i, child := range children {
		label := child.Alias
		if label == "" {
			label = "(unnamed)"
		}
		rows = append(rows, ui.KV{
			Key:   fmt.Sprintf("Outlet %d", i),
			Value: fmt.Sprintf("%s %s", ui.OnOffBadge(child.IsOn()), label),
		})
	}
	out.PrintPanel(displayName(info, host), rows)
	return nil
}

// outletOnCmd switches one outlet on
var outletOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch one outlet on",
	Example: `  kasalink-ctl outlet on --index 0 --device 192.168.1.60
  kasalink-ctl outlet on --index 3 --device workbench`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOutletSwitch(cmd, true)
	},
}

// outletOffCmd switches one outlet off
var outletOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch one outlet off",
	Example: `  kasalink-ctl outlet off --index 0 --device 192.168.1.60
  kasalink-ctl outlet off --index 3 --device workbench`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOutletSwitch(cmd, false)
	},
}

func init() {
	outletOnCmd.Flags().IntVar(&outletIndex, "index", 0, "Outlet index, counting from 0")
	_ = outletOnCmd.MarkFlagRequired("index")

	outletOffCmd.Flags().IntVar(&outletIndex, "index", 0, "Outlet index, counting from 0")
	_ = outletOffCmd.MarkFlagRequired("index")
}

func runOutletSwitch(cmd *cobra.Command, on bool) error {
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
	strip, err := stripFor(appliance)
	if err != nil {
		return reportFailure("Outlet control failed", err)
	}

	action, title := strip.TurnOnAt, "Outlet switched on"
	if !on {
		action, title = strip.TurnOffAt, "Outlet switched off"
	}
	if err := action(ctx, outletIndex); err != nil {
		return reportFailure("Outlet control failed", err)
	}

	out.PrintSuccess(title, []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "Outlet", Value: outletLabel(info, outletIndex)},
		{Key: "State", Value: ui.OnOffBadge(on)},
	})
	return nil
}

// outletAliasCmd renames one outlet
var outletAliasCmd = &cobra.Command{
	Use:   "alias <name>",
	Short: "Rename one outlet",
	Long: `Set the alias of a single strip outlet, the name shown in listings
and apps. The registry's outlet label updates alongside when the strip
is recorded there.`,
	Example: `  kasalink-ctl outlet alias "Desk Lamp" --index 2 --device 192.168.1.60
  kasalink-ctl outlet alias Heater --index 0 --device workbench`,
	Args: cobra.ExactArgs(1),
	RunE: runOutletAlias,
}

func init() {
	outletAliasCmd.Flags().IntVar(&outletIndex, "index", 0, "Outlet index, counting from 0")
	_ = outletAliasCmd.MarkFlagRequired("index")
}

func runOutletAlias(cmd *cobra.Command, args []string) error {
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
	appliance, info, err := connectAppliance(ctx, host)
	if err != nil {
		return reportFailure("Device query failed", err)
	}
	strip, err := stripFor(appliance)
	if err != nil {
		return reportFailure("Outlet rename failed", err)
	}

	if err := strip.SetAliasAt(ctx, outletIndex, alias); err != nil {
		return reportFailure("Outlet rename failed", err)
	}

	details := []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "Outlet", Value: fmt.Sprintf("%d", outletIndex)},
		{Key: "Alias", Value: alias},
	}

	// Keep the registry's outlet label in step, best effort
	children := info.Children()
	if id := info.DeviceID(); id != "" && outletIndex >= 0 && outletIndex < len(children) {
		if registry, err := config.LoadRegistry(); err == nil {
			registry.SetOutletLabel(id, outletIndex, children[outletIndex].ID, alias)
			if err := registry.Save(); err == nil {
				details = append(details, ui.KV{Key: "Registry", Value: "updated"})
			}
		}
	}

	out.PrintSuccess("Outlet renamed", details)
	return nil
}

// outletLabel names an outlet for result boxes: index plus alias when the
// outlet has one.
func outletLabel(info device.SysInfo, index int) string {
	children := info.Children()
	if index >= 0 && index < len(children) && children[index].Alias != "" {
		return fmt.Sprintf("%d (%s)", index, children[index].Alias)
	}
	return fmt.Sprintf("%d", index)
}
