package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/config"
	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/discovery"
	"github.com/muurk/kasalink/internal/protocol"
	"github.com/muurk/kasalink/internal/ui"
	"github.com/muurk/kasalink/internal/wizard/tui"
)

// Command flags
var (
	deviceName   string        // --device: IP address or registry nickname
	devicePort   int           // --port
	queryTimeout time.Duration // --timeout: per-exchange timeout, doubles as the sweep window
	jsonOutput   bool          // --json
	saveScan     bool          // scan --save
	simTarget    string        // scan --sim-target
)

// out is the printer every command renders through
var out = ui.NewPrinter(nil)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceName, "device", "", "Device IP address or registry nickname")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", protocol.DefaultPort, "Device TCP/UDP port")
	rootCmd.PersistentFlags().DurationVar(&queryTimeout, "timeout", 0, "Query timeout, e.g. 3s or 500ms (0 uses the default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of styled output")

	// Add subcommands directly to root
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(sysinfoCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(rawCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover Kasa devices on the network",
	Long: `Discover Kasa devices with a UDP broadcast sweep.

Every device that answers is listed with its name, model, family and
address. Devices with an energy meter also report their current power
draw. With --save, sightings are recorded in the device registry so
devices can later be addressed by nickname or alias.`,
	Example: `  # Sweep the local network
  kasalink-ctl scan

  # Longer sweep for a slow network
  kasalink-ctl scan --timeout 10s

  # Record sightings in the registry
  kasalink-ctl scan --save

  # Sweep a simulator instead of broadcasting
  kasalink-ctl scan --sim-target 127.0.0.1 --port 9999`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&saveScan, "save", false, "Record discovered devices in the registry")
	scanCmd.Flags().StringVar(&simTarget, "sim-target", "", "Send the sweep to this address instead of broadcasting")
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	// A broken registry file never blocks a scan; saving would fail later
	// anyway and say why.
	registry, err := config.LoadRegistry()
	if err != nil {
		registry = config.NewRegistry()
	}

	window := scanWindow(registry)
	target := broadcastTarget(registry)

	if !jsonOutput {
		out.PrintHeader("Device Scan", "kasalink-ctl scan", []ui.KV{
			{Key: "Broadcast", Value: fmt.Sprintf("%s:%d", target, devicePort)},
			{Key: "Window", Value: window.String()},
		})
	}

	// The sweep stops on its own deadline; the context bound is backstop
	ctx, cancel := context.WithTimeout(context.Background(), window+2*time.Second)
	defer cancel()

	sweep := &discovery.Sweep{Port: devicePort, Timeout: window, Target: target}
	descriptors, err := sweep.Run(ctx)
	if err != nil {
		return reportFailure("Scan failed", err)
	}

	if jsonOutput {
		return printJSON(scanReport(descriptors))
	}

	nicknames := make(map[string]string)
	for id, entry := range registry.Devices {
		if entry.Nickname != "" {
			nicknames[id] = entry.Nickname
		}
	}
	out.Println(ui.RenderScanResults(descriptors, nicknames, out.Width()))

	if len(descriptors) == 0 {
		out.PrintNote("Devices only answer sweeps from their own subnet.")
		out.PrintNote("Use --device <addr> to talk to a device directly.")
		return nil
	}

	if saveScan {
		saved := 0
		for _, desc := range descriptors {
			if desc.DeviceID() == "" {
				continue
			}
			registry.RecordSighting(desc.DeviceID(), desc.Addr, desc.Alias(), desc.Model(), desc.Type().String())
			for i, child := range device.SysInfo(desc.SysInfo()).Children() {
				registry.SetOutletLabel(desc.DeviceID(), i, child.ID, child.Alias)
			}
			saved++
		}
		if err := registry.Save(); err != nil {
			return reportFailure("Registry update failed", err)
		}
		out.PrintNote(fmt.Sprintf("Recorded %d device(s) in the registry.", saved))
	}

	return nil
}

// stateCmd shows the live state of one device
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show device state",
	Long: `Show the live state of a device: identity, power state, and the
family-specific fields it reports (brightness, color, outlet states,
power draw).

This is also the default command when --device is set.`,
	Example: `  # Show state by address
  kasalink-ctl state --device 192.168.1.40

  # Registry nicknames work anywhere an address does
  kasalink-ctl --device porch-light

  # Raw JSON for scripting
  kasalink-ctl state --device 192.168.1.40 --json`,
	RunE: runState,
}

func runState(cmd *cobra.Command, args []string) error {
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

	if jsonOutput {
		return printJSON(map[string]any(info))
	}

	rows := stateRows(appliance, info, host)

	// Metered devices also report their live draw
	if has, err := appliance.HasEmeter(ctx); err == nil && has {
		if reading, err := appliance.EmeterRealtime(ctx); err == nil {
			rows = append(rows, ui.KV{Key: "Power draw", Value: fmt.Sprintf("%.1f W", reading.PowerW)})
		}
	}

	title := info.Alias()
	if title == "" {
		title = "Device State"
	}
	out.Println(ui.RenderStateInfo(title, rows, out.Width()))
	return nil
}

// sysinfoCmd dumps the raw sysinfo reply
var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Dump raw device sysinfo as JSON",
	Long: `Dump the device's complete sysinfo reply as JSON.

Unlike 'state', nothing is interpreted or reformatted; the output is the
reply as the device sent it. Useful for scripting and for inspecting
fields of unfamiliar models.`,
	Example: `  kasalink-ctl sysinfo --device 192.168.1.40
  kasalink-ctl sysinfo --device porch-light | jq .mac`,
	RunE: runSysinfo,
}

func runSysinfo(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}

	info, err := newDevice(host).SysInfo(context.Background())
	if err != nil {
		return reportFailure("Device query failed", err)
	}
	return printJSON(map[string]any(info))
}

// onCmd switches a device on
var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Switch a device on",
	Long: `Switch a device on.

Works on any family: plugs close their relay, bulbs start emitting, and
power strips switch every outlet. Use 'outlet on' to switch a single
strip outlet.`,
	Example: `  kasalink-ctl on --device 192.168.1.40
  kasalink-ctl on --device porch-light`,
	RunE: runOn,
}

func runOn(cmd *cobra.Command, args []string) error {
	return runSwitch(cmd, true)
}

// offCmd switches a device off
var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Switch a device off",
	Long: `Switch a device off.

Works on any family: plugs open their relay, bulbs stop emitting, and
power strips switch every outlet. Use 'outlet off' to switch a single
strip outlet.`,
	Example: `  kasalink-ctl off --device 192.168.1.40
  kasalink-ctl off --device porch-light`,
	RunE: runOff,
}

func runOff(cmd *cobra.Command, args []string) error {
	return runSwitch(cmd, false)
}

func runSwitch(cmd *cobra.Command, on bool) error {
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

	action, title := appliance.TurnOn, "Switched on"
	if !on {
		action, title = appliance.TurnOff, "Switched off"
	}
	if err := action(ctx); err != nil {
		return reportFailure("Switch failed", err)
	}

	out.PrintSuccess(title, []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "State", Value: ui.OnOffBadge(on)},
	})
	return nil
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive device wizard",
	Long: `Launch an interactive TUI that discovers devices and controls them
live: switching, brightness, and per-outlet control for strips.

This is the default when kasalink-ctl runs without arguments.`,
	Example: `  # Launch the wizard
  kasalink-ctl wizard
  # Or simply (wizard is default):
  kasalink-ctl

  # Wizard against a simulator
  kasalink-ctl wizard --port 9999`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	opts := tui.Options{Port: devicePort, Timeout: queryTimeout}
	if registry, err := config.LoadRegistry(); err == nil {
		opts.Target = broadcastTarget(registry)
		if opts.Timeout == 0 {
			opts.Timeout = scanWindow(registry)
		}
	}

	if err := tui.Run(opts); err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	return nil
}

// rawCmd sends an arbitrary protocol command
var rawCmd = &cobra.Command{
	Use:   "raw <target> <command> [json-args]",
	Short: "Send a raw protocol command",
	Long: `Send an arbitrary command to a device and print the reply as JSON.

The target is the firmware module the command belongs to, e.g. "system"
or "smartlife.iot.smartbulb.lightingservice"; the command is the
operation inside it. Arguments, when the command takes any, are given as
a JSON object.

This escape hatch reaches operations the named commands do not cover.
The reply is printed verbatim, so mind what you send.`,
	Example: `  # Equivalent of 'sysinfo'
  kasalink-ctl raw system get_sysinfo --device 192.168.1.40

  # Relay control with explicit arguments
  kasalink-ctl raw system set_relay_state '{"state":1}' --device 192.168.1.40

  # Cloud binding status
  kasalink-ctl raw cnCloud get_info --device 192.168.1.40`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runRaw,
}

func runRaw(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	host, err := resolveHost()
	if err != nil {
		return err
	}

	var cmdArgs any
	if len(args) == 3 {
		if err := json.Unmarshal([]byte(args[2]), &cmdArgs); err != nil {
			return fmt.Errorf("invalid JSON arguments: %w", err)
		}
	}

	// The reply bytes go out untouched: err_code and the envelope stay
	// visible, unlike the named commands which unwrap them.
	request := map[string]any{args[0]: map[string]any{args[1]: cmdArgs}}
	client := &protocol.Client{Port: devicePort, Timeout: queryTimeout}
	reply, err := client.QueryRaw(context.Background(), host, request)
	if err != nil {
		return reportFailure("Command failed", err)
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, reply, "", "  "); err != nil {
		fmt.Println(string(reply))
		return nil
	}
	fmt.Println(indented.String())
	return nil
}

// resolveHost turns the --device flag into a dialable host. Literal IP
// addresses pass through; anything else is looked up in the registry as a
// nickname or device alias, then falls back to plain hostname resolution.
func resolveHost() (string, error) {
	if deviceName == "" {
		return "", fmt.Errorf("no device specified: use --device <addr|name> or run 'kasalink-ctl scan'")
	}
	if net.ParseIP(deviceName) != nil {
		return deviceName, nil
	}
	if registry, err := config.LoadRegistry(); err == nil {
		if addr, ok := registry.ResolveNickname(deviceName); ok {
			return addr, nil
		}
	}
	return deviceName, nil
}

// deviceOptions are the construction options every command shares
func deviceOptions() []device.Option {
	opts := []device.Option{device.WithPort(devicePort)}
	if queryTimeout > 0 {
		opts = append(opts, device.WithTimeout(queryTimeout))
	}
	return opts
}

// newDevice creates a family-agnostic handle for the resolved host
func newDevice(host string) *device.Device {
	return device.New(host, deviceOptions()...)
}

// connectAppliance probes the device once and constructs the handle for
// its family, so commands dispatch to the firmware namespaces that family
// actually answers (bulbs keep their meter and schedule under different
// targets than plugs).
func connectAppliance(ctx context.Context, host string) (device.Appliance, device.SysInfo, error) {
	info, err := newDevice(host).SysInfo(ctx)
	if err != nil {
		return nil, nil, err
	}

	desc := discovery.Descriptor{
		Addr: host,
		Port: devicePort,
		Info: map[string]any{
			"system": map[string]any{"get_sysinfo": map[string]any(info)},
		},
	}
	appliance, err := device.FromDescriptor(desc, deviceOptions()...)
	if err != nil {
		return nil, nil, err
	}
	return appliance, info, nil
}

// reportFailure renders the failure box and passes the error through for
// the exit status
func reportFailure(title string, err error) error {
	out.PrintFailure(title, errors.New(device.GetShortErrorMessage(err)), device.TroubleshootingTips(err))
	return err
}

// printJSON renders v as indented JSON, the stable output for --json and
// the JSON-only commands
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// hostAddress formats host:port for display
func hostAddress(host string) string {
	return fmt.Sprintf("%s:%d", host, devicePort)
}

// displayName names a device in result boxes: its alias when it has one,
// its address otherwise.
func displayName(info device.SysInfo, host string) string {
	if alias := info.Alias(); alias != "" {
		return alias
	}
	return hostAddress(host)
}

// familyName returns the display label for an appliance's family
func familyName(appliance device.Appliance) string {
	switch appliance.(type) {
	case *device.Strip:
		return config.DeviceTypeLabels["strip"]
	case *device.Bulb:
		return config.DeviceTypeLabels["bulb"]
	case *device.Plug:
		return config.DeviceTypeLabels["plug"]
	default:
		return config.DeviceTypeLabels["unknown"]
	}
}

// scanWindow returns the sweep collection window: --timeout when set,
// then the registry preference, then the discovery default.
func scanWindow(registry *config.Registry) time.Duration {
	if queryTimeout > 0 {
		return queryTimeout
	}
	if registry != nil && registry.Preferences != nil && registry.Preferences.ScanTimeout > 0 {
		return time.Duration(registry.Preferences.ScanTimeout) * time.Second
	}
	return discovery.DefaultSweepTimeout
}

// broadcastTarget returns the sweep destination: --sim-target when set,
// then the registry preference, then the limited broadcast address.
func broadcastTarget(registry *config.Registry) string {
	if simTarget != "" {
		return simTarget
	}
	if registry != nil && registry.Preferences != nil && registry.Preferences.BroadcastAddr != "" {
		return registry.Preferences.BroadcastAddr
	}
	return discovery.DefaultTarget
}

// scanReport projects descriptors into the JSON scan output
func scanReport(descriptors []discovery.Descriptor) []map[string]any {
	report := make([]map[string]any, 0, len(descriptors))
	for _, desc := range descriptors {
		report = append(report, map[string]any{
			"addr":    desc.Addr,
			"port":    desc.Port,
			"id":      desc.DeviceID(),
			"alias":   desc.Alias(),
			"model":   desc.Model(),
			"type":    desc.Type().String(),
			"sysinfo": desc.SysInfo(),
		})
	}
	return report
}

// stateRows assembles the state panel: identity first, then whatever live
// state this family reports.
func stateRows(appliance device.Appliance, info device.SysInfo, host string) []ui.KV {
	var rows []ui.KV

	if on, known := info.PowerState(); known {
		rows = append(rows, ui.KV{Key: "Power", Value: ui.OnOffBadge(on)})
	}
	rows = append(rows,
		ui.KV{Key: "Model", Value: fmt.Sprintf("%s (%s)", info.Model(), familyName(appliance))},
		ui.KV{Key: "Address", Value: hostAddress(host)},
	)
	if mac := info.MAC(); mac != "" {
		rows = append(rows, ui.KV{Key: "MAC", Value: mac})
	}
	if id := info.DeviceID(); id != "" {
		rows = append(rows, ui.KV{Key: "Device ID", Value: id})
	}
	if fw := info.SoftwareVersion(); fw != "" {
		rows = append(rows, ui.KV{Key: "Firmware", Value: fw})
	}

	// Light values: dimmer plugs report brightness at the top level, bulbs
	// inside light_state (or its dft_on_state while off).
	light := lightValues(info)
	if level, ok := info.Brightness(); ok {
		rows = append(rows, ui.KV{Key: "Brightness", Value: fmt.Sprintf("%d%%", level)})
	} else if v, ok := lightNumber(light, "brightness"); ok {
		rows = append(rows, ui.KV{Key: "Brightness", Value: fmt.Sprintf("%.0f%%", v)})
	}
	if info.IsVariableColorTemp() {
		if v, ok := lightNumber(light, "color_temp"); ok && v > 0 {
			rows = append(rows, ui.KV{Key: "Color temp", Value: fmt.Sprintf("%.0f K", v)})
		}
	}
	if info.IsColor() {
		hue, hueOK := lightNumber(light, "hue")
		sat, satOK := lightNumber(light, "saturation")
		if hueOK && satOK {
			rows = append(rows, ui.KV{Key: "Color", Value: fmt.Sprintf("hue %.0f, sat %.0f%%", hue, sat)})
		}
	}

	if _, ok := info["led_off"]; ok {
		rows = append(rows, ui.KV{Key: "Status LED", Value: ui.OnOffBadge(!info.LEDOff())})
	}
	if onTime, ok := info.OnTime(); ok && onTime > 0 {
		rows = append(rows, ui.KV{Key: "On for", Value: onTime.String()})
	}
	if rssi, ok := info.RSSI(); ok {
		rows = append(rows, ui.KV{Key: "Signal", Value: fmt.Sprintf("%d dBm", rssi)})
	}

	for i, child := range info.Children() {
		label := child.Alias
		if label == "" {
			label = "(unnamed)"
		}
		rows = append(rows, ui.KV{
			Key:   fmt.Sprintf("Outlet %d", i),
			Value: fmt.Sprintf("%s %s", ui.OnOffBadge(child.IsOn()), label),
		})
	}

	return rows
}

// lightValues returns the value-carrying half of a sysinfo light_state:
// the state itself while the bulb is on, dft_on_state while off.
func lightValues(info device.SysInfo) map[string]any {
	state := info.LightState()
	if state == nil {
		return nil
	}
	if on, ok := state["on_off"].(float64); ok && on != 0 {
		return state
	}
	if dft, ok := state["dft_on_state"].(map[string]any); ok {
		return dft
	}
	return state
}

// lightNumber reads one numeric field out of a light_state block
func lightNumber(state map[string]any, field string) (float64, bool) {
	if state == nil {
		return 0, false
	}
	v, ok := state[field].(float64)
	return v, ok
}
