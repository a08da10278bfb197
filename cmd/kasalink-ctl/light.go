package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/device"
	"github.com/muurk/kasalink/internal/ui"
)

func init() {
	rootCmd.AddCommand(brightnessCmd)
	rootCmd.AddCommand(temperatureCmd)
	rootCmd.AddCommand(hsvCmd)
}

// dimmer is the brightness behaviour bulbs and dimmer plugs share
type dimmer interface {
	Brightness(ctx context.Context) (int, error)
	SetBrightness(ctx context.Context, percent int) error
}

// dimmerFor returns the appliance's dimmer. The switch is exact on
// purpose: power strips promote the plug dimmer methods but have no
// dimmer hardware, and must be rejected before any relay side effect.
func dimmerFor(appliance device.Appliance) (dimmer, error) {
	switch a := appliance.(type) {
	case *device.Bulb:
		return a, nil
	case *device.Plug:
		return a, nil
	default:
		return nil, device.NewUnsupportedError("brightness",
			fmt.Sprintf("%s has no dimmer", familyName(appliance)))
	}
}

// brightnessCmd shows or sets the brightness
var brightnessCmd = &cobra.Command{
	Use:   "brightness [percent]",
	Short: "Show or set brightness",
	Long: `Show the brightness of a bulb or dimmer plug, or set it when a
percentage is given.

While a bulb is off, the value shown is the brightness it will restore
when switched on. Setting brightness on a dimmer plug switches it on
first; the firmware rejects dimming an open relay.`,
	Example: `  # Show the current level
  kasalink-ctl brightness --device 192.168.1.40

  # Set to 75%
  kasalink-ctl brightness 75 --device living-room`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrightness,
}

func runBrightness(cmd *cobra.Command, args []string) error {
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

	dim, err := dimmerFor(appliance)
	if err != nil {
		return reportFailure("Brightness control failed", err)
	}

	if len(args) == 0 {
		level, err := dim.Brightness(ctx)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"brightness": level})
		}
		out.PrintPanel("Brightness", []ui.KV{
			{Key: "Device", Value: displayName(info, host)},
			{Key: "Level", Value: fmt.Sprintf("%d%%", level)},
		})
		return nil
	}

	level, err := parseIntArg("brightness", args[0])
	if err != nil {
		return err
	}
	if err := dim.SetBrightness(ctx, level); err != nil {
		return reportFailure("Brightness control failed", err)
	}

	out.PrintSuccess("Brightness set", []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "Level", Value: fmt.Sprintf("%d%%", level)},
	})
	return nil
}

// temperatureCmd shows or sets the white color temperature
var temperatureCmd = &cobra.Command{
	Use:   "temperature [kelvin]",
	Short: "Show or set bulb color temperature",
	Long: `Show a bulb's white color temperature and the range its model
accepts, or set it when a Kelvin value is given.

Only variable-temperature bulbs support this; the accepted range differs
per model (2700-6500K for most, 2500-9000K for full-color models).`,
	Example: `  # Show temperature and model range
  kasalink-ctl temperature --device 192.168.1.50

  # Warm evening light
  kasalink-ctl temperature 2700 --device living-room`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemperature,
}

func runTemperature(cmd *cobra.Command, args []string) error {
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

	bulb, ok := appliance.(*device.Bulb)
	if !ok {
		err := device.NewUnsupportedError("color_temp",
			fmt.Sprintf("%s has no color temperature control", familyName(appliance)))
		return reportFailure("Temperature control failed", err)
	}

	if len(args) == 0 {
		kelvin, err := bulb.ColorTemp(ctx)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		low, high, err := bulb.ValidColorTempRange(ctx)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"color_temp": kelvin, "range": []int{low, high}})
		}
		out.PrintPanel("Color Temperature", []ui.KV{
			{Key: "Device", Value: displayName(info, host)},
			{Key: "Temperature", Value: fmt.Sprintf("%d K", kelvin)},
			{Key: "Range", Value: fmt.Sprintf("%d-%d K", low, high)},
		})
		return nil
	}

	kelvin, err := parseIntArg("temperature", args[0])
	if err != nil {
		return err
	}
	if err := bulb.SetColorTemp(ctx, kelvin); err != nil {
		return reportFailure("Temperature control failed", err)
	}

	out.PrintSuccess("Color temperature set", []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "Temperature", Value: fmt.Sprintf("%d K", kelvin)},
	})
	return nil
}

// hsvCmd shows or sets the bulb color
var hsvCmd = &cobra.Command{
	Use:   "hsv [hue saturation value]",
	Short: "Show or set bulb color",
	Long: `Show a color bulb's HSV state, or set it when all three components
are given: hue 0-360, saturation 0-100, value 0-255.

Setting a color leaves white-light mode; use 'temperature' to return to
it.`,
	Example: `  # Show the current color
  kasalink-ctl hsv --device 192.168.1.50

  # Saturated green at full brightness
  kasalink-ctl hsv 120 100 255 --device living-room`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 3 {
			return fmt.Errorf("accepts no arguments (show) or exactly three (set), received %d", len(args))
		}
		return nil
	},
	RunE: runHSV,
}

func runHSV(cmd *cobra.Command, args []string) error {
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

	bulb, ok := appliance.(*device.Bulb)
	if !ok {
		err := device.NewUnsupportedError("hsv",
			fmt.Sprintf("%s has no color control", familyName(appliance)))
		return reportFailure("Color control failed", err)
	}

	if len(args) == 0 {
		hue, saturation, value, err := bulb.HSV(ctx)
		if err != nil {
			return reportFailure("Device query failed", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"hue": hue, "saturation": saturation, "value": value})
		}
		out.PrintPanel("Color", []ui.KV{
			{Key: "Device", Value: displayName(info, host)},
			{Key: "Hue", Value: fmt.Sprintf("%d", hue)},
			{Key: "Saturation", Value: fmt.Sprintf("%d%%", saturation)},
			{Key: "Value", Value: fmt.Sprintf("%d", value)},
		})
		return nil
	}

	hue, err := parseIntArg("hue", args[0])
	if err != nil {
		return err
	}
	saturation, err := parseIntArg("saturation", args[1])
	if err != nil {
		return err
	}
	value, err := parseIntArg("value", args[2])
	if err != nil {
		return err
	}

	if err := bulb.SetHSV(ctx, hue, saturation, value); err != nil {
		return reportFailure("Color control failed", err)
	}

	out.PrintSuccess("Color set", []ui.KV{
		{Key: "Device", Value: displayName(info, host)},
		{Key: "HSV", Value: fmt.Sprintf("%d / %d%% / %d", hue, saturation, value)},
	})
	return nil
}

// parseIntArg parses a numeric positional argument; range validation is
// the device layer's job.
func parseIntArg(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q (expected a number)", name, raw)
	}
	return v, nil
}
