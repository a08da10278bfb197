package device

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/muurk/kasalink/internal/protocol"
)

// lightTarget is the namespace bulbs answer light-state commands on
const lightTarget = "smartlife.iot.smartbulb.lightingservice"

// Color temperature gamut in Kelvin. Full-color models span a wider range
// than tunable-white models; anything unrecognized gets the conservative
// default.
const (
	defaultColorTempLow  = 2700
	defaultColorTempHigh = 6500
	wideColorTempLow     = 2500
	wideColorTempHigh    = 9000
)

// wideGamutModels are the model families spanning 2500-9000K
var wideGamutModels = []string{"LB130", "LB230", "KB130", "KL130"}

// Bulb is a smart light bulb. Light state lives under its own protocol
// target rather than system, and splits in two depending on power: when
// the bulb is off, the values it will restore on power-up nest under
// dft_on_state. Capabilities (dimming, color, variable color temperature)
// vary per model and gate the corresponding operations.
type Bulb struct {
	Device
}

// NewBulb creates a handle for the bulb at host
func NewBulb(host string, opts ...Option) *Bulb {
	dev := New(host, opts...)
	dev.emeterTarget = emeterTargetBulb
	dev.emeterAssumed = true
	return &Bulb{Device: *dev}
}

// LightState returns the raw light state as reported by the bulb
func (b *Bulb) LightState(ctx context.Context) (map[string]any, error) {
	return b.disp.Call(ctx, lightTarget, "get_light_state", nil)
}

// setLightState transitions the light toward the given partial state.
// Omitted fields keep their current values.
func (b *Bulb) setLightState(ctx context.Context, state map[string]any) error {
	_, err := b.disp.Call(ctx, lightTarget, "transition_light_state", state)
	return err
}

// effectiveValues returns the sub-object holding the bulb's light values:
// the state itself while on, dft_on_state while off.
func (b *Bulb) effectiveValues(ctx context.Context) (map[string]any, error) {
	state, err := b.LightState(ctx)
	if err != nil {
		return nil, err
	}
	if flagVal(state["on_off"]) {
		return state, nil
	}
	dft, ok := state["dft_on_state"].(map[string]any)
	if !ok {
		return nil, &protocol.ProtocolError{
			Addr:   b.Host(),
			Reason: "light state reply has no dft_on_state while off",
		}
	}
	return dft, nil
}

// IsOn reports whether the bulb is emitting light
func (b *Bulb) IsOn(ctx context.Context) (bool, error) {
	state, err := b.LightState(ctx)
	if err != nil {
		return false, err
	}
	return flagVal(state["on_off"]), nil
}

// TurnOn switches the bulb on
func (b *Bulb) TurnOn(ctx context.Context) error {
	return b.setLightState(ctx, map[string]any{"on_off": 1})
}

// TurnOff switches the bulb off
func (b *Bulb) TurnOff(ctx context.Context) error {
	return b.setLightState(ctx, map[string]any{"on_off": 0})
}

// IsDimmable reports whether the bulb supports brightness control
func (b *Bulb) IsDimmable(ctx context.Context) (bool, error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsDimmable(), nil
}

// IsColor reports whether the bulb supports color control
func (b *Bulb) IsColor(ctx context.Context) (bool, error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsColor(), nil
}

// IsVariableColorTemp reports whether the bulb supports color temperature
// control
func (b *Bulb) IsVariableColorTemp(ctx context.Context) (bool, error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsVariableColorTemp(), nil
}

// Brightness returns the brightness in percent. While the bulb is off,
// this is the brightness it will restore when switched on.
func (b *Bulb) Brightness(ctx context.Context) (int, error) {
	dimmable, err := b.IsDimmable(ctx)
	if err != nil {
		return 0, err
	}
	if !dimmable {
		return 0, NewUnsupportedError("brightness", "bulb is not dimmable")
	}
	values, err := b.effectiveValues(ctx)
	if err != nil {
		return 0, err
	}
	level, _ := numberVal(values["brightness"])
	return int(level), nil
}

// SetBrightness sets the brightness in percent (0-100)
func (b *Bulb) SetBrightness(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return NewValidationError("brightness", fmt.Sprintf("%d is outside 0-100", percent))
	}
	dimmable, err := b.IsDimmable(ctx)
	if err != nil {
		return err
	}
	if !dimmable {
		return NewUnsupportedError("set_brightness", "bulb is not dimmable")
	}
	return b.setLightState(ctx, map[string]any{"brightness": percent})
}

// HSV returns the current color as hue (0-360), saturation (0-100) and
// value (0-255). The device stores value as percent brightness; it is
// rescaled to the 0-255 convention here.
func (b *Bulb) HSV(ctx context.Context) (hue, saturation, value int, err error) {
	color, err := b.IsColor(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	if !color {
		return 0, 0, 0, NewUnsupportedError("hsv", "bulb has no color support")
	}
	values, err := b.effectiveValues(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	h, _ := numberVal(values["hue"])
	s, _ := numberVal(values["saturation"])
	brightness, _ := numberVal(values["brightness"])
	return int(h), int(s), int(math.Round(brightness * 255 / 100)), nil
}

// SetHSV sets the color from hue (0-360), saturation (0-100) and value
// (0-255). Sending color_temp 0 alongside tells the firmware to leave
// white-light mode.
func (b *Bulb) SetHSV(ctx context.Context, hue, saturation, value int) error {
	if hue < 0 || hue > 360 {
		return NewValidationError("hue", fmt.Sprintf("%d is outside 0-360", hue))
	}
	if saturation < 0 || saturation > 100 {
		return NewValidationError("saturation", fmt.Sprintf("%d is outside 0-100", saturation))
	}
	if value < 0 || value > 255 {
		return NewValidationError("value", fmt.Sprintf("%d is outside 0-255", value))
	}
	color, err := b.IsColor(ctx)
	if err != nil {
		return err
	}
	if !color {
		return NewUnsupportedError("set_hsv", "bulb has no color support")
	}
	return b.setLightState(ctx, map[string]any{
		"hue":        hue,
		"saturation": saturation,
		"brightness": int(math.Round(float64(value) * 100 / 255)),
		"color_temp": 0,
	})
}

// ColorTemp returns the color temperature in Kelvin. While the bulb is
// off, this is the temperature it will restore when switched on.
func (b *Bulb) ColorTemp(ctx context.Context) (int, error) {
	variable, err := b.IsVariableColorTemp(ctx)
	if err != nil {
		return 0, err
	}
	if !variable {
		return 0, NewUnsupportedError("color_temp", "bulb has fixed color temperature")
	}
	values, err := b.effectiveValues(ctx)
	if err != nil {
		return 0, err
	}
	kelvin, _ := numberVal(values["color_temp"])
	return int(kelvin), nil
}

// ValidColorTempRange returns the Kelvin gamut this bulb model accepts
func (b *Bulb) ValidColorTempRange(ctx context.Context) (low, high int, err error) {
	info, err := b.SysInfo(ctx)
	if err != nil {
		return 0, 0, err
	}
	if !info.IsVariableColorTemp() {
		return 0, 0, NewUnsupportedError("color_temp", "bulb has fixed color temperature")
	}
	low, high = colorTempGamut(info.Model())
	return low, high, nil
}

// colorTempGamut returns the Kelvin range for a model string
func colorTempGamut(model string) (low, high int) {
	for _, family := range wideGamutModels {
		if strings.Contains(model, family) {
			return wideColorTempLow, wideColorTempHigh
		}
	}
	return defaultColorTempLow, defaultColorTempHigh
}

// SetColorTemp sets the color temperature in Kelvin, validated against the
// model's gamut.
func (b *Bulb) SetColorTemp(ctx context.Context, kelvin int) error {
	low, high, err := b.ValidColorTempRange(ctx)
	if err != nil {
		return err
	}
	if kelvin < low || kelvin > high {
		return NewValidationError("color_temp",
			fmt.Sprintf("%dK is outside this model's %d-%dK range", kelvin, low, high))
	}
	return b.setLightState(ctx, map[string]any{"color_temp": kelvin})
}
