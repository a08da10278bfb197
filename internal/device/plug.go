package device

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/kasalink/internal/protocol"
)

// dimmerTarget is the namespace wall dimmers answer brightness commands on
const dimmerTarget = "smartlife.iot.dimmer"

// Plug is a smart plug or wall switch: a single relay, a status LED, and
// on metered models an energy meter. Dimmer models add brightness control.
type Plug struct {
	Device
}

// NewPlug creates a handle for the plug at host
func NewPlug(host string, opts ...Option) *Plug {
	return &Plug{Device: *New(host, opts...)}
}

// IsOn reports whether the relay is closed
func (p *Plug) IsOn(ctx context.Context) (bool, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	state, ok := info.RelayState()
	if !ok {
		return false, &protocol.ProtocolError{
			Addr:   p.Host(),
			Reason: "sysinfo reply has no relay_state",
		}
	}
	return state != 0, nil
}

// TurnOn closes the relay
func (p *Plug) TurnOn(ctx context.Context) error {
	return p.setRelayState(ctx, 1)
}

// TurnOff opens the relay
func (p *Plug) TurnOff(ctx context.Context) error {
	return p.setRelayState(ctx, 0)
}

func (p *Plug) setRelayState(ctx context.Context, state int) error {
	_, err := p.disp.Call(ctx, "system", "set_relay_state", map[string]any{"state": state})
	return err
}

// LED reports whether the status LED is enabled
func (p *Plug) LED(ctx context.Context) (bool, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return !info.LEDOff(), nil
}

// SetLED enables or disables the status LED. The wire field has inverted
// polarity: "led on" is sent as off=0.
func (p *Plug) SetLED(ctx context.Context, on bool) error {
	off := 1
	if on {
		off = 0
	}
	_, err := p.disp.Call(ctx, "system", "set_led_off", map[string]any{"off": off})
	return err
}

// OnSince returns the moment the relay was last switched on, derived from
// the device's on_time counter.
func (p *Plug) OnSince(ctx context.Context) (time.Time, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return time.Time{}, err
	}
	onTime, ok := info.OnTime()
	if !ok {
		return time.Time{}, &protocol.ProtocolError{
			Addr:   p.Host(),
			Reason: "sysinfo reply has no on_time",
		}
	}
	return time.Now().Add(-onTime), nil
}

// IsDimmable reports whether this plug is a dimmer model
func (p *Plug) IsDimmable(ctx context.Context) (bool, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsDimmable(), nil
}

// Brightness returns the dimmer level in percent
func (p *Plug) Brightness(ctx context.Context) (int, error) {
	info, err := p.SysInfo(ctx)
	if err != nil {
		return 0, err
	}
	level, ok := info.Brightness()
	if !ok {
		return 0, NewUnsupportedError("brightness", "plug is not dimmable")
	}
	return level, nil
}

// SetBrightness sets the dimmer level in percent (1-100). Dimmer firmware
// only applies the level while switched on, so the relay is closed first.
func (p *Plug) SetBrightness(ctx context.Context, percent int) error {
	if percent <= 0 || percent > 100 {
		return NewValidationError("brightness", fmt.Sprintf("%d is outside 1-100", percent))
	}
	dimmable, err := p.IsDimmable(ctx)
	if err != nil {
		return err
	}
	if !dimmable {
		return NewUnsupportedError("set_brightness", "plug is not dimmable")
	}
	if err := p.TurnOn(ctx); err != nil {
		return err
	}
	_, err = p.disp.Call(ctx, dimmerTarget, "set_brightness", map[string]any{"brightness": percent})
	return err
}
