package device

import (
	"context"
	"fmt"
	"time"
)

// Strip is a multi-socket power strip. It behaves like a plug for
// whole-strip operations and adds per-outlet addressing: each child
// outlet has a device-assigned identifier, carried in the dispatch
// context, and commands without that context apply to every outlet.
//
// Outlets are addressed by zero-based index in device order. Firmware
// revisions disagree on index conventions, so indices are resolved to
// child identifiers through one place and never sent raw.
type Strip struct {
	Plug
}

// NewStrip creates a handle for the power strip at host
func NewStrip(host string, opts ...Option) *Strip {
	return &Strip{Plug: *NewPlug(host, opts...)}
}

// Outlets returns the strip's child outlets in device order
func (s *Strip) Outlets(ctx context.Context) ([]ChildOutlet, error) {
	info, err := s.SysInfo(ctx)
	if err != nil {
		return nil, err
	}
	return info.Children(), nil
}

// OutletCount returns the number of child outlets
func (s *Strip) OutletCount(ctx context.Context) (int, error) {
	info, err := s.SysInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.ChildCount(), nil
}

// outletAt resolves a zero-based index to the child outlet, range-checked
func (s *Strip) outletAt(ctx context.Context, index int) (ChildOutlet, error) {
	outlets, err := s.Outlets(ctx)
	if err != nil {
		return ChildOutlet{}, err
	}
	if index < 0 || index >= len(outlets) {
		return ChildOutlet{}, NewValidationError("outlet",
			fmt.Sprintf("index %d is outside 0-%d", index, len(outlets)-1))
	}
	return outlets[index], nil
}

// IsOn reports whether any outlet is on
func (s *Strip) IsOn(ctx context.Context) (bool, error) {
	outlets, err := s.Outlets(ctx)
	if err != nil {
		return false, err
	}
	for _, outlet := range outlets {
		if outlet.IsOn() {
			return true, nil
		}
	}
	return false, nil
}

// IsOnAt reports whether the outlet at the given index is on
func (s *Strip) IsOnAt(ctx context.Context, index int) (bool, error) {
	outlet, err := s.outletAt(ctx, index)
	if err != nil {
		return false, err
	}
	return outlet.IsOn(), nil
}

// TurnOnAt closes the relay of the outlet at the given index
func (s *Strip) TurnOnAt(ctx context.Context, index int) error {
	return s.setRelayStateAt(ctx, index, 1)
}

// TurnOffAt opens the relay of the outlet at the given index
func (s *Strip) TurnOffAt(ctx context.Context, index int) error {
	return s.setRelayStateAt(ctx, index, 0)
}

func (s *Strip) setRelayStateAt(ctx context.Context, index, state int) error {
	outlet, err := s.outletAt(ctx, index)
	if err != nil {
		return err
	}
	_, err = s.disp.WithChildren(outlet.ID).Call(ctx, "system", "set_relay_state",
		map[string]any{"state": state})
	return err
}

// AliasAt returns the user-assigned name of the outlet at the given index
func (s *Strip) AliasAt(ctx context.Context, index int) (string, error) {
	outlet, err := s.outletAt(ctx, index)
	if err != nil {
		return "", err
	}
	return outlet.Alias, nil
}

// SetAliasAt renames the outlet at the given index
func (s *Strip) SetAliasAt(ctx context.Context, index int, alias string) error {
	outlet, err := s.outletAt(ctx, index)
	if err != nil {
		return err
	}
	_, err = s.disp.WithChildren(outlet.ID).Call(ctx, "system", "set_dev_alias",
		map[string]any{"alias": alias})
	return err
}

// OnSinceAt returns the moment the outlet at the given index was last
// switched on
func (s *Strip) OnSinceAt(ctx context.Context, index int) (time.Time, error) {
	outlet, err := s.outletAt(ctx, index)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(-outlet.OnTime), nil
}

// EmeterRealtimeAt returns the current energy readings of the outlet at
// the given index. Strips meter per outlet; there is no whole-strip
// realtime call.
func (s *Strip) EmeterRealtimeAt(ctx context.Context, index int) (EmeterReading, error) {
	if err := s.requireEmeter(ctx); err != nil {
		return EmeterReading{}, err
	}
	outlet, err := s.outletAt(ctx, index)
	if err != nil {
		return EmeterReading{}, err
	}
	reply, err := s.disp.WithChildren(outlet.ID).Call(ctx, s.emeterTarget, "get_realtime", nil)
	if err != nil {
		return EmeterReading{}, err
	}
	return newEmeterReading(reply), nil
}

// EmeterRealtimeAll returns the current energy readings of every outlet,
// keyed by outlet index. Readings are fetched one outlet at a time.
func (s *Strip) EmeterRealtimeAll(ctx context.Context) (map[int]EmeterReading, error) {
	if err := s.requireEmeter(ctx); err != nil {
		return nil, err
	}
	outlets, err := s.Outlets(ctx)
	if err != nil {
		return nil, err
	}
	readings := make(map[int]EmeterReading, len(outlets))
	for i, outlet := range outlets {
		reply, err := s.disp.WithChildren(outlet.ID).Call(ctx, s.emeterTarget, "get_realtime", nil)
		if err != nil {
			return nil, err
		}
		readings[i] = newEmeterReading(reply)
	}
	return readings, nil
}
