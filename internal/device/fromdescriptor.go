package device

import (
	"fmt"

	"github.com/muurk/kasalink/internal/discovery"
)

// Compile-time checks that every family satisfies Appliance.
var (
	_ Appliance = (*Plug)(nil)
	_ Appliance = (*Bulb)(nil)
	_ Appliance = (*Strip)(nil)
)

// FromDescriptor constructs the right device family for a discovered
// device. The descriptor's port is used unless the options override it.
func FromDescriptor(desc discovery.Descriptor, opts ...Option) (Appliance, error) {
	combined := make([]Option, 0, len(opts)+1)
	if desc.Port > 0 {
		combined = append(combined, WithPort(desc.Port))
	}
	combined = append(combined, opts...)

	switch desc.Type() {
	case discovery.TypePlug:
		return NewPlug(desc.Addr, combined...), nil
	case discovery.TypeStrip:
		return NewStrip(desc.Addr, combined...), nil
	case discovery.TypeBulb:
		return NewBulb(desc.Addr, combined...), nil
	default:
		return nil, fmt.Errorf("device %s: unrecognized type %q", desc.Addr, desc.DeviceType())
	}
}
