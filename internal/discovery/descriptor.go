package discovery

import (
	"fmt"
	"strings"
	"time"
)

// DeviceType classifies what family a discovered device belongs to
type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypePlug
	TypeBulb
	TypeStrip
)

// String returns a human-readable name for the device type
func (t DeviceType) String() string {
	switch t {
	case TypePlug:
		return "plug"
	case TypeBulb:
		return "bulb"
	case TypeStrip:
		return "strip"
	default:
		return "unknown"
	}
}

// Descriptor represents one device that answered a discovery sweep
type Descriptor struct {
	// Addr is the IPv4 address the reply came from
	Addr string

	// Port is the port the device listens on (9999 unless the sweep was
	// pointed elsewhere)
	Port int

	// Info is the parsed discovery reply. The sweep query asks for both
	// sysinfo and emeter realtime, so both blocks can be present.
	Info map[string]any

	// DiscoveredAt is when the reply arrived
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the descriptor
func (d Descriptor) String() string {
	return fmt.Sprintf("Kasa %s %q (%s) at %s:%d", d.Type(), d.Alias(), d.Model(), d.Addr, d.Port)
}

// SysInfo projects the system.get_sysinfo block out of the discovery reply.
// Returns nil when the reply did not include one.
func (d Descriptor) SysInfo() map[string]any {
	system, ok := d.Info["system"].(map[string]any)
	if !ok {
		return nil
	}
	info, ok := system["get_sysinfo"].(map[string]any)
	if !ok {
		return nil
	}
	return info
}

// EmeterRealtime projects the emeter half of the discovery reply. Returns
// nil when the device has no energy meter (those answer the emeter section
// with a nonzero err_code).
func (d Descriptor) EmeterRealtime() map[string]any {
	emeter, ok := d.Info["emeter"].(map[string]any)
	if !ok {
		return nil
	}
	realtime, ok := emeter["get_realtime"].(map[string]any)
	if !ok {
		return nil
	}
	if code, ok := realtime["err_code"].(float64); ok && code != 0 {
		return nil
	}
	return realtime
}

// DeviceType returns the firmware's raw self-classification string, read
// from "type" with "mic_type" as the fallback bulbs use
func (d Descriptor) DeviceType() string {
	info := d.SysInfo()
	if info == nil {
		return ""
	}
	kind, _ := info["type"].(string)
	if kind == "" {
		kind, _ = info["mic_type"].(string)
	}
	return kind
}

// Type classifies the device family from the discovery sysinfo block
func (d Descriptor) Type() DeviceType {
	info := d.SysInfo()
	if info == nil {
		return TypeUnknown
	}

	kind := strings.ToLower(d.DeviceType())

	switch {
	case strings.Contains(kind, "smartplug"):
		if _, ok := info["children"]; ok {
			return TypeStrip
		}
		return TypePlug
	case strings.Contains(kind, "smartbulb"):
		return TypeBulb
	default:
		return TypeUnknown
	}
}

// Alias returns the device's configured name, or empty string
func (d Descriptor) Alias() string {
	alias, _ := d.SysInfo()["alias"].(string)
	return alias
}

// Model returns the hardware model string, or empty string
func (d Descriptor) Model() string {
	model, _ := d.SysInfo()["model"].(string)
	return model
}

// DeviceID returns the device's unique identifier, or empty string
func (d Descriptor) DeviceID() string {
	id, _ := d.SysInfo()["deviceId"].(string)
	return id
}

// MAC returns the hardware address as reported, or empty string. Bulbs
// report it under mic_mac instead of mac.
func (d Descriptor) MAC() string {
	if mac, ok := d.SysInfo()["mac"].(string); ok {
		return mac
	}
	mac, _ := d.SysInfo()["mic_mac"].(string)
	return mac
}

// HasEmeter reports whether the device answered the emeter half of the
// discovery query
func (d Descriptor) HasEmeter() bool {
	return d.EmeterRealtime() != nil
}
