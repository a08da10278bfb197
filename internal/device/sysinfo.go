package device

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/kasalink/internal/logging"
)

// SysInfo is the decoded result of system.get_sysinfo. The raw map is
// preserved as-is; the methods project the fields shared across device
// generations, papering over the key renames between them (type vs
// mic_type, mac vs mic_mac, latitude vs latitude_i).
type SysInfo map[string]any

// Feature tokens devices advertise in the colon-delimited feature string.
const (
	// FeatureTimer marks countdown timer support
	FeatureTimer = "TIM"
	// FeatureEmeter marks energy meter support
	FeatureEmeter = "ENE"
)

var knownFeatures = map[string]struct{}{
	FeatureTimer:  {},
	FeatureEmeter: {},
}

// Alias returns the user-assigned device name
func (s SysInfo) Alias() string {
	return stringVal(s["alias"])
}

// Model returns the hardware model string, e.g. "HS110(EU)"
func (s SysInfo) Model() string {
	return stringVal(s["model"])
}

// DeviceID returns the unique device identifier
func (s SysInfo) DeviceID() string {
	return stringVal(s["deviceId"])
}

// SoftwareVersion returns the firmware version string
func (s SysInfo) SoftwareVersion() string {
	return stringVal(s["sw_ver"])
}

// HardwareVersion returns the hardware revision string
func (s SysInfo) HardwareVersion() string {
	return stringVal(s["hw_ver"])
}

// DeviceType returns the firmware's self-classification, read from "type"
// with "mic_type" as the fallback used by bulbs and newer plugs.
func (s SysInfo) DeviceType() string {
	if t := stringVal(s["type"]); t != "" {
		return t
	}
	return stringVal(s["mic_type"])
}

// MAC returns the device MAC address in colon-separated form. Plugs report
// it ready-made under "mac"; bulbs report bare hex under "mic_mac", which
// is normalized here.
func (s SysInfo) MAC() string {
	if mac := stringVal(s["mac"]); mac != "" {
		return mac
	}
	raw := stringVal(s["mic_mac"])
	if raw == "" {
		return ""
	}
	octets, err := hex.DecodeString(raw)
	if err != nil {
		return raw
	}
	parts := make([]string, len(octets))
	for i, b := range octets {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// RSSI returns the WiFi signal strength in dBm, if reported
func (s SysInfo) RSSI() (int, bool) {
	v, ok := numberVal(s["rssi"])
	return int(v), ok
}

// LEDOff reports whether the status LED is disabled
func (s SysInfo) LEDOff() bool {
	return flagVal(s["led_off"])
}

// RelayState returns the relay field, if present
func (s SysInfo) RelayState() (int, bool) {
	v, ok := numberVal(s["relay_state"])
	return int(v), ok
}

// OnTime returns how long the relay has been on, if reported
func (s SysInfo) OnTime() (time.Duration, bool) {
	v, ok := numberVal(s["on_time"])
	return time.Duration(v) * time.Second, ok
}

// Brightness returns the dimmer level in percent, if present. Only
// dimmer-capable plugs report this field.
func (s SysInfo) Brightness() (int, bool) {
	v, ok := numberVal(s["brightness"])
	return int(v), ok
}

// Location returns the latitude/longitude configured during provisioning.
// Some firmware renames the keys with an _i suffix; both spellings are
// accepted.
func (s SysInfo) Location() (latitude, longitude float64, ok bool) {
	lat, latOK := numberVal(s["latitude"])
	if !latOK {
		lat, latOK = numberVal(s["latitude_i"])
	}
	lon, lonOK := numberVal(s["longitude"])
	if !lonOK {
		lon, lonOK = numberVal(s["longitude_i"])
	}
	return lat, lon, latOK && lonOK
}

// Features returns the advertised feature tokens, split from the
// colon-delimited feature string. Unknown tokens are logged and kept;
// firmware adds tokens faster than clients learn them.
func (s SysInfo) Features() []string {
	raw := stringVal(s["feature"])
	if raw == "" {
		return nil
	}
	features := strings.Split(raw, ":")
	for _, f := range features {
		if _, known := knownFeatures[f]; !known {
			logging.Warn("Unrecognized feature token",
				zap.String("feature", f),
				zap.String("model", s.Model()))
		}
	}
	return features
}

// HasFeature reports whether the feature string contains the given token
func (s SysInfo) HasFeature(token string) bool {
	for _, f := range s.Features() {
		if f == token {
			return true
		}
	}
	return false
}

// IsDimmable reports whether the device advertises brightness control
func (s SysInfo) IsDimmable() bool {
	if flagVal(s["is_dimmable"]) {
		return true
	}
	// Dimmer plugs have no is_dimmable flag but report a brightness level.
	_, ok := s.Brightness()
	return ok
}

// IsColor reports whether the device advertises color control
func (s SysInfo) IsColor() bool {
	return flagVal(s["is_color"])
}

// IsVariableColorTemp reports whether the device advertises color
// temperature control
func (s SysInfo) IsVariableColorTemp() bool {
	return flagVal(s["is_variable_color_temp"])
}

// HasChildren reports whether the device exposes child outlets
func (s SysInfo) HasChildren() bool {
	if v, ok := numberVal(s["child_num"]); ok {
		return v > 0
	}
	return len(s.Children()) > 0
}

// ChildCount returns the number of child outlets
func (s SysInfo) ChildCount() int {
	if v, ok := numberVal(s["child_num"]); ok {
		return int(v)
	}
	return len(s.Children())
}

// Children returns the child outlets of a power strip in device order
func (s SysInfo) Children() []ChildOutlet {
	list, _ := s["children"].([]any)
	children := make([]ChildOutlet, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		child := ChildOutlet{
			ID:    stringVal(entry["id"]),
			Alias: stringVal(entry["alias"]),
		}
		if v, ok := numberVal(entry["state"]); ok {
			child.State = int(v)
		}
		if v, ok := numberVal(entry["on_time"]); ok {
			child.OnTime = time.Duration(v) * time.Second
		}
		children = append(children, child)
	}
	return children
}

// LightState returns the bulb light-state object embedded in sysinfo, if
// present. Live reads go through Bulb.LightState instead; this projection
// serves discovery output.
func (s SysInfo) LightState() map[string]any {
	state, _ := s["light_state"].(map[string]any)
	return state
}

// PowerState reports whether the device is on, whichever family it is:
// the relay field for plugs, the embedded light state for bulbs, and
// any-socket-on for strips. known is false when sysinfo carries none of
// those fields.
func (s SysInfo) PowerState() (on, known bool) {
	if state, ok := s.RelayState(); ok {
		return state != 0, true
	}
	if light := s.LightState(); light != nil {
		if v, ok := numberVal(light["on_off"]); ok {
			return v != 0, true
		}
	}
	if children := s.Children(); len(children) > 0 {
		for _, child := range children {
			if child.IsOn() {
				return true, true
			}
		}
		return false, true
	}
	return false, false
}

// ChildOutlet is one socket of a power strip as reported in sysinfo
type ChildOutlet struct {
	ID     string        // device-assigned child identifier
	Alias  string        // user-assigned socket name
	State  int           // relay state, 1 = on
	OnTime time.Duration // time since the socket was switched on
}

// IsOn reports whether the outlet relay is closed
func (c ChildOutlet) IsOn() bool {
	return c.State != 0
}

// stringVal extracts a string field, tolerating absence
func stringVal(v any) string {
	s, _ := v.(string)
	return s
}

// numberVal extracts a numeric field. JSON decoding produces float64, but
// handcrafted fixtures and future callers may supply native ints.
func numberVal(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// flagVal extracts a boolean field that firmware encodes as 0/1 or a bare
// JSON bool depending on generation
func flagVal(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	}
	return false
}
