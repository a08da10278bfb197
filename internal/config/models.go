package config

import (
	"strings"
	"time"
)

// Registry represents the entire device registry file.
// It stores user-defined metadata for Kasa devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device ID
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents the registry entry for a single device.
// This is keyed by the device's unique ID in the Registry.
type Device struct {
	Nickname string              `yaml:"nickname,omitempty"`  // User-chosen name, resolvable on the command line
	Alias    string              `yaml:"alias,omitempty"`     // Device-reported alias at the last sighting
	Model    string              `yaml:"model,omitempty"`     // Hardware model, e.g. "HS110(US)"
	Type     string              `yaml:"type,omitempty"`      // Device family: plug, bulb or strip
	LastIP   string              `yaml:"last_ip,omitempty"`   // Last known IP address
	LastSeen time.Time           `yaml:"last_seen,omitempty"` // Last discovery/connection time
	Outlets  map[int]*OutletMeta `yaml:"outlets,omitempty"`   // Strip outlet metadata, keyed by outlet index
}

// OutletMeta caches what is known about one strip outlet, so listings can
// be rendered without a device round trip. Outlet indexes start at 0 to
// match how outlets are addressed everywhere else.
type OutletMeta struct {
	ID    string `yaml:"id"`              // Child ID as reported by the strip
	Label string `yaml:"label,omitempty"` // Outlet alias at the last sighting
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	ScanTimeout   int    `yaml:"scan_timeout"`             // Discovery sweep duration in seconds
	BroadcastAddr string `yaml:"broadcast_addr,omitempty"` // Discovery broadcast target
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			ScanTimeout:   5,
			BroadcastAddr: "255.255.255.255",
		},
	}
}

// GetDevice retrieves device metadata by device ID.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(id string) *Device {
	return r.Devices[id]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(id string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[id]; exists {
		return device
	}

	device := &Device{}
	r.Devices[id] = device
	return device
}

// RecordSighting updates a device entry from a discovery reply or a
// successful connection: address, timestamp, and the identity fields the
// device reports about itself.
func (r *Registry) RecordSighting(id, ip, alias, model, devType string) *Device {
	device := r.EnsureDevice(id)
	device.LastIP = ip
	device.LastSeen = time.Now()
	if alias != "" {
		device.Alias = alias
	}
	if model != "" {
		device.Model = model
	}
	if devType != "" {
		device.Type = devType
	}
	return device
}

// SetDeviceNickname sets a user-chosen nickname for a device.
func (r *Registry) SetDeviceNickname(id, nickname string) {
	device := r.EnsureDevice(id)
	device.Nickname = nickname
}

// SetOutletLabel records the child ID and label of one strip outlet.
func (r *Registry) SetOutletLabel(id string, outlet int, childID, label string) {
	device := r.EnsureDevice(id)

	if device.Outlets == nil {
		device.Outlets = make(map[int]*OutletMeta)
	}

	device.Outlets[outlet] = &OutletMeta{
		ID:    childID,
		Label: label,
	}
}

// ResolveNickname finds a device by nickname or device-reported alias and
// returns its last known address. Matching is case-insensitive; nicknames
// win over aliases. Returns false when nothing matches or the matched
// entry has no recorded address.
func (r *Registry) ResolveNickname(name string) (string, bool) {
	for _, device := range r.Devices {
		if device.Nickname != "" && strings.EqualFold(device.Nickname, name) {
			return device.LastIP, device.LastIP != ""
		}
	}
	for _, device := range r.Devices {
		if device.Alias != "" && strings.EqualFold(device.Alias, name) {
			return device.LastIP, device.LastIP != ""
		}
	}
	return "", false
}

// DeviceTypeLabels maps device family identifiers to human-readable names.
// This is used for display purposes.
var DeviceTypeLabels = map[string]string{
	"plug":    "Smart Plug",
	"bulb":    "Smart Bulb",
	"strip":   "Power Strip",
	"unknown": "Unknown Device",
}
