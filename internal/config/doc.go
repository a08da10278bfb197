// Package config provides the device registry for the kasalink project.
//
// This package manages a YAML-based registry file that stores user-defined
// metadata for Kasa devices: nicknames, last known addresses, strip outlet
// labels, and application preferences. Devices are keyed by the unique ID
// they report in sysinfo, so an entry survives the device changing DHCP
// address.
//
// The registry is what lets commands address devices by name instead of
// IP: `--device "bedroom lamp"` resolves through nicknames and the
// device-reported aliases recorded at the last scan.
//
// # Registry File Location
//
// The registry is stored in the platform user-config directory:
//   - Linux: $XDG_CONFIG_HOME/kasalink/config.yaml or $HOME/.config/kasalink/config.yaml
//   - macOS: $HOME/Library/Application Support/kasalink/config.yaml
//   - Windows: %AppData%\kasalink\config.yaml
//
// The KASALINK_CONFIG_DIR environment variable overrides the directory.
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Record a scan result and give the device a nickname
//	registry.RecordSighting("8006E5C2...", "192.168.0.23", "Hallway", "HS110(US)", "plug")
//	registry.SetDeviceNickname("8006E5C2...", "hallway-heater")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
