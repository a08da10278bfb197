// Package tui implements the interactive setup wizard for kasalink.
//
// The wizard is a full-screen terminal application for finding devices on
// the local network and driving them live. Built on the Bubble Tea
// framework, it follows the Elm architecture with immutable state updates
// and a Model-Update-View pattern.
//
// # Architecture
//
// The wizard has two screens:
//   - Discovery: broadcast a sweep, list the devices that answered, or
//     enter an address manually
//   - Dashboard: live state panel for one device with power toggle,
//     brightness control, and refresh
//
// Both screens wrap their content in RenderApplicationContainer for a
// consistent layout with header, content area, and context-sensitive
// footer. AppModel coordinates the transitions between them.
//
// # Framework Components
//
// The screens are assembled from Bubble Tea ecosystem components:
//   - bubbles/spinner: in-flight indicators for sweeps and device actions
//   - bubbles/progress: sweep progress over its collection window
//   - bubbles/list: device cards with a custom delegate
//   - bubbles/textinput: manual address entry
//   - bubbles/help: footer key hints per screen state
//   - lipgloss: styling and layout
//
// # Usage Example
//
//	err := tui.Run(tui.Options{
//	    Target:  "192.168.0.255",
//	    Timeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Screen Flow
//
//  1. Discovery screen:
//     - Sweeps the network on startup and lists answering devices as
//       cards (alias, model, address, power state and draw)
//     - 'r' rescans, 'm' enters an address manually for devices that
//       miss broadcast traffic
//     - Enter opens the dashboard for the selected device
//
//  2. Dashboard screen:
//     - Connects, identifies the device family, and shows its state:
//       power, brightness and color for bulbs, per-socket relays for
//       power strips, LED and uptime for plugs
//     - 't' toggles power, '+'/'-' step the dimmer where the device has
//       one, 'r' re-reads state
//     - Esc returns to the device list, keeping the scan results
//
// Every device exchange runs as a tea.Cmd so the interface never blocks
// on the network; results come back as messages carrying a refreshed
// state snapshot.
//
// # Key Bindings
//
// Each screen has context-aware key bindings surfaced through
// bubbles/help:
//   - Discovery: ↑/↓ navigate, enter open, r rescan, m manual address, q quit
//   - Dashboard: t toggle, +/- brightness, r refresh, esc back, q quit
//   - ctrl+c quits from anywhere
//
// Help text updates with screen state (scanning, manual entry, empty
// results), and bindings that the connected device cannot honor, like
// brightness on a non-dimmable plug, are hidden.
package tui
