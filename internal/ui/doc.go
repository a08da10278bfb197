// Package ui provides terminal UI components for the kasalink-ctl CLI.
//
// This package uses Lipgloss to render styled terminal output for
// one-shot commands. Unlike the interactive wizard, these components
// follow a "render and exit" pattern: a command queries the device,
// renders what came back, and returns.
//
// # Components
//
//   - Header: command banner showing what a longer operation is about
//     to do (a scan prints its broadcast target and timeout up front)
//   - Panels: ordered key-value boxes for device state and meter readings
//   - Tables: scan results and outlet listings with padded columns
//   - Result: success/failure boxes; failures carry a troubleshooting
//     box fed from the device error classifier
//
// Output is capped at MaxContentWidth and floors at MinTerminalWidth, so
// boxes stay readable on both narrow SSH sessions and wide terminals.
//
// # Logging Integration
//
// This package expects logging to be controlled via the KASALINK_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent,
// allowing the curated UI output to be displayed cleanly. Set it to
// "debug", "info", "warn", or "error" to mix logging into the output.
package ui
