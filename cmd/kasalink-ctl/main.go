// Kasalink-ctl is a command-line controller for TP-Link Kasa smart home
// devices.
//
// It speaks the Kasa wire protocol directly on the local network: UDP
// broadcast discovery and TCP control of smart plugs, bulbs and power
// strips. No cloud account or internet access is required.
//
// Usage:
//
//	kasalink-ctl [command] [flags]
//
// Running without arguments launches the interactive wizard. With
// --device set and no command, the device's state is shown.
// See 'kasalink-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/logging"
	"github.com/muurk/kasalink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kasalink-ctl",
	Short: "Kasa Smart Home Device Controller",
	Long: `A command-line controller for TP-Link Kasa smart home devices.

Discovers and controls Kasa smart plugs, bulbs and power strips over the
local network. Devices are addressed by IP address or by the nicknames
recorded in the device registry; no cloud account is required.

If no command is specified, the interactive wizard will launch
automatically. With --device set, the device's state is shown instead.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Silent unless KASALINK_LOG_LEVEL says otherwise
		_ = logging.InitializeFromEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: state for a named device, wizard otherwise
		if deviceName != "" {
			return runState(cmd, args)
		}
		return runWizard(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kasalink-ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
