// Kasalink-sim serves simulated Kasa smart-home devices on local sockets.
//
// It binds plug, bulb and power-strip fixtures that speak the real wire
// protocol over TCP and UDP, so the CLI and the library test suites can
// be exercised without hardware on the network.
//
// Usage:
//
//	kasalink-sim serve [flags]
//
// See 'kasalink-sim serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/kasalink/internal/logging"
	"github.com/muurk/kasalink/internal/simulator"
	"github.com/muurk/kasalink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kasalink-sim",
	Short: "Kasa Device Simulator",
	Long: `A standalone simulator daemon for Kasa smart-home devices.

It serves protocol-faithful plug, bulb and power-strip fixtures on local
TCP and UDP sockets, so kasalink-ctl and the library can be exercised
without any hardware on the network.

Note: for controlling real devices, use the separate 'kasalink-ctl' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	listenAddr  string
	withUDP     bool
	modelName   string
	replyMode   string
	deviceCount int
	logLevel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start serving simulated devices",
	Long: `Start one or more simulated devices speaking the Kasa wire protocol:
encrypted length-framed JSON over TCP, plus headerless datagrams on the
same UDP port for discovery sweeps.

Fixtures are available for the HS100 and HS110 plugs, the LB130 color
bulb and the HS300 power strip. With --count above one, copies of the
model are served on consecutive ports with distinct aliases and device
IDs, so a sweep reports a fleet rather than one device seen repeatedly.

Point kasalink-ctl at a simulator with --device 127.0.0.1 --port <port>,
or sweep for it with 'kasalink-ctl scan --sim-target 127.0.0.1'.`,
	Example: `  # Serve one HS110 plug on the default port
  kasalink-sim serve

  # Serve a color bulb on an ephemeral port with verbose logging
  kasalink-sim serve --listen 127.0.0.1:0 --model lb130 --log-level debug

  # Serve three plugs on ports 9999-10001
  kasalink-sim serve --count 3

  # Mimic firmware that closes the connection after each reply
  kasalink-sim serve --mode close`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:9999", "Address to bind (host:port; port 0 picks an ephemeral port)")
	serveCmd.Flags().BoolVar(&withUDP, "udp", true, "Answer discovery datagrams on the same UDP port")
	serveCmd.Flags().StringVar(&modelName, "model", "hs110", "Device model to simulate (hs100, hs110, lb130, hs300)")
	serveCmd.Flags().StringVar(&replyMode, "mode", "header", "TCP reply framing (header, close)")
	serveCmd.Flags().IntVar(&deviceCount, "count", 1, "Number of devices to serve on consecutive ports")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	mode, err := simulator.ParseReplyMode(replyMode)
	if err != nil {
		return err
	}

	if deviceCount < 1 {
		return fmt.Errorf("invalid --count %d (need at least one device)", deviceCount)
	}

	host, basePort, err := splitListenAddr(listenAddr)
	if err != nil {
		return err
	}
	if basePort == 0 && deviceCount > 1 {
		return fmt.Errorf("--count needs a fixed base port in --listen, not port 0")
	}
	if last := basePort + deviceCount - 1; last > 65535 {
		return fmt.Errorf("port range %d-%d exceeds 65535", basePort, last)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	servers := make([]*simulator.Server, 0, deviceCount)
	serveErrs := make(chan error, deviceCount)

	for i := 0; i < deviceCount; i++ {
		dev, err := simulator.NewModel(modelName)
		if err != nil {
			shutdownAll(servers)
			return err
		}
		if deviceCount > 1 {
			dev.SetAlias(fmt.Sprintf("%s %d", dev.Alias(), i+1))
			dev.SetDeviceID(personalizedID(dev.DeviceID(), i))
		}

		srv := simulator.New(dev, &simulator.Config{
			Host: host,
			Port: basePort + i,
			UDP:  withUDP,
			Mode: mode,
		})
		if err := srv.Listen(); err != nil {
			shutdownAll(servers)
			return err
		}
		servers = append(servers, srv)

		go func(srv *simulator.Server) {
			if err := srv.Serve(); err != nil {
				serveErrs <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logging.Info("Received shutdown signal")
		// Restore default signal handling so a second interrupt kills
		// the process immediately.
		stop()
	case err := <-serveErrs:
		shutdownAll(servers)
		return err
	}

	shutdownAll(servers)
	return nil
}

// splitListenAddr parses host:port into its parts. The host may be
// empty to bind all interfaces.
func splitListenAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q (expected host:port)", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid listen port %q", portStr)
	}
	return host, port, nil
}

// personalizedID rewrites the tail of a fixture device ID so every copy
// in a fleet reports a distinct identity. Strip child IDs follow the
// parent automatically.
func personalizedID(id string, n int) string {
	suffix := fmt.Sprintf("%02X", n%256)
	if len(id) < len(suffix) {
		return id + suffix
	}
	return id[:len(id)-len(suffix)] + suffix
}

// shutdownAll stops every listed server, waiting briefly for in-flight
// connections to drain.
func shutdownAll(servers []*simulator.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(ctx)
	}
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kasalink-sim %s (commit: %s)\n", version.Version, version.Commit)
	},
}
