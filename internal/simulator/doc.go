// Package simulator implements an in-process stand-in for Kasa
// smart-home devices, speaking the same wire protocol real hardware
// does: XOR-obfuscated JSON with a 4-byte length header over TCP, and
// headerless datagrams over UDP for discovery sweeps.
//
// A simulated device is a mutable sysinfo block plus a table of command
// handlers, so state written by one command is observed by later reads:
// flip a relay and the next get_sysinfo reports it, rename an outlet and
// a discovery sweep sees the new alias. That makes the simulator good
// for two jobs: exercising the full client stack in tests without
// hardware on the bench, and running as a standalone daemon so the CLI
// has something to talk to.
//
// # Models
//
// Fixtures are built by model name:
//
//	hs100    basic smart plug
//	hs110    smart plug with energy meter
//	lb130    full-color dimmable bulb
//	hs300    power strip with per-outlet relays and meters
//
//	dev, err := simulator.NewModel("hs110")
//	if err != nil {
//		return err
//	}
//	srv := simulator.New(dev, &simulator.Config{Host: "127.0.0.1", UDP: true})
//	if err := srv.Listen(); err != nil {
//		return err
//	}
//	go srv.Serve()
//	defer srv.Shutdown(context.Background())
//
// Port 0 binds an ephemeral port; read it back with srv.Port(). Several
// servers can run side by side on successive ports to fake a small
// fleet, using SetAlias and SetDeviceID to tell the copies apart.
//
// # Reply Modes
//
// Real firmware is split on how TCP replies come back. Most devices
// write a correct big-endian length header and keep the socket open;
// others write a zeroed header and close the connection to mark the end
// of the reply. The Mode field selects which behavior to imitate, and a
// correct client must get identical results from both.
//
// # Errors
//
// Unknown targets and commands are answered with the codes hardware
// uses: err_code -2001 "Module not support" at the module level and
// err_code -2 "member not support" at the member level. A request that
// is not a JSON object at all is answered the firmware way too, by
// dropping the connection.
package simulator
