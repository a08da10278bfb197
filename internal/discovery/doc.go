// Package discovery provides UDP broadcast discovery for Kasa smart-home
// devices.
//
// Kasa-generation devices do not advertise over mDNS. Instead they answer a
// vendor query sent by broadcast to UDP port 9999: any device that hears the
// datagram replies from its own address with its system info. This package
// sends that query and collects the replies.
//
// # Discovery Process
//
// The sweep works as follows:
//  1. Encodes the fixed discovery query (sysinfo plus emeter realtime)
//  2. Broadcasts the encrypted payload to 255.255.255.255:9999
//  3. Collects reply datagrams until the timeout elapses
//  4. Decrypts and parses each reply into a Descriptor
//  5. Returns one Descriptor per responding device
//
// Discovery datagrams carry the encrypted payload only; the 4-byte length
// header used on TCP is absent in both directions.
//
// # Usage Example
//
//	sweep := &discovery.Sweep{Timeout: 3 * time.Second}
//	found, err := sweep.Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, d := range found {
//	    fmt.Printf("Found: %s %s at %s\n", d.Type(), d.Alias(), d.Addr)
//	}
//
// # Device Information
//
// Each Descriptor includes:
//   - Addr: IPv4 address the reply came from
//   - Port: UDP/TCP port the device listens on
//   - Info: the parsed discovery reply (sysinfo and optional emeter blocks)
//
// # Network Requirements
//
// - Broadcast must be permitted on the interface (most LANs allow it)
// - Devices must be on the same broadcast domain; routed segments need
//   Target pointed at their subnet broadcast address
// - Firewall must allow UDP port 9999 both ways
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple sweeps can run
// simultaneously, each on its own socket.
package discovery
