// Package protocol implements the Kasa smart-home wire protocol.
//
// This package handles obfuscation, framing, and the query exchange used by
// TP-Link Kasa-generation plugs, bulbs, and power strips. Devices listen on
// TCP and UDP port 9999 and speak JSON obfuscated with a rolling XOR cipher.
//
// # Protocol Overview
//
// Every exchange is a single JSON document in each direction:
//   - Request: {"<target>":{"<command>":<args-or-null>}}
//   - Reply:   {"<target>":{"<command>":{...,"err_code":0}}}
//
// The JSON is obfuscated with an autokey XOR stream seeded at 171: each
// output byte becomes the key for the next byte. This is obfuscation, not
// encryption; it carries no integrity or confidentiality guarantees.
//
// # Framing
//
// TCP exchanges prefix the encrypted payload with a 4-byte big-endian length
// header. The header counts payload bytes only. UDP discovery datagrams
// carry the encrypted payload without any header.
//
// Firmware varies on the reply side: some models declare the reply length in
// the header and keep the connection open, others send a zero header and
// close the socket when the reply is complete. The read loop accepts both.
//
// # Usage Example
//
//	client := &protocol.Client{Timeout: 3 * time.Second}
//	reply, err := client.Query(ctx, "192.168.1.100", map[string]any{
//	    "system": map[string]any{"get_sysinfo": nil},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// The package distinguishes between:
//   - TransportError: dial, send, or receive failed at the socket level
//   - ProtocolError: the device answered but the reply is malformed
//
// Device-level errors (nonzero err_code inside the reply) are not
// interpreted here; that is the dispatcher's job.
//
// # Thread Safety
//
// Encrypt, Decrypt, Frame, and Deframe are stateless and safe for concurrent
// use. A Client carries only configuration and may be shared across
// goroutines; each Query opens its own connection.
package protocol
