package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/kasalink/internal/logging"
	"github.com/muurk/kasalink/internal/protocol"
)

const (
	// DefaultTarget is the address the discovery query is broadcast to
	DefaultTarget = "255.255.255.255"

	// DefaultSweepTimeout is how long a sweep collects replies
	DefaultSweepTimeout = 5 * time.Second

	// maxDatagramSize bounds a single discovery reply
	maxDatagramSize = 65536
)

// discoverRequest is sent to every device on the subnet. Asking for the
// emeter realtime alongside sysinfo lets descriptors report consumption
// without a follow-up query; devices without a meter answer the sysinfo
// half and flag the other with an err_code.
var discoverRequest = map[string]any{
	"system": map[string]any{"get_sysinfo": nil},
	"emeter": map[string]any{"get_realtime": nil},
}

// Sweep broadcasts the discovery query and collects device replies
type Sweep struct {
	// Port is the UDP port devices listen on (protocol.DefaultPort when zero)
	Port int

	// Timeout is how long to collect replies (DefaultSweepTimeout when zero)
	Timeout time.Duration

	// Target is where the query is sent (DefaultTarget when empty). Routed
	// subnets can point it at their own broadcast address; tests point it
	// at a loopback responder.
	Target string
}

// NewSweep creates a sweep with default settings
func NewSweep() *Sweep {
	return &Sweep{
		Timeout: DefaultSweepTimeout,
	}
}

func (s *Sweep) port() int {
	if s.Port > 0 {
		return s.Port
	}
	return protocol.DefaultPort
}

func (s *Sweep) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultSweepTimeout
}

func (s *Sweep) target() string {
	if s.Target != "" {
		return s.Target
	}
	return DefaultTarget
}

// Run broadcasts the discovery query and collects descriptors until the
// timeout elapses. The deadline expiring is the normal end of a sweep, not
// an error; an error is returned only when the socket itself fails.
func (s *Sweep) Run(ctx context.Context) ([]Descriptor, error) {
	payload, err := json.Marshal(discoverRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode discovery query: %w", err)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()

	target := net.JoinHostPort(s.target(), strconv.Itoa(s.port()))
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve discovery target %s: %w", target, err)
	}

	deadline := time.Now().Add(s.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to arm sweep deadline: %w", err)
	}

	// Discovery datagrams carry the encrypted payload without the TCP
	// length header.
	if _, err := conn.WriteTo(protocol.Encrypt(payload), dst); err != nil {
		return nil, fmt.Errorf("failed to send discovery broadcast: %w", err)
	}
	logging.LogDiscovery(target, "broadcast_sent")

	devices := make([]Descriptor, 0)
	seen := make(map[string]bool)
	buf := make([]byte, maxDatagramSize)

	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if os.IsTimeout(err) {
				logging.LogDiscovery(target, "sweep_complete")
				return devices, nil
			}
			return devices, fmt.Errorf("discovery read failed: %w", err)
		}

		desc := s.parseReply(from, buf[:n])
		if desc == nil {
			continue
		}
		if seen[desc.Addr] {
			continue
		}
		seen[desc.Addr] = true
		devices = append(devices, *desc)
	}
}

// parseReply converts one reply datagram into a Descriptor. Returns nil for
// datagrams that do not decode; a sweep never fails because one responder
// sent garbage.
func (s *Sweep) parseReply(from net.Addr, datagram []byte) *Descriptor {
	addr := from.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	var info map[string]any
	if err := json.Unmarshal(protocol.Decrypt(datagram), &info); err != nil {
		logging.Warn("Discarding unparseable discovery reply",
			zap.String("addr", addr),
			zap.Int("bytes", len(datagram)),
			zap.Error(err),
		)
		return nil
	}

	logging.LogDiscovery(addr, "device_found")
	return &Descriptor{
		Addr:         host,
		Port:         s.port(),
		Info:         info,
		DiscoveredAt: time.Now(),
	}
}

// Discover is a convenience function to sweep with a custom timeout
func Discover(ctx context.Context, timeout time.Duration) ([]Descriptor, error) {
	sweep := NewSweep()
	sweep.Timeout = timeout
	return sweep.Run(ctx)
}
