package simulator

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/muurk/kasalink/internal/logging"
	"github.com/muurk/kasalink/internal/protocol"
	"go.uber.org/zap"
)

// maxRequestSize caps the declared length of an incoming request. Real
// requests are a few hundred bytes; anything declaring more than this is
// garbage and the connection is dropped.
const maxRequestSize = 1 << 20

// ReplyMode selects how the server returns TCP replies. Real devices
// differ here: most write an honest length header and keep the socket
// open, but some firmware writes a zeroed header and signals the end of
// the reply by closing the connection. Clients must cope with both, so
// the simulator can be told to behave either way.
type ReplyMode int

const (
	// ModeHeader writes a correct big-endian length header and keeps the
	// connection open for further requests.
	ModeHeader ReplyMode = iota

	// ModeClose writes a zeroed length header and closes the connection
	// after the reply, so the client learns the length from EOF.
	ModeClose
)

// String returns the flag spelling of the mode
func (m ReplyMode) String() string {
	if m == ModeClose {
		return "close"
	}
	return "header"
}

// ParseReplyMode converts a --mode flag value into a ReplyMode
func ParseReplyMode(mode string) (ReplyMode, error) {
	switch strings.ToLower(mode) {
	case "header":
		return ModeHeader, nil
	case "close":
		return ModeClose, nil
	default:
		return ModeHeader, fmt.Errorf("unknown reply mode %q (use header or close)", mode)
	}
}

// Config holds the simulator server configuration
type Config struct {
	Host string    // Interface to bind, e.g. "127.0.0.1"
	Port int       // TCP port; 0 picks an ephemeral port
	UDP  bool      // Also answer discovery datagrams on the same port
	Mode ReplyMode // How TCP replies are returned
}

// Server serves one simulated device over the smart-plug wire protocol:
// encrypted length-framed JSON on TCP, and optionally headerless
// encrypted datagrams on UDP for discovery sweeps.
type Server struct {
	config      *Config
	device      *Device
	listener    net.Listener
	udpConn     net.PacketConn
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]net.Conn
}

// New creates a server for one simulated device
func New(device *Device, config *Config) *Server {
	return &Server{
		config:      config,
		device:      device,
		activeConns: make(map[string]net.Conn),
	}
}

// Listen binds the server's sockets without serving yet, so callers can
// read the bound address before traffic starts.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	if s.config.UDP {
		// Discovery datagrams arrive on the same port number as TCP
		udpAddr := fmt.Sprintf("%s:%d", s.config.Host, s.Port())
		udpConn, err := net.ListenPacket("udp", udpAddr)
		if err != nil {
			_ = listener.Close()
			s.listener = nil
			return fmt.Errorf("failed to listen on udp %s: %w", udpAddr, err)
		}
		s.udpConn = udpConn
	}

	logging.Info("Simulator listening",
		zap.String("device", s.device.String()),
		zap.String("addr", s.Addr()),
		zap.Bool("udp", s.config.UDP),
		zap.String("mode", s.config.Mode.String()),
	)
	return nil
}

// Addr returns the bound TCP address, e.g. "127.0.0.1:9999". Empty
// before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound TCP port. Zero before Listen.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections and blocks until the listener is closed by
// Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening; call Listen first")
	}

	if s.udpConn != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveUDP()
		}()
	}

	return s.acceptConnections()
}

// ListenAndServe binds the sockets and serves until Shutdown
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// acceptConnections accepts and handles incoming TCP connections
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if listener was closed (during shutdown)
			if opErr, ok := err.(*net.OpError); ok && opErr.Err.Error() == "use of closed network connection" {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection serves framed requests on one TCP connection. In
// ModeHeader the connection stays open for further requests; in
// ModeClose it is closed after the first reply. A request with a bogus
// header is answered by dropping the connection, as real firmware does.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	for {
		header := make([]byte, protocol.HeaderSize)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				logging.Debug("Failed to read request header",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		length := binary.BigEndian.Uint32(header)
		if length == 0 || length > maxRequestSize {
			logging.Warn("Dropping connection with bogus request length",
				zap.String("remote_addr", remoteAddr),
				zap.Uint32("length", length),
			)
			return
		}

		ciphertext := make([]byte, length)
		if _, err := io.ReadFull(conn, ciphertext); err != nil {
			logging.Debug("Failed to read request body",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}

		request := protocol.Decrypt(ciphertext)
		logging.LogQuery(remoteAddr, "recv", len(request))

		reply, err := s.device.HandleRequest(request)
		if err != nil {
			logging.Warn("Dropping connection with malformed request",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
		logging.LogQuery(remoteAddr, "send", len(reply))

		encrypted := protocol.Encrypt(reply)
		if s.config.Mode == ModeHeader {
			if _, err := conn.Write(protocol.Frame(encrypted)); err != nil {
				logging.Debug("Failed to write reply",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
			continue
		}

		// ModeClose: zeroed header, then the body, then hang up so the
		// client reads to EOF.
		framed := append(make([]byte, protocol.HeaderSize), encrypted...)
		if _, err := conn.Write(framed); err != nil {
			logging.Debug("Failed to write reply",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		}
		return
	}
}

// serveUDP answers discovery datagrams until the socket is closed.
// Datagrams carry no length header in either direction, and replies
// always go back in a single datagram regardless of the TCP reply mode.
func (s *Server) serveUDP() {
	buf := make([]byte, 8192)
	for {
		n, from, err := s.udpConn.ReadFrom(buf)
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Err.Error() == "use of closed network connection" {
				return
			}
			logging.Error("Failed to read discovery datagram", zap.Error(err))
			return
		}

		request := protocol.Decrypt(buf[:n])
		logging.LogDiscovery(from.String(), "request_received")

		reply, err := s.device.HandleRequest(request)
		if err != nil {
			logging.Debug("Ignoring malformed discovery datagram",
				zap.String("remote_addr", from.String()),
				zap.Error(err),
			)
			continue
		}

		if _, err := s.udpConn.WriteTo(protocol.Encrypt(reply), from); err != nil {
			logging.Debug("Failed to write discovery reply",
				zap.String("remote_addr", from.String()),
				zap.Error(err),
			)
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down simulator", zap.String("addr", s.Addr()))

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	if s.udpConn != nil {
		if err := s.udpConn.Close(); err != nil {
			logging.Error("Error closing UDP socket", zap.Error(err))
		}
	}

	// Close all active connections
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	return nil
}

// GetActiveConnections returns the number of active TCP connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
