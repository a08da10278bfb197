package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/muurk/kasalink/internal/logging"
)

const (
	// DefaultPort is the TCP/UDP port Kasa devices listen on
	DefaultPort = 9999

	// DefaultTimeout bounds a whole query exchange end to end
	DefaultTimeout = 5 * time.Second

	// readChunkSize is the per-read buffer for reply accumulation
	readChunkSize = 4096
)

// Client exchanges JSON queries with a device over TCP. The zero value is
// usable and applies the protocol defaults; a Client may be shared across
// goroutines since each query opens its own connection.
type Client struct {
	// Port overrides DefaultPort when nonzero
	Port int

	// Timeout overrides DefaultTimeout when nonzero
	Timeout time.Duration
}

// NewClient creates a client with explicit settings. Zero values fall back
// to the protocol defaults.
func NewClient(port int, timeout time.Duration) *Client {
	return &Client{Port: port, Timeout: timeout}
}

func (c *Client) port() int {
	if c.Port > 0 {
		return c.Port
	}
	return DefaultPort
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Address joins host with the client's port unless host already carries one.
func (c *Client) Address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(c.port()))
}

// Query sends a single request to host and decodes the JSON reply. The
// request may be a map or struct (JSON encoded), or a string/[]byte taken
// as already rendered JSON.
func (c *Client) Query(ctx context.Context, host string, request any) (map[string]any, error) {
	raw, err := c.QueryRaw(ctx, host, request)
	if err != nil {
		return nil, err
	}

	var reply map[string]any
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, &ProtocolError{Addr: c.Address(host), Reason: "reply is not valid JSON", Err: err}
	}
	return reply, nil
}

// QueryRaw performs the same exchange as Query but returns the decrypted
// reply bytes without decoding them.
func (c *Client) QueryRaw(ctx context.Context, host string, request any) ([]byte, error) {
	payload, err := encodeRequest(request)
	if err != nil {
		return nil, &ProtocolError{Addr: c.Address(host), Reason: "request is not encodable", Err: err}
	}

	addr := c.Address(host)

	dialer := net.Dialer{Timeout: c.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, NewTransportError("dial", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, NewTransportError("deadline", addr, err)
	}

	frame := Frame(Encrypt(payload))
	logging.LogQuery(addr, "send", len(payload))
	logging.LogRawBytes("query frame", frame)

	if _, err := conn.Write(frame); err != nil {
		return nil, NewTransportError("send", addr, err)
	}

	framed, err := readReply(conn)
	if err != nil {
		return nil, NewTransportError("receive", addr, err)
	}

	_, ciphertext, err := Deframe(framed)
	if err != nil {
		return nil, &ProtocolError{Addr: addr, Reason: "reply truncated", Err: err}
	}

	plaintext := Decrypt(ciphertext)
	logging.LogQuery(addr, "receive", len(plaintext))
	logging.LogRawBytes("reply payload", plaintext)

	return plaintext, nil
}

// readReply accumulates the device reply. Firmware differs here: some
// models declare the reply length in the header and keep the socket open,
// others send a zero header and close when done. The loop honors both
// endings: a declared nonzero length fully received, or the peer closing
// the connection.
func readReply(conn net.Conn) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	declared := -1

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if declared < 0 && buf.Len() >= HeaderSize {
				declared = int(binary.BigEndian.Uint32(buf.Bytes()[:HeaderSize]))
			}
		}

		if declared > 0 && buf.Len() >= declared+HeaderSize {
			return buf.Bytes(), nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf.Bytes(), nil
			}
			return nil, err
		}
		if n == 0 {
			return buf.Bytes(), nil
		}
	}
}

// encodeRequest renders the request payload. Maps and structs are JSON
// encoded; strings and byte slices pass through as pre-rendered JSON.
func encodeRequest(request any) ([]byte, error) {
	switch r := request.(type) {
	case nil:
		return nil, fmt.Errorf("empty request")
	case []byte:
		return r, nil
	case json.RawMessage:
		return r, nil
	case string:
		return []byte(r), nil
	default:
		return json.Marshal(request)
	}
}
