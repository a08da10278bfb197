package protocol

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// NetErrorKind provides more specific transport error classification
type NetErrorKind int

const (
	NetErrorGeneral NetErrorKind = iota
	NetErrorTimeout
	NetErrorConnectionRefused
	NetErrorHostUnreachable
	NetErrorNetworkUnreachable
	NetErrorDNS
)

// String returns a human-readable name for the error kind
func (k NetErrorKind) String() string {
	switch k {
	case NetErrorTimeout:
		return "timeout"
	case NetErrorConnectionRefused:
		return "connection refused"
	case NetErrorHostUnreachable:
		return "host unreachable"
	case NetErrorNetworkUnreachable:
		return "network unreachable"
	case NetErrorDNS:
		return "dns failure"
	case NetErrorGeneral:
		return "network error"
	default:
		return fmt.Sprintf("NetErrorKind(%d)", k)
	}
}

// TransportError reports a socket-level failure while talking to a device:
// the dial, the send, or the receive went wrong before a complete reply
// arrived.
type TransportError struct {
	Op   string       // "dial", "send", "receive", "deadline"
	Addr string       // device address the exchange targeted
	Kind NetErrorKind // classified failure mode
	Err  error        // underlying error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Addr, e.Kind, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry
func (e *TransportError) Timeout() bool {
	return e.Kind == NetErrorTimeout
}

// NewTransportError wraps a socket failure with automatic classification
func NewTransportError(op, addr string, err error) *TransportError {
	return &TransportError{
		Op:   op,
		Addr: addr,
		Kind: ClassifyNetError(err),
		Err:  err,
	}
}

// ClassifyNetError analyzes a socket error and returns its failure mode
func ClassifyNetError(err error) NetErrorKind {
	if err == nil {
		return NetErrorGeneral
	}

	if os.IsTimeout(err) {
		return NetErrorTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetErrorDNS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return NetErrorConnectionRefused
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return NetErrorHostUnreachable
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return NetErrorNetworkUnreachable
		}
	}

	return NetErrorGeneral
}

// ProtocolError reports a reply that arrived but could not be understood:
// too short for the length header, or not valid JSON after decryption.
type ProtocolError struct {
	Addr   string // device address the reply came from
	Reason string // what was wrong with the reply
	Err    error  // underlying error (if any)
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad reply from %s: %s: %v", e.Addr, e.Reason, e.Err)
	}
	return fmt.Sprintf("bad reply from %s: %s", e.Addr, e.Reason)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsTransportError checks if an error is a socket-level failure
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocolError checks if an error is a malformed-reply failure
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTimeout checks if an error is a transport timeout
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}
