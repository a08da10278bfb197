package protocol

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

// timeoutErr satisfies net.Error the way deadline expiries do.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyNetError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want NetErrorKind
	}{
		{
			name: "timeout",
			err:  timeoutErr{},
			want: NetErrorTimeout,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			want: NetErrorConnectionRefused,
		},
		{
			name: "host unreachable",
			err:  &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)},
			want: NetErrorHostUnreachable,
		},
		{
			name: "network unreachable",
			err:  &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ENETUNREACH)},
			want: NetErrorNetworkUnreachable,
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "plug.localdomain"},
			want: NetErrorDNS,
		},
		{
			name: "anything else",
			err:  errors.New("wire fell out"),
			want: NetErrorGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyNetError(tt.err); got != tt.want {
				t.Errorf("ClassifyNetError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	underlying := timeoutErr{}
	err := NewTransportError("receive", "192.168.1.10:9999", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should find the wrapped error")
	}
	if !err.Timeout() {
		t.Error("Timeout() = false, want true")
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout() = false, want true")
	}
}

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "direct transport error",
			err:  NewTransportError("dial", "10.0.0.1:9999", errors.New("refused")),
			want: true,
		},
		{
			name: "wrapped transport error",
			err:  fmt.Errorf("sysinfo: %w", NewTransportError("dial", "10.0.0.1:9999", errors.New("refused"))),
			want: true,
		},
		{
			name: "protocol error",
			err:  &ProtocolError{Addr: "10.0.0.1:9999", Reason: "reply is not valid JSON"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransportError(tt.err); got != tt.want {
				t.Errorf("IsTransportError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsProtocolError(t *testing.T) {
	pe := &ProtocolError{Addr: "10.0.0.1:9999", Reason: "reply truncated", Err: errors.New("short")}

	if !IsProtocolError(pe) {
		t.Error("IsProtocolError() = false for protocol error")
	}
	if !IsProtocolError(fmt.Errorf("query: %w", pe)) {
		t.Error("IsProtocolError() = false for wrapped protocol error")
	}
	if IsProtocolError(NewTransportError("send", "10.0.0.1:9999", errors.New("reset"))) {
		t.Error("IsProtocolError() = true for transport error")
	}
}

func TestTransportError_Timeout_Classification(t *testing.T) {
	// A deadline expiry surfacing from conn.Read carries net.Error Timeout.
	err := NewTransportError("receive", "192.168.1.10:9999", &net.OpError{
		Op:  "read",
		Err: timeoutErr{},
	})
	if err.Kind != NetErrorTimeout {
		t.Errorf("Kind = %v, want %v", err.Kind, NetErrorTimeout)
	}
}
