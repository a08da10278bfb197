package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/muurk/kasalink/internal/protocol"
)

func TestDeviceError_Error(t *testing.T) {
	withMsg := &DeviceError{
		Target:  "smartlife.iot.dimmer",
		Command: "set_brightness",
		Code:    -2001,
		Message: "Module not support",
	}
	if got := withMsg.Error(); !strings.Contains(got, "Module not support") ||
		!strings.Contains(got, "smartlife.iot.dimmer.set_brightness") ||
		!strings.Contains(got, "-2001") {
		t.Errorf("Error() = %q, want message, call and code", got)
	}

	withoutMsg := &DeviceError{Target: "system", Command: "reboot", Code: -1323}
	if got := withoutMsg.Error(); !strings.Contains(got, "system.reboot") ||
		!strings.Contains(got, "-1323") {
		t.Errorf("Error() = %q, want call and code", got)
	}
}

func TestErrorPredicates(t *testing.T) {
	devErr := &DeviceError{Target: "system", Command: "get_sysinfo", Code: -1}
	valErr := NewValidationError("brightness", "101 is outside 0-100")
	unsupErr := NewUnsupportedError("hsv", "bulb has no color support")

	tests := []struct {
		name       string
		err        error
		wantDevice bool
		wantValid  bool
		wantUnsup  bool
	}{
		{"device error", devErr, true, false, false},
		{"wrapped device error", fmt.Errorf("dispatch: %w", devErr), true, false, false},
		{"validation error", valErr, false, true, false},
		{"unsupported error", unsupErr, false, false, true},
		{"plain error", errors.New("boom"), false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeviceError(tt.err); got != tt.wantDevice {
				t.Errorf("IsDeviceError = %v, want %v", got, tt.wantDevice)
			}
			if got := IsValidationError(tt.err); got != tt.wantValid {
				t.Errorf("IsValidationError = %v, want %v", got, tt.wantValid)
			}
			if got := IsUnsupportedError(tt.err); got != tt.wantUnsup {
				t.Errorf("IsUnsupportedError = %v, want %v", got, tt.wantUnsup)
			}
		})
	}
}

func TestUnsupportedError_Sentinel(t *testing.T) {
	err := fmt.Errorf("set time: %w", NewUnsupportedError("set_time", "all tested firmware rejects it"))
	if !errors.Is(err, ErrUnsupported) {
		t.Error("errors.Is() should find ErrUnsupported through the wrap")
	}
	if errors.Is(NewValidationError("hue", "out of range"), ErrUnsupported) {
		t.Error("validation error matched ErrUnsupported")
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "device error with firmware message",
			err: &DeviceError{
				Target: "emeter", Command: "get_realtime",
				Code: -2001, Message: "Module not support",
			},
			want: "Module not support",
		},
		{
			name: "transport timeout",
			err: &protocol.TransportError{
				Op: "receive", Addr: "192.0.2.1:9999",
				Kind: protocol.NetErrorTimeout, Err: context.DeadlineExceeded,
			},
			want: "not responding",
		},
		{
			name: "connection refused",
			err: &protocol.TransportError{
				Op: "dial", Addr: "192.0.2.1:9999",
				Kind: protocol.NetErrorConnectionRefused, Err: errors.New("refused"),
			},
			want: "9999",
		},
		{
			name: "protocol error",
			err:  &protocol.ProtocolError{Addr: "192.0.2.1:9999", Reason: "reply is not valid JSON"},
			want: "firmware",
		},
		{
			name: "validation error passes through",
			err:  NewValidationError("hue", "400 is outside 0-360"),
			want: "hue",
		},
		{
			name: "plain error passes through",
			err:  errors.New("something odd"),
			want: "something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetShortErrorMessage(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("GetShortErrorMessage() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}

func TestTroubleshootingTips(t *testing.T) {
	classified := []error{
		&protocol.TransportError{Op: "dial", Addr: "x", Kind: protocol.NetErrorTimeout},
		&protocol.TransportError{Op: "dial", Addr: "x", Kind: protocol.NetErrorConnectionRefused},
		&protocol.TransportError{Op: "dial", Addr: "x", Kind: protocol.NetErrorHostUnreachable},
		&protocol.TransportError{Op: "dial", Addr: "x", Kind: protocol.NetErrorDNS},
		&protocol.TransportError{Op: "dial", Addr: "x", Kind: protocol.NetErrorGeneral},
		&protocol.ProtocolError{Addr: "x", Reason: "garbled"},
		&DeviceError{Target: "system", Command: "reboot", Code: -1},
		NewValidationError("brightness", "out of range"),
		NewUnsupportedError("hsv", "no color support"),
	}

	for _, err := range classified {
		tips := TroubleshootingTips(err)
		if len(tips) == 0 {
			t.Errorf("no tips for %T: %v", err, err)
			continue
		}
		for _, tip := range tips {
			if tip == "" {
				t.Errorf("empty tip for %T", err)
			}
		}
	}

	if tips := TroubleshootingTips(errors.New("unclassified")); tips != nil {
		t.Errorf("TroubleshootingTips(unclassified) = %v, want nil", tips)
	}
}
