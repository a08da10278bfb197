package device

import (
	"errors"
	"fmt"

	"github.com/muurk/kasalink/internal/protocol"
)

// Error types for device operations. Transport and framing failures are
// reported by the protocol package; this package adds the categories a
// device itself can produce.

// DeviceError represents a failure reported by the device: the reply
// carried a nonzero err_code for the requested target or command. It is
// built by the Dispatcher, which is the only place err_code is interpreted.
type DeviceError struct {
	Target  string // Protocol target, e.g. "system"
	Command string // Command within the target, e.g. "set_relay_state"
	Code    int    // Device-reported err_code
	Message string // Device-reported message, if any
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("device rejected %s.%s: %s (err_code %d)", e.Target, e.Command, e.Message, e.Code)
	}
	return fmt.Sprintf("device rejected %s.%s (err_code %d)", e.Target, e.Command, e.Code)
}

// ValidationError indicates a caller-supplied argument outside the range
// the device accepts. It is raised before any network traffic.
type ValidationError struct {
	Field  string // Argument that failed validation
	Reason string // What was wrong with it
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for the named argument
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrUnsupported is the sentinel every UnsupportedError wraps, so callers
// can test with errors.Is without naming the concrete type.
var ErrUnsupported = errors.New("operation not supported")

// UnsupportedError indicates an operation this device cannot perform,
// either because the capability flag in SysInfo is absent (e.g. HSV on a
// non-color bulb) or because all tested firmware rejects the call shape
// (e.g. setting time). It is raised before the doomed request is sent.
type UnsupportedError struct {
	Op     string // Operation that was attempted
	Reason string // Why the device cannot perform it
}

// Error implements the error interface
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s not supported: %s", e.Op, e.Reason)
}

// Unwrap ties the error to the ErrUnsupported sentinel
func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// NewUnsupportedError creates an unsupported-operation error
func NewUnsupportedError(op, reason string) *UnsupportedError {
	return &UnsupportedError{Op: op, Reason: reason}
}

// IsDeviceError checks if an error is a device-reported failure
func IsDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}

// IsValidationError checks if an error is a client-side validation failure
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// IsUnsupportedError checks if an error is an unsupported-operation failure
func IsUnsupportedError(err error) bool {
	var unsupErr *UnsupportedError
	return errors.As(err, &unsupErr)
}

// GetShortErrorMessage returns a concise, user-friendly error message
// suitable for single-line CLI output.
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		if devErr.Message != "" {
			return fmt.Sprintf("Device error: %s (%s.%s)", devErr.Message, devErr.Target, devErr.Command)
		}
		return fmt.Sprintf("Device error %d (%s.%s)", devErr.Code, devErr.Target, devErr.Command)
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}

	var unsupErr *UnsupportedError
	if errors.As(err, &unsupErr) {
		return unsupErr.Error()
	}

	var transErr *protocol.TransportError
	if errors.As(err, &transErr) {
		switch transErr.Kind {
		case protocol.NetErrorTimeout:
			return "Device not responding (timeout)"
		case protocol.NetErrorConnectionRefused:
			return "Device refused connection - is port 9999 open?"
		case protocol.NetErrorHostUnreachable:
			return "Device unreachable - check network connection"
		case protocol.NetErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		case protocol.NetErrorDNS:
			return "Cannot resolve device hostname"
		default:
			return "Network error - check connection"
		}
	}

	var protoErr *protocol.ProtocolError
	if errors.As(err, &protoErr) {
		return "Unexpected reply from device - firmware may be incompatible"
	}

	return err.Error()
}

// TroubleshootingTips returns user-facing troubleshooting advice for an
// error, one tip per entry, for rendering under a failure message. Returns
// nil for errors with no useful advice.
func TroubleshootingTips(err error) []string {
	var transErr *protocol.TransportError
	if errors.As(err, &transErr) {
		switch transErr.Kind {
		case protocol.NetErrorTimeout:
			return []string{
				"Check that the device is powered on",
				"Verify the device IP address is correct",
				"Try increasing the timeout duration",
				"Some firmware only answers one connection at a time - retry",
			}

		case protocol.NetErrorConnectionRefused:
			return []string{
				"Verify the address belongs to a Kasa device",
				"Check that port 9999 is not blocked by a firewall",
				"Newer firmware may have the local API disabled - check the app",
			}

		case protocol.NetErrorHostUnreachable, protocol.NetErrorNetworkUnreachable:
			return []string{
				"Check that you're on the same network as the device",
				"Run a discovery scan to confirm the device address",
				"Ensure the device is powered on and connected to WiFi",
			}

		case protocol.NetErrorDNS:
			return []string{
				"Use the IP address instead of a hostname",
				"Run a discovery scan to find the device address",
			}

		default:
			return []string{
				"Check your network connection",
				"Verify the device is powered on",
				"Run a discovery scan to confirm the device is visible",
			}
		}
	}

	var protoErr *protocol.ProtocolError
	if errors.As(err, &protoErr) {
		return []string{
			"Try power-cycling the device",
			"Check if a firmware update changed the local API",
		}
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return []string{
			"The device may not support this operation",
			"Check that every argument is within the accepted range",
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return []string{"Check the error message for the accepted range"}
	}

	var unsupErr *UnsupportedError
	if errors.As(err, &unsupErr) {
		return []string{"Try the operation on a device model that supports it"}
	}

	return nil
}
