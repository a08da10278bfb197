package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/kasalink/internal/logging"
	"github.com/muurk/kasalink/internal/protocol"
)

// Querier issues one request/reply exchange with a device and returns the
// decoded reply. protocol.Client is the production implementation; tests
// substitute fakes.
type Querier interface {
	Query(ctx context.Context, host string, request any) (map[string]any, error)
}

// Dispatcher routes commands to one device and validates the replies. It
// is the single choke point every device operation passes through, and the
// only place device error codes are interpreted.
type Dispatcher struct {
	querier  Querier
	host     string
	childIDs []string
}

// NewDispatcher creates a dispatcher for the device at host
func NewDispatcher(querier Querier, host string) *Dispatcher {
	return &Dispatcher{querier: querier, host: host}
}

// Host returns the device address this dispatcher targets
func (d *Dispatcher) Host() string {
	return d.host
}

// WithChildren returns a derived dispatcher whose calls carry a context
// field addressing the given child outlets. Power strips use this to
// target individual sockets; the parent dispatcher is not modified.
func (d *Dispatcher) WithChildren(ids ...string) *Dispatcher {
	derived := *d
	derived.childIDs = ids
	return &derived
}

// Call sends one command to the device and returns the command's result
// object with the status field removed.
//
// The request envelope is {"<target>": {"<command>": <args>}}, extended
// with {"context": {"child_ids": [...]}} when the dispatcher is bound to
// child outlets. A nil args sends JSON null, which the firmware treats as
// "no arguments".
//
// Failures map onto the error taxonomy: the underlying exchange failing
// yields the protocol package's errors (wrapped, so errors.As still finds
// them); a reply without the requested target or command key yields a
// ProtocolError; a nonzero err_code at either the target or the command
// level yields a DeviceError carrying the device's code and message.
func (d *Dispatcher) Call(ctx context.Context, target, command string, args any) (map[string]any, error) {
	request := map[string]any{
		target: map[string]any{command: args},
	}
	if len(d.childIDs) > 0 {
		request["context"] = map[string]any{"child_ids": d.childIDs}
	}

	logging.Debug("Dispatching device command",
		zap.String("host", d.host),
		zap.String("target", target),
		zap.String("command", command),
		zap.Strings("child_ids", d.childIDs))

	response, err := d.querier.Query(ctx, d.host, request)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s.%s: %w", target, command, err)
	}

	targetReply, ok := response[target].(map[string]any)
	if !ok {
		return nil, &protocol.ProtocolError{
			Addr:   d.host,
			Reason: fmt.Sprintf("reply is missing target %q", target),
		}
	}
	if code, msg, failed := replyStatus(targetReply); failed {
		return nil, &DeviceError{Target: target, Command: command, Code: code, Message: msg}
	}

	result, ok := targetReply[command].(map[string]any)
	if !ok {
		return nil, &protocol.ProtocolError{
			Addr:   d.host,
			Reason: fmt.Sprintf("reply is missing result for %s.%s", target, command),
		}
	}
	if code, msg, failed := replyStatus(result); failed {
		return nil, &DeviceError{Target: target, Command: command, Code: code, Message: msg}
	}

	delete(result, "err_code")
	return result, nil
}

// replyStatus reads the err_code field of a reply object. It reports a
// failure only when the field is present and nonzero; the device message
// travels under "err_msg" at the target level and "msg" at the command
// level, so both are checked.
func replyStatus(reply map[string]any) (code int, msg string, failed bool) {
	raw, present := reply["err_code"]
	if !present {
		return 0, "", false
	}
	num, ok := numberVal(raw)
	if !ok || num == 0 {
		return 0, "", false
	}
	if s, ok := reply["err_msg"].(string); ok {
		msg = s
	} else if s, ok := reply["msg"].(string); ok {
		msg = s
	}
	return int(num), msg, true
}
