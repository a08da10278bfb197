package device

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/muurk/kasalink/internal/protocol"
)

// queryFunc adapts a function to the Querier interface
type queryFunc func(ctx context.Context, host string, request any) (map[string]any, error)

func (f queryFunc) Query(ctx context.Context, host string, request any) (map[string]any, error) {
	return f(ctx, host, request)
}

// parseReply builds the decoded reply a Querier would return
func parseReply(t *testing.T, raw string) map[string]any {
	t.Helper()
	var reply map[string]any
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		t.Fatalf("bad reply fixture: %v", err)
	}
	return reply
}

func TestDispatcher_Call_EnvelopeShape(t *testing.T) {
	tests := []struct {
		name     string
		children []string
		args     any
		want     string
	}{
		{
			name: "nil args become JSON null",
			args: nil,
			want: `{"system":{"get_sysinfo":null}}`,
		},
		{
			name: "args pass through",
			args: map[string]any{"state": 1},
			want: `{"system":{"get_sysinfo":{"state":1}}}`,
		},
		{
			name:     "child binding adds context",
			children: []string{"ABC01"},
			args:     nil,
			want:     `{"context":{"child_ids":["ABC01"]},"system":{"get_sysinfo":null}}`,
		},
		{
			name:     "multiple children listed in order",
			children: []string{"ABC01", "ABC02"},
			args:     nil,
			want:     `{"context":{"child_ids":["ABC01","ABC02"]},"system":{"get_sysinfo":null}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured any
			q := queryFunc(func(ctx context.Context, host string, request any) (map[string]any, error) {
				captured = request
				return parseReply(t, `{"system":{"get_sysinfo":{"err_code":0,"alias":"x"}}}`), nil
			})

			disp := NewDispatcher(q, "192.0.2.1")
			if len(tt.children) > 0 {
				disp = disp.WithChildren(tt.children...)
			}

			if _, err := disp.Call(context.Background(), "system", "get_sysinfo", tt.args); err != nil {
				t.Fatalf("Call failed: %v", err)
			}

			got, err := json.Marshal(captured)
			if err != nil {
				t.Fatalf("captured request does not marshal: %v", err)
			}

			var gotMap, wantMap map[string]any
			if err := json.Unmarshal(got, &gotMap); err != nil {
				t.Fatalf("unmarshal captured: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.want), &wantMap); err != nil {
				t.Fatalf("unmarshal want: %v", err)
			}
			if !reflect.DeepEqual(gotMap, wantMap) {
				t.Errorf("envelope = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDispatcher_WithChildren_DoesNotModifyParent(t *testing.T) {
	var captured []any
	q := queryFunc(func(ctx context.Context, host string, request any) (map[string]any, error) {
		captured = append(captured, request)
		return parseReply(t, `{"system":{"set_relay_state":{"err_code":0}}}`), nil
	})

	parent := NewDispatcher(q, "192.0.2.1")
	child := parent.WithChildren("KID00")

	if _, err := child.Call(context.Background(), "system", "set_relay_state", map[string]any{"state": 1}); err != nil {
		t.Fatalf("child call failed: %v", err)
	}
	if _, err := parent.Call(context.Background(), "system", "set_relay_state", map[string]any{"state": 1}); err != nil {
		t.Fatalf("parent call failed: %v", err)
	}

	childEnv := captured[0].(map[string]any)
	if _, ok := childEnv["context"]; !ok {
		t.Error("child dispatcher envelope is missing context field")
	}
	parentEnv := captured[1].(map[string]any)
	if _, ok := parentEnv["context"]; ok {
		t.Error("parent dispatcher envelope gained a context field")
	}
}

func TestDispatcher_Call_ReplyValidation(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		check func(t *testing.T, result map[string]any, err error)
	}{
		{
			name:  "success strips err_code",
			reply: `{"system":{"get_sysinfo":{"err_code":0,"alias":"Plug","relay_state":1}}}`,
			check: func(t *testing.T, result map[string]any, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, present := result["err_code"]; present {
					t.Error("err_code survived into the result")
				}
				if result["alias"] != "Plug" {
					t.Errorf("alias = %v, want Plug", result["alias"])
				}
			},
		},
		{
			name:  "missing target",
			reply: `{"emeter":{"get_realtime":{"err_code":0}}}`,
			check: func(t *testing.T, result map[string]any, err error) {
				if !protocol.IsProtocolError(err) {
					t.Fatalf("err = %v, want ProtocolError", err)
				}
			},
		},
		{
			name:  "missing command result",
			reply: `{"system":{}}`,
			check: func(t *testing.T, result map[string]any, err error) {
				if !protocol.IsProtocolError(err) {
					t.Fatalf("err = %v, want ProtocolError", err)
				}
			},
		},
		{
			name:  "target-level error",
			reply: `{"system":{"err_code":-2001,"err_msg":"Module not support"}}`,
			check: func(t *testing.T, result map[string]any, err error) {
				var devErr *DeviceError
				if !errors.As(err, &devErr) {
					t.Fatalf("err = %v, want DeviceError", err)
				}
				if devErr.Code != -2001 {
					t.Errorf("Code = %d, want -2001", devErr.Code)
				}
				if devErr.Message != "Module not support" {
					t.Errorf("Message = %q, want firmware message", devErr.Message)
				}
				if devErr.Target != "system" || devErr.Command != "get_sysinfo" {
					t.Errorf("error names %s.%s, want system.get_sysinfo", devErr.Target, devErr.Command)
				}
			},
		},
		{
			name:  "command-level error",
			reply: `{"system":{"get_sysinfo":{"err_code":-1323,"msg":"invalid argument"}}}`,
			check: func(t *testing.T, result map[string]any, err error) {
				var devErr *DeviceError
				if !errors.As(err, &devErr) {
					t.Fatalf("err = %v, want DeviceError", err)
				}
				if devErr.Code != -1323 {
					t.Errorf("Code = %d, want -1323", devErr.Code)
				}
				if devErr.Message != "invalid argument" {
					t.Errorf("Message = %q, want invalid argument", devErr.Message)
				}
			},
		},
		{
			name:  "zero err_code at target level is not an error",
			reply: `{"system":{"err_code":0,"get_sysinfo":{"err_code":0,"alias":"Plug"}}}`,
			check: func(t *testing.T, result map[string]any, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queryFunc(func(ctx context.Context, host string, request any) (map[string]any, error) {
				return parseReply(t, tt.reply), nil
			})
			disp := NewDispatcher(q, "192.0.2.1")
			result, err := disp.Call(context.Background(), "system", "get_sysinfo", nil)
			tt.check(t, result, err)
		})
	}
}

func TestDispatcher_Call_TransportFailurePreserved(t *testing.T) {
	base := protocol.NewTransportError("dial", "192.0.2.1:9999", context.DeadlineExceeded)
	q := queryFunc(func(ctx context.Context, host string, request any) (map[string]any, error) {
		return nil, base
	})

	disp := NewDispatcher(q, "192.0.2.1")
	_, err := disp.Call(context.Background(), "system", "get_sysinfo", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !protocol.IsTransportError(err) {
		t.Errorf("TransportError lost through wrapping: %v", err)
	}
	var transErr *protocol.TransportError
	if errors.As(err, &transErr) && transErr.Op != "dial" {
		t.Errorf("Op = %q, want dial", transErr.Op)
	}
}
