package simulator

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Call is one command addressed to a simulated device, unwrapped from the
// request envelope.
type Call struct {
	Target   string
	Command  string
	Args     map[string]any
	ChildIDs []string
}

// Handler computes a command's result object and may mutate the device,
// mirroring firmware side effects. Handlers run with the device lock
// held. A nil result means the command succeeds with no payload beyond
// the status field; a result carrying its own err_code is passed through
// as a device-reported failure.
type Handler func(d *Device, call Call) map[string]any

// Device is one simulated Kasa device: a mutable sysinfo block and a
// command table routing target/command pairs to handlers. State changes
// made by one command are observed by later reads, so a simulated device
// behaves like the stateful appliance it imitates.
type Device struct {
	mu sync.Mutex

	model      string
	sysinfo    map[string]any
	lightState map[string]any
	rules      map[string][]map[string]any
	ruleSeq    int
	handlers   map[string]Handler
	targets    map[string]bool
}

// newDevice builds a device around a sysinfo fixture
func newDevice(model, sysinfoJSON string) *Device {
	return &Device{
		model:    model,
		sysinfo:  mustParseFixture(model+" sysinfo", sysinfoJSON),
		rules:    make(map[string][]map[string]any),
		handlers: make(map[string]Handler),
		targets:  make(map[string]bool),
	}
}

// mustParseFixture parses package-internal fixture JSON, where a parse
// failure is a programming error.
func mustParseFixture(name, fixtureJSON string) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(fixtureJSON), &parsed); err != nil {
		panic(fmt.Sprintf("simulator: bad %s fixture: %v", name, err))
	}
	return parsed
}

// Model returns the model name the device was built from, e.g. "hs110"
func (d *Device) Model() string {
	return d.model
}

// SetHandler installs or replaces the handler for one command
func (d *Device) SetHandler(target, command string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[target+"."+command] = h
	d.targets[target] = true
}

// SetAlias renames the device
func (d *Device) SetAlias(alias string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sysinfo["alias"] = alias
}

// Alias returns the device's current name
func (d *Device) Alias() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	alias, _ := d.sysinfo["alias"].(string)
	return alias
}

// SetDeviceID rewrites the device's unique ID. Strip child IDs derive
// from the device ID, so they are rewritten to match.
func (d *Device) SetDeviceID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sysinfo["deviceId"] = id
	children, _ := d.sysinfo["children"].([]any)
	for i, item := range children {
		if child, ok := item.(map[string]any); ok {
			child["id"] = fmt.Sprintf("%s%02d", id, i)
		}
	}
}

// DeviceID returns the device's unique ID
func (d *Device) DeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, _ := d.sysinfo["deviceId"].(string)
	return id
}

// HandleRequest services one decrypted request envelope and returns the
// reply envelope. Every target in the request is answered: unknown
// targets with a module-level error, unknown commands with a
// member-level error, and known commands with their handler's result.
// An envelope that is not a JSON object cannot be answered at all and
// returns an error; the server drops the connection, as firmware does.
func (d *Device) HandleRequest(payload []byte) ([]byte, error) {
	var request map[string]any
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil, fmt.Errorf("request is not a JSON object: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// The context block is a sibling of the targets, not a target itself
	var childIDs []string
	if reqCtx, ok := request["context"].(map[string]any); ok {
		ids, _ := reqCtx["child_ids"].([]any)
		for _, id := range ids {
			if s, ok := id.(string); ok {
				childIDs = append(childIDs, s)
			}
		}
		delete(request, "context")
	}

	reply := make(map[string]any, len(request))
	for target, block := range request {
		commands, ok := block.(map[string]any)
		if !ok || !d.targets[target] {
			reply[target] = map[string]any{
				"err_code": -2001,
				"err_msg":  "Module not support",
			}
			continue
		}

		targetReply := make(map[string]any, len(commands))
		for command, args := range commands {
			handler, known := d.handlers[target+"."+command]
			if !known {
				targetReply[command] = map[string]any{
					"err_code": -2,
					"err_msg":  "member not support",
				}
				continue
			}

			call := Call{Target: target, Command: command, ChildIDs: childIDs}
			call.Args, _ = args.(map[string]any)

			// Copy before adding the status field so handlers that return
			// device state do not get wire fields written back into it.
			result := handler(d, call)
			merged := make(map[string]any, len(result)+1)
			for k, v := range result {
				merged[k] = v
			}
			if _, reported := merged["err_code"]; !reported {
				merged["err_code"] = 0
			}
			targetReply[command] = merged
		}
		reply[target] = targetReply
	}

	return json.Marshal(reply)
}

// childByID finds a child entry in the sysinfo children list. Returns
// nil when the device has no such child.
func (d *Device) childByID(id string) map[string]any {
	children, _ := d.sysinfo["children"].([]any)
	for _, item := range children {
		child, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if child["id"] == id {
			return child
		}
	}
	return nil
}

// childIndex finds a child's position in the sysinfo children list, or
// -1 when the device has no such child.
func (d *Device) childIndex(id string) int {
	children, _ := d.sysinfo["children"].([]any)
	for i, item := range children {
		if child, ok := item.(map[string]any); ok && child["id"] == id {
			return i
		}
	}
	return -1
}

// numArg reads a numeric command argument, tolerating the float64 values
// JSON decoding produces.
func numArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// ruleTargets are the rule systems every simulated device answers for
var ruleTargets = []string{"schedule", "count_down", "anti_theft"}

// nextRuleID assigns a device-unique rule ID in the firmware's format
func (d *Device) nextRuleID() string {
	d.ruleSeq++
	return fmt.Sprintf("%032X", d.ruleSeq)
}

// installRuleHandlers wires the shared rule CRUD commands for every rule
// system, plus the schedule-only extras.
func (d *Device) installRuleHandlers() {
	for _, target := range ruleTargets {
		target := target
		d.SetHandler(target, "get_rules", func(d *Device, call Call) map[string]any {
			list := make([]any, len(d.rules[target]))
			for i, rule := range d.rules[target] {
				list[i] = rule
			}
			return map[string]any{"rule_list": list, "version": 2, "enable": 1}
		})
		d.SetHandler(target, "add_rule", func(d *Device, call Call) map[string]any {
			rule := make(map[string]any, len(call.Args)+1)
			for k, v := range call.Args {
				rule[k] = v
			}
			id := d.nextRuleID()
			rule["id"] = id
			d.rules[target] = append(d.rules[target], rule)
			return map[string]any{"id": id}
		})
		d.SetHandler(target, "edit_rule", func(d *Device, call Call) map[string]any {
			id, _ := call.Args["id"].(string)
			for i, rule := range d.rules[target] {
				if rule["id"] == id {
					edited := make(map[string]any, len(call.Args))
					for k, v := range call.Args {
						edited[k] = v
					}
					d.rules[target][i] = edited
					return nil
				}
			}
			return map[string]any{"err_code": -14, "err_msg": "entry not exist"}
		})
		d.SetHandler(target, "delete_rule", func(d *Device, call Call) map[string]any {
			id, _ := call.Args["id"].(string)
			for i, rule := range d.rules[target] {
				if rule["id"] == id {
					d.rules[target] = append(d.rules[target][:i], d.rules[target][i+1:]...)
					return nil
				}
			}
			return map[string]any{"err_code": -14, "err_msg": "entry not exist"}
		})
		d.SetHandler(target, "delete_all_rules", func(d *Device, call Call) map[string]any {
			d.rules[target] = nil
			return nil
		})
	}

	d.SetHandler("schedule", "get_next_action", func(d *Device, call Call) map[string]any {
		// The simulator never actually fires schedules, so there is no
		// next action to report.
		return map[string]any{"type": -1}
	})
	d.SetHandler("schedule", "erase_runtime_stat", func(d *Device, call Call) map[string]any {
		return nil
	})
}

// String describes the device for logs
func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	model, _ := d.sysinfo["model"].(string)
	alias, _ := d.sysinfo["alias"].(string)
	return fmt.Sprintf("%s %q", model, alias)
}
