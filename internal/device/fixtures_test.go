package device

import (
	"context"
	"encoding/json"
	"testing"
)

// Sysinfo fixtures lifted from real device replies, one per family
// variant the tests exercise.

const plugSysInfoJSON = `{
	"active_mode": "schedule",
	"alias": "Mobile Plug",
	"dev_name": "Wi-Fi Smart Plug With Energy Monitoring",
	"deviceId": "800654F32938FCBA8F7327887A386476172B5B53",
	"err_code": 0,
	"feature": "TIM:ENE",
	"fwId": "E16EB3E95DB6B47B5B72B3FD86FD1438",
	"hwId": "60FF6B258734EA6880E186F8C96DDC61",
	"hw_ver": "1.0",
	"icon_hash": "",
	"latitude": 12.2,
	"led_off": 0,
	"longitude": -12.2,
	"mac": "AA:BB:CC:11:22:33",
	"model": "HS110(US)",
	"oemId": "FFF22CFF774A0B89F7624BFC6F50D5DE",
	"on_time": 9022,
	"relay_state": 1,
	"rssi": -61,
	"sw_ver": "1.0.8 Build 151113 Rel.24658",
	"type": "IOT.SMARTPLUGSWITCH",
	"updating": 0
}`

const basicPlugSysInfoJSON = `{
	"active_mode": "schedule",
	"alias": "My Smart Plug",
	"dev_name": "Wi-Fi Smart Plug",
	"deviceId": "80061E93E28EEBA9FA1929D15C4678C7172A8AF2",
	"feature": "TIM",
	"fwId": "BFF24826FBC561803E49379DBE74FD71",
	"hwId": "22603EA5E716DEAEA6642A30BE87AFCA",
	"hw_ver": "1.0",
	"icon_hash": "",
	"latitude": 12.2,
	"led_off": 0,
	"longitude": 12.2,
	"mac": "50:C7:BF:11:22:33",
	"model": "HS100(EU)",
	"oemId": "812A90EB2FCF306A993FAD8748024B07",
	"on_time": 255419,
	"relay_state": 1,
	"sw_ver": "1.0.8 Build 151101 Rel.24452",
	"type": "smartplug",
	"updating": 0
}`

const dimmerSysInfoJSON = `{
	"alias": "Hallway Dimmer",
	"brightness": 50,
	"dev_name": "Wi-Fi Smart Dimmer",
	"deviceId": "8006A1B2C3D4E5F60718293A4B5C6D7E8F901234",
	"feature": "TIM",
	"hw_ver": "1.0",
	"led_off": 0,
	"mac": "50:C7:BF:AA:BB:CC",
	"model": "HS220(US)",
	"on_time": 0,
	"relay_state": 0,
	"rssi": -48,
	"sw_ver": "1.5.7 Build 180128 Rel.144482",
	"type": "IOT.SMARTPLUGSWITCH"
}`

const colorBulbSysInfoJSON = `{
	"active_mode": "none",
	"alias": "Living Room Side Table",
	"description": "Smart Wi-Fi LED Bulb with Color Changing",
	"dev_state": "normal",
	"deviceId": "80123C4640E9FC33A9019A0F3FD8BF5C17B7D9A8",
	"disco_ver": "1.0",
	"hwId": "111E35908497A05512E259BB76801E10",
	"hw_ver": "1.0",
	"is_color": 1,
	"is_dimmable": 1,
	"is_factory": false,
	"is_variable_color_temp": 1,
	"mic_mac": "50C7BF104865",
	"mic_type": "IOT.SMARTBULB",
	"model": "LB130(US)",
	"oemId": "05BF7B3BE1675C5A6867B7A7E4C9F6F7",
	"rssi": -55,
	"sw_ver": "1.1.2 Build 160927 Rel.111100"
}`

const whiteBulbSysInfoJSON = `{
	"active_mode": "schedule",
	"alias": "Downstairs Light",
	"description": "Smart Wi-Fi LED Bulb with Dimmable Light",
	"dev_state": "normal",
	"deviceId": "80120B3D03E0B639CDF33E3CB1466490187FEF32",
	"hwId": "111E35908497A05512E259BB76801E10",
	"hw_ver": "1.0",
	"is_color": 0,
	"is_dimmable": 1,
	"is_factory": false,
	"is_variable_color_temp": 0,
	"mic_mac": "50C7BF7BE306",
	"mic_type": "IOT.SMARTBULB",
	"model": "LB110(EU)",
	"oemId": "A68E15472071CB761E5CCFB388A1D8AE",
	"rssi": -61,
	"sw_ver": "1.5.5 Build 170623 Rel.090105"
}`

const bulbOnLightStateJSON = `{
	"on_off": 1,
	"mode": "normal",
	"hue": 0,
	"saturation": 0,
	"color_temp": 3700,
	"brightness": 100
}`

const bulbOffLightStateJSON = `{
	"on_off": 0,
	"dft_on_state": {
		"brightness": 92,
		"color_temp": 2700,
		"hue": 120,
		"saturation": 75,
		"mode": "normal"
	}
}`

const stripSysInfoJSON = `{
	"alias": "Workbench Strip",
	"child_num": 3,
	"children": [
		{"id": "800654F32938FCBA8F7327887A38647617B2DF0A00", "state": 1, "alias": "Soldering Iron", "on_time": 3600, "next_action": {"type": -1}},
		{"id": "800654F32938FCBA8F7327887A38647617B2DF0A01", "state": 0, "alias": "Bench Light", "on_time": 0, "next_action": {"type": -1}},
		{"id": "800654F32938FCBA8F7327887A38647617B2DF0A02", "state": 1, "alias": "Scope", "on_time": 120, "next_action": {"type": -1}}
	],
	"deviceId": "800654F32938FCBA8F7327887A38647617B2DF0A",
	"feature": "TIM:ENE",
	"hw_ver": "1.0",
	"led_off": 0,
	"mac": "B0:BE:76:11:22:33",
	"model": "HS300(US)",
	"rssi": -42,
	"sw_ver": "1.0.19 Build 200224 Rel.090814",
	"type": "IOT.SMARTPLUGSWITCH"
}`

// fakeCall is one envelope the fake transport received, unwrapped
type fakeCall struct {
	target   string
	command  string
	args     map[string]any
	childIDs []string
}

// fakeHandler computes a command's result object and may mutate the fake's
// state, mirroring firmware side effects. A nil result means the command
// succeeds with no payload beyond the status field.
type fakeHandler func(f *fakeTransport, call fakeCall) map[string]any

// fakeTransport implements Querier in memory. Requests are round-tripped
// through JSON so the fake sees exactly what a device would, and handlers
// mutate held state so reads after writes observe the change.
type fakeTransport struct {
	t          *testing.T
	sysinfo    map[string]any
	lightState map[string]any
	handlers   map[string]fakeHandler
	calls      []fakeCall
}

func (f *fakeTransport) Query(ctx context.Context, host string, request any) (map[string]any, error) {
	f.t.Helper()

	payload, err := json.Marshal(request)
	if err != nil {
		f.t.Fatalf("request does not serialize: %v", err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		f.t.Fatalf("request does not round-trip: %v", err)
	}

	call := fakeCall{}
	if devCtx, ok := envelope["context"].(map[string]any); ok {
		ids, _ := devCtx["child_ids"].([]any)
		for _, id := range ids {
			if s, ok := id.(string); ok {
				call.childIDs = append(call.childIDs, s)
			}
		}
	}
	for target, v := range envelope {
		if target == "context" {
			continue
		}
		commands, ok := v.(map[string]any)
		if !ok || len(commands) != 1 {
			f.t.Fatalf("malformed envelope for target %q: %v", target, v)
		}
		call.target = target
		for command, args := range commands {
			call.command = command
			call.args, _ = args.(map[string]any)
		}
	}
	f.calls = append(f.calls, call)

	handler, ok := f.handlers[call.target+"."+call.command]
	if !ok {
		return map[string]any{call.target: map[string]any{call.command: map[string]any{
			"err_code": float64(-1323),
			"msg":      "command not found",
		}}}, nil
	}

	result := handler(f, call)
	if result == nil {
		result = map[string]any{}
	}
	result["err_code"] = float64(0)
	return map[string]any{call.target: map[string]any{call.command: result}}, nil
}

// callsTo returns the recorded calls matching target.command
func (f *fakeTransport) callsTo(target, command string) []fakeCall {
	var matched []fakeCall
	for _, call := range f.calls {
		if call.target == target && call.command == command {
			matched = append(matched, call)
		}
	}
	return matched
}

func mustParseJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return parsed
}

// childByID finds a child entry in the fake's sysinfo children list
func childByID(sysinfo map[string]any, id string) map[string]any {
	children, _ := sysinfo["children"].([]any)
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

// newFakeTransport builds a fake with the command set shared by every
// family: sysinfo reads, identity mutators, clock access and reboot.
// set_relay_state and set_dev_alias honor child addressing so strip tests
// observe per-outlet effects.
func newFakeTransport(t *testing.T, sysinfoJSON string) *fakeTransport {
	f := &fakeTransport{
		t:       t,
		sysinfo: mustParseJSON(t, sysinfoJSON),
	}
	f.handlers = map[string]fakeHandler{
		"system.get_sysinfo": func(f *fakeTransport, call fakeCall) map[string]any {
			return f.sysinfo
		},
		"system.set_relay_state": func(f *fakeTransport, call fakeCall) map[string]any {
			state := call.args["state"]
			if len(call.childIDs) > 0 {
				for _, id := range call.childIDs {
					if child := childByID(f.sysinfo, id); child != nil {
						child["state"] = state
					}
				}
				return nil
			}
			// Without child addressing, strip firmware applies the state
			// to every outlet; single plugs flip their one relay.
			if children, ok := f.sysinfo["children"].([]any); ok {
				for _, item := range children {
					if child, ok := item.(map[string]any); ok {
						child["state"] = state
					}
				}
				return nil
			}
			f.sysinfo["relay_state"] = state
			return nil
		},
		"system.set_led_off": func(f *fakeTransport, call fakeCall) map[string]any {
			f.sysinfo["led_off"] = call.args["off"]
			return nil
		},
		"system.set_dev_alias": func(f *fakeTransport, call fakeCall) map[string]any {
			alias := call.args["alias"]
			if len(call.childIDs) == 0 {
				f.sysinfo["alias"] = alias
				return nil
			}
			for _, id := range call.childIDs {
				if child := childByID(f.sysinfo, id); child != nil {
					child["alias"] = alias
				}
			}
			return nil
		},
		"system.set_mac_addr": func(f *fakeTransport, call fakeCall) map[string]any {
			f.sysinfo["mac"] = call.args["mac"]
			return nil
		},
		"system.get_dev_icon": func(f *fakeTransport, call fakeCall) map[string]any {
			return map[string]any{"icon": "", "hash": ""}
		},
		"system.reboot": func(f *fakeTransport, call fakeCall) map[string]any {
			return nil
		},
		"time.get_time": func(f *fakeTransport, call fakeCall) map[string]any {
			return map[string]any{
				"year": float64(2017), "month": float64(1), "mday": float64(2),
				"hour": float64(3), "min": float64(4), "sec": float64(5),
			}
		},
		"time.get_timezone": func(f *fakeTransport, call fakeCall) map[string]any {
			return map[string]any{
				"zone_str": "test", "dst_offset": float64(-1),
				"index": float64(12), "tz_str": "test2",
			}
		},
	}
	return f
}

// withPlugEmeter adds the plug-generation emeter commands, reporting in
// base units (watts, kWh floats).
func (f *fakeTransport) withPlugEmeter() *fakeTransport {
	f.handlers["emeter.get_realtime"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return map[string]any{
			"current": 0.268587, "voltage": 125.836131,
			"power": 33.495623, "total": 0.199,
		}
	}
	f.handlers["emeter.get_daystat"] = func(f *fakeTransport, call fakeCall) map[string]any {
		if year, _ := call.args["year"].(float64); year < 2016 {
			return map[string]any{"day_list": []any{}}
		}
		return map[string]any{"day_list": []any{
			map[string]any{"year": float64(2016), "month": float64(11), "day": float64(24), "energy": 0.026},
			map[string]any{"year": float64(2016), "month": float64(11), "day": float64(25), "energy": 0.109},
		}}
	}
	f.handlers["emeter.get_monthstat"] = func(f *fakeTransport, call fakeCall) map[string]any {
		if year, _ := call.args["year"].(float64); year < 2016 {
			return map[string]any{"month_list": []any{}}
		}
		return map[string]any{"month_list": []any{
			map[string]any{"year": float64(2016), "month": float64(11), "energy": 1.089},
			map[string]any{"year": float64(2016), "month": float64(12), "energy": 1.582},
		}}
	}
	f.handlers["emeter.erase_emeter_stat"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return nil
	}
	return f
}

// withBulbEmeter adds the bulb-generation emeter commands, reporting in
// milli-units (power_mw, energy_wh integers).
func (f *fakeTransport) withBulbEmeter() *fakeTransport {
	f.handlers["smartlife.iot.common.emeter.get_realtime"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return map[string]any{"power_mw": float64(10800)}
	}
	f.handlers["smartlife.iot.common.emeter.get_daystat"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return map[string]any{"day_list": []any{
			map[string]any{"year": float64(2016), "month": float64(11), "day": float64(24), "energy_wh": float64(20)},
			map[string]any{"year": float64(2016), "month": float64(11), "day": float64(25), "energy_wh": float64(32)},
		}}
	}
	f.handlers["smartlife.iot.common.emeter.get_monthstat"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return map[string]any{"month_list": []any{
			map[string]any{"year": float64(2016), "month": float64(11), "energy_wh": float64(32)},
			map[string]any{"year": float64(2016), "month": float64(12), "energy_wh": float64(16)},
		}}
	}
	f.handlers["smartlife.iot.common.emeter.erase_emeter_stat"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return nil
	}
	return f
}

// withLightState adds the bulb lighting service. Transitions merge the
// requested fields into the held state the way real firmware does.
func (f *fakeTransport) withLightState(lightStateJSON string) *fakeTransport {
	f.lightState = mustParseJSON(f.t, lightStateJSON)
	f.handlers[lightTarget+".get_light_state"] = func(f *fakeTransport, call fakeCall) map[string]any {
		return f.lightState
	}
	f.handlers[lightTarget+".transition_light_state"] = func(f *fakeTransport, call fakeCall) map[string]any {
		for key, value := range call.args {
			f.lightState[key] = value
		}
		return nil
	}
	return f
}

// withStripEmeter adds per-outlet energy metering: realtime reads must
// address exactly one child and report that outlet's figures.
func (f *fakeTransport) withStripEmeter(powerByChild map[string]float64) *fakeTransport {
	f.handlers["emeter.get_realtime"] = func(f *fakeTransport, call fakeCall) map[string]any {
		if len(call.childIDs) != 1 {
			f.t.Fatalf("strip emeter read must address one child, got %v", call.childIDs)
		}
		power, known := powerByChild[call.childIDs[0]]
		if !known {
			f.t.Fatalf("emeter read for unknown child %q", call.childIDs[0])
		}
		return map[string]any{
			"power": power, "voltage": 120.1, "current": 0.5, "total": 0.1,
		}
	}
	return f
}

// withDimmer adds the wall-dimmer brightness command
func (f *fakeTransport) withDimmer() *fakeTransport {
	f.handlers[dimmerTarget+".set_brightness"] = func(f *fakeTransport, call fakeCall) map[string]any {
		f.sysinfo["brightness"] = call.args["brightness"]
		return nil
	}
	return f
}
