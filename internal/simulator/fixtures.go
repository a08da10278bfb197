package simulator

import (
	"fmt"
	"strings"
	"time"
)

// Sysinfo fixtures lifted from real device replies, one per simulated
// model.

const hs100SysInfoJSON = `{
	"active_mode": "schedule",
	"alias": "Desk Lamp",
	"dev_name": "Wi-Fi Smart Plug",
	"deviceId": "80061E93E28EEBA9FA1929D15C4678C7172A8AF2",
	"feature": "TIM",
	"fwId": "BFF24826FBC561803E49379DBE74FD71",
	"hwId": "22603EA5E716DEAEA6642A30BE87AFCA",
	"hw_ver": "1.0",
	"icon_hash": "",
	"latitude": 51.4934,
	"led_off": 0,
	"longitude": 0.0098,
	"mac": "50:C7:BF:11:22:33",
	"model": "HS100(UK)",
	"oemId": "812A90EB2FCF306A993FAD8748024B07",
	"on_time": 0,
	"relay_state": 0,
	"rssi": -53,
	"sw_ver": "1.2.5 Build 171206 Rel.085954",
	"type": "IOT.SMARTPLUGSWITCH",
	"updating": 0
}`

const hs110SysInfoJSON = `{
	"active_mode": "schedule",
	"alias": "Kettle",
	"dev_name": "Wi-Fi Smart Plug With Energy Monitoring",
	"deviceId": "800654F32938FCBA8F7327887A386476172B5B53",
	"feature": "TIM:ENE",
	"fwId": "E16EB3E95DB6B47B5B72B3FD86FD1438",
	"hwId": "60FF6B258734EA6880E186F8C96DDC61",
	"hw_ver": "1.0",
	"icon_hash": "",
	"latitude": 52.52,
	"led_off": 0,
	"longitude": 13.405,
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

const lb130SysInfoJSON = `{
	"active_mode": "none",
	"alias": "Floor Lamp",
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

const lb130LightStateJSON = `{
	"on_off": 1,
	"mode": "normal",
	"hue": 0,
	"saturation": 0,
	"color_temp": 2700,
	"brightness": 75
}`

const hs300SysInfoJSON = `{
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

// Models lists the model names NewModel accepts
func Models() []string {
	return []string{"hs100", "hs110", "lb130", "hs300"}
}

// NewModel builds a simulated device by model name
func NewModel(name string) (*Device, error) {
	switch strings.ToLower(name) {
	case "hs100":
		return NewHS100(), nil
	case "hs110":
		return NewHS110(), nil
	case "lb130":
		return NewLB130(), nil
	case "hs300":
		return NewHS300(), nil
	default:
		return nil, fmt.Errorf("unknown simulator model %q (have %s)", name, strings.Join(Models(), ", "))
	}
}

// NewHS100 builds a basic smart plug with no energy meter
func NewHS100() *Device {
	d := newDevice("hs100", hs100SysInfoJSON)
	d.installCommonHandlers()
	d.installRuleHandlers()
	return d
}

// NewHS110 builds an energy-metering smart plug
func NewHS110() *Device {
	d := newDevice("hs110", hs110SysInfoJSON)
	d.installCommonHandlers()
	d.installRuleHandlers()
	d.installPlugEmeterHandlers("emeter")
	return d
}

// NewLB130 builds a full-color smart bulb. Bulbs answer the lighting
// service and the bulb-generation emeter target, and report consumption
// in milli-units.
func NewLB130() *Device {
	d := newDevice("lb130", lb130SysInfoJSON)
	d.installCommonHandlers()
	d.installRuleHandlers()
	d.installLightHandlers(lb130LightStateJSON)
	d.installBulbEmeterHandlers()
	return d
}

// NewHS300 builds a six-outlet power strip simulated with three outlets
// populated. Relay, alias and emeter commands honor child addressing.
func NewHS300() *Device {
	d := newDevice("hs300", hs300SysInfoJSON)
	d.installCommonHandlers()
	d.installRuleHandlers()
	d.installPlugEmeterHandlers("emeter")
	return d
}

// installCommonHandlers wires the command set shared by every family:
// sysinfo reads, identity mutators, clock access and reboot.
// set_relay_state and set_dev_alias honor child addressing so strips
// behave per outlet.
func (d *Device) installCommonHandlers() {
	d.SetHandler("system", "get_sysinfo", func(d *Device, call Call) map[string]any {
		return d.sysinfo
	})

	d.SetHandler("system", "set_relay_state", func(d *Device, call Call) map[string]any {
		state, ok := numArg(call.Args, "state")
		if !ok {
			return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
		}

		if len(call.ChildIDs) > 0 {
			for _, id := range call.ChildIDs {
				child := d.childByID(id)
				if child == nil {
					return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
				}
				child["state"] = state
			}
			return nil
		}

		// Without child addressing, strip firmware applies the state to
		// every outlet; single devices flip their one relay.
		if children, ok := d.sysinfo["children"].([]any); ok {
			for _, item := range children {
				if child, ok := item.(map[string]any); ok {
					child["state"] = state
				}
			}
			return nil
		}
		d.sysinfo["relay_state"] = state
		if state == 0 {
			d.sysinfo["on_time"] = 0
		}
		return nil
	})

	d.SetHandler("system", "set_dev_alias", func(d *Device, call Call) map[string]any {
		alias, ok := call.Args["alias"].(string)
		if !ok {
			return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
		}
		if len(call.ChildIDs) == 0 {
			d.sysinfo["alias"] = alias
			return nil
		}
		for _, id := range call.ChildIDs {
			child := d.childByID(id)
			if child == nil {
				return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
			}
			child["alias"] = alias
		}
		return nil
	})

	d.SetHandler("system", "set_led_off", func(d *Device, call Call) map[string]any {
		off, ok := numArg(call.Args, "off")
		if !ok {
			return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
		}
		d.sysinfo["led_off"] = off
		return nil
	})

	d.SetHandler("system", "set_mac_addr", func(d *Device, call Call) map[string]any {
		mac, ok := call.Args["mac"].(string)
		if !ok {
			return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
		}
		d.sysinfo["mac"] = mac
		return nil
	})

	d.SetHandler("system", "get_dev_icon", func(d *Device, call Call) map[string]any {
		return map[string]any{"icon": "", "hash": ""}
	})

	d.SetHandler("system", "reboot", func(d *Device, call Call) map[string]any {
		// The simulated device acknowledges but does not actually restart
		return nil
	})

	d.SetHandler("time", "get_time", func(d *Device, call Call) map[string]any {
		now := time.Now()
		return map[string]any{
			"year": now.Year(), "month": int(now.Month()), "mday": now.Day(),
			"hour": now.Hour(), "min": now.Minute(), "sec": now.Second(),
		}
	})

	d.SetHandler("time", "get_timezone", func(d *Device, call Call) map[string]any {
		return map[string]any{
			"zone_str":   "Europe/London",
			"dst_offset": 60,
			"index":      39,
			"tz_str":     "GMT0BST,M3.5.0/1,M10.5.0",
		}
	})
}

// outletRealtime is the canned meter reading for a strip outlet. Derived
// from the outlet's position so readings stay distinct and survive
// device-ID rewrites.
func outletRealtime(index int) map[string]any {
	return map[string]any{
		"current": 0.15 + 0.1*float64(index),
		"voltage": 119.2,
		"power":   float64(5 * (index + 1)),
		"total":   0.05 * float64(index+1),
	}
}

// installPlugEmeterHandlers wires the plug-generation energy meter,
// reporting in base units (watts, kWh floats). Strips answer per-outlet
// reads through child addressing and sum across outlets without it.
func (d *Device) installPlugEmeterHandlers(target string) {
	d.SetHandler(target, "get_realtime", func(d *Device, call Call) map[string]any {
		if len(call.ChildIDs) == 1 {
			index := d.childIndex(call.ChildIDs[0])
			if index < 0 {
				return map[string]any{"err_code": -3, "err_msg": "invalid argument"}
			}
			return outletRealtime(index)
		}

		if children, ok := d.sysinfo["children"].([]any); ok {
			total := map[string]any{"current": 0.0, "voltage": 119.2, "power": 0.0, "total": 0.0}
			for i := range children {
				reading := outletRealtime(i)
				total["current"] = total["current"].(float64) + reading["current"].(float64)
				total["power"] = total["power"].(float64) + reading["power"].(float64)
				total["total"] = total["total"].(float64) + reading["total"].(float64)
			}
			return total
		}

		return map[string]any{
			"current": 0.268587,
			"voltage": 125.836131,
			"power":   33.495623,
			"total":   0.199,
		}
	})

	d.SetHandler(target, "get_daystat", func(d *Device, call Call) map[string]any {
		year, _ := numArg(call.Args, "year")
		month, _ := numArg(call.Args, "month")
		if int(year) != time.Now().Year() {
			return map[string]any{"day_list": []any{}}
		}
		return map[string]any{"day_list": []any{
			map[string]any{"year": year, "month": month, "day": 1, "energy": 0.21},
			map[string]any{"year": year, "month": month, "day": 2, "energy": 0.337},
			map[string]any{"year": year, "month": month, "day": 3, "energy": 0.198},
		}}
	})

	d.SetHandler(target, "get_monthstat", func(d *Device, call Call) map[string]any {
		year, _ := numArg(call.Args, "year")
		if int(year) != time.Now().Year() {
			return map[string]any{"month_list": []any{}}
		}
		return map[string]any{"month_list": []any{
			map[string]any{"year": year, "month": 1, "energy": 6.42},
			map[string]any{"year": year, "month": 2, "energy": 5.795},
		}}
	})

	d.SetHandler(target, "erase_emeter_stat", func(d *Device, call Call) map[string]any {
		return nil
	})
}

// installBulbEmeterHandlers wires the bulb-generation energy meter,
// reporting in milli-units (power_mw, energy_wh integers).
func (d *Device) installBulbEmeterHandlers() {
	const target = "smartlife.iot.common.emeter"

	d.SetHandler(target, "get_realtime", func(d *Device, call Call) map[string]any {
		return map[string]any{"power_mw": 10800}
	})

	d.SetHandler(target, "get_daystat", func(d *Device, call Call) map[string]any {
		year, _ := numArg(call.Args, "year")
		month, _ := numArg(call.Args, "month")
		if int(year) != time.Now().Year() {
			return map[string]any{"day_list": []any{}}
		}
		return map[string]any{"day_list": []any{
			map[string]any{"year": year, "month": month, "day": 1, "energy_wh": 120},
			map[string]any{"year": year, "month": month, "day": 2, "energy_wh": 98},
		}}
	})

	d.SetHandler(target, "get_monthstat", func(d *Device, call Call) map[string]any {
		year, _ := numArg(call.Args, "year")
		if int(year) != time.Now().Year() {
			return map[string]any{"month_list": []any{}}
		}
		return map[string]any{"month_list": []any{
			map[string]any{"year": year, "month": 1, "energy_wh": 3042},
			map[string]any{"year": year, "month": 2, "energy_wh": 2788},
		}}
	})

	d.SetHandler(target, "erase_emeter_stat", func(d *Device, call Call) map[string]any {
		return nil
	})
}

// installLightHandlers wires the bulb lighting service. Turning off
// snapshots the running levels into dft_on_state; turning back on
// restores them, the way bulb firmware behaves.
func (d *Device) installLightHandlers(lightStateJSON string) {
	d.lightState = mustParseFixture("light state", lightStateJSON)

	const target = "smartlife.iot.smartbulb.lightingservice"

	d.SetHandler(target, "get_light_state", func(d *Device, call Call) map[string]any {
		return d.lightState
	})

	d.SetHandler(target, "transition_light_state", func(d *Device, call Call) map[string]any {
		onOff, hasOnOff := numArg(call.Args, "on_off")

		if hasOnOff && onOff == 0 {
			if isOff(d.lightState) {
				return nil
			}
			// Moving to off: park the running levels as the power-on state
			dft := make(map[string]any)
			for _, key := range []string{"mode", "hue", "saturation", "color_temp", "brightness"} {
				if v, ok := d.lightState[key]; ok {
					dft[key] = v
				}
			}
			d.lightState = map[string]any{"on_off": 0, "dft_on_state": dft}
			return nil
		}

		if isOff(d.lightState) {
			// Coming back on (or adjusting while off): restore the parked
			// levels before applying the requested changes.
			restored := map[string]any{"on_off": 0}
			if dft, ok := d.lightState["dft_on_state"].(map[string]any); ok {
				for k, v := range dft {
					restored[k] = v
				}
			}
			d.lightState = restored
		}

		for key, value := range call.Args {
			if key == "ignore_default" || key == "transition_period" {
				continue
			}
			d.lightState[key] = value
		}
		if !hasOnOff && isOff(d.lightState) {
			// Level changes while off stay parked; the bulb does not turn
			// itself on.
			dft := make(map[string]any)
			for _, key := range []string{"mode", "hue", "saturation", "color_temp", "brightness"} {
				if v, ok := d.lightState[key]; ok {
					dft[key] = v
					delete(d.lightState, key)
				}
			}
			d.lightState["dft_on_state"] = dft
		}
		return nil
	})
}

// isOff reads a light state's on_off flag
func isOff(lightState map[string]any) bool {
	switch on := lightState["on_off"].(type) {
	case float64:
		return on == 0
	case int:
		return on == 0
	}
	return true
}
