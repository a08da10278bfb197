// Package device models the Kasa device families and routes their
// commands through a single dispatcher.
//
// # Device Families
//
// Three families cover the product line. Plug is a single relay with a
// status LED, optional energy meter, and on dimmer models a brightness
// level. Bulb keeps its light state under a dedicated protocol target and
// gates dimming, color and color temperature on per-model capability
// flags. Strip is a plug with child outlets, each addressable through a
// context field in the dispatch envelope. All three embed Device, which
// carries the shared surface: sysinfo projection, identity accessors,
// clock access, reboot and energy metering.
//
// # Dispatch
//
// Every operation flows through Dispatcher.Call, which builds the
// {"target": {"command": args}} envelope, attaches child addressing when
// bound via WithChildren, and validates the reply. A nonzero err_code at
// the target or command level becomes a DeviceError; this is the only
// place error codes are interpreted. The transport behind the dispatcher
// is the Querier interface, so tests swap in fakes without sockets.
//
// # Fresh Reads
//
// Accessors dispatch on every call and cache nothing. A read after a
// mutation reflects the device's actual state, at the cost of one
// round trip per accessor. Callers wanting fewer round trips fetch
// SysInfo once and project fields themselves.
//
// # Error Handling
//
// Operations a device cannot perform fail before any network traffic:
// out-of-range arguments return a ValidationError and missing
// capabilities return an UnsupportedError. Failures reported by the
// device itself surface as DeviceError, and transport or framing
// failures bubble up from the protocol package unchanged.
package device
