package device

import (
	"context"
	"time"

	"github.com/muurk/kasalink/internal/protocol"
)

// Emeter target names. Plugs and strips answer on "emeter"; bulbs moved
// energy metering under the smartlife namespace.
const (
	emeterTargetPlug = "emeter"
	emeterTargetBulb = "smartlife.iot.common.emeter"
)

// Appliance is the behaviour every device family supports: identity,
// power switching, and energy metering. FromDescriptor returns this so
// callers can drive a mixed fleet without knowing each family up front.
type Appliance interface {
	Host() string
	SysInfo(ctx context.Context) (SysInfo, error)
	Alias(ctx context.Context) (string, error)
	SetAlias(ctx context.Context, alias string) error
	IsOn(ctx context.Context) (bool, error)
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	HasEmeter(ctx context.Context) (bool, error)
	EmeterRealtime(ctx context.Context) (EmeterReading, error)
}

// Option configures device construction
type Option func(*settings)

type settings struct {
	port    int
	timeout time.Duration
	querier Querier
}

// WithPort overrides the TCP port used to reach the device
func WithPort(port int) Option {
	return func(s *settings) {
		s.port = port
	}
}

// WithTimeout overrides the per-exchange timeout
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.timeout = timeout
	}
}

// WithQuerier substitutes the transport. Tests use this to talk to an
// in-memory fake instead of a socket.
func WithQuerier(q Querier) Option {
	return func(s *settings) {
		s.querier = q
	}
}

// Device is the state and behaviour shared by every family: sysinfo
// projection, identity accessors, clock access, and energy metering. Plug,
// Bulb and Strip embed it and add their family-specific operations.
//
// A Device holds no cached state: every accessor performs a fresh
// dispatch, so two reads may disagree if the device changed in between.
// Instances are independent and need no locking.
type Device struct {
	disp *Dispatcher

	// emeterTarget selects the metering namespace for this family, and
	// emeterAssumed marks families (bulbs) that meter without advertising
	// the feature token.
	emeterTarget  string
	emeterAssumed bool
}

// New creates a device handle for the given host. The host may carry an
// explicit port, which then wins over WithPort. No network traffic happens
// until an operation is invoked.
func New(host string, opts ...Option) *Device {
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}
	querier := cfg.querier
	if querier == nil {
		querier = protocol.NewClient(cfg.port, cfg.timeout)
	}
	return &Device{
		disp:         NewDispatcher(querier, host),
		emeterTarget: emeterTargetPlug,
	}
}

// Host returns the device address this handle targets
func (d *Device) Host() string {
	return d.disp.Host()
}

// Dispatcher exposes the command dispatcher, for collaborators layered on
// the same exchange primitive (e.g. rule repositories).
func (d *Device) Dispatcher() *Dispatcher {
	return d.disp
}

// SysInfo fetches the device's current system state
func (d *Device) SysInfo(ctx context.Context) (SysInfo, error) {
	reply, err := d.disp.Call(ctx, "system", "get_sysinfo", nil)
	if err != nil {
		return nil, err
	}
	return SysInfo(reply), nil
}

// Alias returns the user-assigned device name
func (d *Device) Alias(ctx context.Context) (string, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Alias(), nil
}

// SetAlias renames the device
func (d *Device) SetAlias(ctx context.Context, alias string) error {
	_, err := d.disp.Call(ctx, "system", "set_dev_alias", map[string]any{"alias": alias})
	return err
}

// Model returns the hardware model string
func (d *Device) Model(ctx context.Context) (string, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Model(), nil
}

// MAC returns the device MAC address in colon-separated form
func (d *Device) MAC(ctx context.Context) (string, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.MAC(), nil
}

// SetMAC writes a new MAC address to the device
func (d *Device) SetMAC(ctx context.Context, mac string) error {
	_, err := d.disp.Call(ctx, "system", "set_mac_addr", map[string]any{"mac": mac})
	return err
}

// RSSI returns the device's WiFi signal strength in dBm
func (d *Device) RSSI(ctx context.Context) (int, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return 0, err
	}
	rssi, _ := info.RSSI()
	return rssi, nil
}

// hardwareInfoKeys are the sysinfo fields describing the hardware itself,
// across both key generations.
var hardwareInfoKeys = []string{
	"sw_ver", "hw_ver", "mac", "mic_mac", "type", "mic_type",
	"hwId", "fwId", "oemId", "dev_name",
}

// HardwareInfo returns the hardware description fields of sysinfo. Only
// fields the device reports are present in the result.
func (d *Device) HardwareInfo(ctx context.Context) (map[string]string, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return nil, err
	}
	hw := make(map[string]string)
	for _, key := range hardwareInfoKeys {
		if v, ok := info[key].(string); ok {
			hw[key] = v
		}
	}
	return hw, nil
}

// Location is the geographic position configured during provisioning
type Location struct {
	Latitude  float64
	Longitude float64
}

// Location returns the device's provisioned coordinates
func (d *Device) Location(ctx context.Context) (Location, error) {
	info, err := d.SysInfo(ctx)
	if err != nil {
		return Location{}, err
	}
	lat, lon, _ := info.Location()
	return Location{Latitude: lat, Longitude: lon}, nil
}

// Time returns the device's wall-clock time
func (d *Device) Time(ctx context.Context) (time.Time, error) {
	reply, err := d.disp.Call(ctx, "time", "get_time", nil)
	if err != nil {
		return time.Time{}, err
	}
	fields := make(map[string]int, 6)
	for _, key := range []string{"year", "month", "mday", "hour", "min", "sec"} {
		v, ok := numberVal(reply[key])
		if !ok {
			return time.Time{}, &protocol.ProtocolError{
				Addr:   d.Host(),
				Reason: "time reply is missing " + key,
			}
		}
		fields[key] = int(v)
	}
	return time.Date(fields["year"], time.Month(fields["month"]), fields["mday"],
		fields["hour"], fields["min"], fields["sec"], 0, time.Local), nil
}

// SetTime is rejected with err_code 0 but no effect by all tested
// firmware, so it fails before any network traffic.
func (d *Device) SetTime(ctx context.Context, t time.Time) error {
	return NewUnsupportedError("set_time", "silently ignored by tested firmware")
}

// Timezone returns the device's timezone configuration as reported
func (d *Device) Timezone(ctx context.Context) (map[string]any, error) {
	return d.disp.Call(ctx, "time", "get_timezone", nil)
}

// Icon returns the device icon and its hash
func (d *Device) Icon(ctx context.Context) (map[string]any, error) {
	return d.disp.Call(ctx, "system", "get_dev_icon", nil)
}

// SetIcon fails before any network traffic: the argument encoding for
// set_dev_icon is unknown and every guess is rejected by real firmware.
func (d *Device) SetIcon(ctx context.Context, icon string) error {
	return NewUnsupportedError("set_icon", "argument encoding unknown, rejected by tested firmware")
}

// Reboot restarts the device after the given delay in seconds. The relay
// state is preserved across the reboot.
func (d *Device) Reboot(ctx context.Context, delaySeconds int) error {
	_, err := d.disp.Call(ctx, "system", "reboot", map[string]any{"delay": delaySeconds})
	return err
}

// HasEmeter reports whether the device has an energy meter. Plugs and
// strips advertise it via the feature string; bulbs always meter.
func (d *Device) HasEmeter(ctx context.Context) (bool, error) {
	if d.emeterAssumed {
		return true, nil
	}
	info, err := d.SysInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.HasFeature(FeatureEmeter), nil
}

// requireEmeter gates metering operations on the device having a meter
func (d *Device) requireEmeter(ctx context.Context) error {
	ok, err := d.HasEmeter(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return NewUnsupportedError("emeter", "device has no energy meter")
	}
	return nil
}

// EmeterRealtime returns the current energy readings
func (d *Device) EmeterRealtime(ctx context.Context) (EmeterReading, error) {
	if err := d.requireEmeter(ctx); err != nil {
		return EmeterReading{}, err
	}
	reply, err := d.disp.Call(ctx, d.emeterTarget, "get_realtime", nil)
	if err != nil {
		return EmeterReading{}, err
	}
	return newEmeterReading(reply), nil
}

// EmeterDaily returns per-day energy totals for the given month, keyed by
// day of month. Days without consumption are absent.
func (d *Device) EmeterDaily(ctx context.Context, year int, month time.Month) (map[int]EnergyTotal, error) {
	if err := d.requireEmeter(ctx); err != nil {
		return nil, err
	}
	reply, err := d.disp.Call(ctx, d.emeterTarget, "get_daystat",
		map[string]any{"month": int(month), "year": year})
	if err != nil {
		return nil, err
	}
	return statTotals(reply, "day_list", "day"), nil
}

// EmeterMonthly returns per-month energy totals for the given year, keyed
// by month number. Months without consumption are absent.
func (d *Device) EmeterMonthly(ctx context.Context, year int) (map[int]EnergyTotal, error) {
	if err := d.requireEmeter(ctx); err != nil {
		return nil, err
	}
	reply, err := d.disp.Call(ctx, d.emeterTarget, "get_monthstat",
		map[string]any{"year": year})
	if err != nil {
		return nil, err
	}
	return statTotals(reply, "month_list", "month"), nil
}

// EraseEmeterStats deletes all accumulated energy statistics on the device
func (d *Device) EraseEmeterStats(ctx context.Context) error {
	if err := d.requireEmeter(ctx); err != nil {
		return err
	}
	_, err := d.disp.Call(ctx, d.emeterTarget, "erase_emeter_stat", nil)
	return err
}

// CurrentConsumption returns the device's present power draw in watts
func (d *Device) CurrentConsumption(ctx context.Context) (float64, error) {
	reading, err := d.EmeterRealtime(ctx)
	if err != nil {
		return 0, err
	}
	return reading.PowerW, nil
}
