package device

import (
	"math"
)

// Energy meter normalization. Plug-generation firmware reports floats in
// base units (power watts, total kWh); bulb-generation firmware reports
// integers in milli-units (power_mw, total_wh). EmeterReading folds both
// representations into one shape so callers never branch on device family.

// EmeterReading is one realtime energy measurement with both unit views
// populated regardless of which the device supplied.
type EmeterReading struct {
	PowerW   float64 // active power, watts
	VoltageV float64 // mains voltage, volts
	CurrentA float64 // current draw, amperes
	TotalKWh float64 // lifetime energy, kilowatt-hours

	PowerMW   int64 // active power, milliwatts
	VoltageMV int64 // mains voltage, millivolts
	CurrentMA int64 // current draw, milliamperes
	TotalWH   int64 // lifetime energy, watt-hours

	Raw map[string]any // reply as received, for fields not normalized here
}

// newEmeterReading builds a reading from a get_realtime reply. Each
// quantity is resolved independently: the milli-unit key wins when
// present, otherwise the base-unit key is scaled up.
func newEmeterReading(raw map[string]any) EmeterReading {
	reading := EmeterReading{Raw: raw}
	reading.PowerW, reading.PowerMW = emeterField(raw, "power", "power_mw")
	reading.VoltageV, reading.VoltageMV = emeterField(raw, "voltage", "voltage_mv")
	reading.CurrentA, reading.CurrentMA = emeterField(raw, "current", "current_ma")
	reading.TotalKWh, reading.TotalWH = emeterField(raw, "total", "total_wh")
	return reading
}

// emeterField resolves one quantity to both unit views. Conversion is a
// factor of 1000 with rounding on the integer side.
func emeterField(raw map[string]any, baseKey, milliKey string) (base float64, milli int64) {
	if v, ok := numberVal(raw[milliKey]); ok {
		return v / 1000, int64(math.Round(v))
	}
	if v, ok := numberVal(raw[baseKey]); ok {
		return v, int64(math.Round(v * 1000))
	}
	return 0, 0
}

// EnergyTotal is an accumulated energy figure in both unit views
type EnergyTotal struct {
	KWh float64 // kilowatt-hours
	WH  int64   // watt-hours
}

// newEnergyTotal resolves one stat entry's energy field, which is either
// "energy" (float kWh) or "energy_wh" (integer Wh) by device family.
func newEnergyTotal(entry map[string]any) EnergyTotal {
	if v, ok := numberVal(entry["energy_wh"]); ok {
		return EnergyTotal{KWh: v / 1000, WH: int64(math.Round(v))}
	}
	if v, ok := numberVal(entry["energy"]); ok {
		return EnergyTotal{KWh: v, WH: int64(math.Round(v * 1000))}
	}
	return EnergyTotal{}
}

// statTotals folds a day_list or month_list reply into a map keyed by the
// day-of-month or month number. Days or months with no consumption are
// absent from the device's list and stay absent here.
func statTotals(reply map[string]any, listKey, indexKey string) map[int]EnergyTotal {
	list, _ := reply[listKey].([]any)
	totals := make(map[int]EnergyTotal, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		idx, ok := numberVal(entry[indexKey])
		if !ok {
			continue
		}
		totals[int(idx)] = newEnergyTotal(entry)
	}
	return totals
}
