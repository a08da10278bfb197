package device

import (
	"context"
	"testing"
)

func TestBulb_IsOn(t *testing.T) {
	tests := []struct {
		name       string
		lightState string
		want       bool
	}{
		{"lit bulb", bulbOnLightStateJSON, true},
		{"dark bulb", bulbOffLightStateJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(tt.lightState)
			bulb := NewBulb("192.0.2.30", WithQuerier(fake))

			on, err := bulb.IsOn(context.Background())
			if err != nil {
				t.Fatalf("IsOn failed: %v", err)
			}
			if on != tt.want {
				t.Errorf("IsOn() = %v, want %v", on, tt.want)
			}
		})
	}
}

func TestBulb_TurnOnOff(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))
	ctx := context.Background()

	if err := bulb.TurnOff(ctx); err != nil {
		t.Fatalf("TurnOff failed: %v", err)
	}
	on, err := bulb.IsOn(ctx)
	if err != nil {
		t.Fatalf("IsOn failed: %v", err)
	}
	if on {
		t.Error("IsOn() = true after TurnOff")
	}

	if err := bulb.TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn failed: %v", err)
	}

	calls := fake.callsTo(lightTarget, "transition_light_state")
	if len(calls) != 2 {
		t.Fatalf("transition dispatched %d times, want 2", len(calls))
	}
	if calls[0].args["on_off"] != float64(0) || calls[1].args["on_off"] != float64(1) {
		t.Errorf("transition args = %v then %v", calls[0].args, calls[1].args)
	}
}

func TestBulb_Brightness(t *testing.T) {
	tests := []struct {
		name       string
		lightState string
		want       int
	}{
		{"lit bulb reads top-level", bulbOnLightStateJSON, 100},
		{"dark bulb reads dft_on_state", bulbOffLightStateJSON, 92},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(tt.lightState)
			bulb := NewBulb("192.0.2.30", WithQuerier(fake))

			level, err := bulb.Brightness(context.Background())
			if err != nil {
				t.Fatalf("Brightness failed: %v", err)
			}
			if level != tt.want {
				t.Errorf("Brightness() = %d, want %d", level, tt.want)
			}
		})
	}
}

func TestBulb_SetBrightness(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))
	ctx := context.Background()

	if err := bulb.SetBrightness(ctx, 40); err != nil {
		t.Fatalf("SetBrightness failed: %v", err)
	}

	level, err := bulb.Brightness(ctx)
	if err != nil {
		t.Fatalf("Brightness failed: %v", err)
	}
	if level != 40 {
		t.Errorf("Brightness() = %d after setting 40", level)
	}
}

func TestBulb_SetBrightness_Validation(t *testing.T) {
	for _, percent := range []int{-1, 101} {
		fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
		bulb := NewBulb("192.0.2.30", WithQuerier(fake))

		err := bulb.SetBrightness(context.Background(), percent)
		if !IsValidationError(err) {
			t.Errorf("SetBrightness(%d) err = %v, want ValidationError", percent, err)
		}
		if len(fake.calls) != 0 {
			t.Errorf("SetBrightness(%d) reached the network", percent)
		}
	}
}

func TestBulb_SetBrightness_NotDimmable(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
	fake.sysinfo["is_dimmable"] = float64(0)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))

	err := bulb.SetBrightness(context.Background(), 50)
	if !IsUnsupportedError(err) {
		t.Fatalf("SetBrightness err = %v, want UnsupportedError", err)
	}
	if calls := fake.callsTo(lightTarget, "transition_light_state"); len(calls) != 0 {
		t.Error("transition sent to a non-dimmable bulb")
	}
}

func TestBulb_HSV(t *testing.T) {
	tests := []struct {
		name       string
		lightState string
		wantHue    int
		wantSat    int
		wantValue  int
	}{
		{
			name:       "lit bulb reads top-level",
			lightState: bulbOnLightStateJSON,
			wantHue:    0, wantSat: 0, wantValue: 255,
		},
		{
			// dft_on_state brightness 92 maps to round(92*255/100) = 235
			name:       "dark bulb reads dft_on_state",
			lightState: bulbOffLightStateJSON,
			wantHue:    120, wantSat: 75, wantValue: 235,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(tt.lightState)
			bulb := NewBulb("192.0.2.30", WithQuerier(fake))

			hue, sat, value, err := bulb.HSV(context.Background())
			if err != nil {
				t.Fatalf("HSV failed: %v", err)
			}
			if hue != tt.wantHue || sat != tt.wantSat || value != tt.wantValue {
				t.Errorf("HSV() = %d,%d,%d, want %d,%d,%d",
					hue, sat, value, tt.wantHue, tt.wantSat, tt.wantValue)
			}
		})
	}
}

func TestBulb_SetHSV(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))

	if err := bulb.SetHSV(context.Background(), 240, 75, 128); err != nil {
		t.Fatalf("SetHSV failed: %v", err)
	}

	calls := fake.callsTo(lightTarget, "transition_light_state")
	if len(calls) != 1 {
		t.Fatalf("transition dispatched %d times, want 1", len(calls))
	}
	args := calls[0].args
	if args["hue"] != float64(240) || args["saturation"] != float64(75) {
		t.Errorf("hue/saturation = %v/%v", args["hue"], args["saturation"])
	}
	// 0-255 value rescales to percent: round(128*100/255) = 50
	if args["brightness"] != float64(50) {
		t.Errorf("brightness = %v, want 50", args["brightness"])
	}
	// color_temp 0 tells the firmware to leave white-light mode
	if args["color_temp"] != float64(0) {
		t.Errorf("color_temp = %v, want 0", args["color_temp"])
	}
}

func TestBulb_SetHSV_Validation(t *testing.T) {
	tests := []struct {
		name            string
		hue, sat, value int
	}{
		{"hue above range", 361, 0, 0},
		{"hue negative", -1, 0, 0},
		{"saturation above range", 0, 101, 0},
		{"value above range", 0, 0, 256},
		{"value negative", 0, 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
			bulb := NewBulb("192.0.2.30", WithQuerier(fake))

			err := bulb.SetHSV(context.Background(), tt.hue, tt.sat, tt.value)
			if !IsValidationError(err) {
				t.Fatalf("SetHSV err = %v, want ValidationError", err)
			}
			if len(fake.calls) != 0 {
				t.Errorf("invalid HSV reached the network: %v", fake.calls)
			}
		})
	}
}

func TestBulb_SetHSV_NotColor(t *testing.T) {
	fake := newFakeTransport(t, whiteBulbSysInfoJSON).withLightState(bulbOffLightStateJSON)
	bulb := NewBulb("192.0.2.31", WithQuerier(fake))

	err := bulb.SetHSV(context.Background(), 120, 50, 200)
	if !IsUnsupportedError(err) {
		t.Fatalf("SetHSV err = %v, want UnsupportedError", err)
	}
	if calls := fake.callsTo(lightTarget, "transition_light_state"); len(calls) != 0 {
		t.Error("color command sent to a white bulb")
	}
}

func TestBulb_HSV_NotColor(t *testing.T) {
	fake := newFakeTransport(t, whiteBulbSysInfoJSON).withLightState(bulbOffLightStateJSON)
	bulb := NewBulb("192.0.2.31", WithQuerier(fake))

	if _, _, _, err := bulb.HSV(context.Background()); !IsUnsupportedError(err) {
		t.Errorf("HSV err = %v, want UnsupportedError", err)
	}
}

func TestBulb_ColorTemp(t *testing.T) {
	tests := []struct {
		name       string
		lightState string
		want       int
	}{
		{"lit bulb reads top-level", bulbOnLightStateJSON, 3700},
		{"dark bulb reads dft_on_state", bulbOffLightStateJSON, 2700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(tt.lightState)
			bulb := NewBulb("192.0.2.30", WithQuerier(fake))

			kelvin, err := bulb.ColorTemp(context.Background())
			if err != nil {
				t.Fatalf("ColorTemp failed: %v", err)
			}
			if kelvin != tt.want {
				t.Errorf("ColorTemp() = %d, want %d", kelvin, tt.want)
			}
		})
	}
}

func TestBulb_ValidColorTempRange(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))

	low, high, err := bulb.ValidColorTempRange(context.Background())
	if err != nil {
		t.Fatalf("ValidColorTempRange failed: %v", err)
	}
	if low != 2500 || high != 9000 {
		t.Errorf("LB130 range = %d-%d, want 2500-9000", low, high)
	}

	fake.sysinfo["model"] = "LB120(US)"
	low, high, err = bulb.ValidColorTempRange(context.Background())
	if err != nil {
		t.Fatalf("ValidColorTempRange failed: %v", err)
	}
	if low != 2700 || high != 6500 {
		t.Errorf("LB120 range = %d-%d, want 2700-6500", low, high)
	}
}

func TestBulb_SetColorTemp(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))
	ctx := context.Background()

	if err := bulb.SetColorTemp(ctx, 5000); err != nil {
		t.Fatalf("SetColorTemp failed: %v", err)
	}
	kelvin, err := bulb.ColorTemp(ctx)
	if err != nil {
		t.Fatalf("ColorTemp failed: %v", err)
	}
	if kelvin != 5000 {
		t.Errorf("ColorTemp() = %d after setting 5000", kelvin)
	}
}

func TestBulb_SetColorTemp_OutsideGamut(t *testing.T) {
	for _, kelvin := range []int{2499, 9001} {
		fake := newFakeTransport(t, colorBulbSysInfoJSON).withLightState(bulbOnLightStateJSON)
		bulb := NewBulb("192.0.2.30", WithQuerier(fake))

		err := bulb.SetColorTemp(context.Background(), kelvin)
		if !IsValidationError(err) {
			t.Errorf("SetColorTemp(%d) err = %v, want ValidationError", kelvin, err)
		}
		if calls := fake.callsTo(lightTarget, "transition_light_state"); len(calls) != 0 {
			t.Errorf("SetColorTemp(%d) dispatched a transition", kelvin)
		}
	}
}

func TestBulb_SetColorTemp_FixedTemperature(t *testing.T) {
	fake := newFakeTransport(t, whiteBulbSysInfoJSON).withLightState(bulbOffLightStateJSON)
	bulb := NewBulb("192.0.2.31", WithQuerier(fake))

	err := bulb.SetColorTemp(context.Background(), 3000)
	if !IsUnsupportedError(err) {
		t.Fatalf("SetColorTemp err = %v, want UnsupportedError", err)
	}
	if calls := fake.callsTo(lightTarget, "transition_light_state"); len(calls) != 0 {
		t.Error("temperature command sent to a fixed-temperature bulb")
	}
}

func TestBulb_HasEmeter_NoDispatch(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON)
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))

	hasMeter, err := bulb.HasEmeter(context.Background())
	if err != nil {
		t.Fatalf("HasEmeter failed: %v", err)
	}
	if !hasMeter {
		t.Error("bulbs always meter")
	}
	if len(fake.calls) != 0 {
		t.Error("HasEmeter dispatched for a bulb")
	}
}

func TestBulb_EmeterRealtime(t *testing.T) {
	fake := newFakeTransport(t, colorBulbSysInfoJSON).withBulbEmeter()
	bulb := NewBulb("192.0.2.30", WithQuerier(fake))

	reading, err := bulb.EmeterRealtime(context.Background())
	if err != nil {
		t.Fatalf("EmeterRealtime failed: %v", err)
	}
	if reading.PowerMW != 10800 {
		t.Errorf("PowerMW = %d, want 10800", reading.PowerMW)
	}
	if reading.PowerW != 10.8 {
		t.Errorf("PowerW = %v, want 10.8", reading.PowerW)
	}

	if len(fake.callsTo(emeterTargetBulb, "get_realtime")) != 1 {
		t.Error("bulb metering did not use the smartlife emeter target")
	}
}
