package tuya

import (
	"testing"

	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
)

func TestNormalizeNumericDialect(t *testing.T) {
	points := []DataPoint{
		{Code: "101", Value: float64(72)},
		{Code: "102", Value: float64(20)},
		{Code: "103", Value: float64(90)},
		{Code: "104", Value: float64(15)},
		{Code: "105", Value: float64(95)},
		{Code: "106", Value: true},
		{Code: "107", Value: true},
		{Code: "108", Value: "pump_water"},
		{Code: "109", Value: false},
	}

	st := Normalize(points)

	if st.LevelPercent != 72 {
		t.Errorf("LevelPercent = %d, want 72", st.LevelPercent)
	}
	if st.LevelOn != 20 || st.LevelOff != 90 {
		t.Errorf("LevelOn/LevelOff = %d/%d, want 20/90", st.LevelOn, st.LevelOff)
	}
	if st.LowThreshold != 15 || st.HighThreshold != 95 {
		t.Errorf("thresholds = %d/%d, want 15/95", st.LowThreshold, st.HighThreshold)
	}
	if !st.AlarmEnabled {
		t.Error("AlarmEnabled = false, want true")
	}
	if !st.PumpOn {
		t.Error("PumpOn = false, want true")
	}
	if st.WorkMode != model.WorkModePumpWater {
		t.Errorf("WorkMode = %q, want %q", st.WorkMode, model.WorkModePumpWater)
	}
	if st.DryHeatProtect {
		t.Error("DryHeatProtect = true, want false")
	}
	if len(st.Raw) != len(points) {
		t.Errorf("Raw has %d entries, want %d", len(st.Raw), len(points))
	}
}

func TestNormalizeTemperatureDialect(t *testing.T) {
	// re-flashed controllers report level data under thermostat codes
	points := []DataPoint{
		{Code: "temp_current", Value: float64(42)},
		{Code: "temp_set", Value: float64(88)},
		{Code: "switch", Value: true},
	}

	st := Normalize(points)

	if st.LevelPercent != 42 {
		t.Errorf("LevelPercent = %d, want 42", st.LevelPercent)
	}
	if st.LevelOff != 88 {
		t.Errorf("LevelOff = %d, want 88", st.LevelOff)
	}
	if st.HighThreshold != 0 {
		t.Errorf("HighThreshold = %d, want 0; temp_set is a pump stop level", st.HighThreshold)
	}
	if !st.PumpOn {
		t.Error("PumpOn = false, want true")
	}
}

func TestNormalizeNumericWinsOverLegacy(t *testing.T) {
	points := []DataPoint{
		{Code: "temp_current", Value: float64(10)},
		{Code: "101", Value: float64(55)},
	}

	if st := Normalize(points); st.LevelPercent != 55 {
		t.Errorf("LevelPercent = %d, want 55 (numeric datapoint wins)", st.LevelPercent)
	}
}

func TestNormalizeWorkModes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  model.WorkMode
	}{
		{"numeric zero", float64(0), model.WorkModeAddWater},
		{"numeric one", float64(1), model.WorkModePumpWater},
		{"named add", "add_water", model.WorkModeAddWater},
		{"named pump", "pump_water", model.WorkModePumpWater},
		{"timed add", "add_water_time", model.WorkModeAddWaterTime},
		{"mixed case", "Pump_Water", model.WorkModePumpWater},
		{"unrecognized passes through", "circulate", model.WorkMode("circulate")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Normalize([]DataPoint{{Code: "108", Value: tt.value}})
			if st.WorkMode != tt.want {
				t.Errorf("WorkMode = %q, want %q", st.WorkMode, tt.want)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	st := Normalize(nil)

	if st.LevelPercent != 0 || st.PumpOn || st.AlarmEnabled {
		t.Errorf("zero report produced non-zero fields: %+v", st)
	}
	if st.WorkMode != model.WorkModeUnknown {
		t.Errorf("WorkMode = %q, want %q", st.WorkMode, model.WorkModeUnknown)
	}
}
