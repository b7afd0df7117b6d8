package tuya

import (
	"strings"

	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
)

// DataPoint is one entry of a device's reported status list.
type DataPoint struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// Water tank controllers in the field report under three dialects. The
// preferred one is the numeric datapoint scheme below; older firmware uses
// descriptive code names, and a batch re-flashed with a thermostat profile
// reports temperature codes that actually carry level data.
const (
	dpCurrentLevel   = "101"
	dpLevelOn        = "102"
	dpLevelOff       = "103"
	dpLowThreshold   = "104"
	dpHighThreshold  = "105"
	dpAlarmEnabled   = "106"
	dpManualSwitch   = "107"
	dpWorkMode       = "108"
	dpDryHeatProtect = "109"
	dpCh1Delay       = "110"
	dpBuzzer         = "113"
)

type sourceKind int

const (
	kindNumeric sourceKind = iota
	kindNamed
	kindLegacy
)

// source is one place a canonical field may be found in the raw report.
type source struct {
	kind sourceKind
	code string
}

// Resolution order is numeric datapoints, then descriptive names, then the
// temperature dialect. First code present wins.
var (
	levelSources = []source{
		{kindNumeric, dpCurrentLevel},
		{kindNamed, "level_percent"},
		{kindNamed, "level_current"},
		{kindLegacy, "temp_current"},
	}
	levelOnSources = []source{
		{kindNumeric, dpLevelOn},
		{kindNamed, "level_on"},
	}
	levelOffSources = []source{
		{kindNumeric, dpLevelOff},
		{kindNamed, "level_off"},
		// Temperature-dialect firmware reports the pump stop level as a
		// thermostat setpoint.
		{kindLegacy, "temp_set"},
	}
	lowThresholdSources = []source{
		{kindNumeric, dpLowThreshold},
		{kindNamed, "alarm_low"},
	}
	highThresholdSources = []source{
		{kindNumeric, dpHighThreshold},
		{kindNamed, "alarm_high"},
	}
	alarmEnabledSources = []source{
		{kindNumeric, dpAlarmEnabled},
		{kindNamed, "alarm_switch"},
	}
	pumpSources = []source{
		{kindNumeric, dpManualSwitch},
		{kindNamed, "pump_switch"},
		{kindLegacy, "switch"},
	}
	workModeSources = []source{
		{kindNumeric, dpWorkMode},
		{kindNamed, "work_mode"},
		{kindNamed, "mode"},
	}
	dryHeatSources = []source{
		{kindNumeric, dpDryHeatProtect},
		{kindNamed, "dry_heat_protect"},
	}
	faultSources = []source{
		{kindNamed, "fault"},
	}
	onlineSources = []source{
		{kindNamed, "online"},
	}
)

// workModes maps every reported spelling to the canonical mode.
var workModes = map[string]model.WorkMode{
	"0":              model.WorkModeAddWater,
	"add_water":      model.WorkModeAddWater,
	"1":              model.WorkModePumpWater,
	"pump_water":     model.WorkModePumpWater,
	"add_water_time": model.WorkModeAddWaterTime,
}

// Normalize maps a raw datapoint report onto the canonical status model.
// Missing fields keep their zero values except the work mode, which becomes
// WorkModeUnknown. The raw report is retained verbatim for persistence.
func Normalize(points []DataPoint) *model.DeviceStatus {
	raw := make(map[string]any, len(points))
	for _, p := range points {
		raw[p.Code] = p.Value
	}

	st := &model.DeviceStatus{
		Raw:      raw,
		WorkMode: model.WorkModeUnknown,
	}

	if v, ok := resolve(raw, levelSources); ok {
		st.LevelPercent = toInt(v)
	}
	if v, ok := resolve(raw, levelOnSources); ok {
		st.LevelOn = toInt(v)
	}
	if v, ok := resolve(raw, levelOffSources); ok {
		st.LevelOff = toInt(v)
	}
	if v, ok := resolve(raw, lowThresholdSources); ok {
		st.LowThreshold = toInt(v)
	}
	if v, ok := resolve(raw, highThresholdSources); ok {
		st.HighThreshold = toInt(v)
	}
	if v, ok := resolve(raw, alarmEnabledSources); ok {
		st.AlarmEnabled = toBool(v)
	}
	if v, ok := resolve(raw, pumpSources); ok {
		st.PumpOn = toBool(v)
	}
	if v, ok := resolve(raw, workModeSources); ok {
		st.WorkMode = translateWorkMode(v)
	}
	if v, ok := resolve(raw, dryHeatSources); ok {
		st.DryHeatProtect = toBool(v)
	}
	if v, ok := resolve(raw, faultSources); ok {
		// fault is a bitfield; any set bit counts
		st.Fault = toBool(v)
	}
	if v, ok := resolve(raw, onlineSources); ok {
		st.Online = toBool(v)
	}

	return st
}

func resolve(raw map[string]any, sources []source) (any, bool) {
	for _, s := range sources {
		if v, ok := raw[s.code]; ok {
			return v, true
		}
	}
	return nil, false
}

func translateWorkMode(v any) model.WorkMode {
	var key string
	switch m := v.(type) {
	case string:
		key = strings.ToLower(m)
	case float64:
		if m == 0 {
			key = "0"
		} else {
			key = "1"
		}
	case int:
		if m == 0 {
			key = "0"
		} else {
			key = "1"
		}
	case bool:
		// a few firmwares report mode as a pump toggle
		if m {
			key = "1"
		} else {
			key = "0"
		}
	default:
		return model.WorkModeUnknown
	}

	if mode, ok := workModes[key]; ok {
		return mode
	}
	if s, ok := v.(string); ok && s != "" {
		return model.WorkMode(s)
	}
	return model.WorkModeUnknown
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case bool:
		if n {
			return 1
		}
		return 0
	}
	return 0
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	case string:
		return b == "true" || b == "on" || b == "1"
	}
	return false
}
