package model

import "time"

// WorkMode is the operating mode reported by the tank controller.
// Unrecognized firmware values are carried through as their raw string form
// instead of being rejected.
type WorkMode string

const (
	WorkModeAddWater     WorkMode = "Add Water"
	WorkModePumpWater    WorkMode = "Pump Water"
	WorkModeAddWaterTime WorkMode = "Add Water+Time"
	WorkModeUnknown      WorkMode = "Unknown"
)

// DeviceStatus is the canonical, normalized view of one water-tank device.
// It is immutable once constructed; consumers must not mutate Raw.
type DeviceStatus struct {
	// LevelPercent is the current fill percentage in [0,100].
	LevelPercent int `json:"level_percent"`

	// PumpOn reflects the manual-switch datapoint.
	PumpOn bool `json:"pump_on"`

	WorkMode WorkMode `json:"work_mode"`

	// LevelOn / LevelOff are the configured pump start/stop levels.
	LevelOn  int `json:"level_on"`
	LevelOff int `json:"level_off"`

	// LowThreshold / HighThreshold are the vendor-reported alarm thresholds.
	LowThreshold  int `json:"low_threshold"`
	HighThreshold int `json:"high_threshold"`

	AlarmEnabled   bool `json:"alarm_enabled"`
	DryHeatProtect bool `json:"dry_heat_protect"`

	// Fault is the vendor-reported fault flag.
	Fault bool `json:"fault"`

	// Online is the vendor-reported connectivity flag. It is surfaced for
	// display only; the status category derives its own OFFLINE signal from
	// observation freshness (see AnnotatedStatus).
	Online bool `json:"online"`

	// Raw keeps the full code->value map for debugging and forward
	// compatibility. Downstream consumers never interpret it.
	Raw map[string]any `json:"raw,omitempty"`
}

// StatusCategory is the coarse condition bucket shown to end users.
type StatusCategory string

const (
	CategoryNormal    StatusCategory = "NORMAL"
	CategoryAttention StatusCategory = "ATTENTION"
	CategoryCritical  StatusCategory = "CRITICAL"
	CategoryFull      StatusCategory = "FULL"
	CategoryOffline   StatusCategory = "OFFLINE"
)

// AlertKind identifies the class of an active alert.
type AlertKind string

const (
	AlertLowLevel AlertKind = "ALERT_LOW_LEVEL"
	AlertCritical AlertKind = "ALERT_CRITICAL"
	AlertFull     AlertKind = "ALERT_FULL"
	AlertOffline  AlertKind = "ALERT_OFFLINE"

	// AlertPumpFailure is reserved for a pump-health check (switch on while
	// the level keeps dropping). No rule emits it yet.
	AlertPumpFailure AlertKind = "ALERT_PUMP_FAILURE"
)

// Alert describes one active condition derived from a device status.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}

// AnnotatedStatus wraps a DeviceStatus with the derived category, an optional
// alert and the time the underlying observation was made.
type AnnotatedStatus struct {
	// Device is nil when no data is available at all; the category is then
	// OFFLINE by definition.
	Device *DeviceStatus `json:"device,omitempty"`

	Category StatusCategory `json:"category"`

	Alert *Alert `json:"alert,omitempty"`

	// ObservedAt is when the status was read from the vendor, or the last
	// sync time when the value was recovered from the fallback store.
	ObservedAt time.Time `json:"observed_at"`
}

// Stale reports whether the observation is older than the given window.
func (a *AnnotatedStatus) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(a.ObservedAt) > window
}
