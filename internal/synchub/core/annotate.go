package core

import (
	"fmt"
	"time"

	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
)

// StalenessWindow is how old an observation may be before the category is
// forced to OFFLINE regardless of the reported level. Recency of data takes
// precedence over a stale "normal" reading.
const StalenessWindow = 30 * time.Minute

// Annotate derives the status category and an optional alert for a normalized
// device status observed at observedAt. A nil status means no data is
// available at all and yields OFFLINE.
//
// The level rules fire only at the exact boundaries produced by the discrete
// sensor class this system targets (0, 25, 100). The vendor's own online flag
// is not an input here; it stays on the DeviceStatus for display.
func Annotate(st *model.DeviceStatus, observedAt, now time.Time) *model.AnnotatedStatus {
	if st == nil {
		return &model.AnnotatedStatus{
			Category:   model.CategoryOffline,
			Alert:      offlineAlert(0),
			ObservedAt: observedAt,
		}
	}

	out := &model.AnnotatedStatus{
		Device:     st,
		Category:   model.CategoryNormal,
		ObservedAt: observedAt,
	}

	switch st.LevelPercent {
	case 0:
		out.Category = model.CategoryCritical
		out.Alert = &model.Alert{
			Kind:    model.AlertCritical,
			Title:   "Tank empty",
			Message: "The reservoir is empty (0%).",
		}
	case 25:
		out.Category = model.CategoryAttention
		out.Alert = &model.Alert{
			Kind:    model.AlertLowLevel,
			Title:   "Low level",
			Message: "Reservoir at only 25% capacity.",
		}
	case 100:
		out.Category = model.CategoryFull
		out.Alert = &model.Alert{
			Kind:    model.AlertFull,
			Title:   "Tank full",
			Message: "Reservoir reached full capacity (100%).",
		}
	}

	// Freshness override: a stale reading is reported as OFFLINE even when
	// the last known level looked healthy.
	if age := now.Sub(observedAt); age > StalenessWindow {
		out.Category = model.CategoryOffline
		out.Alert = offlineAlert(age)
	}

	return out
}

func offlineAlert(age time.Duration) *model.Alert {
	msg := "Sensor disconnected or no data."
	if age > 0 {
		msg = fmt.Sprintf("No communication with the sensor for %d minutes.", int(age.Minutes()))
	}
	return &model.Alert{
		Kind:    model.AlertOffline,
		Title:   "Sensor offline",
		Message: msg,
	}
}
