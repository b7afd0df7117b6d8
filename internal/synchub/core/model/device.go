package model

import "time"

// DeviceSummary is the vendor-sourced description of a device, used by the
// discovery path. Linked is filled in by the core service by cross-referencing
// the persistent store, so callers can flag duplicates before registration.
type DeviceSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProductName string `json:"product_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Online      bool   `json:"online"`
	Linked      bool   `json:"linked"`
}

// PersistedRecord is one row of the fallback store: the last successfully
// normalized status for a device. It is created on first successful fetch and
// overwritten on every subsequent one; this subsystem never deletes it.
type PersistedRecord struct {
	DeviceID     string
	LevelPercent int

	// RawStatus is the JSON encoding of the normalized DeviceStatus.
	RawStatus []byte

	LastSync time.Time
}
