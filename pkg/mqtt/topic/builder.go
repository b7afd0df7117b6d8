package topic

import (
	"fmt"
)

// Constants defining the standard topic segments. These act as the contract
// between the sync hub and any sibling service consuming status events;
// changing them breaks existing consumers.
const (
	// SuffixStatus carries fresh annotated device statuses (Hub -> consumers).
	// Structure: {root}/status/{deviceID}
	SuffixStatus = "status"

	// SuffixAlert carries only the statuses that have an active alert.
	// Structure: {root}/alert/{deviceID}
	SuffixAlert = "alert"
)

// Builder encapsulates the construction of MQTT topic strings so every
// component formats them identically.
type Builder struct {
	// root is the base namespace for all topics (e.g. "aquahub/v1").
	root string
}

// NewBuilder creates a Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Status returns the topic for a device's status events.
func (b *Builder) Status(deviceID string) string {
	return b.build(SuffixStatus, deviceID)
}

// StatusWildcard returns the filter matching all devices' status events.
func (b *Builder) StatusWildcard() string {
	return b.build(SuffixStatus, "+")
}

// Alert returns the topic for a device's alert events.
func (b *Builder) Alert(deviceID string) string {
	return b.build(SuffixAlert, deviceID)
}

// AlertWildcard returns the filter matching all devices' alert events.
func (b *Builder) AlertWildcard() string {
	return b.build(SuffixAlert, "+")
}

func (b *Builder) build(suffix, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, deviceID)
}
