package core

import (
	"context"
	"time"

	"github.com/aquahub-io/aquahub/internal/synchub/core/model"
)

// VendorClient is the outbound port to the vendor IoT cloud. Implementations
// own credential acquisition, request signing and datapoint normalization; the
// core only ever sees canonical types.
type VendorClient interface {
	// DeviceStatus fetches and normalizes the datapoint list of one device.
	DeviceStatus(ctx context.Context, deviceID string) (*model.DeviceStatus, error)

	// BatchDeviceStatus fetches many devices at once, chunking the id list to
	// the vendor's batch limit. Missing ids are absent from the result map.
	BatchDeviceStatus(ctx context.Context, deviceIDs []string) (map[string]*model.DeviceStatus, error)

	// Device fetches the vendor's device detail record. A VendorError means
	// the id is unknown to the vendor.
	Device(ctx context.Context, deviceID string) (*model.DeviceSummary, error)

	// UserDevices lists the devices registered under a vendor user account.
	UserDevices(ctx context.Context, uid string) ([]model.DeviceSummary, error)
}

// StatusRepository is the persistent fallback store: one row per device with
// the last-known normalized status. Writes are idempotent overwrites.
type StatusRepository interface {
	// Save upserts the record keyed by its device id.
	Save(ctx context.Context, rec *model.PersistedRecord) error

	// Load returns the last record for the device, or ErrNotFound.
	Load(ctx context.Context, deviceID string) (*model.PersistedRecord, error)

	// ListDeviceIDs enumerates all registered device ids for the scheduler.
	ListDeviceIDs(ctx context.Context) ([]string, error)

	// Register adds a device id to the known set, or returns
	// ErrDeviceAlreadyLinked.
	Register(ctx context.Context, deviceID, name string) error

	// Unregister removes a device from the known set. Called by the hosting
	// application on unlink; the sync engine itself never deletes.
	Unregister(ctx context.Context, deviceID string) error
}

// StatusNotifier publishes fresh annotated statuses for sibling services.
// Implementations must be safe for concurrent use; a nil notifier disables
// publishing.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, deviceID string, st *model.AnnotatedStatus) error
}

// SnapshotArchiver stores raw normalized payloads for offline inspection.
// Optional; a nil archiver disables archival.
type SnapshotArchiver interface {
	StoreSnapshot(ctx context.Context, deviceID string, ts time.Time, payload []byte) error
}
