package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed means the vendor rejected our credential or signature.
	ErrAuthFailed = errors.New("vendor authentication failed")

	// ErrTransport means the vendor could not be reached (network, timeout,
	// or an open circuit breaker). It is recoverable through the fallback
	// store and never surfaces raw to API callers.
	ErrTransport = errors.New("vendor transport failure")

	// ErrNoData means neither a live fetch nor the fallback store produced a
	// status for the device.
	ErrNoData = errors.New("no status data available")

	// ErrNotFound is returned by repository lookups for unknown device ids.
	ErrNotFound = errors.New("not found")

	// ErrDeviceAlreadyLinked rejects registration of a device id that is
	// already present in the store.
	ErrDeviceAlreadyLinked = errors.New("device already linked")
)

// VendorError is a well-formed failure envelope from the vendor cloud
// (success:false with a business code), e.g. an unknown device id. During
// device linking it surfaces directly to the caller since the end user can
// act on it.
type VendorError struct {
	Code    int
	Message string
}

func (e *VendorError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("vendor error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("vendor error: %s", e.Message)
}
