package etherbone

import (
	"errors"
	"fmt"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// Faults. These indicate misuse of the API, not a wire failure.
var (
	// ErrSocketClosed is returned when a closed socket is used.
	ErrSocketClosed = errors.New("etherbone: socket closed")

	// ErrDeviceClosed is returned when a closed device is used.
	ErrDeviceClosed = errors.New("etherbone: device closed")

	// ErrCycleActive is returned when a cycle is opened on a device that
	// already has one open.
	ErrCycleActive = errors.New("etherbone: cycle already open on device")

	// ErrCycleClosed is returned when a closed, aborted or reset cycle is used.
	ErrCycleClosed = errors.New("etherbone: cycle closed")

	// ErrNotOpen is returned when a Driver is used before Open.
	ErrNotOpen = errors.New("etherbone: driver not open")

	// ErrAlreadyOpen is returned when Open is called on an open Driver.
	ErrAlreadyOpen = errors.New("etherbone: driver already open")
)

var faults = []error{
	ErrSocketClosed,
	ErrDeviceClosed,
	ErrCycleActive,
	ErrCycleClosed,
	ErrNotOpen,
	ErrAlreadyOpen,
}

// Other errors.
var (
	// ErrBadLocator indicates a locator that is not a UDP address.
	ErrBadLocator = errors.New("etherbone: invalid locator")

	// ErrSelfTest indicates a register self test read back the wrong value.
	ErrSelfTest = errors.New("etherbone: self test failed")
)

// IsFault reports whether err is a programming fault rather than a
// recoverable transport failure.
func IsFault(err error) bool {
	for _, f := range faults {
		if errors.Is(err, f) {
			return true
		}
	}
	return false
}

// OpError describes a failed operation.
type OpError struct {
	// Op is the operation, e.g. "read", "write", "cycle close" or "open".
	Op string

	// Device is the device locator, if known.
	Device string

	// Offset is the bus address of the failing operation.
	Offset uint64

	Status wire.Status

	// Err is the underlying cause, if any.
	Err error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("etherbone: %s", e.Op)
	if e.Device != "" {
		msg += " " + e.Device
	}
	msg += fmt.Sprintf(" at 0x%x: %v", e.Offset, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the status and the underlying cause.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Status}
	}
	return []error{e.Status, e.Err}
}

// Timeout reports whether the operation timed out.
func (e *OpError) Timeout() bool {
	return e.Status == wire.StatusTimeout
}

// StatusOf extracts the wire status carried by err.
// It returns StatusOK for nil and StatusFail when err carries no status.
func StatusOf(err error) wire.Status {
	if err == nil {
		return wire.StatusOK
	}
	var st wire.Status
	if errors.As(err, &st) {
		return st
	}
	return wire.StatusFail
}
