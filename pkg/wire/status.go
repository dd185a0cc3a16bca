package wire

import "fmt"

// Status represents an Etherbone status code.
//
// Status implements error so that a failing status can be wrapped and
// matched with errors.Is. StatusOK should never be returned as an error.
type Status int

const (
	// StatusOK indicates the operation completed successfully.
	StatusOK Status = 0

	// StatusFail indicates a system failure.
	StatusFail Status = -1

	// StatusAddress indicates an invalid address.
	StatusAddress Status = -2

	// StatusWidth indicates an impossible bus width.
	StatusWidth Status = -3

	// StatusOverflow indicates the cycle length overflowed.
	StatusOverflow Status = -4

	// StatusEndian indicates the remote requires a different endianness.
	StatusEndian Status = -5

	// StatusBusy indicates the resource is busy.
	StatusBusy Status = -6

	// StatusTimeout indicates the remote did not answer in time.
	StatusTimeout Status = -7

	// StatusOOM indicates the remote or local side ran out of memory.
	StatusOOM Status = -8

	// StatusABIMismatch indicates the library is incompatible with the application.
	StatusABIMismatch Status = -9

	// StatusPartialFailure indicates one or more operations in a cycle failed.
	StatusPartialFailure Status = -10
)

var statusNames = map[Status][2]string{
	StatusOK:             {"EB_OK", "success"},
	StatusFail:           {"EB_FAIL", "system failure"},
	StatusAddress:        {"EB_ADDRESS", "invalid address"},
	StatusWidth:          {"EB_WIDTH", "impossible bus width"},
	StatusOverflow:       {"EB_OVERFLOW", "cycle length overflow"},
	StatusEndian:         {"EB_ENDIAN", "remote endian required"},
	StatusBusy:           {"EB_BUSY", "resource busy"},
	StatusTimeout:        {"EB_TIMEOUT", "timeout"},
	StatusOOM:            {"EB_OOM", "out of memory"},
	StatusABIMismatch:    {"EB_ABI", "library incompatible with application"},
	StatusPartialFailure: {"EB_SEGFAULT", "one or more operations failed"},
}

// StatusFromCode converts a raw wire code into a Status.
// Unknown codes are preserved so they can still be reported.
func StatusFromCode(code int) Status {
	return Status(code)
}

// Code returns the raw wire code.
func (s Status) Code() int {
	return int(s)
}

// Known reports whether the status is one of the defined kinds.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// String returns the status name.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n[0]
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// Description returns a human-readable description of the status.
func (s Status) Description() string {
	if n, ok := statusNames[s]; ok {
		return n[1]
	}
	return "unknown status"
}

// Error implements the error interface.
func (s Status) Error() string {
	return fmt.Sprintf("%d=>%s (%s)", int(s), s.String(), s.Description())
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusOK
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusOK
}
