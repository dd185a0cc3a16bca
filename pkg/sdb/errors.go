package sdb

import (
	"errors"
	"fmt"
)

// Parse errors.
var (
	// ErrInvalidMagic indicates a table header without the SDB magic.
	ErrInvalidMagic = errors.New("invalid SDB magic")

	// ErrInvalidRange indicates a component whose first address lies
	// beyond its last address.
	ErrInvalidRange = errors.New("invalid SDB address range")

	// ErrInvalidRecordCount indicates a header claiming zero records.
	ErrInvalidRecordCount = errors.New("invalid SDB record count")
)

// MagicError reports a table header with the wrong magic.
type MagicError struct {
	Address uint64
	Magic   uint32
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("sdb: table at 0x%x: magic 0x%08X, want 0x%08X", e.Address, e.Magic, Magic)
}

func (e *MagicError) Unwrap() error {
	return ErrInvalidMagic
}

// RecordTypeError reports a slot whose type byte names no known record.
type RecordTypeError struct {
	Address uint64
	Slot    int
	Type    RecordType
}

func (e *RecordTypeError) Error() string {
	return fmt.Sprintf("sdb: slot %d at 0x%x: unknown record type %s", e.Slot, e.Address, e.Type)
}
