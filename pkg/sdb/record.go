package sdb

import (
	"bytes"
	"fmt"
)

// Magic starts every SDB table ("SDB-").
const Magic uint32 = 0x5344422D

// RecordSize is the size of every SDB record slot.
const RecordSize = 64

// RecordType is the discriminant in the last byte of a record.
type RecordType uint8

// Record types.
const (
	TypeInterconnect RecordType = 0x00
	TypeDevice       RecordType = 0x01
	TypeBridge       RecordType = 0x02
	TypeIntegration  RecordType = 0x80
	TypeRepoURL      RecordType = 0x81
	TypeSynthesis    RecordType = 0x82
	TypeEmpty        RecordType = 0xFF
)

var typeNames = map[RecordType]string{
	TypeInterconnect: "interconnect",
	TypeDevice:       "device",
	TypeBridge:       "bridge",
	TypeIntegration:  "integration",
	TypeRepoURL:      "repo-url",
	TypeSynthesis:    "synthesis",
	TypeEmpty:        "empty",
}

func (t RecordType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", uint8(t))
}

// Device bus-specific flags for Wishbone devices.
const (
	WBWidthMask    = 0x0F
	WBAccess8      = 0x01
	WBAccess16     = 0x02
	WBAccess32     = 0x04
	WBAccess64     = 0x08
	WBLittleEndian = 0x80

	DataRead  = 0x04
	DataWrite = 0x02
	DataExec  = 0x01
)

// Interconnect bus types.
const (
	BusWishbone uint8 = 0x00
	BusData     uint8 = 0x01
)

// Record is one decoded SDB record. The concrete type is one of
// *Interconnect, *Device, *Bridge, *Integration, *RepoURL, *Synthesis
// or *Empty.
type Record interface {
	Type() RecordType
	isRecord()
}

// Product identifies a component. It occupies the last 40 bytes of
// interconnect, device, bridge and integration records.
type Product struct {
	VendorID uint64
	DeviceID uint32
	Version  uint32
	Date     uint32
	Name     string
}

func (p Product) String() string {
	return fmt.Sprintf("%016x:%08x %s", p.VendorID, p.DeviceID, p.Name)
}

// Component is an address range plus product information.
// AddrFirst and AddrEnd are inclusive and relative to the enclosing bus.
type Component struct {
	AddrFirst uint64
	AddrEnd   uint64
	Product
}

// Size returns the number of bytes covered by the component.
func (c Component) Size() uint64 {
	return c.AddrEnd - c.AddrFirst + 1
}

// Interconnect is the table header.
type Interconnect struct {
	Records uint16
	Version uint8
	BusType uint8
	Component
}

// Device describes a device on the bus.
type Device struct {
	ABIClass    uint16
	ABIVerMajor uint8
	ABIVerMinor uint8
	BusSpecific uint32
	Component
}

// Width returns the widest access width in bytes the device supports,
// or 0 if none is set.
func (d *Device) Width() int {
	switch {
	case d.BusSpecific&WBAccess64 != 0:
		return 8
	case d.BusSpecific&WBAccess32 != 0:
		return 4
	case d.BusSpecific&WBAccess16 != 0:
		return 2
	case d.BusSpecific&WBAccess8 != 0:
		return 1
	}
	return 0
}

// LittleEndian reports whether the device registers are little-endian.
func (d *Device) LittleEndian() bool {
	return d.BusSpecific&WBLittleEndian != 0
}

// Bridge embeds a nested bus. Child is the nested table's address on
// the enclosing bus; Table is set when the parse followed it.
type Bridge struct {
	Child uint64
	Component

	Table *Table
}

// Integration describes the aggregate product of the bus.
type Integration struct {
	Product
}

// RepoURL names the repository of the top-level design.
type RepoURL struct {
	URL string
}

// Synthesis describes the build of the design.
type Synthesis struct {
	Name        string
	CommitID    string
	Tool        string
	ToolVersion uint32
	Date        uint32
	User        string
}

// Empty is an unused slot.
type Empty struct{}

func (*Interconnect) Type() RecordType { return TypeInterconnect }
func (*Device) Type() RecordType       { return TypeDevice }
func (*Bridge) Type() RecordType       { return TypeBridge }
func (*Integration) Type() RecordType  { return TypeIntegration }
func (*RepoURL) Type() RecordType      { return TypeRepoURL }
func (*Synthesis) Type() RecordType    { return TypeSynthesis }
func (*Empty) Type() RecordType        { return TypeEmpty }

func (*Interconnect) isRecord() {}
func (*Device) isRecord()       {}
func (*Bridge) isRecord()       {}
func (*Integration) isRecord()  {}
func (*RepoURL) isRecord()      {}
func (*Synthesis) isRecord()    {}
func (*Empty) isRecord()        {}

// text trims the space and NUL padding of a fixed-width string field.
func text(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}
