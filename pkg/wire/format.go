package wire

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
)

// Width masks. The low nibble selects data widths, the high nibble address
// widths. One bit per supported width.
const (
	Data8    uint8 = 0x01
	Data16   uint8 = 0x02
	Data32   uint8 = 0x04
	Data64   uint8 = 0x08
	DataMask uint8 = 0x0F

	Addr8    uint8 = 0x10
	Addr16   uint8 = 0x20
	Addr32   uint8 = 0x40
	Addr64   uint8 = 0x80
	AddrMask uint8 = 0xF0
)

// Endianness bits of a format byte.
const (
	EndianBig    uint8 = 0x10
	EndianLittle uint8 = 0x20
	EndianMask   uint8 = 0x30
)

// ABI constants. The bus model depends on the host address-width class.
const (
	ABIVersion  uint16 = 0x04
	MemoryModel uint16 = 0x0000
)

// BusModel is 0x44 on 32-bit hosts and 0x88 on 64-bit hosts.
var BusModel = busModel(strconv.IntSize)

// ABICode identifies the Etherbone ABI implemented by this package.
var ABICode = ABIVersion<<8 | BusModel | MemoryModel

func busModel(intSize int) uint16 {
	if intSize > 32 {
		return 0x88
	}
	return 0x44
}

// Format is the packed endianness/data-width byte fixed per device.
type Format uint8

// NewFormat builds a format byte from an endianness and a data width mask.
func NewFormat(endian, dataWidths uint8) Format {
	return Format(endian&EndianMask | dataWidths&DataMask)
}

// Endian returns the endianness bits.
func (f Format) Endian() uint8 {
	return uint8(f) & EndianMask
}

// DataWidths returns the data width mask.
func (f Format) DataWidths() uint8 {
	return uint8(f) & DataMask
}

// BigEndian reports whether the format selects big-endian lanes.
// A format with no endianness bits is treated as big-endian.
func (f Format) BigEndian() bool {
	return f.Endian() != EndianLittle
}

// ByteOrder returns the byte order matching the format's endianness.
func (f Format) ByteOrder() binary.ByteOrder {
	if f.BigEndian() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// String returns a short description such as "big/0x0f".
func (f Format) String() string {
	e := "big"
	switch f.Endian() {
	case EndianLittle:
		e = "little"
	case 0:
		e = "auto"
	}
	return fmt.Sprintf("%s/0x%02x", e, f.DataWidths())
}

// WidthBytes returns the widest width in bytes selected by a nibble mask.
// Both data (low nibble) and address (high nibble) masks are accepted.
// Returns 0 for an empty mask.
func WidthBytes(mask uint8) int {
	m := mask & 0x0F
	if m == 0 {
		m = mask >> 4
	}
	if m == 0 {
		return 0
	}
	return 1 << (bits.Len8(m) - 1)
}

// WidthMask returns the single-bit data mask for a width in bytes.
func WidthMask(width int) (uint8, bool) {
	switch width {
	case 1:
		return Data8, true
	case 2:
		return Data16, true
	case 4:
		return Data32, true
	case 8:
		return Data64, true
	default:
		return 0, false
	}
}

// Stride returns the field alignment for the given address and data widths.
func Stride(addrWidth, dataWidth int) int {
	if addrWidth > dataWidth {
		return addrWidth
	}
	return dataWidth
}

// Lane locates a sub-word access of width bytes at addr on a port that is
// port bytes wide. It returns the port-aligned address, the byte enable for
// the record header and the bit shift of the value inside the port word.
func Lane(addr uint64, width, port int, f Format) (aligned uint64, sel uint8, shift uint, err error) {
	if _, ok := WidthMask(width); !ok || width > port {
		return 0, 0, 0, StatusWidth
	}
	if addr%uint64(width) != 0 {
		return 0, 0, 0, StatusAddress
	}
	aligned = addr &^ uint64(port-1)
	off := int(addr - aligned)
	low := off
	if f.BigEndian() {
		low = port - off - width
	}
	sel = uint8((1<<width - 1) << low)
	return aligned, sel, uint(low * 8), nil
}

// FullSelect returns the byte enable covering a whole port word.
func FullSelect(port int) uint8 {
	return uint8(1<<port - 1)
}
