package sdbtest

import (
	"encoding/binary"

	"github.com/wishbone-tools/etherbone-go/pkg/sdb"
)

// Segment is a block of memory contents at an absolute address.
type Segment struct {
	Addr uint64
	Data []byte
}

// Demo addresses.
const (
	DemoRoot   = 0x0
	DemoBridge = 0x20000
	DemoGPIO   = 0x1000
	DemoRAM    = 0x20100
)

// Demo vendor and device IDs.
const (
	VendorCERN   = 0xCE42
	VendorGSI    = 0x651
	DeviceGPIO   = 0x35AA6B96
	DeviceRAM    = 0x66CFEB52
	DeviceXbar   = 0xE6A542C9
	DeviceBridge = 0xEEF0B198
)

// Demo returns a two-level SDB image: a root crossbar with a GPIO block,
// and a bridge to a nested crossbar holding a RAM.
func Demo(order binary.ByteOrder) []Segment {
	root := NewTable(order, sdb.Component{
		AddrFirst: 0, AddrEnd: 0xFFFFF,
		Product: sdb.Product{VendorID: VendorGSI, DeviceID: DeviceXbar, Version: 1, Date: 0x20260101, Name: "WB4-Crossbar-GSI"},
	}).Device(sdb.Device{
		ABIVerMajor: 1,
		BusSpecific: sdb.WBAccess32 | sdb.WBAccess8,
		Component: sdb.Component{
			AddrFirst: DemoGPIO, AddrEnd: DemoGPIO + 0xFF,
			Product: sdb.Product{VendorID: VendorCERN, DeviceID: DeviceGPIO, Version: 1, Date: 0x20260101, Name: "WB-GPIO-Port"},
		},
	}).Bridge(DemoBridge, sdb.Component{
		AddrFirst: DemoBridge, AddrEnd: DemoBridge + 0xFFFF,
		Product: sdb.Product{VendorID: VendorGSI, DeviceID: DeviceBridge, Version: 1, Date: 0x20260101, Name: "WB4-Bridge-GSI"},
	}).Integration(sdb.Product{
		VendorID: VendorCERN, DeviceID: 0x1, Version: 1, Date: 0x20260101, Name: "etherbone-demo",
	}).RepoURL("https://github.com/wishbone-tools/etherbone-go").Synthesis(sdb.Synthesis{
		Name: "demo", Tool: "ISE", ToolVersion: 0x147, Date: 0x20260101, User: "eb-sim",
	})

	child := NewTable(order, sdb.Component{
		AddrFirst: 0, AddrEnd: 0xFFFF,
		Product: sdb.Product{VendorID: VendorGSI, DeviceID: DeviceXbar, Version: 1, Date: 0x20260101, Name: "WB4-Crossbar-GSI"},
	}).Device(sdb.Device{
		ABIVerMajor: 1,
		BusSpecific: sdb.WBAccess32,
		Component: sdb.Component{
			AddrFirst: DemoRAM - DemoBridge, AddrEnd: DemoRAM - DemoBridge + 0x3FFF,
			Product: sdb.Product{VendorID: VendorCERN, DeviceID: DeviceRAM, Version: 1, Date: 0x20260101, Name: "WB4-BlockRAM"},
		},
	})

	return []Segment{
		{Addr: DemoRoot, Data: root.Bytes()},
		{Addr: DemoBridge, Data: child.Bytes()},
	}
}
