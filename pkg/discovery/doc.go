// Package discovery finds Etherbone devices.
//
// # mDNS (_etherbone._udp)
//
// Devices, including the eb-sim simulator, may advertise themselves as
// _etherbone._udp services. The TXT record carries:
//
//	widths  address|data width byte in hex, e.g. "44" (required)
//	endian  "big" or "little" (optional, default big)
//	sdb     SDB root address in hex (optional)
//	name    a display name (optional)
//
// # Scanners
//
// Every scanner implements bus.Scanner and returns locators grouped by
// interface kind:
//
//	{"eth": ["udp/192.168.1.3"], "pci": ["0000:01:00.0"], "serial": ["/dev/ttyUSB0"]}
//
// MDNSScanner browses for advertised devices, ProbeScanner sends
// Etherbone probes to every host of a subnet, SerialScanner and
// PCIScanner look for local boards and StaticScanner returns a fixed
// list. MultiScanner merges the results of several scanners.
package discovery
