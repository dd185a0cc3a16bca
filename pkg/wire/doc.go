// Package wire defines the Etherbone wire format and status codes.
//
// Etherbone tunnels Wishbone bus cycles over UDP. Every packet starts with
// a 4-byte header followed by zero or more records:
//
//	┌──────────────┬───────────────┬────────────────┐
//	│ magic 0x4E6F │ ver | flags   │ addr | data sz │
//	├──────────────┴───────────────┴────────────────┤
//	│ record: flags | byte enable | wcount | rcount │
//	│   write base address, wcount write values     │
//	│   read return address, rcount read addresses  │
//	├───────────────────────────────────────────────┤
//	│ record ...                                    │
//	└───────────────────────────────────────────────┘
//
// All fields are big-endian and padded to the packet stride, which is the
// larger of the negotiated address and data widths.
//
// # Probing
//
// A packet with the PF flag and no records asks the remote for its
// supported widths. The remote answers with the PR flag set and its own
// width masks in the size byte.
//
// # Status
//
// Status carries the signed status codes used by every transport
// operation. Zero is success; -1 through -10 are the known failure kinds.
// Any other code is kept verbatim for diagnostics.
package wire
