// Package sdb parses Self-Describing Bus tables.
//
// An SDB table is a sequence of 64-byte records. The first record is the
// interconnect header carrying the magic "SDB-" and the record count; the
// remaining slots describe devices, bridges and metadata. The record type
// is the last byte of every slot:
//
//	offset  0                                   56          63
//	        ┌───────────────────────────────────┬───────────┬──┐
//	device  │ abi class/ver, bus flags, addrs   │ product   │01│
//	bridge  │ child table, addrs                │ product   │02│
//	        └───────────────────────────────────┴───────────┴──┘
//
// Bridges point to nested tables. Parse follows them when
// Options.Recursive is set and fails with wire.StatusAddress when a
// bridge leads back to a table that was already visited.
package sdb
