// Package bus defines the contract every Wishbone bus transport satisfies.
//
// A Driver gives register-level access to a bus behind some transport:
// Etherbone over UDP, a serial console bridge, or a PCI mapping. All
// drivers share the same shape so tools can switch transports by locator
// alone.
//
// # Access Widths
//
// Scalar accesses take a width of 1, 2 or 4 bytes. The Read8/16/32 and
// Write8/16/32 helpers are thin wrappers over Driver.Read and Driver.Write.
//
// # Block Transfers
//
// BlockRead and BlockWrite move sequences of 32-bit words. Drivers that
// only support scalar access embed Unsupported, which fails both with
// ErrNotSupported.
//
// # BAR
//
// The bar argument exists for symmetry with PCI-style transports that
// expose several base address registers. Transports with a single address
// space ignore it.
package bus
