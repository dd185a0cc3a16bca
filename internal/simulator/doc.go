// Package simulator provides an in-process Etherbone device for tests and
// bring-up without hardware.
//
// The simulator answers probes, executes records against a byte-addressed
// memory and keeps the config-space error register that acknowledged
// cycles read back. Fault ranges make accesses fail; DropNext discards
// incoming packets to exercise timeouts and open retries.
package simulator
