// Package etherbone implements the Etherbone protocol over UDP.
//
// A Socket owns one local UDP endpoint and the Devices opened through it.
// A Device is a remote Wishbone bus whose address width, data width and
// endianness are fixed when it is opened. Bus traffic is framed in Cycles:
//
//	dev, err := sock.OpenDevice(ctx, "udp/192.168.1.30", 3)
//	c, err := dev.OpenCycle()
//	c.Write(0x1000, 4, 0xCAFEBABE)
//	c.Read(0x1004, 4)
//	values, err := c.Close(ctx)
//
// Operations are transmitted in the order they were added. Close waits for
// the device to acknowledge every operation and reports the first failing
// one as a StatusPartialFailure. CloseSilent skips the acknowledgement and,
// for write-only cycles, returns as soon as the packets are sent.
//
// # Errors
//
// Wire failures are returned as *OpError carrying a wire.Status; use
// errors.Is(err, wire.StatusTimeout) and similar to test for them.
// Misuse of the API (a second open cycle, a closed socket or device) is
// reported with fault sentinels; IsFault identifies them.
//
// # Concurrency
//
// A Device has one logical owner. Opening a second cycle while one is
// open fails with ErrCycleActive rather than waiting. Exchanges on a
// shared Socket are serialized.
//
// The Driver type adapts a Socket and Device to bus.Driver.
package etherbone
