package etherbone

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/log"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// DeviceConfig configures one device.
type DeviceConfig struct {
	// Locator names the device, e.g. "udp/192.168.1.30".
	Locator string

	// Attempts is the number of resolution attempts (default 3).
	Attempts int

	// Endian is wire.EndianBig or wire.EndianLittle (default big).
	Endian uint8

	// Timeout is the reply timeout per packet (default 1s).
	Timeout time.Duration

	// MaxCycleOps bounds the operations in one cycle (default 65536).
	MaxCycleOps int
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Endian&wire.EndianMask == 0 {
		c.Endian = wire.EndianBig
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxCycleOps <= 0 {
		c.MaxCycleOps = DefaultMaxCycleOps
	}
	return c
}

// Device is an open remote bus.
type Device struct {
	sock   *Socket
	config DeviceConfig
	addr   *net.UDPAddr

	addrWidth int
	dataWidth int
	format    wire.Format

	// seq numbers the packets that expect a reply.
	seq atomic.Uint64

	mu     sync.Mutex
	cycle  *Cycle
	closed bool
}

// Locator returns the locator the device was opened with.
func (d *Device) Locator() string { return d.config.Locator }

// RemoteAddr returns the resolved UDP address.
func (d *Device) RemoteAddr() net.Addr { return d.addr }

// Format returns the endianness and port width fixed at open time.
func (d *Device) Format() wire.Format { return d.format }

// AddressWidth returns the negotiated address width in bytes.
func (d *Device) AddressWidth() int { return d.addrWidth }

// DataWidth returns the negotiated port width in bytes.
func (d *Device) DataWidth() int { return d.dataWidth }

// Socket returns the owning socket.
func (d *Device) Socket() *Socket { return d.sock }

// widths returns the width byte used in data packets.
func (d *Device) widths() uint8 {
	a, _ := wire.WidthMask(d.addrWidth)
	m, _ := wire.WidthMask(d.dataWidth)
	return a<<4 | m
}

// Close aborts any open cycle and detaches the device from its socket.
// Calling Close on a closed device is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.cycle != nil {
		d.cycle.done = true
		d.cycle = nil
	}
	d.mu.Unlock()

	d.sock.release(d)
	d.sock.debugLog("device closed", "locator", d.config.Locator)
	d.sock.emitDeviceState(d.config.Locator, d.addr.String(), "OPEN", "CLOSED", "")
	return nil
}

// Reset discards an orphaned cycle so a new one can be opened.
// Later use of the discarded cycle fails with ErrCycleClosed.
func (d *Device) Reset() {
	d.mu.Lock()
	c := d.cycle
	if c != nil {
		c.done = true
		d.cycle = nil
	}
	d.mu.Unlock()

	if c != nil {
		d.sock.debugLog("cycle reset", "locator", d.config.Locator, "ops", len(c.ops))
		d.sock.emit(log.Event{
			Layer:    log.LayerBus,
			Category: log.CategoryState,
			Device:   d.config.Locator,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityCycle,
				OldState: "OPEN",
				NewState: "RESET",
			},
		})
	}
}

// OpenCycle starts a new cycle. Only one cycle may be open at a time.
func (d *Device) OpenCycle() (*Cycle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDeviceClosed
	}
	if d.cycle != nil {
		return nil, ErrCycleActive
	}
	c := &Cycle{dev: d}
	d.cycle = c
	return c, nil
}

func (d *Device) releaseCycle(c *Cycle) {
	d.mu.Lock()
	if d.cycle == c {
		d.cycle = nil
	}
	d.mu.Unlock()
}

// Read reads width bytes at addr in its own cycle.
func (d *Device) Read(ctx context.Context, addr uint64, width int) (uint64, error) {
	c, err := d.OpenCycle()
	if err != nil {
		return 0, err
	}
	if err := c.Read(addr, width); err != nil {
		c.Abort()
		return 0, err
	}
	values, err := c.Close(ctx)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// Write writes the low width bytes of value at addr in its own cycle.
func (d *Device) Write(ctx context.Context, addr uint64, width int, value uint64) error {
	c, err := d.OpenCycle()
	if err != nil {
		return err
	}
	if err := c.Write(addr, width, value); err != nil {
		c.Abort()
		return err
	}
	_, err = c.Close(ctx)
	return err
}

// ReadBlock reads n 32-bit words at addr, addr+stride, ... in one cycle.
// Either every word is returned or none.
func (d *Device) ReadBlock(ctx context.Context, addr uint64, n, stride int) ([]uint32, error) {
	if n == 0 {
		return []uint32{}, nil
	}
	c, err := d.OpenCycle()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if err := c.Read(addr+uint64(i*stride), 4); err != nil {
			c.Abort()
			return nil, err
		}
	}
	values, err := c.Close(ctx)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = uint32(v)
	}
	return words, nil
}

// WriteBlock writes values at addr, addr+stride, ... in one cycle.
// With silent set the cycle is closed without acknowledgement.
func (d *Device) WriteBlock(ctx context.Context, addr uint64, values []uint32, stride int, silent bool) error {
	if len(values) == 0 {
		return nil
	}
	c, err := d.OpenCycle()
	if err != nil {
		return err
	}
	for i, v := range values {
		if err := c.Write(addr+uint64(i*stride), 4, uint64(v)); err != nil {
			c.Abort()
			return err
		}
	}
	if silent {
		_, err = c.CloseSilent(ctx)
	} else {
		_, err = c.Close(ctx)
	}
	return err
}
