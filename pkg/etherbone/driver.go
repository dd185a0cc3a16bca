package etherbone

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// DriverConfig configures a Driver.
type DriverConfig struct {
	Socket SocketConfig

	// Attempts is the number of resolution attempts in Open (default 3).
	Attempts int

	// SilentBlockWrites closes block write cycles without waiting for
	// acknowledgement. Failed writes then go unreported.
	SilentBlockWrites bool
}

// Driver adapts an Etherbone socket and device to bus.Driver.
// Scalar accesses are one-operation cycles; block transfers are one
// cycle each. The bar argument is ignored.
type Driver struct {
	config DriverConfig

	mu   sync.Mutex
	sock *Socket
	dev  *Device
	crc  uint32
}

// NewDriver creates an unopened Driver.
func NewDriver(config DriverConfig) *Driver {
	return &Driver{config: config}
}

// Open opens a socket and the device at locator.
func (d *Driver) Open(ctx context.Context, locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev != nil {
		return ErrAlreadyOpen
	}
	sock, err := OpenSocket(d.config.Socket)
	if err != nil {
		return err
	}
	dev, err := sock.OpenDevice(ctx, locator, d.config.Attempts)
	if err != nil {
		sock.Close()
		return err
	}
	d.sock, d.dev = sock, dev
	return nil
}

// Close closes the device and its socket.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sock == nil {
		return nil
	}
	err := d.sock.Close()
	d.sock, d.dev = nil, nil
	return err
}

// Device returns the open device, or nil.
func (d *Driver) Device() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev
}

func (d *Driver) device() (*Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil, ErrNotOpen
	}
	return d.dev, nil
}

// Read implements bus.Driver.
func (d *Driver) Read(ctx context.Context, _ int, offset uint64, width int) (uint64, error) {
	dev, err := d.device()
	if err != nil {
		return 0, err
	}
	if err := bus.ValidWidth(width); err != nil {
		return 0, &OpError{Op: "read", Device: dev.Locator(), Offset: offset, Status: wire.StatusWidth, Err: err}
	}
	return dev.Read(ctx, offset, width)
}

// Write implements bus.Driver.
func (d *Driver) Write(ctx context.Context, _ int, offset uint64, width int, value uint64) error {
	dev, err := d.device()
	if err != nil {
		return err
	}
	if err := bus.ValidWidth(width); err != nil {
		return &OpError{Op: "write", Device: dev.Locator(), Offset: offset, Status: wire.StatusWidth, Err: err}
	}
	return dev.Write(ctx, offset, width, value)
}

// BlockRead implements bus.Driver.
func (d *Driver) BlockRead(ctx context.Context, _ int, offset uint64, length int, stride int) ([]uint32, error) {
	dev, err := d.device()
	if err != nil {
		return nil, err
	}
	stride, err = bus.ValidStride(stride)
	if err != nil {
		return nil, &OpError{Op: "block read", Device: dev.Locator(), Offset: offset, Status: wire.StatusAddress, Err: err}
	}
	return dev.ReadBlock(ctx, offset, bus.WordCount(length), stride)
}

// BlockWrite implements bus.Driver. Written words are folded into the
// running CRC once the cycle has been sent.
func (d *Driver) BlockWrite(ctx context.Context, _ int, offset uint64, values []uint32, stride int) error {
	dev, err := d.device()
	if err != nil {
		return err
	}
	stride, err = bus.ValidStride(stride)
	if err != nil {
		return &OpError{Op: "block write", Device: dev.Locator(), Offset: offset, Status: wire.StatusAddress, Err: err}
	}
	if err := dev.WriteBlock(ctx, offset, values, stride, d.config.SilentBlockWrites); err != nil {
		return err
	}

	d.mu.Lock()
	d.crc = updateCRC(d.crc, values)
	d.mu.Unlock()
	return nil
}

// WriteCRC returns the CRC-32 (IEEE) of every word written by BlockWrite
// since the last ResetCRC. Words are hashed in little-endian byte order.
func (d *Driver) WriteCRC() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.crc
}

// ResetCRC clears the running write CRC.
func (d *Driver) ResetCRC() {
	d.mu.Lock()
	d.crc = 0
	d.mu.Unlock()
}

func updateCRC(crc uint32, words []uint32) uint32 {
	var b [4]byte
	for _, w := range words {
		binary.LittleEndian.PutUint32(b[:], w)
		crc = crc32.Update(crc, crc32.IEEETable, b[:])
	}
	return crc
}

// Endpoint register layout checked by SelfTest.
const (
	DefaultEndpointOffset = 0x30100

	RegMACLow = 0x28
	RegID     = 0x34

	EndpointID = 0xCAFEBABE
)

// SelfTest checks register access through an Ethernet endpoint at ep:
// it verifies the ID register, toggles the low half of the MAC address,
// reads it back and restores the original value.
func (d *Driver) SelfTest(ctx context.Context, ep uint64) error {
	id, err := bus.Read32(ctx, d, ep|RegID)
	if err != nil {
		return err
	}
	if id != EndpointID {
		return fmt.Errorf("%w: endpoint ID 0x%08X, want 0x%08X", ErrSelfTest, id, uint32(EndpointID))
	}

	macAddr := ep | RegMACLow
	oldMAC, err := bus.Read32(ctx, d, macAddr)
	if err != nil {
		return err
	}
	newMAC := oldMAC&0xFFFF0000 | ^oldMAC&0xFFFF
	if err := d.writeVerify(ctx, macAddr, newMAC); err != nil {
		return err
	}
	return d.writeVerify(ctx, macAddr, oldMAC)
}

func (d *Driver) writeVerify(ctx context.Context, addr uint64, value uint32) error {
	if err := bus.Write32(ctx, d, addr, value); err != nil {
		return err
	}
	got, err := bus.Read32(ctx, d, addr)
	if err != nil {
		return err
	}
	if got != value {
		return fmt.Errorf("%w: 0x%x read back 0x%08X, wrote 0x%08X", ErrSelfTest, addr, got, value)
	}
	return nil
}

// BlockSelfTest writes a 32-word pattern at ram with one block write
// and reads it back with one block read.
func (d *Driver) BlockSelfTest(ctx context.Context, ram uint64) error {
	pattern := make([]uint32, 32)
	for i := range pattern {
		b := uint32(i)
		pattern[i] = b<<24 | b<<16 | b<<8 | b
	}
	if err := d.BlockWrite(ctx, 0, ram, pattern, bus.DefaultStride); err != nil {
		return err
	}
	got, err := d.BlockRead(ctx, 0, ram, 4*len(pattern), bus.DefaultStride)
	if err != nil {
		return err
	}
	for i := range pattern {
		if got[i] != pattern[i] {
			return fmt.Errorf("%w: word %d read back 0x%08X, wrote 0x%08X", ErrSelfTest, i, got[i], pattern[i])
		}
	}
	return nil
}

var _ bus.Driver = (*Driver)(nil)
