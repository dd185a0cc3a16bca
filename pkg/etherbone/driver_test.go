package etherbone

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/internal/simulator"
	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

func openDriver(t *testing.T, cfg DriverConfig) (*simulator.Simulator, *Driver) {
	t.Helper()
	sim := newTestSim(t, simulator.Config{})
	cfg.Socket = testSocketConfig()
	drv := NewDriver(cfg)
	require.NoError(t, drv.Open(context.Background(), sim.Locator()))
	t.Cleanup(func() { drv.Close() })
	return sim, drv
}

func TestDriverNotOpen(t *testing.T) {
	drv := NewDriver(DriverConfig{})
	ctx := context.Background()

	_, err := drv.Read(ctx, 0, 0, 4)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, drv.Write(ctx, 0, 0, 4, 1), ErrNotOpen)
	_, err = drv.BlockRead(ctx, 0, 0, 8, 4)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, drv.BlockWrite(ctx, 0, 0, []uint32{1}, 4), ErrNotOpen)
	assert.NoError(t, drv.Close())
	assert.Nil(t, drv.Device())
}

func TestDriverOpenTwice(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	assert.ErrorIs(t, drv.Open(context.Background(), sim.Locator()), ErrAlreadyOpen)
	assert.NotNil(t, drv.Device())

	require.NoError(t, drv.Close())
	require.NoError(t, drv.Close())
	assert.Nil(t, drv.Device())
}

func TestDriverScalarAccess(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	ctx := context.Background()

	require.NoError(t, bus.Write32(ctx, drv, 0x100, 0xCAFED00D))
	assert.Equal(t, uint32(0xCAFED00D), sim.Peek(0x100))

	// bar is ignored
	v, err := drv.Read(ctx, 3, 0x100, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xCAFED00D), v)

	b, err := bus.Read8(ctx, drv, 0x103)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0D), b)

	h, err := bus.Read16(ctx, drv, 0x100)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xCAFE), h)
}

func TestDriverInvalidWidth(t *testing.T) {
	_, drv := openDriver(t, DriverConfig{})
	ctx := context.Background()

	for _, width := range []int{0, 3, 8} {
		_, err := drv.Read(ctx, 0, 0, width)
		assert.ErrorIs(t, err, bus.ErrInvalidWidth)
		assert.ErrorIs(t, err, wire.StatusWidth)

		err = drv.Write(ctx, 0, 0, width, 0)
		assert.ErrorIs(t, err, bus.ErrInvalidWidth)
	}
}

func TestDriverInvalidStride(t *testing.T) {
	_, drv := openDriver(t, DriverConfig{})
	ctx := context.Background()

	_, err := drv.BlockRead(ctx, 0, 0, 16, 6)
	assert.ErrorIs(t, err, bus.ErrInvalidStride)
	assert.ErrorIs(t, drv.BlockWrite(ctx, 0, 0, []uint32{1}, -4), bus.ErrInvalidStride)
}

func TestDriverBlockLengthRoundsUp(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	sim.Poke(0x200, 1)
	sim.Poke(0x204, 2)

	words, err := drv.BlockRead(context.Background(), 0, 0x200, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, words)
}

func TestDriverWriteCRC(t *testing.T) {
	_, drv := openDriver(t, DriverConfig{})
	ctx := context.Background()

	first := []uint32{0x01020304, 0xDEADBEEF}
	second := []uint32{0, 0xFFFFFFFF, 42}
	require.NoError(t, drv.BlockWrite(ctx, 0, 0x1000, first, 4))
	require.NoError(t, drv.BlockWrite(ctx, 0, 0x2000, second, 4))

	var buf []byte
	for _, w := range append(append([]uint32{}, first...), second...) {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	assert.Equal(t, crc32.ChecksumIEEE(buf), drv.WriteCRC())

	drv.ResetCRC()
	assert.Equal(t, uint32(0), drv.WriteCRC())
}

func TestDriverCRCSkipsFailedWrites(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	sim.AddFault(0x3000, 0x3003)

	err := drv.BlockWrite(context.Background(), 0, 0x3000, []uint32{1, 2}, 4)
	assert.ErrorIs(t, err, wire.StatusPartialFailure)
	assert.Equal(t, uint32(0), drv.WriteCRC())
}

func TestDriverSilentBlockWrites(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{SilentBlockWrites: true})
	sim.AddFault(0x3000, 0x3003)

	assert.NoError(t, drv.BlockWrite(context.Background(), 0, 0x3000, []uint32{1, 2}, 4))
}

func TestDriverSelfTest(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	sim.Poke(DefaultEndpointOffset|RegID, EndpointID)
	sim.Poke(DefaultEndpointOffset|RegMACLow, 0x12345678)

	require.NoError(t, drv.SelfTest(context.Background(), DefaultEndpointOffset))
	assert.Equal(t, uint32(0x12345678), sim.Peek(DefaultEndpointOffset|RegMACLow), "MAC restored")
}

func TestDriverSelfTestWrongID(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	sim.Poke(DefaultEndpointOffset|RegID, 0x12345678)

	err := drv.SelfTest(context.Background(), DefaultEndpointOffset)
	assert.ErrorIs(t, err, ErrSelfTest)
}

func TestDriverSelfTestStuckRegister(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	sim.Poke(DefaultEndpointOffset|RegID, EndpointID)
	sim.AddFault(DefaultEndpointOffset|RegMACLow, DefaultEndpointOffset|RegMACLow+3)

	err := drv.SelfTest(context.Background(), DefaultEndpointOffset)
	assert.ErrorIs(t, err, wire.StatusPartialFailure)
}

func TestDriverBlockSelfTest(t *testing.T) {
	sim, drv := openDriver(t, DriverConfig{})
	require.NoError(t, drv.BlockSelfTest(context.Background(), 0x4000))
	assert.Equal(t, uint32(0x1F1F1F1F), sim.Peek(0x4000+31*4))
}
