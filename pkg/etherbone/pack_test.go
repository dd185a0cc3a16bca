package etherbone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

func packDevice(port int) *Device {
	m, _ := wire.WidthMask(port)
	return &Device{
		config:    DeviceConfig{}.withDefaults(),
		addrWidth: 4,
		dataWidth: port,
		format:    wire.NewFormat(wire.EndianBig, m),
	}
}

func testOps(t *testing.T, d *Device, spec ...op) []op {
	t.Helper()
	ops := make([]op, len(spec))
	for i, o := range spec {
		aligned, sel, shift, err := wire.Lane(o.addr, o.width, d.dataWidth, d.format)
		require.NoError(t, err)
		o.aligned, o.sel, o.shift = aligned, sel, shift
		ops[i] = o
	}
	return ops
}

func w(addr, v uint64) op { return op{write: true, addr: addr, width: 4, value: v} }
func r(addr uint64) op    { return op{addr: addr, width: 4} }

func TestPackMergesContiguousWritesAndReads(t *testing.T) {
	d := packDevice(4)
	ops := testOps(t, d, w(0x100, 1), w(0x104, 2), w(0x108, 3), r(0x200), r(0x100))

	packets := d.pack(ops, true)
	require.Len(t, packets, 1)
	p := packets[0]

	require.Len(t, p.packet.Records, 2)
	rec := p.packet.Records[0]
	assert.Equal(t, wire.RecordFlags(0), rec.Flags)
	assert.Equal(t, uint64(0x100), rec.WriteBase)
	assert.Equal(t, []uint64{1, 2, 3}, rec.Writes)
	assert.Equal(t, []uint64{0x200, 0x100}, rec.Reads)

	status := p.packet.Records[1]
	assert.Equal(t, wire.RecordRCA|wire.RecordCYC, status.Flags)
	assert.Equal(t, []uint64{statusAddr}, status.Reads)

	assert.Equal(t, []slot{
		{op: 3},
		{op: 4},
		{status: true, groupStart: 0, groupLen: 5},
	}, p.slots)
}

func TestPackSplitsRecords(t *testing.T) {
	d := packDevice(4)

	t.Run("NonContiguousWrites", func(t *testing.T) {
		packets := d.pack(testOps(t, d, w(0x100, 1), w(0x200, 2)), false)
		require.Len(t, packets, 1)
		assert.Len(t, packets[0].packet.Records, 2)
	})

	t.Run("WriteAfterRead", func(t *testing.T) {
		packets := d.pack(testOps(t, d, r(0x100), w(0x104, 2)), false)
		require.Len(t, packets, 1)
		recs := packets[0].packet.Records
		require.Len(t, recs, 2)
		assert.Len(t, recs[0].Reads, 1)
		assert.Len(t, recs[1].Writes, 1)
	})

	t.Run("SelectChange", func(t *testing.T) {
		ops := testOps(t, d,
			op{write: true, addr: 0x100, width: 1, value: 1},
			op{write: true, addr: 0x101, width: 1, value: 2},
		)
		packets := d.pack(ops, false)
		require.Len(t, packets, 1)
		recs := packets[0].packet.Records
		require.Len(t, recs, 2)
		assert.Equal(t, uint8(0x08), recs[0].Select)
		assert.Equal(t, uint8(0x04), recs[1].Select)
	})

	t.Run("RecordOpLimit", func(t *testing.T) {
		spec := make([]op, 300)
		for i := range spec {
			spec[i] = w(uint64(i*4), uint64(i))
		}
		packets := d.pack(testOps(t, d, spec...), false)
		total := 0
		for _, p := range packets {
			for _, rec := range p.packet.Records {
				assert.LessOrEqual(t, len(rec.Writes), wire.MaxRecordOps)
				total += len(rec.Writes)
			}
		}
		assert.Equal(t, 300, total)
	})
}

func TestPackStatusGroups(t *testing.T) {
	d := packDevice(4)
	spec := make([]op, 40)
	for i := range spec {
		spec[i] = w(uint64(i*4), uint64(i))
	}

	packets := d.pack(testOps(t, d, spec...), true)
	require.Len(t, packets, 1)

	var groups []slot
	for _, s := range packets[0].slots {
		if s.status {
			groups = append(groups, s)
		}
	}
	assert.Equal(t, []slot{
		{status: true, groupStart: 0, groupLen: 32},
		{status: true, groupStart: 32, groupLen: 8},
	}, groups)
}

func TestPackStatusGroupNarrowPort(t *testing.T) {
	d := packDevice(1)
	spec := make([]op, 10)
	for i := range spec {
		spec[i] = op{write: true, addr: uint64(i), width: 1, value: uint64(i)}
	}

	packets := d.pack(testOps(t, d, spec...), true)
	var lens []int
	for _, p := range packets {
		for _, s := range p.slots {
			if s.status {
				lens = append(lens, s.groupLen)
			}
		}
	}
	assert.Equal(t, []int{8, 2}, lens)
}

func TestPackSplitsPackets(t *testing.T) {
	d := packDevice(4)
	spec := make([]op, 1000)
	for i := range spec {
		spec[i] = w(uint64(i*4), uint64(i))
	}

	packets := d.pack(testOps(t, d, spec...), false)
	require.Greater(t, len(packets), 1)

	total := 0
	next := 0
	for i, p := range packets {
		b, err := p.packet.Encode()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(b), wire.MaxPacketSize, "packet %d", i)
		assert.Empty(t, p.slots)
		assert.Equal(t, next, p.firstOp)
		for _, rec := range p.packet.Records {
			total += len(rec.Writes)
			next += len(rec.Writes)
		}
	}
	assert.Equal(t, 1000, total)

	last := packets[len(packets)-1].packet.Records
	assert.NotZero(t, last[len(last)-1].Flags&wire.RecordCYC)
	assert.Zero(t, packets[0].packet.Records[0].Flags&wire.RecordCYC)
}

func TestFirstFailure(t *testing.T) {
	tests := []struct {
		word  uint64
		start int
		n     int
		want  int
	}{
		{0, 0, 5, -1},
		{0b1, 0, 5, 4},
		{0b10000, 0, 5, 0},
		{0b00110, 10, 5, 12},
		{1 << 31, 32, 32, 32},
	}
	for _, tt := range tests {
		if got := firstFailure(tt.word, tt.start, tt.n); got != tt.want {
			t.Errorf("firstFailure(%b, %d, %d) = %d, want %d", tt.word, tt.start, tt.n, got, tt.want)
		}
	}
}
