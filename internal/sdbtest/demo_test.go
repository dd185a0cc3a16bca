package sdbtest

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/pkg/sdb"
)

func TestDemoParses(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			mem := NewMemory(order, true)
			for _, seg := range Demo(order) {
				mem.Load(seg.Addr, seg.Data)
			}

			tbl, err := sdb.Parse(context.Background(), mem, DemoRoot, sdb.Options{Order: order, Recursive: true})
			require.NoError(t, err)
			assert.Len(t, tbl.Records, 5)

			gpio := tbl.Find(VendorCERN, DeviceGPIO)
			require.Len(t, gpio, 1)
			assert.Equal(t, uint64(DemoGPIO), gpio[0].First)

			ram := tbl.Find(VendorCERN, DeviceRAM)
			require.Len(t, ram, 1)
			assert.Equal(t, uint64(DemoRAM), ram[0].First)
			assert.Equal(t, 1, ram[0].Table.Depth)
		})
	}
}
