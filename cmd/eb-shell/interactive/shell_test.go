package interactive

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/internal/sdbtest"
	"github.com/wishbone-tools/etherbone-go/internal/simulator"
	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/discovery"
	"github.com/wishbone-tools/etherbone-go/pkg/etherbone"
	"github.com/wishbone-tools/etherbone-go/pkg/sdb"
)

func init() {
	color.NoColor = true
}

const sdbRoot = 0x100

func demoMemory() *sdbtest.Memory {
	mem := sdbtest.NewMemory(binary.BigEndian, true)
	table := sdbtest.NewTable(binary.BigEndian, sdb.Component{
		AddrFirst: 0, AddrEnd: 0xFFFF,
		Product: sdb.Product{VendorID: 0x651, DeviceID: 0xE6A542C9, Name: "WB4-Crossbar-GSI"},
	}).Device(sdb.Device{
		BusSpecific: sdb.WBAccess32,
		Component: sdb.Component{
			AddrFirst: 0x1000, AddrEnd: 0x10FF,
			Product: sdb.Product{VendorID: 0xCE42, DeviceID: 0xCAFE, Name: "GPIO"},
		},
	}).RepoURL("https://example.org/gateware.git")
	mem.Load(sdbRoot, table.Bytes())
	mem.Load(0x1000, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x01})
	return mem
}

func newMemoryShell(t *testing.T, mem *sdbtest.Memory) (*Shell, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := New(Config{
		NewDriver: func(string) bus.Driver { return mem },
		SDBRoot:   sdbRoot,
	}, &out)
	require.True(t, s.Exec(context.Background(), "open mem"))
	require.Equal(t, "mem", s.Locator())
	out.Reset()
	return s, &out
}

func exec(s *Shell, out *bytes.Buffer, line string) string {
	out.Reset()
	s.Exec(context.Background(), line)
	return out.String()
}

func TestReadWrite(t *testing.T) {
	s, out := newMemoryShell(t, demoMemory())

	assert.Equal(t, "0x00001000: 0xDEADBEEF (3735928559)\n", exec(s, out, "read 0x1000"))
	assert.Equal(t, "0x00001000: 0xDE (222)\n", exec(s, out, "r 0x1000 1"))

	assert.Equal(t, "0x00002000: 0x1234 ok\n", exec(s, out, "write 0x2000 0x1234 2"))
	assert.Equal(t, "0x00002000: 0x1234 (4660)\n", exec(s, out, "read 0x2000 2"))
}

func TestCommandErrors(t *testing.T) {
	s, out := newMemoryShell(t, demoMemory())

	for _, line := range []string{
		"read",
		"read zz",
		"read 0x0 3",
		"write 0x0",
		"write 0x0 0x100 1",
		"dump 0x0",
		"fill 0x0 4 1",
		"load /nonexistent 0x0",
		"crc",
		"selftest",
		"discover",
		"sdb 0x4000",
		"bogus",
	} {
		assert.Contains(t, exec(s, out, line), "error:", line)
	}
}

func TestNoDevice(t *testing.T) {
	var out bytes.Buffer
	s := New(Config{NewDriver: func(string) bus.Driver { return demoMemory() }}, &out)

	for _, line := range []string{"read 0x0", "dump 0x0 4", "sdb", "close"} {
		out.Reset()
		s.Exec(context.Background(), line)
		assert.Contains(t, out.String(), errNoDevice.Error(), line)
	}
}

func TestDump(t *testing.T) {
	s, out := newMemoryShell(t, demoMemory())

	got := exec(s, out, "dump 0x1000 6")
	assert.Equal(t, "0x00001000: DEADBEEF 00000001 00000000 00000000\n0x00001010: 00000000 00000000\n", got)

	got = exec(s, out, "dump 0x1000 2 8")
	assert.Equal(t, "0x00001000: DEADBEEF 00000000\n", got)
}

func TestSDB(t *testing.T) {
	s, out := newMemoryShell(t, demoMemory())

	got := exec(s, out, "sdb")
	assert.Contains(t, got, "SDB 0x00000100 (3 records, version 1)")
	assert.Contains(t, got, "WB4-Crossbar-GSI")
	assert.Contains(t, got, "  0x00001000-0x000010FF 000000000000ce42:0000cafe GPIO")
	assert.Contains(t, got, "repo https://example.org/gateware.git")

	assert.Equal(t, "0x00001000-0x000010FF GPIO\n", exec(s, out, "find 0xCE42 0xCAFE"))
	assert.Equal(t, "no matching device\n", exec(s, out, "find 0xCE42 0xBEEF"))
}

func TestCommentsBlankAndQuit(t *testing.T) {
	s, out := newMemoryShell(t, demoMemory())

	assert.True(t, s.Exec(context.Background(), ""))
	assert.True(t, s.Exec(context.Background(), "# comment"))
	assert.Empty(t, out.String())

	assert.Contains(t, exec(s, out, "help"), "Etherbone Shell Commands")
	assert.False(t, s.Exec(context.Background(), "quit"))
}

func TestClose(t *testing.T) {
	s, out := newMemoryShell(t, demoMemory())

	assert.Equal(t, "closed mem\n", exec(s, out, "close"))
	assert.Empty(t, s.Locator())
}

func TestDiscover(t *testing.T) {
	var out bytes.Buffer
	s := New(Config{
		NewDriver: func(string) bus.Driver { return demoMemory() },
		Scanner: &discovery.StaticScanner{Groups: bus.Groups{
			bus.KindEth: {"udp/10.0.0.30"},
		}},
	}, &out)

	s.Exec(context.Background(), "discover eth")
	assert.Equal(t, "eth:\n  udp/10.0.0.30\npci:\nserial:\n", out.String())
}

func TestEtherboneSession(t *testing.T) {
	sim, err := simulator.New(simulator.Config{})
	require.NoError(t, err)
	sim.Start()
	t.Cleanup(func() { sim.Close() })

	sim.Poke(etherbone.DefaultEndpointOffset|etherbone.RegID, etherbone.EndpointID)

	var out bytes.Buffer
	s := New(Config{
		NewDriver: func(string) bus.Driver {
			return etherbone.NewDriver(etherbone.DriverConfig{
				Socket: etherbone.SocketConfig{LocalAddr: "127.0.0.1:0"},
			})
		},
	}, &out)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.True(t, s.Exec(ctx, "open "+sim.Locator()))
	require.Contains(t, out.String(), "opened "+sim.Locator())

	image := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(path, image, 0o600))

	out.Reset()
	s.Exec(ctx, "load "+path+" 0x4000")
	words := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 0, 0}
	assert.Equal(t, uint32(0x01020304), sim.Peek(0x4000))
	assert.Equal(t, uint32(0x09000000), sim.Peek(0x4008))

	var le []byte
	for i := 0; i < len(words); i += 4 {
		le = binary.LittleEndian.AppendUint32(le, binary.BigEndian.Uint32(words[i:]))
	}
	want := crc32.ChecksumIEEE(le)
	assert.Contains(t, out.String(), "loaded 12 bytes")
	assert.Contains(t, out.String(), fmt.Sprintf("(crc 0x%08X)", want))

	out.Reset()
	s.Exec(ctx, "crc reset")
	assert.Equal(t, "crc: 0x00000000\n", out.String())

	out.Reset()
	s.Exec(ctx, "selftest")
	assert.Equal(t, "register test passed\n", out.String())

	out.Reset()
	s.Exec(ctx, "fill 0x5000 3 0xA5A5A5A5")
	assert.Equal(t, "wrote 3 words at 0x00005000\n", out.String())
	assert.Equal(t, uint32(0xA5A5A5A5), sim.Peek(0x5008))
}

