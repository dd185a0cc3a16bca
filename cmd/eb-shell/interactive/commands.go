package interactive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/etherbone"
	"github.com/wishbone-tools/etherbone-go/pkg/sdb"
)

// loadChunk is the number of words written per block transfer by load.
const loadChunk = 256

// errNoDevice is reported by commands that need an open device.
var errNoDevice = errors.New("no device open (use 'open <locator>')")

// crcSource is implemented by drivers that checksum block writes.
type crcSource interface {
	WriteCRC() uint32
	ResetCRC()
}

// selfTester is implemented by drivers with built-in access checks.
type selfTester interface {
	SelfTest(ctx context.Context, ep uint64) error
	BlockSelfTest(ctx context.Context, ram uint64) error
}

func (s *Shell) driver() (bus.Driver, error) {
	if s.drv == nil {
		return nil, errNoDevice
	}
	return s.drv, nil
}

// parseUint accepts Go integer literal syntax.
func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseWidth(args []string, i int) (int, error) {
	if len(args) <= i {
		return 4, nil
	}
	w, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid width %q", args[i])
	}
	return w, bus.ValidWidth(w)
}

func (s *Shell) cmdOpen(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <locator>")
	}
	if err := s.Close(); err != nil {
		fmt.Fprintf(s.out, "%s closing %s: %v\n", errFmt("warning:"), s.locator, err)
	}
	drv := s.config.NewDriver(args[0])
	if err := drv.Open(ctx, args[0]); err != nil {
		return err
	}
	s.drv, s.locator = drv, args[0]

	fmt.Fprintf(s.out, "%s %s", okFmt("opened"), args[0])
	if ed, ok := drv.(*etherbone.Driver); ok {
		dev := ed.Device()
		fmt.Fprintf(s.out, " (%s, addr %d bytes, data %d bytes)", dev.RemoteAddr(), dev.AddressWidth(), dev.DataWidth())
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *Shell) cmdClose() error {
	if s.drv == nil {
		return errNoDevice
	}
	locator := s.locator
	if err := s.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "closed %s\n", locator)
	return nil
}

func (s *Shell) cmdRead(ctx context.Context, args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: read <addr> [width]")
	}
	addr, err := parseUint(args[0], 64)
	if err != nil {
		return err
	}
	width, err := parseWidth(args, 1)
	if err != nil {
		return err
	}
	v, err := drv.Read(ctx, 0, addr, width)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s: 0x%0*X (%d)\n", addrFmt(fmt.Sprintf("0x%08X", addr)), width*2, v, v)
	return nil
}

func (s *Shell) cmdWrite(ctx context.Context, args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: write <addr> <value> [width]")
	}
	addr, err := parseUint(args[0], 64)
	if err != nil {
		return err
	}
	width, err := parseWidth(args, 2)
	if err != nil {
		return err
	}
	v, err := parseUint(args[1], 8*width)
	if err != nil {
		return err
	}
	if err := drv.Write(ctx, 0, addr, width, v); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s: 0x%0*X %s\n", addrFmt(fmt.Sprintf("0x%08X", addr)), width*2, v, okFmt("ok"))
	return nil
}

func (s *Shell) cmdDump(ctx context.Context, args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: dump <addr> <words> [stride]")
	}
	addr, err := parseUint(args[0], 64)
	if err != nil {
		return err
	}
	n, err := parseUint(args[1], 16)
	if err != nil {
		return err
	}
	stride := bus.DefaultStride
	if len(args) == 3 {
		v, err := parseUint(args[2], 16)
		if err != nil {
			return err
		}
		stride = int(v)
	}
	words, err := drv.BlockRead(ctx, 0, addr, int(n)*4, stride)
	if err != nil {
		return err
	}
	for i, w := range words {
		if i%4 == 0 {
			if i > 0 {
				fmt.Fprintln(s.out)
			}
			fmt.Fprintf(s.out, "%s:", addrFmt(fmt.Sprintf("0x%08X", addr+uint64(i*stride))))
		}
		fmt.Fprintf(s.out, " %08X", w)
	}
	if len(words) > 0 {
		fmt.Fprintln(s.out)
	}
	return nil
}

func (s *Shell) cmdFill(ctx context.Context, args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	if len(args) != 3 {
		return errors.New("usage: fill <addr> <words> <value>")
	}
	addr, err := parseUint(args[0], 64)
	if err != nil {
		return err
	}
	n, err := parseUint(args[1], 16)
	if err != nil {
		return err
	}
	v, err := parseUint(args[2], 32)
	if err != nil {
		return err
	}
	words := make([]uint32, n)
	for i := range words {
		words[i] = uint32(v)
	}
	if err := drv.BlockWrite(ctx, 0, addr, words, 0); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "wrote %d words at %s\n", n, addrFmt(fmt.Sprintf("0x%08X", addr)))
	return nil
}

func (s *Shell) cmdLoad(ctx context.Context, args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return errors.New("usage: load <file> <addr>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	addr, err := parseUint(args[1], 64)
	if err != nil {
		return err
	}
	if rem := len(data) % 4; rem != 0 {
		data = append(data, make([]byte, 4-rem)...)
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(data[4*i:])
	}

	off := addr
	for _, chunk := range bus.Chunk(words, loadChunk) {
		if err := drv.BlockWrite(ctx, 0, off, chunk, 0); err != nil {
			return fmt.Errorf("at 0x%X: %w", off, err)
		}
		off += uint64(4 * len(chunk))
	}
	fmt.Fprintf(s.out, "loaded %d bytes at %s", len(data), addrFmt(fmt.Sprintf("0x%08X", addr)))
	if c, ok := drv.(crcSource); ok {
		fmt.Fprintf(s.out, " (crc 0x%08X)", c.WriteCRC())
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *Shell) cmdCRC(args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	c, ok := drv.(crcSource)
	if !ok {
		return fmt.Errorf("%s does not track a write CRC", s.locator)
	}
	if len(args) == 1 && args[0] == "reset" {
		c.ResetCRC()
	}
	fmt.Fprintf(s.out, "crc: 0x%08X\n", c.WriteCRC())
	return nil
}

// byteOrder returns the order in which the open device presents bus words.
func (s *Shell) byteOrder() binary.ByteOrder {
	if ed, ok := s.drv.(*etherbone.Driver); ok && ed.Device() != nil {
		return ed.Device().Format().ByteOrder()
	}
	return binary.BigEndian
}

func (s *Shell) parseSDB(ctx context.Context, args []string) (*sdb.Table, error) {
	drv, err := s.driver()
	if err != nil {
		return nil, err
	}
	root := s.sdbRoot
	if len(args) > 0 {
		if root, err = parseUint(args[0], 64); err != nil {
			return nil, err
		}
	}
	return sdb.Parse(ctx, drv, root, sdb.Options{Order: s.byteOrder(), Recursive: true})
}

func (s *Shell) cmdSDB(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errors.New("usage: sdb [root]")
	}
	t, err := s.parseSDB(ctx, args)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		s.sdbRoot = t.Address
	}
	s.printTable(t)
	return nil
}

func (s *Shell) printTable(t *sdb.Table) {
	fmt.Fprintf(s.out, "%s %s (%d records, version %d)\n",
		titleFmt("SDB"), addrFmt(fmt.Sprintf("0x%08X", t.Address)), t.Header.Records, t.Header.Version)
	fmt.Fprintf(s.out, "  %s\n", t.Header.Product.String())

	_ = t.Walk(func(tab *sdb.Table, r sdb.Record) error {
		indent := strings.Repeat("  ", tab.Depth+1)
		switch r := r.(type) {
		case *sdb.Device:
			fmt.Fprintf(s.out, "%s%s-%s %s\n", indent,
				addrFmt(fmt.Sprintf("0x%08X", tab.Base+r.AddrFirst)),
				addrFmt(fmt.Sprintf("0x%08X", tab.Base+r.AddrEnd)),
				r.Product.String())
		case *sdb.Bridge:
			fmt.Fprintf(s.out, "%s%s-%s %s %s\n", indent,
				addrFmt(fmt.Sprintf("0x%08X", tab.Base+r.AddrFirst)),
				addrFmt(fmt.Sprintf("0x%08X", tab.Base+r.AddrEnd)),
				titleFmt("bridge"), r.Product.String())
		case *sdb.Integration:
			fmt.Fprintf(s.out, "%s%s %s\n", indent, dimFmt("integration"), r.Product.String())
		case *sdb.RepoURL:
			fmt.Fprintf(s.out, "%s%s %s\n", indent, dimFmt("repo"), r.URL)
		case *sdb.Synthesis:
			fmt.Fprintf(s.out, "%s%s %s %s %s@%s\n", indent, dimFmt("synthesis"), r.Name, r.CommitID, r.Tool, r.User)
		}
		return nil
	})
}

func (s *Shell) cmdFind(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: find <vendor> <device>")
	}
	vendor, err := parseUint(args[0], 64)
	if err != nil {
		return err
	}
	device, err := parseUint(args[1], 32)
	if err != nil {
		return err
	}
	t, err := s.parseSDB(ctx, nil)
	if err != nil {
		return err
	}
	matches := t.Find(vendor, uint32(device))
	if len(matches) == 0 {
		fmt.Fprintln(s.out, dimFmt("no matching device"))
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(s.out, "%s-%s %s\n",
			addrFmt(fmt.Sprintf("0x%08X", m.First)), addrFmt(fmt.Sprintf("0x%08X", m.Last)), m.Device.Name)
	}
	return nil
}

func (s *Shell) cmdSelfTest(ctx context.Context, args []string) error {
	drv, err := s.driver()
	if err != nil {
		return err
	}
	st, ok := drv.(selfTester)
	if !ok {
		return fmt.Errorf("%s has no self test", s.locator)
	}
	ep := uint64(etherbone.DefaultEndpointOffset)
	if len(args) > 0 {
		if ep, err = parseUint(args[0], 64); err != nil {
			return err
		}
	}
	if err := st.SelfTest(ctx, ep); err != nil {
		return fmt.Errorf("register test: %w", err)
	}
	fmt.Fprintf(s.out, "register test %s\n", okFmt("passed"))

	if len(args) > 1 {
		ram, err := parseUint(args[1], 64)
		if err != nil {
			return err
		}
		if err := st.BlockSelfTest(ctx, ram); err != nil {
			return fmt.Errorf("block test: %w", err)
		}
		fmt.Fprintf(s.out, "block test %s\n", okFmt("passed"))
	}
	return nil
}

func (s *Shell) cmdDiscover(ctx context.Context, args []string) error {
	if s.config.Scanner == nil {
		return errors.New("discovery is not configured")
	}
	kind := bus.KindAll
	if len(args) > 0 {
		kind = args[0]
	}
	groups, err := s.config.Scanner.Scan(ctx, kind)
	if err != nil {
		return err
	}
	for _, k := range groups.Kinds() {
		fmt.Fprintf(s.out, "%s:\n", titleFmt(k))
		for _, l := range groups[k] {
			fmt.Fprintf(s.out, "  %s\n", l)
		}
	}
	return nil
}
