package sdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// DefaultMaxDepth bounds bridge nesting.
const DefaultMaxDepth = 32

// Bus is the part of bus.Driver the parser reads through.
type Bus interface {
	Read(ctx context.Context, bar int, offset uint64, width int) (uint64, error)
	BlockRead(ctx context.Context, bar int, offset uint64, length int, stride int) ([]uint32, error)
}

var _ Bus = (bus.Driver)(nil)

// Options configures Parse.
type Options struct {
	// Order is the byte order of the bus (default big-endian).
	Order binary.ByteOrder

	// Recursive follows bridges into nested tables.
	Recursive bool

	// Bar is passed through to the bus. Etherbone ignores it.
	Bar int

	// MaxDepth bounds bridge nesting (default DefaultMaxDepth).
	MaxDepth int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

type parser struct {
	bus     Bus
	opts    Options
	visited map[uint64]bool
	noBlock bool
}

// Parse reads the SDB table at root.
//
// The magic word is read on its own first; a table without it fails
// with a *MagicError before anything else is read. Any bus error aborts
// the parse and is returned wrapped.
func Parse(ctx context.Context, b Bus, root uint64, opts Options) (*Table, error) {
	if opts.Order == nil {
		opts.Order = binary.BigEndian
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	p := &parser{
		bus:     b,
		opts:    opts,
		visited: make(map[uint64]bool),
	}
	return p.table(ctx, root, 0, 0)
}

func (p *parser) table(ctx context.Context, addr, base uint64, depth int) (*Table, error) {
	if p.visited[addr] {
		return nil, fmt.Errorf("sdb: table at 0x%x already visited: %w", addr, wire.StatusAddress)
	}
	if depth > p.opts.MaxDepth {
		return nil, fmt.Errorf("sdb: table at 0x%x nested deeper than %d: %w", addr, p.opts.MaxDepth, wire.StatusAddress)
	}
	p.visited[addr] = true

	magic, err := p.bus.Read(ctx, p.opts.Bar, addr, 4)
	if err != nil {
		return nil, fmt.Errorf("sdb: read magic at 0x%x: %w", addr, err)
	}
	if uint32(magic) != Magic {
		return nil, &MagicError{Address: addr, Magic: uint32(magic)}
	}

	raw, err := p.slot(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("sdb: read header at 0x%x: %w", addr, err)
	}
	hdr, err := decodeInterconnect(raw, p.opts.Order)
	if err != nil {
		return nil, fmt.Errorf("sdb: header at 0x%x: %w", addr, err)
	}
	if hdr.Records == 0 {
		return nil, fmt.Errorf("sdb: header at 0x%x: %w", addr, ErrInvalidRecordCount)
	}
	p.debugLog("sdb table", "addr", addr, "base", base, "records", hdr.Records, "depth", depth)

	t := &Table{
		Address: addr,
		Base:    base,
		Depth:   depth,
		Header:  hdr,
		Records: make([]Record, 0, int(hdr.Records)-1),
	}
	for i := 1; i < int(hdr.Records); i++ {
		at := addr + uint64(i)*RecordSize
		raw, err := p.slot(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("sdb: read slot %d at 0x%x: %w", i, at, err)
		}
		typ := RecordType(raw[RecordSize-1])
		decode, ok := slotDecoders[typ]
		if !ok {
			return nil, &RecordTypeError{Address: at, Slot: i, Type: typ}
		}
		r, err := decode(raw, p.opts.Order)
		if err != nil {
			return nil, fmt.Errorf("sdb: slot %d at 0x%x: %w", i, at, err)
		}

		if br, ok := r.(*Bridge); ok && p.opts.Recursive {
			child, err := p.table(ctx, base+br.Child, base+br.AddrFirst, depth+1)
			if err != nil {
				return nil, err
			}
			br.Table = child
		}
		t.Records = append(t.Records, r)
	}
	return t, nil
}

// slot reads one record. Buses without block reads are read word by word.
func (p *parser) slot(ctx context.Context, addr uint64) ([]byte, error) {
	const words = RecordSize / 4

	var values []uint32
	if !p.noBlock {
		v, err := p.bus.BlockRead(ctx, p.opts.Bar, addr, RecordSize, bus.DefaultStride)
		switch {
		case errors.Is(err, bus.ErrNotSupported):
			p.noBlock = true
		case err != nil:
			return nil, err
		case len(v) != words:
			return nil, fmt.Errorf("short block read: %d words", len(v))
		default:
			values = v
		}
	}
	if values == nil {
		values = make([]uint32, words)
		for i := range values {
			v, err := p.bus.Read(ctx, p.opts.Bar, addr+uint64(4*i), 4)
			if err != nil {
				return nil, err
			}
			values[i] = uint32(v)
		}
	}

	b := make([]byte, RecordSize)
	for i, v := range values {
		p.opts.Order.PutUint32(b[4*i:], v)
	}
	return b, nil
}

func (p *parser) debugLog(msg string, args ...any) {
	if p.opts.Logger != nil {
		p.opts.Logger.Debug(msg, args...)
	}
}
