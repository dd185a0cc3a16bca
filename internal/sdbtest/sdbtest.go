// Package sdbtest builds SDB images and serves them from memory for tests.
package sdbtest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/sdb"
)

// Table builds one SDB table image.
type Table struct {
	order  binary.ByteOrder
	header sdb.Interconnect
	slots  [][]byte
}

// NewTable starts a table whose interconnect covers c.
func NewTable(order binary.ByteOrder, c sdb.Component) *Table {
	if order == nil {
		order = binary.BigEndian
	}
	return &Table{
		order:  order,
		header: sdb.Interconnect{Version: 1, BusType: sdb.BusWishbone, Component: c},
	}
}

// Device appends a device record.
func (t *Table) Device(d sdb.Device) *Table {
	b := t.record(sdb.TypeDevice)
	t.order.PutUint16(b[0:2], d.ABIClass)
	b[2], b[3] = d.ABIVerMajor, d.ABIVerMinor
	t.order.PutUint32(b[4:8], d.BusSpecific)
	t.component(b[8:64], d.Component)
	return t
}

// Bridge appends a bridge record pointing at child.
func (t *Table) Bridge(child uint64, c sdb.Component) *Table {
	b := t.record(sdb.TypeBridge)
	t.order.PutUint64(b[0:8], child)
	t.component(b[8:64], c)
	return t
}

// Integration appends an integration record.
func (t *Table) Integration(p sdb.Product) *Table {
	b := t.record(sdb.TypeIntegration)
	t.product(b[24:64], p)
	return t
}

// RepoURL appends a repo-url record.
func (t *Table) RepoURL(url string) *Table {
	b := t.record(sdb.TypeRepoURL)
	copy(b[0:63], url)
	return t
}

// Synthesis appends a synthesis record. CommitID is taken as raw bytes.
func (t *Table) Synthesis(s sdb.Synthesis) *Table {
	b := t.record(sdb.TypeSynthesis)
	copy(b[0:16], s.Name)
	copy(b[16:32], s.CommitID)
	copy(b[32:40], s.Tool)
	t.order.PutUint32(b[40:44], s.ToolVersion)
	t.order.PutUint32(b[44:48], s.Date)
	copy(b[48:63], s.User)
	return t
}

// Empty appends an unused slot.
func (t *Table) Empty() *Table {
	t.record(sdb.TypeEmpty)
	return t
}

// Raw appends a slot with the given type byte and zero contents.
func (t *Table) Raw(typ sdb.RecordType) *Table {
	t.record(typ)
	return t
}

// Len returns the number of records including the header.
func (t *Table) Len() int {
	return len(t.slots) + 1
}

// Bytes returns the encoded table.
func (t *Table) Bytes() []byte {
	out := make([]byte, sdb.RecordSize*t.Len())
	t.order.PutUint32(out[0:4], sdb.Magic)
	t.order.PutUint16(out[4:6], uint16(t.Len()))
	out[6] = t.header.Version
	out[7] = t.header.BusType
	t.component(out[8:64], t.header.Component)
	out[63] = uint8(sdb.TypeInterconnect)

	for i, s := range t.slots {
		copy(out[sdb.RecordSize*(i+1):], s)
	}
	return out
}

func (t *Table) record(typ sdb.RecordType) []byte {
	b := make([]byte, sdb.RecordSize)
	b[sdb.RecordSize-1] = uint8(typ)
	t.slots = append(t.slots, b)
	return b
}

func (t *Table) component(b []byte, c sdb.Component) {
	t.order.PutUint64(b[0:8], c.AddrFirst)
	t.order.PutUint64(b[8:16], c.AddrEnd)
	t.product(b[16:56], c.Product)
}

// product writes everything but the trailing type byte.
func (t *Table) product(b []byte, p sdb.Product) {
	t.order.PutUint64(b[0:8], p.VendorID)
	t.order.PutUint32(b[8:12], p.DeviceID)
	t.order.PutUint32(b[12:16], p.Version)
	t.order.PutUint32(b[16:20], p.Date)
	name := b[20:39]
	for i := range name {
		name[i] = ' '
	}
	copy(name, p.Name)
}

// ErrInjected is returned for reads of a failing address.
var ErrInjected = errors.New("injected read failure")

// Memory is a sparse byte-addressed bus. It implements bus.Driver.
type Memory struct {
	bus.Unsupported

	order binary.ByteOrder
	block bool

	mu         sync.Mutex
	mem        map[uint64]byte
	fail       map[uint64]bool
	reads      int
	blockReads int
}

// NewMemory returns an empty memory. With block unset BlockRead fails
// with bus.ErrNotSupported.
func NewMemory(order binary.ByteOrder, block bool) *Memory {
	if order == nil {
		order = binary.BigEndian
	}
	return &Memory{
		order: order,
		block: block,
		mem:   make(map[uint64]byte),
		fail:  make(map[uint64]bool),
	}
}

// Load copies data to addr.
func (m *Memory) Load(addr uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		m.mem[addr+uint64(i)] = b
	}
}

// Fail makes every read touching the word at addr fail.
func (m *Memory) Fail(addr uint64) {
	m.mu.Lock()
	m.fail[addr&^3] = true
	m.mu.Unlock()
}

// Reads returns the number of scalar and block reads served.
func (m *Memory) Reads() (scalar, block int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads, m.blockReads
}

func (m *Memory) Open(context.Context, string) error { return nil }
func (m *Memory) Close() error                       { return nil }

func (m *Memory) Read(_ context.Context, _ int, offset uint64, width int) (uint64, error) {
	if err := bus.ValidWidth(width); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.load(offset, width)
}

func (m *Memory) Write(_ context.Context, _ int, offset uint64, width int, value uint64) error {
	if err := bus.ValidWidth(width); err != nil {
		return err
	}
	var b [8]byte
	m.order.PutUint64(b[:], value)
	m.mu.Lock()
	defer m.mu.Unlock()
	src := b[8-width:]
	if m.order == binary.LittleEndian {
		src = b[:width]
	}
	for i := 0; i < width; i++ {
		m.mem[offset+uint64(i)] = src[i]
	}
	return nil
}

func (m *Memory) BlockRead(ctx context.Context, bar int, offset uint64, length int, stride int) ([]uint32, error) {
	if !m.block {
		return m.Unsupported.BlockRead(ctx, bar, offset, length, stride)
	}
	stride, err := bus.ValidStride(stride)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockReads++
	out := make([]uint32, bus.WordCount(length))
	for i := range out {
		v, err := m.load(offset+uint64(i*stride), 4)
		if err != nil {
			return nil, err
		}
		out[i] = uint32(v)
	}
	return out, nil
}

func (m *Memory) load(addr uint64, width int) (uint64, error) {
	if m.fail[addr&^3] {
		return 0, fmt.Errorf("0x%x: %w", addr, ErrInjected)
	}
	var b [8]byte
	dst := b[8-width:]
	if m.order == binary.LittleEndian {
		dst = b[:width]
	}
	for i := 0; i < width; i++ {
		dst[i] = m.mem[addr+uint64(i)]
	}
	return m.order.Uint64(b[:]), nil
}

var _ bus.Driver = (*Memory)(nil)
