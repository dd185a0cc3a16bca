package etherbone

import (
	"context"
	"fmt"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/log"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// statusAddr is the config-space address of the per-operation error
// register. Each bus operation shifts one bit in (1 = failed); the
// most recent operation is bit 0.
const statusAddr = 0

// maxStatusGroup is the most operations covered by one status read.
const maxStatusGroup = 32

// Cycle is an ordered batch of bus operations sent as one unit.
type Cycle struct {
	dev   *Device
	ops   []op
	reads int

	// done is set under dev.mu once the cycle is closed, aborted or reset.
	done bool
}

type op struct {
	write bool
	addr  uint64

	aligned uint64
	sel     uint8
	shift   uint
	width   int
	value   uint64
}

func (o *op) name() string {
	if o.write {
		return "write"
	}
	return "read"
}

func widthMask(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(width)) - 1
}

// Len returns the number of queued operations.
func (c *Cycle) Len() int {
	return len(c.ops)
}

// Read queues a read of width bytes at addr. The value is returned by Close.
func (c *Cycle) Read(addr uint64, width int) error {
	return c.add(op{addr: addr, width: width})
}

// Write queues a write of the low width bytes of value at addr.
func (c *Cycle) Write(addr uint64, width int, value uint64) error {
	return c.add(op{write: true, addr: addr, width: width, value: value & widthMask(width)})
}

func (c *Cycle) add(o op) error {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.done {
		return ErrCycleClosed
	}
	if d.closed {
		return ErrDeviceClosed
	}

	aligned, sel, shift, err := wire.Lane(o.addr, o.width, d.dataWidth, d.format)
	if err != nil {
		return &OpError{Op: o.name(), Device: d.config.Locator, Offset: o.addr, Status: StatusOf(err)}
	}
	if d.addrWidth < 8 && aligned>>(8*uint(d.addrWidth)) != 0 {
		return &OpError{
			Op: o.name(), Device: d.config.Locator, Offset: o.addr, Status: wire.StatusAddress,
			Err: fmt.Errorf("address exceeds %d-bit bus", 8*d.addrWidth),
		}
	}
	if len(c.ops) >= d.config.MaxCycleOps {
		return &OpError{
			Op: o.name(), Device: d.config.Locator, Offset: o.addr, Status: wire.StatusOverflow,
			Err: fmt.Errorf("cycle holds %d operations", len(c.ops)),
		}
	}

	o.aligned, o.sel, o.shift = aligned, sel, shift
	if o.write {
		o.value <<= shift
	} else {
		c.reads++
	}
	c.ops = append(c.ops, o)
	return nil
}

// Abort discards the cycle without sending anything.
func (c *Cycle) Abort() {
	d := c.dev
	d.mu.Lock()
	c.done = true
	if d.cycle == c {
		d.cycle = nil
	}
	d.mu.Unlock()
}

// Close sends the cycle and waits for the device to acknowledge every
// operation. It returns the read values in the order the reads were
// queued. If any operation failed, no values are returned and the error
// is a StatusPartialFailure naming the first failing operation.
func (c *Cycle) Close(ctx context.Context) ([]uint64, error) {
	return c.close(ctx, false)
}

// CloseSilent sends the cycle without asking for acknowledgement.
// Reads are still answered; a write-only cycle returns once sent.
func (c *Cycle) CloseSilent(ctx context.Context) ([]uint64, error) {
	return c.close(ctx, true)
}

func (c *Cycle) close(ctx context.Context, silent bool) ([]uint64, error) {
	d := c.dev
	d.mu.Lock()
	if c.done {
		d.mu.Unlock()
		return nil, ErrCycleClosed
	}
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	c.done = true
	d.mu.Unlock()
	defer d.releaseCycle(c)

	if len(c.ops) == 0 {
		return []uint64{}, nil
	}

	packets := d.pack(c.ops, !silent)
	start := time.Now()
	values, failed, err := d.execute(ctx, c.ops, packets)

	ev := &log.CycleEvent{
		Reads:    c.reads,
		Writes:   len(c.ops) - c.reads,
		Packets:  len(packets),
		Silent:   silent,
		Status:   StatusOf(err),
		Duration: time.Since(start),
	}
	if failed >= 0 {
		off := c.ops[failed].addr
		ev.FailedOffset = &off
	}
	d.sock.emit(log.Event{
		Layer:      log.LayerWire,
		Category:   log.CategoryCycle,
		Device:     d.config.Locator,
		RemoteAddr: d.addr.String(),
		Cycle:      ev,
	})
	if err != nil {
		d.sock.emitError(d.config.Locator, log.LayerWire, err, "cycle close")
		return nil, err
	}

	reads := make([]uint64, 0, c.reads)
	for i := range c.ops {
		if !c.ops[i].write {
			reads = append(reads, values[i])
		}
	}
	return reads, nil
}

// execute sends the packets stop-and-wait. It returns the read value of
// every read op indexed by op, and the index of the first failing op or -1.
func (d *Device) execute(ctx context.Context, ops []op, packets []plannedPacket) ([]uint64, int, error) {
	values := make([]uint64, len(ops))

	for _, p := range packets {
		wantReply := len(p.slots) > 0
		if !wantReply {
			p.packet.Flags |= wire.FlagNoReads
		}
		var match func(*wire.Packet) bool
		if wantReply {
			match = d.tag(p.packet)
		}
		payload, err := p.packet.Encode()
		if err != nil {
			return nil, p.firstOp, d.cycleError(ops[p.firstOp], err)
		}

		reply, err := d.sock.exchange(ctx, d.addr, d.config.Locator, payload, false, match, d.config.Timeout)
		if err != nil {
			if IsFault(err) {
				return nil, -1, err
			}
			return nil, -1, d.cycleError(ops[p.firstOp], err)
		}
		if !wantReply {
			continue
		}

		data := replyValues(reply)
		if len(data) != len(p.slots) {
			return nil, -1, d.cycleError(ops[p.firstOp],
				fmt.Errorf("%w: reply carries %d values, want %d", wire.StatusFail, len(data), len(p.slots)))
		}

		for i, s := range p.slots {
			if !s.status {
				o := &ops[s.op]
				values[s.op] = (data[i] >> o.shift) & widthMask(o.width)
				continue
			}
			if failed := firstFailure(data[i], s.groupStart, s.groupLen); failed >= 0 {
				o := &ops[failed]
				return nil, failed, &OpError{
					Op:     "cycle close",
					Device: d.config.Locator,
					Offset: o.addr,
					Status: wire.StatusPartialFailure,
					Err:    fmt.Errorf("%s of operation %d failed", o.name(), failed),
				}
			}
		}
	}
	return values, -1, nil
}

func (d *Device) cycleError(first op, err error) error {
	return &OpError{
		Op:     "cycle close",
		Device: d.config.Locator,
		Offset: first.addr,
		Status: StatusOf(err),
		Err:    errIfNotStatus(err),
	}
}

func errIfNotStatus(err error) error {
	if _, ok := err.(wire.Status); ok {
		return nil
	}
	return err
}

// firstFailure decodes a status word covering ops [start, start+n).
func firstFailure(word uint64, start, n int) int {
	for i := n - 1; i >= 0; i-- {
		if word>>uint(i)&1 != 0 {
			return start + n - 1 - i
		}
	}
	return -1
}

// tag stamps the read records of p with a fresh sequence number in the
// read return base. The remote answers each read record with a write
// record at that base, so a reply carrying another tag belongs to an
// earlier packet whose wait already gave up.
func (d *Device) tag(p *wire.Packet) func(*wire.Packet) bool {
	seq := d.seq.Add(1) & widthMask(wire.Stride(d.addrWidth, d.dataWidth))
	n := 0
	for i := range p.Records {
		if len(p.Records[i].Reads) > 0 {
			p.Records[i].ReadBase = seq
			n++
		}
	}
	return func(reply *wire.Packet) bool {
		if len(reply.Records) != n {
			return false
		}
		for i := range reply.Records {
			if reply.Records[i].WriteBase != seq {
				return false
			}
		}
		return true
	}
}

func replyValues(p *wire.Packet) []uint64 {
	var out []uint64
	for i := range p.Records {
		out = append(out, p.Records[i].Writes...)
	}
	return out
}
