package etherbone

import "github.com/wishbone-tools/etherbone-go/pkg/wire"

// slot maps one read in a packet back to the cycle.
type slot struct {
	// op is the index of a bus read.
	op int

	// status marks a config-space status read covering
	// ops [groupStart, groupStart+groupLen).
	status     bool
	groupStart int
	groupLen   int
}

type plannedPacket struct {
	packet  *wire.Packet
	slots   []slot
	firstOp int
}

// item is one read or write to place in a record.
type item struct {
	write bool
	flags wire.RecordFlags
	sel   uint8
	addr  uint64
	value uint64
	op    int
	slot  slot
}

type packer struct {
	widths uint8
	stride int
	port   int

	out  []plannedPacket
	cur  *plannedPacket
	size int
}

// pack splits ops into packets no larger than wire.MaxPacketSize.
// With ack set, a status read follows every group of operations.
func (d *Device) pack(ops []op, ack bool) []plannedPacket {
	p := &packer{
		widths: d.widths(),
		stride: wire.Stride(d.addrWidth, d.dataWidth),
		port:   d.dataWidth,
	}

	group := 8 * d.dataWidth
	if group > maxStatusGroup {
		group = maxStatusGroup
	}

	groupStart := 0
	for i := range ops {
		o := &ops[i]
		p.add(item{
			write: o.write,
			sel:   o.sel,
			addr:  o.aligned,
			value: o.value,
			op:    i,
			slot:  slot{op: i},
		})

		n := i + 1 - groupStart
		if ack && (n == group || i == len(ops)-1) {
			p.add(item{
				flags: wire.RecordRCA,
				sel:   wire.FullSelect(d.dataWidth),
				addr:  statusAddr,
				op:    i,
				slot:  slot{status: true, groupStart: groupStart, groupLen: n},
			})
			groupStart = i + 1
		}
	}
	return p.finish()
}

func (p *packer) startPacket(firstOp int) {
	p.cur = &plannedPacket{
		packet:  &wire.Packet{Widths: p.widths},
		firstOp: firstOp,
	}
	p.size = wire.HeaderSize(p.stride)
}

func (p *packer) flush() {
	if p.cur != nil {
		p.out = append(p.out, *p.cur)
		p.cur = nil
	}
}

func (p *packer) last() *wire.Record {
	recs := p.cur.packet.Records
	if len(recs) == 0 {
		return nil
	}
	return &recs[len(recs)-1]
}

func (p *packer) canJoin(r *wire.Record, it item) bool {
	if r == nil || r.Flags != it.flags || r.Select != it.sel {
		return false
	}
	if it.write {
		if len(r.Reads) > 0 || len(r.Writes) >= wire.MaxRecordOps {
			return false
		}
		return len(r.Writes) == 0 || it.addr == r.WriteBase+uint64(len(r.Writes)*p.port)
	}
	return len(r.Reads) < wire.MaxRecordOps
}

func (p *packer) growth(r *wire.Record, it item, join bool) int {
	if !join {
		return wire.HeaderSize(p.stride) + 2*p.stride
	}
	n := len(r.Reads)
	if it.write {
		n = len(r.Writes)
	}
	if n == 0 {
		return 2 * p.stride
	}
	return p.stride
}

func (p *packer) add(it item) {
	if p.cur == nil {
		p.startPacket(it.op)
	}
	r := p.last()
	join := p.canJoin(r, it)
	grow := p.growth(r, it, join)

	if p.size+grow > wire.MaxPacketSize && len(p.cur.packet.Records) > 0 {
		p.flush()
		p.startPacket(it.op)
		r, join = nil, false
		grow = p.growth(nil, it, false)
	}

	if !join {
		p.cur.packet.Records = append(p.cur.packet.Records, wire.Record{Flags: it.flags, Select: it.sel})
		r = p.last()
	}
	if it.write {
		if len(r.Writes) == 0 {
			r.WriteBase = it.addr
		}
		r.Writes = append(r.Writes, it.value)
	} else {
		r.Reads = append(r.Reads, it.addr)
		p.cur.slots = append(p.cur.slots, it.slot)
	}
	p.size += grow
}

// finish marks the end of the cycle on the last record.
func (p *packer) finish() []plannedPacket {
	p.flush()
	if n := len(p.out); n > 0 {
		recs := p.out[n-1].packet.Records
		if len(recs) > 0 {
			recs[len(recs)-1].Flags |= wire.RecordCYC
		}
	}
	return p.out
}
