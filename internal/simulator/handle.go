package simulator

import "github.com/wishbone-tools/etherbone-go/pkg/wire"

// handle executes one packet and returns the encoded reply, or nil.
func (s *Simulator) handle(data []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Packets++
	if s.drop > 0 {
		s.drop--
		s.stats.Dropped++
		return nil
	}

	req, err := wire.Decode(data)
	if err != nil {
		s.debugLog("malformed packet", "error", err)
		return nil
	}

	if req.Flags&wire.FlagProbe != 0 {
		s.stats.Probes++
		return s.encode(&wire.Packet{Flags: wire.FlagProbeResponse, Widths: s.config.Widths})
	}

	port := wire.WidthBytes(req.Widths & wire.DataMask)
	if req.Widths&s.config.Widths != req.Widths {
		s.debugLog("unsupported widths", "widths", req.Widths)
		return nil
	}

	reply := &wire.Packet{Widths: req.Widths}
	for i := range req.Records {
		r := &req.Records[i]

		addr := r.WriteBase
		for _, v := range r.Writes {
			if r.Flags&wire.RecordWCA == 0 {
				s.busWrite(addr, r.Select, port, v)
			}
			if r.Flags&wire.RecordWFF == 0 {
				addr += uint64(port)
			}
		}

		if len(r.Reads) == 0 {
			continue
		}
		out := wire.Record{Select: r.Select, WriteBase: r.ReadBase, Writes: make([]uint64, len(r.Reads))}
		for j, a := range r.Reads {
			if r.Flags&wire.RecordRCA != 0 {
				out.Writes[j] = s.configRead(a, port)
			} else {
				out.Writes[j] = s.busRead(a, r.Select, port)
			}
		}
		reply.Records = append(reply.Records, out)
	}

	if len(reply.Records) == 0 || req.Flags&wire.FlagNoReads != 0 {
		return nil
	}
	return s.encode(reply)
}

func (s *Simulator) encode(p *wire.Packet) []byte {
	b, err := p.Encode()
	if err != nil {
		s.debugLog("encode reply", "error", err)
		return nil
	}
	s.stats.Replies++
	return b
}

func (s *Simulator) faulted(addr uint64) bool {
	for _, f := range s.faults {
		if f.Contains(addr) {
			return true
		}
	}
	return false
}

// shift records the outcome of one bus operation in the error register.
func (s *Simulator) shift(failed bool) {
	s.status <<= 1
	if failed {
		s.status |= 1
		s.stats.Faults++
	}
}

// laneAddr returns the byte address of lane j of the port word at aligned.
func (s *Simulator) laneAddr(aligned uint64, j, port int) uint64 {
	if s.config.Endian == wire.EndianLittle {
		return aligned + uint64(j)
	}
	return aligned + uint64(port-1-j)
}

func (s *Simulator) busWrite(aligned uint64, sel uint8, port int, v uint64) {
	s.stats.Writes++
	if s.faulted(aligned) {
		s.shift(true)
		return
	}
	for j := 0; j < port; j++ {
		if sel&(1<<j) != 0 {
			s.mem[s.laneAddr(aligned, j, port)] = byte(v >> (8 * j))
		}
	}
	s.shift(false)
}

func (s *Simulator) busRead(aligned uint64, sel uint8, port int) uint64 {
	s.stats.Reads++
	if s.faulted(aligned) {
		s.shift(true)
		return 0
	}
	var v uint64
	for j := 0; j < port; j++ {
		if sel&(1<<j) != 0 {
			v |= uint64(s.mem[s.laneAddr(aligned, j, port)]) << (8 * j)
		}
	}
	s.shift(false)
	return v
}

// configRead returns a config-space register. Address 0 is the error
// register, which is cleared by the read.
func (s *Simulator) configRead(addr uint64, port int) uint64 {
	if addr != 0 {
		return 0
	}
	v := s.status
	if port < 8 {
		v &= 1<<(8*uint(port)) - 1
	}
	s.status = 0
	return v
}
