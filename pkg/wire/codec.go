package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet constants.
const (
	// Magic starts every Etherbone packet.
	Magic uint16 = 0x4E6F

	// ProtocolVersion is the Etherbone protocol version.
	ProtocolVersion uint8 = 1

	// DefaultPort is the registered Etherbone UDP port (0xEBD0).
	DefaultPort = 60368

	// MaxPacketSize is the largest UDP payload sent in one packet.
	// A 1500 byte Ethernet frame minus 20 bytes IP and 8 bytes UDP header.
	MaxPacketSize = 1472

	// MaxRecordOps is the largest wcount or rcount in a record.
	MaxRecordOps = 255
)

// PacketFlags are the flags in the packet header.
type PacketFlags uint8

const (
	// FlagProbe asks the remote for its widths.
	FlagProbe PacketFlags = 0x1
	// FlagProbeResponse marks the answer to a probe.
	FlagProbeResponse PacketFlags = 0x2
	// FlagNoReads tells the remote that no reply data is expected.
	FlagNoReads PacketFlags = 0x4
)

// RecordFlags are the flags in a record header.
type RecordFlags uint8

const (
	// RecordBCA: read replies are written to config space.
	RecordBCA RecordFlags = 0x80
	// RecordRCA: read addresses are in config space.
	RecordRCA RecordFlags = 0x40
	// RecordRFF: read replies go to a FIFO (non-incrementing).
	RecordRFF RecordFlags = 0x20
	// RecordCYC: drop the cycle line after this record.
	RecordCYC RecordFlags = 0x08
	// RecordWCA: write addresses are in config space.
	RecordWCA RecordFlags = 0x04
	// RecordWFF: writes go to a FIFO (non-incrementing).
	RecordWFF RecordFlags = 0x02
)

// Codec errors.
var (
	// ErrBadMagic indicates the packet does not start with the Etherbone magic.
	ErrBadMagic = errors.New("not an etherbone packet")

	// ErrBadVersion indicates an unsupported protocol version.
	ErrBadVersion = errors.New("unsupported etherbone version")

	// ErrShortPacket indicates the packet ended inside a header or record.
	ErrShortPacket = errors.New("etherbone packet truncated")

	// ErrBadWidths indicates the size byte does not select a usable width.
	ErrBadWidths = errors.New("invalid etherbone widths")
)

// Packet is a decoded Etherbone packet.
type Packet struct {
	Flags PacketFlags

	// Widths carries the address mask in the high nibble and the data mask
	// in the low nibble. Probes carry full capability masks; data packets
	// carry exactly one bit per nibble.
	Widths uint8

	Records []Record
}

// Record is one Etherbone record: writes are executed first, then reads.
type Record struct {
	Flags  RecordFlags
	Select uint8

	WriteBase uint64
	Writes    []uint64

	ReadBase uint64
	Reads    []uint64
}

// Stride returns the field alignment of the packet.
func (p *Packet) Stride() int {
	return Stride(WidthBytes(p.Widths&AddrMask), WidthBytes(p.Widths&DataMask))
}

// Size returns the encoded size of the record for the given stride.
func (r *Record) Size(stride int) int {
	n := HeaderSize(stride)
	if len(r.Writes) > 0 {
		n += stride * (1 + len(r.Writes))
	}
	if len(r.Reads) > 0 {
		n += stride * (1 + len(r.Reads))
	}
	return n
}

// HeaderSize returns the encoded header size for a stride.
func HeaderSize(stride int) int {
	if stride < 4 {
		return 4
	}
	return stride
}

// Encode serializes the packet.
func (p *Packet) Encode() ([]byte, error) {
	stride := p.Stride()
	if stride == 0 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrBadWidths, p.Widths)
	}
	size := HeaderSize(stride)
	for i := range p.Records {
		size += p.Records[i].Size(stride)
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = ProtocolVersion<<4 | uint8(p.Flags)&0x0F
	buf[3] = p.Widths

	pos := HeaderSize(stride)
	for i := range p.Records {
		r := &p.Records[i]
		if len(r.Writes) > MaxRecordOps || len(r.Reads) > MaxRecordOps {
			return nil, fmt.Errorf("record %d: %w", i, StatusOverflow)
		}
		buf[pos] = uint8(r.Flags)
		buf[pos+1] = r.Select
		buf[pos+2] = uint8(len(r.Writes))
		buf[pos+3] = uint8(len(r.Reads))
		pos += HeaderSize(stride)

		if len(r.Writes) > 0 {
			putWord(buf[pos:], stride, r.WriteBase)
			pos += stride
			for _, v := range r.Writes {
				putWord(buf[pos:], stride, v)
				pos += stride
			}
		}
		if len(r.Reads) > 0 {
			putWord(buf[pos:], stride, r.ReadBase)
			pos += stride
			for _, a := range r.Reads {
				putWord(buf[pos:], stride, a)
				pos += stride
			}
		}
	}
	return buf, nil
}

// Decode parses an Etherbone packet.
func Decode(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, ErrShortPacket
	}
	if binary.BigEndian.Uint16(data[0:2]) != Magic {
		return nil, ErrBadMagic
	}
	if data[2]>>4 != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, data[2]>>4)
	}

	p := &Packet{
		Flags:  PacketFlags(data[2] & 0x0F),
		Widths: data[3],
	}
	stride := p.Stride()
	if stride == 0 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrBadWidths, p.Widths)
	}

	pos := HeaderSize(stride)
	if pos > len(data) {
		// Probes may omit the header padding.
		if p.Flags&(FlagProbe|FlagProbeResponse) != 0 {
			return p, nil
		}
		return nil, ErrShortPacket
	}

	for pos < len(data) {
		if pos+HeaderSize(stride) > len(data) {
			return nil, ErrShortPacket
		}
		r := Record{
			Flags:  RecordFlags(data[pos]),
			Select: data[pos+1],
		}
		wcount := int(data[pos+2])
		rcount := int(data[pos+3])

		// Trailing zero padding is not a record.
		if r.Flags == 0 && r.Select == 0 && wcount == 0 && rcount == 0 {
			break
		}
		pos += HeaderSize(stride)

		need := 0
		if wcount > 0 {
			need += stride * (1 + wcount)
		}
		if rcount > 0 {
			need += stride * (1 + rcount)
		}
		if pos+need > len(data) {
			return nil, ErrShortPacket
		}

		if wcount > 0 {
			r.WriteBase = getWord(data[pos:], stride)
			pos += stride
			r.Writes = make([]uint64, wcount)
			for i := range r.Writes {
				r.Writes[i] = getWord(data[pos:], stride)
				pos += stride
			}
		}
		if rcount > 0 {
			r.ReadBase = getWord(data[pos:], stride)
			pos += stride
			r.Reads = make([]uint64, rcount)
			for i := range r.Reads {
				r.Reads[i] = getWord(data[pos:], stride)
				pos += stride
			}
		}
		p.Records = append(p.Records, r)
	}
	return p, nil
}

// NewProbe builds a probe packet advertising the given width masks.
func NewProbe(widths uint8) *Packet {
	return &Packet{Flags: FlagProbe, Widths: widths}
}

func putWord(b []byte, stride int, v uint64) {
	switch stride {
	case 1:
		b[0] = uint8(v)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(b, uint32(v))
	default:
		binary.BigEndian.PutUint64(b, v)
	}
}

func getWord(b []byte, stride int) uint64 {
	switch stride {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	default:
		return binary.BigEndian.Uint64(b)
	}
}
