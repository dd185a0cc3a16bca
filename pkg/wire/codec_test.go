package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestPacketEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		size   int
	}{
		{
			name:   "probe",
			packet: Packet{Flags: FlagProbe, Widths: AddrMask | DataMask},
			size:   8,
		},
		{
			name: "single write 32-bit",
			packet: Packet{
				Flags:  FlagNoReads,
				Widths: Addr32 | Data32,
				Records: []Record{{
					Flags:     RecordCYC,
					Select:    0x0F,
					WriteBase: 0x1000,
					Writes:    []uint64{0xDEADBEEF},
				}},
			},
			size: 4 + 4 + 8,
		},
		{
			name: "mixed records 32-bit",
			packet: Packet{
				Widths: Addr32 | Data32,
				Records: []Record{
					{
						Select:    0x0F,
						WriteBase: 0x2000,
						Writes:    []uint64{1, 2, 3},
					},
					{
						Flags:    RecordCYC,
						Select:   0x0F,
						ReadBase: 0,
						Reads:    []uint64{0x2000, 0x2004},
					},
				},
			},
			size: 4 + (4 + 16) + (4 + 12),
		},
		{
			name: "64-bit stride",
			packet: Packet{
				Widths: Addr64 | Data32,
				Records: []Record{{
					Flags:    RecordCYC,
					Select:   0x0F,
					ReadBase: 0x8,
					Reads:    []uint64{0x1_0000_0000},
				}},
			},
			size: 8 + 8 + 16,
		},
		{
			name: "16-bit stride",
			packet: Packet{
				Widths: Addr16 | Data16,
				Records: []Record{
					{
						Select:    0x03,
						WriteBase: 0x4,
						Writes:    []uint64{1, 0xBEEF},
					},
					{
						Flags:    RecordCYC,
						Select:   0x03,
						ReadBase: 0x10,
						Reads:    []uint64{0x20},
					},
				},
			},
			size: 4 + (4 + 6) + (4 + 4),
		},
		{
			name: "8-bit stride",
			packet: Packet{
				Flags:  FlagNoReads,
				Widths: Addr8 | Data8,
				Records: []Record{{
					Flags:     RecordCYC,
					Select:    0x01,
					WriteBase: 0x4,
					Writes:    []uint64{0xAB},
				}},
			},
			size: 4 + (4 + 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.packet.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(data) != tt.size {
				t.Errorf("encoded size = %d, want %d", len(data), tt.size)
			}
			if !bytes.Equal(data[:2], []byte{0x4E, 0x6F}) {
				t.Errorf("magic = %x", data[:2])
			}

			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Flags != tt.packet.Flags || got.Widths != tt.packet.Widths {
				t.Errorf("header = (%x, %x), want (%x, %x)", got.Flags, got.Widths, tt.packet.Flags, tt.packet.Widths)
			}
			if !reflect.DeepEqual(got.Records, tt.packet.Records) {
				t.Errorf("records = %+v, want %+v", got.Records, tt.packet.Records)
			}
		})
	}
}

func TestRecordSize(t *testing.T) {
	r := Record{WriteBase: 4, Writes: []uint64{1}, ReadBase: 8, Reads: []uint64{2, 3}}
	for stride, want := range map[int]int{1: 4 + 2 + 3, 2: 4 + 4 + 6, 4: 4 + 8 + 12, 8: 8 + 16 + 24} {
		if got := r.Size(stride); got != want {
			t.Errorf("Size(%d) = %d, want %d", stride, got, want)
		}
	}
}

func TestPacketWireLayout(t *testing.T) {
	p := Packet{
		Widths: Addr32 | Data32,
		Records: []Record{{
			Flags:     RecordCYC,
			Select:    0x0F,
			WriteBase: 0x00001000,
			Writes:    []uint64{0xCAFEBABE},
		}},
	}
	data, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []byte{
		0x4E, 0x6F, 0x10, 0x44,
		0x08, 0x0F, 0x01, 0x00,
		0x00, 0x00, 0x10, 0x00,
		0xCA, 0xFE, 0xBA, 0xBE,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("encoded = % x\nwant      % x", data, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"bad magic", []byte{0x12, 0x34, 0x10, 0x44}, ErrBadMagic},
		{"bad version", []byte{0x4E, 0x6F, 0x20, 0x44}, ErrBadVersion},
		{"no widths", []byte{0x4E, 0x6F, 0x10, 0x00}, ErrBadWidths},
		{"truncated record", []byte{0x4E, 0x6F, 0x10, 0x44, 0x00, 0x0F, 0x02, 0x00, 0x00, 0x00}, ErrShortPacket},
		{"truncated values", []byte{
			0x4E, 0x6F, 0x10, 0x44,
			0x00, 0x0F, 0x02, 0x00,
			0x00, 0x00, 0x10, 0x00,
			0x00, 0x00, 0x00, 0x01,
		}, ErrShortPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeIgnoresPadding(t *testing.T) {
	data := []byte{
		0x4E, 0x6F, 0x10, 0x44,
		0x08, 0x0F, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x10, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(p.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(p.Records))
	}
	if p.Records[0].Reads[0] != 0x1000 {
		t.Errorf("read address = 0x%x, want 0x1000", p.Records[0].Reads[0])
	}
}

func TestEncodeOverflow(t *testing.T) {
	p := Packet{
		Widths:  Addr32 | Data32,
		Records: []Record{{Select: 0x0F, Writes: make([]uint64, MaxRecordOps+1)}},
	}
	if _, err := p.Encode(); !errors.Is(err, StatusOverflow) {
		t.Errorf("Encode error = %v, want StatusOverflow", err)
	}
}
