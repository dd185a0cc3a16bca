package wire

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestABICode(t *testing.T) {
	if busModel(32) != 0x44 {
		t.Errorf("busModel(32) = 0x%x, want 0x44", busModel(32))
	}
	if busModel(64) != 0x88 {
		t.Errorf("busModel(64) = 0x%x, want 0x88", busModel(64))
	}
	if ABICode>>8 != ABIVersion {
		t.Errorf("ABICode version = 0x%x, want 0x%x", ABICode>>8, ABIVersion)
	}
	if ABICode&0xFF != BusModel {
		t.Errorf("ABICode bus model = 0x%x, want 0x%x", ABICode&0xFF, BusModel)
	}
}

func TestFormat(t *testing.T) {
	f := NewFormat(EndianBig, DataMask)
	if uint8(f) != 0x1F {
		t.Errorf("format = 0x%02x, want 0x1f", uint8(f))
	}
	if !f.BigEndian() || f.ByteOrder() != binary.BigEndian {
		t.Error("expected big-endian format")
	}
	if f.DataWidths() != DataMask {
		t.Errorf("DataWidths() = 0x%x", f.DataWidths())
	}

	l := NewFormat(EndianLittle, Data32)
	if l.BigEndian() || l.ByteOrder() != binary.LittleEndian {
		t.Error("expected little-endian format")
	}
	if l.String() != "little/0x04" {
		t.Errorf("String() = %q", l.String())
	}
}

func TestWidthBytes(t *testing.T) {
	tests := []struct {
		mask uint8
		want int
	}{
		{0x00, 0},
		{Data8, 1},
		{Data16 | Data8, 2},
		{Data32, 4},
		{DataMask, 8},
		{Addr32, 4},
		{AddrMask, 8},
	}
	for _, tt := range tests {
		if got := WidthBytes(tt.mask); got != tt.want {
			t.Errorf("WidthBytes(0x%02x) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}

func TestLane(t *testing.T) {
	big := NewFormat(EndianBig, DataMask)
	little := NewFormat(EndianLittle, DataMask)

	tests := []struct {
		name    string
		addr    uint64
		width   int
		port    int
		format  Format
		aligned uint64
		sel     uint8
		shift   uint
	}{
		{"word big", 0x1000, 4, 4, big, 0x1000, 0x0F, 0},
		{"byte 0 big", 0x1000, 1, 4, big, 0x1000, 0x08, 24},
		{"byte 3 big", 0x1003, 1, 4, big, 0x1000, 0x01, 0},
		{"half 2 big", 0x1002, 2, 4, big, 0x1000, 0x03, 0},
		{"byte 0 little", 0x1000, 1, 4, little, 0x1000, 0x01, 0},
		{"byte 3 little", 0x1003, 1, 4, little, 0x1000, 0x08, 24},
		{"half 2 little", 0x1002, 2, 4, little, 0x1000, 0x0C, 16},
		{"word on 64-bit port big", 0x1004, 4, 8, big, 0x1000, 0x0F, 0},
		{"word on 64-bit port little", 0x1004, 4, 8, little, 0x1000, 0xF0, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aligned, sel, shift, err := Lane(tt.addr, tt.width, tt.port, tt.format)
			if err != nil {
				t.Fatalf("Lane failed: %v", err)
			}
			if aligned != tt.aligned || sel != tt.sel || shift != tt.shift {
				t.Errorf("Lane = (0x%x, 0x%02x, %d), want (0x%x, 0x%02x, %d)",
					aligned, sel, shift, tt.aligned, tt.sel, tt.shift)
			}
		})
	}
}

func TestLaneErrors(t *testing.T) {
	f := NewFormat(EndianBig, DataMask)
	if _, _, _, err := Lane(0x1001, 4, 4, f); !errors.Is(err, StatusAddress) {
		t.Errorf("misaligned: got %v, want StatusAddress", err)
	}
	if _, _, _, err := Lane(0x1000, 3, 4, f); !errors.Is(err, StatusWidth) {
		t.Errorf("width 3: got %v, want StatusWidth", err)
	}
	if _, _, _, err := Lane(0x1000, 8, 4, f); !errors.Is(err, StatusWidth) {
		t.Errorf("wider than port: got %v, want StatusWidth", err)
	}
}
