package main

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/internal/simulator"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

func TestParseWidths(t *testing.T) {
	tests := []struct {
		in   string
		want uint8
		ok   bool
	}{
		{"32/32", wire.Addr32 | wire.Data32, true},
		{"32,64/8,32", 0xC5, true},
		{"16/16", 0x22, true},
		{"32", 0, false},
		{"24/32", 0, false},
		{"32/", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWidths(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndian(t *testing.T) {
	e, order, err := parseEndian("Little")
	require.NoError(t, err)
	assert.Equal(t, wire.EndianLittle, e)
	assert.Equal(t, binary.LittleEndian, order)

	e, order, err = parseEndian("")
	require.NoError(t, err)
	assert.Equal(t, wire.EndianBig, e)
	assert.Equal(t, binary.BigEndian, order)

	_, _, err = parseEndian("middle")
	assert.Error(t, err)
}

func TestParseFaults(t *testing.T) {
	got, err := parseFaults("0x1000-0x1fff, 0x8000")
	require.NoError(t, err)
	assert.Equal(t, []simulator.Range{
		{First: 0x1000, Last: 0x1fff},
		{First: 0x8000, Last: 0x8000},
	}, got)

	got, err = parseFaults("")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"0x20-0x10", "zz", "0x10-zz"} {
		_, err := parseFaults(bad)
		assert.Error(t, err, bad)
	}
}
