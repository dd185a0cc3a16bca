package sdb

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

type decodeFunc func(b []byte, order binary.ByteOrder) (Record, error)

// slotDecoders holds the records allowed in a table slot.
// Interconnects only appear as table headers.
var slotDecoders = map[RecordType]decodeFunc{
	TypeDevice:      decodeDevice,
	TypeBridge:      decodeBridge,
	TypeIntegration: decodeIntegration,
	TypeRepoURL:     decodeRepoURL,
	TypeSynthesis:   decodeSynthesis,
	TypeEmpty:       decodeEmpty,
}

func decodeProduct(b []byte, order binary.ByteOrder) Product {
	return Product{
		VendorID: order.Uint64(b[0:8]),
		DeviceID: order.Uint32(b[8:12]),
		Version:  order.Uint32(b[12:16]),
		Date:     order.Uint32(b[16:20]),
		Name:     text(b[20:39]),
	}
}

func decodeComponent(b []byte, order binary.ByteOrder) (Component, error) {
	c := Component{
		AddrFirst: order.Uint64(b[0:8]),
		AddrEnd:   order.Uint64(b[8:16]),
		Product:   decodeProduct(b[16:56], order),
	}
	if c.AddrFirst > c.AddrEnd {
		return c, fmt.Errorf("%w: %s [0x%x, 0x%x]", ErrInvalidRange, c.Name, c.AddrFirst, c.AddrEnd)
	}
	return c, nil
}

func decodeInterconnect(b []byte, order binary.ByteOrder) (*Interconnect, error) {
	c, err := decodeComponent(b[8:64], order)
	if err != nil {
		return nil, err
	}
	return &Interconnect{
		Records:   order.Uint16(b[4:6]),
		Version:   b[6],
		BusType:   b[7],
		Component: c,
	}, nil
}

func decodeDevice(b []byte, order binary.ByteOrder) (Record, error) {
	c, err := decodeComponent(b[8:64], order)
	if err != nil {
		return nil, err
	}
	return &Device{
		ABIClass:    order.Uint16(b[0:2]),
		ABIVerMajor: b[2],
		ABIVerMinor: b[3],
		BusSpecific: order.Uint32(b[4:8]),
		Component:   c,
	}, nil
}

func decodeBridge(b []byte, order binary.ByteOrder) (Record, error) {
	c, err := decodeComponent(b[8:64], order)
	if err != nil {
		return nil, err
	}
	return &Bridge{Child: order.Uint64(b[0:8]), Component: c}, nil
}

func decodeIntegration(b []byte, order binary.ByteOrder) (Record, error) {
	return &Integration{Product: decodeProduct(b[24:64], order)}, nil
}

func decodeRepoURL(b []byte, _ binary.ByteOrder) (Record, error) {
	return &RepoURL{URL: text(b[0:63])}, nil
}

func decodeSynthesis(b []byte, order binary.ByteOrder) (Record, error) {
	return &Synthesis{
		Name:        text(b[0:16]),
		CommitID:    hex.EncodeToString(b[16:32]),
		Tool:        text(b[32:40]),
		ToolVersion: order.Uint32(b[40:44]),
		Date:        order.Uint32(b[44:48]),
		User:        text(b[48:63]),
	}, nil
}

func decodeEmpty([]byte, binary.ByteOrder) (Record, error) {
	return &Empty{}, nil
}
