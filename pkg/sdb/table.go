package sdb

import "errors"

// Table is one parsed SDB table.
type Table struct {
	// Address is the absolute address of the table header.
	Address uint64

	// Base is the absolute address component ranges are relative to.
	Base uint64

	// Depth is 0 for the root table.
	Depth int

	Header *Interconnect

	// Records holds slots 1 .. Header.Records-1 in slot order.
	Records []Record
}

// Components returns the devices and bridges in slot order.
func (t *Table) Components() []Record {
	var out []Record
	for _, r := range t.Records {
		switch r.(type) {
		case *Device, *Bridge:
			out = append(out, r)
		}
	}
	return out
}

// Metadata returns the integration, repo-url and synthesis records.
func (t *Table) Metadata() []Record {
	var out []Record
	for _, r := range t.Records {
		switch r.(type) {
		case *Integration, *RepoURL, *Synthesis:
			out = append(out, r)
		}
	}
	return out
}

// Devices returns the device records of this table only.
func (t *Table) Devices() []*Device {
	var out []*Device
	for _, r := range t.Records {
		if d, ok := r.(*Device); ok {
			out = append(out, d)
		}
	}
	return out
}

// SkipBridge may be returned by a WalkFunc visiting a bridge to skip
// its nested table.
var SkipBridge = errors.New("skip bridge")

// WalkFunc is called for every record. t is the table holding r.
type WalkFunc func(t *Table, r Record) error

// Walk visits the records depth-first in slot order, descending into
// each bridge's table right after the bridge itself. An error other
// than SkipBridge stops the walk and is returned.
func (t *Table) Walk(fn WalkFunc) error {
	for _, r := range t.Records {
		err := fn(t, r)
		if errors.Is(err, SkipBridge) {
			continue
		}
		if err != nil {
			return err
		}
		if br, ok := r.(*Bridge); ok && br.Table != nil {
			if err := br.Table.Walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Match is a device found by Find.
type Match struct {
	Device *Device
	Table  *Table

	// First and Last are the absolute device addresses.
	First uint64
	Last  uint64
}

// Find returns every device in the tree with the given vendor and
// device IDs.
func (t *Table) Find(vendor uint64, device uint32) []Match {
	var out []Match
	_ = t.Walk(func(tab *Table, r Record) error {
		d, ok := r.(*Device)
		if ok && d.VendorID == vendor && d.DeviceID == device {
			out = append(out, Match{
				Device: d,
				Table:  tab,
				First:  tab.Base + d.AddrFirst,
				Last:   tab.Base + d.AddrEnd,
			})
		}
		return nil
	})
	return out
}
