package log

import (
	"sort"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// Stats summarizes a sequence of events.
type Stats struct {
	Events int

	First time.Time
	Last  time.Time

	Sockets map[string]int
	Devices map[string]int

	ByLayer    map[Layer]int
	ByCategory map[Category]int

	BytesIn  int
	BytesOut int

	Cycles       int
	FailedCycles int
	Statuses     map[wire.Status]int

	// MaxCycle is the longest cycle duration seen.
	MaxCycle time.Duration
	// TotalCycle is the sum of cycle durations.
	TotalCycle time.Duration

	Errors int
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{
		Sockets:    make(map[string]int),
		Devices:    make(map[string]int),
		ByLayer:    make(map[Layer]int),
		ByCategory: make(map[Category]int),
		Statuses:   make(map[wire.Status]int),
	}
}

// Add accumulates one event.
func (s *Stats) Add(e Event) {
	s.Events++
	if s.First.IsZero() || e.Timestamp.Before(s.First) {
		s.First = e.Timestamp
	}
	if e.Timestamp.After(s.Last) {
		s.Last = e.Timestamp
	}
	if e.SocketID != "" {
		s.Sockets[e.SocketID]++
	}
	if e.Device != "" {
		s.Devices[e.Device]++
	}
	s.ByLayer[e.Layer]++
	s.ByCategory[e.Category]++

	if e.Frame != nil {
		if e.Direction == DirectionIn {
			s.BytesIn += e.Frame.Size
		} else {
			s.BytesOut += e.Frame.Size
		}
	}
	if c := e.Cycle; c != nil {
		s.Cycles++
		s.Statuses[c.Status]++
		if c.Status.IsError() {
			s.FailedCycles++
		}
		s.TotalCycle += c.Duration
		if c.Duration > s.MaxCycle {
			s.MaxCycle = c.Duration
		}
	}
	if e.Error != nil {
		s.Errors++
	}
}

// Span returns the time between the first and last event.
func (s *Stats) Span() time.Duration {
	if s.Events == 0 {
		return 0
	}
	return s.Last.Sub(s.First)
}

// MeanCycle returns the average cycle duration.
func (s *Stats) MeanCycle() time.Duration {
	if s.Cycles == 0 {
		return 0
	}
	return s.TotalCycle / time.Duration(s.Cycles)
}

// DeviceNames returns the device locators in sorted order.
func (s *Stats) DeviceNames() []string {
	names := make([]string, 0, len(s.Devices))
	for d := range s.Devices {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}
