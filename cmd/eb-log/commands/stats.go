package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/wishbone-tools/etherbone-go/pkg/log"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// CollectStats reads every event in path into a log.Stats.
func CollectStats(path string) (*log.Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := log.NewStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.Add(event)
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, s *log.Stats) {
	fmt.Fprintf(w, "Events:  %d\n", s.Events)
	if s.Events == 0 {
		return
	}
	fmt.Fprintf(w, "Range:   %s .. %s (%s)\n",
		s.First.UTC().Format("2006-01-02T15:04:05.000Z"),
		s.Last.UTC().Format("2006-01-02T15:04:05.000Z"),
		formatDuration(s.Span()))
	fmt.Fprintf(w, "Sockets: %d\n", len(s.Sockets))
	fmt.Fprintf(w, "Traffic: %d bytes out, %d bytes in\n", s.BytesOut, s.BytesIn)

	fmt.Fprintln(w, "\nBy layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerBus} {
		if n := s.ByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", l.String(), n)
		}
	}

	fmt.Fprintln(w, "\nBy category:")
	for c := log.CategoryPacket; c <= log.CategoryCycle; c++ {
		if n := s.ByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", c.String(), n)
		}
	}

	if s.Cycles > 0 {
		fmt.Fprintf(w, "\nCycles: %d (%d failed), mean %s, max %s\n",
			s.Cycles, s.FailedCycles, formatDuration(s.MeanCycle()), formatDuration(s.MaxCycle))
		statuses := make([]wire.Status, 0, len(s.Statuses))
		for st := range s.Statuses {
			statuses = append(statuses, st)
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i] > statuses[j] })
		for _, st := range statuses {
			fmt.Fprintf(w, "  %-16s %d\n", st.String(), s.Statuses[st])
		}
	}

	if len(s.Devices) > 0 {
		fmt.Fprintln(w, "\nDevices:")
		for _, d := range s.DeviceNames() {
			fmt.Fprintf(w, "  %-30s %d events\n", d, s.Devices[d])
		}
	}

	if s.Errors > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", s.Errors)
	}
}
