// Package commands implements the eb-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer      *log.Layer
	Direction  *log.Direction
	Category   *log.Category
	Device     string
	ErrorsOnly bool
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:      f.Layer,
		Direction:  f.Direction,
		Category:   f.Category,
		Device:     f.Device,
		ErrorsOnly: f.ErrorsOnly,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [sock:id] DIRECTION LAYER Type device
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	sockID := shortenID(event.SocketID)
	dir := event.Direction.String()

	fmt.Fprintf(w, "%s [sock:%s] %-3s %s %s", ts, sockID, dir, event.Layer.String(), eventType(event))
	if event.Device != "" {
		fmt.Fprintf(w, " %s", event.Device)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, " (%s)", event.RemoteAddr)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Cycle != nil:
		formatCycleDetails(w, event.Cycle)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventType returns the label of the event payload.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil && event.Category == log.CategoryProbe:
		return "Probe"
	case event.Frame != nil:
		return "Frame"
	case event.Cycle != nil:
		return "Cycle"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a socket ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes", frame.Size)
	if frame.Records > 0 {
		fmt.Fprintf(w, ", %d records", frame.Records)
	}
	fmt.Fprintln(w)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatCycleDetails(w io.Writer, c *log.CycleEvent) {
	fmt.Fprintf(w, "  Ops: %d reads, %d writes in %d packets", c.Reads, c.Writes, c.Packets)
	if c.Silent {
		fmt.Fprint(w, " (silent)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Status: %s\n", c.Status.String())
	if c.FailedOffset != nil {
		fmt.Fprintf(w, "  Failed at: 0x%X\n", *c.FailedOffset)
	}
	if c.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(c.Duration))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	l, ok := log.ParseLayer(strings.ToLower(s))
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or bus)", s)
	}
	return l, nil
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	d, ok := log.ParseDirection(strings.ToLower(s))
	if !ok {
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
	return d, nil
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be packet, probe, state, error, or cycle)", s)
	}
	return c, nil
}

// RunView prints every matching event in path to output.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
