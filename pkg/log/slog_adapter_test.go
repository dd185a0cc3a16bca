package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

func logJSON(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := logJSON(t, Event{
		Timestamp: time.Now(),
		SocketID:  "sock-123",
		Direction: DirectionIn,
		Layer:     LayerTransport,
		Category:  CategoryPacket,
		Frame:     NewFrameEvent([]byte{0x4E, 0x6F}, 1),
	})

	if entry["msg"] != "protocol" {
		t.Errorf("msg: got %v", entry["msg"])
	}
	if entry["socket_id"] != "sock-123" {
		t.Errorf("socket_id: got %v", entry["socket_id"])
	}
	if entry["direction"] != "IN" || entry["layer"] != "TRANSPORT" {
		t.Errorf("direction/layer: got %v/%v", entry["direction"], entry["layer"])
	}
	if entry["frame_size"] != float64(2) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if entry["data"] != "4e6f" {
		t.Errorf("data: got %v", entry["data"])
	}
}

func TestSlogAdapterLogsCycleEvent(t *testing.T) {
	off := uint64(0x40)
	entry := logJSON(t, Event{
		Layer:    LayerWire,
		Category: CategoryCycle,
		Device:   "udp/10.0.0.9",
		Cycle: &CycleEvent{
			Reads:        1,
			Writes:       4,
			Packets:      2,
			Status:       wire.StatusPartialFailure,
			FailedOffset: &off,
		},
	})

	if entry["status"] != "EB_SEGFAULT" {
		t.Errorf("status: got %v", entry["status"])
	}
	if entry["failed_offset"] != float64(0x40) {
		t.Errorf("failed_offset: got %v", entry["failed_offset"])
	}
	if entry["device"] != "udp/10.0.0.9" {
		t.Errorf("device: got %v", entry["device"])
	}
}

func TestSlogAdapterLogsStateAndError(t *testing.T) {
	entry := logJSON(t, Event{
		Layer:    LayerBus,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityDevice,
			OldState: "RESOLVING",
			NewState: "OPEN",
		},
	})
	if entry["entity"] != "DEVICE" || entry["new_state"] != "OPEN" {
		t.Errorf("state entry: %v", entry)
	}

	code := -7
	entry = logJSON(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerTransport, Message: "no reply", Code: &code},
	})
	if entry["error_msg"] != "no reply" || entry["error_code"] != float64(-7) {
		t.Errorf("error entry: %v", entry)
	}
}
