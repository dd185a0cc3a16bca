package log

import (
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// FileExt is the conventional extension of protocol capture files.
const FileExt = ".eblog"

// MaxFrameData is the number of payload bytes kept in a FrameEvent.
const MaxFrameData = 256

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SocketID identifies the socket that produced the event (UUID).
	SocketID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// RemoteAddr is the device's UDP address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Device is the locator the device was opened with.
	Device string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Cycle       *CycleEvent       `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of traffic.
type Direction uint8

const (
	// DirectionIn indicates traffic from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates traffic to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection parses a direction name as printed by String.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "IN", "in":
		return DirectionIn, true
	case "OUT", "out":
		return DirectionOut, true
	}
	return 0, false
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the UDP layer (raw packets).
	LayerTransport Layer = 0
	// LayerWire is the record layer (cycles).
	LayerWire Layer = 1
	// LayerBus is the socket/device layer.
	LayerBus Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerBus:
		return "BUS"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name as printed by String.
func ParseLayer(s string) (Layer, bool) {
	switch s {
	case "TRANSPORT", "transport":
		return LayerTransport, true
	case "WIRE", "wire":
		return LayerWire, true
	case "BUS", "bus":
		return LayerBus, true
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPacket indicates an Etherbone data packet.
	CategoryPacket Category = 0
	// CategoryProbe indicates a probe or probe response.
	CategoryProbe Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryCycle indicates a completed cycle.
	CategoryCycle Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPacket:
		return "PACKET"
	case CategoryProbe:
		return "PROBE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryCycle:
		return "CYCLE"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryPacket; c <= CategoryCycle; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// FrameEvent captures one UDP payload.
type FrameEvent struct {
	// Size is the payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw payload (truncated to MaxFrameData).
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Records is the number of records in the packet.
	Records int `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent builds a FrameEvent from a payload, truncating the copy.
func NewFrameEvent(payload []byte, records int) *FrameEvent {
	n := len(payload)
	truncated := false
	if n > MaxFrameData {
		n = MaxFrameData
		truncated = true
	}
	data := make([]byte, n)
	copy(data, payload)
	return &FrameEvent{
		Size:      len(payload),
		Data:      data,
		Truncated: truncated,
		Records:   records,
	}
}

// CycleEvent summarizes a closed cycle.
type CycleEvent struct {
	Reads  int `cbor:"1,keyasint"`
	Writes int `cbor:"2,keyasint"`

	// Packets is the number of packets the cycle was split into.
	Packets int `cbor:"3,keyasint"`

	// Silent is set for cycles closed without status reads.
	Silent bool `cbor:"4,keyasint,omitempty"`

	Status wire.Status `cbor:"5,keyasint"`

	// FailedOffset is the address of the first failing operation.
	FailedOffset *uint64 `cbor:"6,keyasint,omitempty"`

	// Duration is the time from the first packet to the last reply.
	Duration time.Duration `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures socket and device lifecycle events.
type StateChangeEvent struct {
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	NewState string `cbor:"3,keyasint"`

	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySocket indicates a socket state change.
	StateEntitySocket StateEntity = 0
	// StateEntityDevice indicates a device state change.
	StateEntityDevice StateEntity = 1
	// StateEntityCycle indicates a cycle was opened, aborted or reset.
	StateEntityCycle StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySocket:
		return "SOCKET"
	case StateEntityDevice:
		return "DEVICE"
	case StateEntityCycle:
		return "CYCLE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Code is the Etherbone status code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
