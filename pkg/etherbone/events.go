package etherbone

import (
	"errors"
	"net"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/log"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

func (s *Socket) emit(e log.Event) {
	if s.config.ProtocolLogger == nil {
		return
	}
	e.Timestamp = time.Now()
	e.SocketID = s.id
	s.config.ProtocolLogger.Log(e)
}

func (s *Socket) emitState(entity log.StateEntity, oldState, newState, reason string) {
	s.emit(log.Event{
		Layer:    log.LayerBus,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Socket) emitDeviceState(device, remote, oldState, newState, reason string) {
	s.emit(log.Event{
		Layer:      log.LayerBus,
		Category:   log.CategoryState,
		Device:     device,
		RemoteAddr: remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Socket) emitFrame(device string, addr net.Addr, dir log.Direction, category log.Category, payload []byte) {
	if s.config.ProtocolLogger == nil {
		return
	}
	records := 0
	if p, err := wire.Decode(payload); err == nil {
		records = len(p.Records)
	}
	s.emit(log.Event{
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   category,
		Device:     device,
		RemoteAddr: addr.String(),
		Frame:      log.NewFrameEvent(payload, records),
	})
}

func (s *Socket) emitError(device string, layer log.Layer, err error, context string) {
	if s.config.ProtocolLogger == nil {
		return
	}
	data := &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	var st wire.Status
	if errors.As(err, &st) {
		code := st.Code()
		data.Code = &code
	}
	s.emit(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		Device:   device,
		Error:    data,
	})
}
