package etherbone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wishbone-tools/etherbone-go/pkg/log"
	"github.com/wishbone-tools/etherbone-go/pkg/retry"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// Defaults.
const (
	// DefaultAttempts is the number of resolution attempts when opening a device.
	DefaultAttempts = 3

	// DefaultTimeout is the reply timeout for one packet exchange.
	DefaultTimeout = time.Second

	// DefaultMaxCycleOps bounds the number of operations in one cycle.
	DefaultMaxCycleOps = 65536
)

// maxDatagram is large enough for any UDP payload.
const maxDatagram = 65536

// SocketConfig configures a Socket.
type SocketConfig struct {
	// ABI is the ABI code the application was built against.
	// Zero means wire.ABICode.
	ABI uint16

	// LocalAddr is the local UDP address to bind (default ":0").
	LocalAddr string

	// AddrWidths and DataWidths are the widths this host supports.
	// Zero means all widths.
	AddrWidths uint8
	DataWidths uint8

	// Resolver maps locators to UDP addresses (default UDPResolver).
	Resolver Resolver

	// Retry configures the backoff between failed open attempts.
	Retry retry.Config

	// Device holds defaults for devices opened with OpenDevice.
	Device DeviceConfig

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives packet and cycle events (optional).
	ProtocolLogger log.Logger
}

// Socket is a local Etherbone endpoint.
type Socket struct {
	id      string
	config  SocketConfig
	conn    net.PacketConn
	backoff *retry.Backoff

	// ioMu serializes packet exchanges and guards buf.
	ioMu sync.Mutex
	buf  []byte

	mu      sync.Mutex
	devices map[*Device]struct{}
	closed  bool
}

// OpenSocket binds a UDP endpoint.
func OpenSocket(config SocketConfig) (*Socket, error) {
	if config.ABI != 0 && config.ABI != wire.ABICode {
		return nil, &OpError{
			Op:     "open socket",
			Status: wire.StatusABIMismatch,
			Err:    fmt.Errorf("application ABI 0x%04x, library ABI 0x%04x", config.ABI, wire.ABICode),
		}
	}
	if config.LocalAddr == "" {
		config.LocalAddr = ":0"
	}
	if config.AddrWidths&wire.AddrMask == 0 {
		config.AddrWidths = wire.AddrMask
	}
	if config.DataWidths&wire.DataMask == 0 {
		config.DataWidths = wire.DataMask
	}
	if config.Resolver == nil {
		config.Resolver = &UDPResolver{}
	}

	conn, err := net.ListenPacket("udp", config.LocalAddr)
	if err != nil {
		return nil, &OpError{Op: "open socket", Status: wire.StatusBusy, Err: err}
	}

	s := &Socket{
		id:      uuid.New().String(),
		config:  config,
		conn:    conn,
		backoff: retry.NewBackoff(config.Retry),
		buf:     make([]byte, maxDatagram),
		devices: make(map[*Device]struct{}),
	}
	s.debugLog("socket open", "id", s.id, "local", conn.LocalAddr().String())
	s.emitState(log.StateEntitySocket, "", "OPEN", "")
	return s, nil
}

// ID returns the socket's unique identifier.
func (s *Socket) ID() string {
	return s.id
}

// LocalAddr returns the bound UDP address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Widths returns the width byte this socket advertises in probes.
func (s *Socket) Widths() uint8 {
	return s.config.AddrWidths&wire.AddrMask | s.config.DataWidths&wire.DataMask
}

// Devices returns the number of open devices.
func (s *Socket) Devices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// Close closes every device and releases the endpoint.
// Calling Close on a closed socket is a no-op.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	devices := make([]*Device, 0, len(s.devices))
	for d := range s.devices {
		devices = append(devices, d)
	}
	s.mu.Unlock()

	for _, d := range devices {
		_ = d.Close()
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	// Wait for an in-flight exchange before closing the conn.
	s.ioMu.Lock()
	err := s.conn.Close()
	s.ioMu.Unlock()

	s.debugLog("socket closed", "id", s.id)
	s.emitState(log.StateEntitySocket, "OPEN", "CLOSED", "")
	return err
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// OpenDevice opens the device at locator using the socket's device
// defaults. attempts <= 0 selects the configured or default attempt count.
func (s *Socket) OpenDevice(ctx context.Context, locator string, attempts int) (*Device, error) {
	cfg := s.config.Device
	cfg.Locator = locator
	if attempts > 0 {
		cfg.Attempts = attempts
	}
	return s.OpenDeviceWithConfig(ctx, cfg)
}

// OpenDeviceWithConfig opens a device.
//
// Each attempt resolves the locator and probes the remote for its widths.
// Failed attempts are separated by backoff delays. When every attempt
// fails the error wraps wire.StatusFail and the last cause.
func (s *Socket) OpenDeviceWithConfig(ctx context.Context, cfg DeviceConfig) (*Device, error) {
	if s.isClosed() {
		return nil, ErrSocketClosed
	}
	cfg = cfg.withDefaults()

	var (
		addr   *net.UDPAddr
		remote uint8
	)
	s.debugLog("opening device", "locator", cfg.Locator, "attempts", cfg.Attempts,
		"max_wait", s.backoff.Budget(cfg.Attempts)+time.Duration(cfg.Attempts)*cfg.Timeout)
	policy := retry.Policy{
		Attempts: cfg.Attempts,
		Backoff:  s.backoff,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			s.debugLog("device open attempt failed",
				"locator", cfg.Locator, "attempt", attempt, "retry_in", delay, "error", err)
		},
	}

	s.emitDeviceState(cfg.Locator, "", "CLOSED", "RESOLVING", "")
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if s.isClosed() {
			return retry.Stop(ErrSocketClosed)
		}
		a, err := s.config.Resolver.Resolve(ctx, cfg.Locator)
		if err != nil {
			if errors.Is(err, ErrBadLocator) {
				return retry.Stop(err)
			}
			return err
		}
		w, err := s.probe(ctx, a, cfg)
		if err != nil {
			return err
		}
		addr, remote = a, w
		return nil
	})
	if err != nil {
		s.emitDeviceState(cfg.Locator, "", "RESOLVING", "CLOSED", err.Error())
		if IsFault(err) {
			return nil, err
		}
		return nil, &OpError{Op: "open", Device: cfg.Locator, Status: wire.StatusFail, Err: err}
	}

	addrW := wire.WidthBytes(s.config.AddrWidths & remote & wire.AddrMask)
	dataW := wire.WidthBytes(s.config.DataWidths & remote & wire.DataMask)
	if addrW == 0 || dataW == 0 {
		s.emitDeviceState(cfg.Locator, addr.String(), "RESOLVING", "CLOSED", "no common width")
		return nil, &OpError{
			Op:     "open",
			Device: cfg.Locator,
			Status: wire.StatusWidth,
			Err:    fmt.Errorf("local widths 0x%02x, remote widths 0x%02x", s.Widths(), remote),
		}
	}
	dataMask, _ := wire.WidthMask(dataW)

	d := &Device{
		sock:      s,
		config:    cfg,
		addr:      addr,
		addrWidth: addrW,
		dataWidth: dataW,
		format:    wire.NewFormat(cfg.Endian, dataMask),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSocketClosed
	}
	s.devices[d] = struct{}{}
	s.mu.Unlock()

	s.debugLog("device open",
		"locator", cfg.Locator, "addr", addr.String(),
		"addr_width", addrW, "data_width", dataW, "format", d.format.String())
	s.emitDeviceState(cfg.Locator, addr.String(), "RESOLVING", "OPEN", "")
	return d, nil
}

func (s *Socket) release(d *Device) {
	s.mu.Lock()
	delete(s.devices, d)
	s.mu.Unlock()
}

// probe asks addr for its supported widths.
func (s *Socket) probe(ctx context.Context, addr *net.UDPAddr, cfg DeviceConfig) (uint8, error) {
	payload, err := wire.NewProbe(s.Widths()).Encode()
	if err != nil {
		return 0, err
	}
	reply, err := s.exchange(ctx, addr, cfg.Locator, payload, true, isProbeReply, cfg.Timeout)
	if err != nil {
		return 0, err
	}
	return reply.Widths, nil
}

// exchange sends payload to addr and, if match is set, waits for the
// first datagram from addr that decodes and satisfies match. Datagrams
// from other peers, malformed ones and stale replies are dropped.
func (s *Socket) exchange(ctx context.Context, addr *net.UDPAddr, device string, payload []byte, probe bool, match func(*wire.Packet) bool, timeout time.Duration) (*wire.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	if s.isClosed() {
		return nil, ErrSocketClosed
	}

	category := log.CategoryPacket
	if probe {
		category = log.CategoryProbe
	}

	if _, err := s.conn.WriteTo(payload, addr); err != nil {
		return nil, s.ioError(err)
	}
	s.emitFrame(device, addr, log.DirectionOut, category, payload)
	if match == nil {
		return nil, nil
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, s.ioError(err)
	}
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		n, from, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, wire.StatusTimeout
			}
			return nil, s.ioError(err)
		}
		if !sameAddr(from, addr) {
			continue
		}
		data := s.buf[:n]
		reply, err := wire.Decode(data)
		if err != nil {
			s.debugLog("dropping malformed reply", "from", from.String(), "error", err)
			s.emitError(device, log.LayerTransport, err, "decode reply")
			continue
		}
		if !match(reply) {
			s.debugLog("dropping stale reply", "from", from.String(), "records", len(reply.Records))
			continue
		}
		s.emitFrame(device, addr, log.DirectionIn, category, data)
		return reply, nil
	}
}

func isProbeReply(p *wire.Packet) bool {
	return p.Flags&wire.FlagProbeResponse != 0
}

func (s *Socket) ioError(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrSocketClosed
	}
	return err
}

func sameAddr(from net.Addr, want *net.UDPAddr) bool {
	u, ok := from.(*net.UDPAddr)
	if !ok {
		return from.String() == want.String()
	}
	return u.Port == want.Port && u.IP.Equal(want.IP)
}

func (s *Socket) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
