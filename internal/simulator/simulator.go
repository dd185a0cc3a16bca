package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// Config configures a Simulator.
type Config struct {
	// Address to listen on (default "127.0.0.1:0").
	Address string

	// Widths is the width byte advertised in probe replies
	// (default Addr32|Data32).
	Widths uint8

	// Endian selects the byte lane mapping (default wire.EndianBig).
	Endian uint8

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Range is an inclusive address range.
type Range struct {
	First uint64
	Last  uint64
}

// Contains reports whether addr lies in the range.
func (r Range) Contains(addr uint64) bool {
	return addr >= r.First && addr <= r.Last
}

// Stats counts simulator traffic.
type Stats struct {
	Packets int
	Probes  int
	Replies int
	Dropped int
	Reads   int
	Writes  int
	Faults  int
}

// Simulator is a UDP Etherbone device.
type Simulator struct {
	config Config
	conn   net.PacketConn

	mu     sync.Mutex
	mem    map[uint64]byte
	faults []Range
	status uint64
	drop   int
	stats  Stats

	delayN int
	delay  time.Duration

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	closeMu sync.Mutex
	closed  bool
}

// New creates a simulator listening on config.Address.
// Call Start to begin serving.
func New(config Config) (*Simulator, error) {
	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}
	if config.Widths == 0 {
		config.Widths = wire.Addr32 | wire.Data32
	}
	if config.Endian&wire.EndianMask == 0 {
		config.Endian = wire.EndianBig
	}
	conn, err := net.ListenPacket("udp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("simulator listen: %w", err)
	}
	return &Simulator{
		config: config,
		conn:   conn,
		mem:    make(map[uint64]byte),
	}, nil
}

// Start serves requests in a background goroutine until Close.
func (s *Simulator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.closeMu.Lock()
	s.cancel = cancel
	s.closeMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Serve(ctx); err != nil {
			s.debugLog("serve stopped", "error", err)
		}
	}()
}

// Serve handles packets until the context is cancelled or the simulator
// is closed.
func (s *Simulator) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	buf := make([]byte, 65536)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		reply := s.handle(buf[:n])
		if reply == nil {
			continue
		}
		if d := s.takeDelay(); d > 0 {
			time.AfterFunc(d, func() { s.reply(reply, from) })
			continue
		}
		s.reply(reply, from)
	}
}

func (s *Simulator) reply(b []byte, to net.Addr) {
	if _, err := s.conn.WriteTo(b, to); err != nil {
		s.debugLog("reply failed", "to", to.String(), "error", err)
	}
}

func (s *Simulator) takeDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delayN == 0 {
		return 0
	}
	s.delayN--
	return s.delay
}

// Close stops the simulator.
func (s *Simulator) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.closeMu.Unlock()

	if cancel != nil {
		cancel()
	}

	err := s.conn.Close()
	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the UDP address the simulator listens on.
func (s *Simulator) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Locator returns a locator that resolves to the simulator.
func (s *Simulator) Locator() string {
	a := s.Addr()
	return fmt.Sprintf("udp/%s/%d", a.IP.String(), a.Port)
}

// Port returns the data port width in bytes.
func (s *Simulator) Port() int {
	return wire.WidthBytes(s.config.Widths & wire.DataMask)
}

// Load copies data into memory at addr.
func (s *Simulator) Load(addr uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range data {
		s.mem[addr+uint64(i)] = b
	}
}

// Bytes returns n bytes of memory at addr. Unwritten bytes read as zero.
func (s *Simulator) Bytes(addr uint64, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = s.mem[addr+uint64(i)]
	}
	return out
}

// Poke stores a 32-bit word at addr in the simulator's byte order.
func (s *Simulator) Poke(addr uint64, v uint32) {
	b := make([]byte, 4)
	s.order().ByteOrder().PutUint32(b, v)
	s.Load(addr, b)
}

// Peek reads a 32-bit word at addr in the simulator's byte order.
func (s *Simulator) Peek(addr uint64) uint32 {
	return s.order().ByteOrder().Uint32(s.Bytes(addr, 4))
}

// AddFault makes every access to [first, last] fail.
func (s *Simulator) AddFault(first, last uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, Range{First: first, Last: last})
}

// ClearFaults removes all fault ranges.
func (s *Simulator) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// DropNext discards the next n incoming packets without replying.
func (s *Simulator) DropNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop = n
}

// DelayNext holds back the next n replies by d while later packets are
// served normally.
func (s *Simulator) DelayNext(n int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayN, s.delay = n, d
}

// Stats returns a snapshot of the traffic counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Simulator) order() wire.Format {
	return wire.NewFormat(s.config.Endian, s.config.Widths)
}

func (s *Simulator) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
