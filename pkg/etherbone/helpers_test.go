package etherbone

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/internal/simulator"
	"github.com/wishbone-tools/etherbone-go/pkg/log"
	"github.com/wishbone-tools/etherbone-go/pkg/retry"
)

var fastRetry = retry.Config{Initial: time.Millisecond, Max: 5 * time.Millisecond}

func testSocketConfig() SocketConfig {
	return SocketConfig{
		LocalAddr: "127.0.0.1:0",
		Retry:     fastRetry,
	}
}

func newTestSocket(t *testing.T, cfg SocketConfig) *Socket {
	t.Helper()
	s, err := OpenSocket(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSim(t *testing.T, cfg simulator.Config) *simulator.Simulator {
	t.Helper()
	sim, err := simulator.New(cfg)
	require.NoError(t, err)
	sim.Start()
	t.Cleanup(func() { sim.Close() })
	return sim
}

// openSim starts a simulator and opens a device on it.
func openSim(t *testing.T, simCfg simulator.Config, devCfg DeviceConfig) (*simulator.Simulator, *Device) {
	t.Helper()
	sim := newTestSim(t, simCfg)
	sock := newTestSocket(t, testSocketConfig())

	devCfg.Locator = sim.Locator()
	if devCfg.Endian == 0 {
		devCfg.Endian = simCfg.Endian
	}
	dev, err := sock.OpenDeviceWithConfig(context.Background(), devCfg)
	require.NoError(t, err)
	return sim, dev
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, locator string) (*net.UDPAddr, error) {
	args := m.Called(ctx, locator)
	addr, _ := args.Get(0).(*net.UDPAddr)
	return addr, args.Error(1)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) Events() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}
