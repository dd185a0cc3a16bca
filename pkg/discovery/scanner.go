package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/etherbone"
)

// wants reports whether a scan for kind covers mine.
func wants(kind, mine string) bool {
	return kind == "" || kind == bus.KindAll || kind == mine
}

// StaticScanner returns a fixed set of locators.
type StaticScanner struct {
	Groups bus.Groups
}

// Scan implements bus.Scanner.
func (s *StaticScanner) Scan(_ context.Context, kind string) (bus.Groups, error) {
	out := bus.NewGroups()
	for k, locs := range s.Groups {
		if wants(kind, k) {
			out.Add(k, locs...)
		}
	}
	return out, nil
}

// MDNSScanner reports devices advertised over mDNS as eth locators.
type MDNSScanner struct {
	Browser Browser

	// Timeout bounds the browse (default BrowseTimeout).
	Timeout time.Duration
}

// Scan implements bus.Scanner.
func (s *MDNSScanner) Scan(ctx context.Context, kind string) (bus.Groups, error) {
	out := bus.NewGroups()
	if !wants(kind, bus.KindEth) {
		return out, nil
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	services, err := Collect(ctx, s.Browser)
	if err != nil {
		return nil, fmt.Errorf("mdns scan: %w", err)
	}
	for _, svc := range services {
		out.Add(bus.KindEth, svc.Locator())
	}
	return out, nil
}

// ProbeFunc checks whether an Etherbone device answers at locator.
type ProbeFunc func(ctx context.Context, locator string) error

// ProbeScanner sends an Etherbone probe to every host of a subnet.
type ProbeScanner struct {
	Prefix netip.Prefix

	// Port is the UDP port to probe (default wire.DefaultPort).
	Port int

	// Timeout is the per-host reply timeout (default ProbeTimeout).
	Timeout time.Duration

	// Concurrency bounds the probes in flight (default 32).
	Concurrency int

	// Probe replaces the Etherbone probe, mainly for tests.
	Probe ProbeFunc
}

// maxProbeHosts bounds a subnet scan to a /16.
const maxProbeHosts = 1 << 16

// Scan implements bus.Scanner.
func (s *ProbeScanner) Scan(ctx context.Context, kind string) (bus.Groups, error) {
	out := bus.NewGroups()
	if !wants(kind, bus.KindEth) {
		return out, nil
	}
	hosts, err := Hosts(s.Prefix)
	if err != nil {
		return nil, err
	}
	probe := s.Probe
	if probe == nil {
		probe = s.etherboneProbe
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = 32
	}

	var (
		mu    sync.Mutex
		found []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, h := range hosts {
		locator := etherbone.FormatLocator(h.String(), s.Port)
		g.Go(func() error {
			if err := probe(gctx, locator); err != nil {
				if etherbone.IsFault(err) {
					return err
				}
				return nil
			}
			mu.Lock()
			found = append(found, locator)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Strings(found)
	out.Add(bus.KindEth, found...)
	return out, nil
}

func (s *ProbeScanner) etherboneProbe(ctx context.Context, locator string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = ProbeTimeout
	}
	sock, err := etherbone.OpenSocket(etherbone.SocketConfig{})
	if err != nil {
		return err
	}
	defer sock.Close()

	dev, err := sock.OpenDeviceWithConfig(ctx, etherbone.DeviceConfig{
		Locator:  locator,
		Attempts: 1,
		Timeout:  timeout,
	})
	if err != nil {
		return err
	}
	return dev.Close()
}

// Hosts lists the host addresses of an IPv4 prefix, without the network
// and broadcast addresses for prefixes shorter than /31.
func Hosts(p netip.Prefix) ([]netip.Addr, error) {
	if !p.IsValid() || !p.Addr().Is4() {
		return nil, fmt.Errorf("invalid IPv4 prefix %q", p)
	}
	p = p.Masked()
	size := 1 << (32 - p.Bits())
	if size > maxProbeHosts {
		return nil, fmt.Errorf("%w: %s", ErrPrefixTooLarge, p)
	}

	hosts := make([]netip.Addr, 0, size)
	a := p.Addr()
	for i := 0; i < size; i++ {
		hosts = append(hosts, a)
		a = a.Next()
	}
	if size > 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

// DefaultSerialPatterns match USB serial adapters.
var DefaultSerialPatterns = []string{"/dev/ttyUSB*", "/dev/ttyACM*"}

// SerialScanner lists serial ports.
type SerialScanner struct {
	// Patterns are glob patterns (default DefaultSerialPatterns).
	Patterns []string
}

// Scan implements bus.Scanner.
func (s *SerialScanner) Scan(_ context.Context, kind string) (bus.Groups, error) {
	out := bus.NewGroups()
	if !wants(kind, bus.KindSerial) {
		return out, nil
	}
	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultSerialPatterns
	}
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("serial scan: %w", err)
		}
		sort.Strings(matches)
		out.Add(bus.KindSerial, matches...)
	}
	return out, nil
}

// PCI identifiers of the CERN SPEC carrier.
const (
	PCIVendorCERN  = 0x10DC
	PCIDeviceSPEC  = 0x018D
	DefaultPCIRoot = "/sys/bus/pci/devices"
)

// PCIScanner lists PCI functions with a matching vendor and device.
type PCIScanner struct {
	// Root is the sysfs device directory (default DefaultPCIRoot).
	Root string

	// Vendor and Device select boards (default CERN SPEC).
	// Device 0 matches every device of the vendor.
	Vendor uint16
	Device uint16
}

// Scan implements bus.Scanner. A missing root yields no devices.
func (s *PCIScanner) Scan(_ context.Context, kind string) (bus.Groups, error) {
	out := bus.NewGroups()
	if !wants(kind, bus.KindPCI) {
		return out, nil
	}
	root := s.Root
	if root == "" {
		root = DefaultPCIRoot
	}
	vendor, device := s.Vendor, s.Device
	if vendor == 0 {
		vendor, device = PCIVendorCERN, PCIDeviceSPEC
	}

	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pci scan: %w", err)
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		v, err := readHexID(filepath.Join(dir, "vendor"))
		if err != nil || v != vendor {
			continue
		}
		if device != 0 {
			d, err := readHexID(filepath.Join(dir, "device"))
			if err != nil || d != device {
				continue
			}
		}
		out.Add(bus.KindPCI, e.Name())
	}
	return out, nil
}

func readHexID(path string) (uint16, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(b)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err
}

// MultiScanner runs several scanners and merges their groups.
type MultiScanner []bus.Scanner

// Scan implements bus.Scanner. The first failing scanner aborts the scan.
func (m MultiScanner) Scan(ctx context.Context, kind string) (bus.Groups, error) {
	out := bus.NewGroups()
	for _, s := range m {
		g, err := s.Scan(ctx, kind)
		if err != nil {
			return nil, err
		}
		out.Merge(g)
	}
	return out, nil
}

var (
	_ bus.Scanner = (*StaticScanner)(nil)
	_ bus.Scanner = (*MDNSScanner)(nil)
	_ bus.Scanner = (*ProbeScanner)(nil)
	_ bus.Scanner = (*SerialScanner)(nil)
	_ bus.Scanner = (*PCIScanner)(nil)
	_ bus.Scanner = MultiScanner(nil)
)
