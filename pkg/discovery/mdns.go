package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser announces Etherbone devices.
type Advertiser interface {
	// Advertise starts advertising a device under instance.
	// An existing advertisement with the same instance is replaced.
	Advertise(ctx context.Context, instance string, port int, info *DeviceInfo) error

	// Stop stops advertising instance.
	Stop(instance string) error

	// StopAll stops all advertisements.
	StopAll()
}

// Browser finds advertised Etherbone devices.
type Browser interface {
	// Browse emits each device once. The channel is closed when ctx is done.
	Browse(ctx context.Context) (<-chan *Service, error)
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server // keyed by instance
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}
}

// Advertise implements Advertiser.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, instance string, port int, info *DeviceInfo) error {
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.servers[instance]; exists {
		server.Shutdown()
		delete(a.servers, instance)
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeDeviceTXT(info)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", instance, err)
	}
	a.servers[instance] = server
	if a.config.Logger != nil {
		a.config.Logger.Debug("advertising", "instance", instance, "port", port)
	}
	return nil
}

// Stop implements Advertiser.
func (a *MDNSAdvertiser) Stop(instance string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[instance]
	if !exists {
		return ErrNotFound
	}
	server.Shutdown()
	delete(a.servers, instance)
	return nil
}

// StopAll implements Advertiser.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for instance, server := range a.servers {
		server.Shutdown()
		delete(a.servers, instance)
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse implements Browser. Entries for the same instance seen on
// several interfaces are merged into one Service.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		agg := newAggregator()

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc, isNew := agg.add(fromZeroconf(entry))
				if svc == nil {
					b.debugLog("ignoring entry", "instance", entry.Instance)
					continue
				}
				if !isNew {
					continue
				}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				agg.remove(fromZeroconf(entry))

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...); err != nil {
			b.debugLog("browse failed", "error", err)
		}
	}()

	return out, nil
}

func (b *MDNSBrowser) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}

// Collect gathers every service a browser reports until ctx is done.
func Collect(ctx context.Context, b Browser) ([]*Service, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Service
	for svc := range results {
		out = append(out, svc)
	}
	return out, nil
}

// aggregator merges entries by instance name.
type aggregator struct {
	services map[string]*Service
}

func newAggregator() *aggregator {
	return &aggregator{services: make(map[string]*Service)}
}

// add returns the service for e and whether it was seen for the first
// time. Entries with an invalid TXT record return nil.
func (a *aggregator) add(e ServiceEntry) (*Service, bool) {
	if existing, found := a.services[e.Instance]; found {
		existing.Addrs = mergeAddresses(existing.Addrs, e.Addrs)
		return existing, false
	}
	svc, err := e.ToService()
	if err != nil {
		return nil, false
	}
	a.services[e.Instance] = svc
	return svc, true
}

// remove drops the addresses of e and forgets services without addresses.
func (a *aggregator) remove(e ServiceEntry) {
	existing, found := a.services[e.Instance]
	if !found {
		return
	}
	existing.Addrs = removeAddresses(existing.Addrs, e.Addrs)
	if len(existing.Addrs) == 0 {
		delete(a.services, e.Instance)
	}
}

func fromZeroconf(entry *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// interfaces returns the named interface, or nil for all interfaces.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range add {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses returns addresses without the ones in drop.
func removeAddresses(addresses, drop []string) []string {
	toRemove := make(map[string]bool, len(drop))
	for _, a := range drop {
		toRemove[a] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Browser    = (*MDNSBrowser)(nil)
)
