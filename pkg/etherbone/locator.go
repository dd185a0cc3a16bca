package etherbone

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// Resolver turns a locator into the UDP address of a device.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (*net.UDPAddr, error)
}

// ParseLocator splits a locator into host and port.
//
// Accepted forms are "udp/host", "udp/host/port", "host:port" and "host".
// The port defaults to wire.DefaultPort.
func ParseLocator(locator string) (host string, port int, err error) {
	port = wire.DefaultPort
	rest := locator

	if i := strings.IndexByte(locator, '/'); i >= 0 {
		if locator[:i] != "udp" {
			return "", 0, fmt.Errorf("%w: %q", ErrBadLocator, locator)
		}
		parts := strings.Split(locator[i+1:], "/")
		switch len(parts) {
		case 1:
			host = parts[0]
		case 2:
			host = parts[0]
			if port, err = parsePort(parts[1]); err != nil {
				return "", 0, fmt.Errorf("%w: %q: %v", ErrBadLocator, locator, err)
			}
		default:
			return "", 0, fmt.Errorf("%w: %q", ErrBadLocator, locator)
		}
	} else if h, p, splitErr := net.SplitHostPort(rest); splitErr == nil {
		host = h
		if port, err = parsePort(p); err != nil {
			return "", 0, fmt.Errorf("%w: %q: %v", ErrBadLocator, locator, err)
		}
	} else {
		host = rest
	}

	if host == "" {
		return "", 0, fmt.Errorf("%w: %q: empty host", ErrBadLocator, locator)
	}
	return host, port, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}

// FormatLocator returns the canonical "udp/host/port" locator.
func FormatLocator(host string, port int) string {
	if port == 0 || port == wire.DefaultPort {
		return "udp/" + host
	}
	return fmt.Sprintf("udp/%s/%d", host, port)
}

// UDPResolver resolves locators with DNS.
type UDPResolver struct {
	// Resolver is used for host names. Nil means net.DefaultResolver.
	Resolver *net.Resolver
}

// Resolve implements Resolver. IPv4 addresses are preferred.
func (r *UDPResolver) Resolve(ctx context.Context, locator string) (*net.UDPAddr, error) {
	host, port, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); ip != nil {
		return &net.UDPAddr{IP: ip, Port: port}, nil
	}

	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %q", host)
	}
	pick := addrs[0]
	for _, a := range addrs {
		if a.IP.To4() != nil {
			pick = a
			break
		}
	}
	return &net.UDPAddr{IP: pick.IP, Port: port, Zone: pick.Zone}, nil
}

var _ Resolver = (*UDPResolver)(nil)
