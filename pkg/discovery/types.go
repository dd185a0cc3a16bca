package discovery

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/wishbone-tools/etherbone-go/pkg/etherbone"
)

// mDNS constants.
const (
	// ServiceType is the DNS-SD service type of Etherbone devices.
	ServiceType = "_etherbone._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyWidths = "widths"
	TXTKeyEndian = "endian"
	TXTKeySDB    = "sdb"
	TXTKeyName   = "name"
)

// Timing constants.
const (
	// BrowseTimeout is the default duration of a scan.
	BrowseTimeout = 3 * time.Second

	// ProbeTimeout is the default reply timeout of a subnet probe.
	ProbeTimeout = 200 * time.Millisecond
)

// Errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrEmptyInstanceName   = errors.New("empty instance name")
	ErrNotFound            = errors.New("service not found")
	ErrPrefixTooLarge      = errors.New("subnet too large to probe")
)

// DeviceInfo is the TXT record content of an advertised device.
type DeviceInfo struct {
	Name   string
	Widths uint8
	Endian string

	// SDBRoot is the SDB table address; HasSDB reports whether it is set.
	SDBRoot uint64
	HasSDB  bool
}

// Service is a discovered device.
type Service struct {
	Instance string
	Host     string
	Port     uint16
	Addrs    []string
	Info     DeviceInfo
}

// Locator returns an Etherbone locator for the service, preferring an
// IPv4 address over IPv6 and the host name.
func (s *Service) Locator() string {
	host := strings.TrimSuffix(s.Host, ".")
	for _, a := range s.Addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return etherbone.FormatLocator(a, int(s.Port))
		}
	}
	if len(s.Addrs) > 0 {
		return etherbone.FormatLocator(s.Addrs[0], int(s.Port))
	}
	return etherbone.FormatLocator(host, int(s.Port))
}

// ServiceEntry is a raw mDNS result, decoupled from the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToService decodes the TXT record of the entry.
func (e *ServiceEntry) ToService() (*Service, error) {
	info, err := DecodeDeviceTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	return &Service{
		Instance: e.Instance,
		Host:     e.Host,
		Port:     e.Port,
		Addrs:    append([]string(nil), e.Addrs...),
		Info:     *info,
	}, nil
}
