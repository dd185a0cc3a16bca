package bus

import (
	"context"
	"sort"
)

// Interface kinds used as keys in Groups.
const (
	KindPCI    = "pci"
	KindEth    = "eth"
	KindSerial = "serial"

	// KindAll asks a Scanner for every kind it supports.
	KindAll = "all"
)

// Groups maps an interface kind to the locators found for it,
// for example {"eth": ["udp/192.168.1.3"], "serial": ["/dev/ttyUSB0"]}.
type Groups map[string][]string

// NewGroups returns Groups with an empty list for every known kind.
func NewGroups() Groups {
	return Groups{KindPCI: {}, KindEth: {}, KindSerial: {}}
}

// Add appends locators under kind, skipping duplicates.
func (g Groups) Add(kind string, locators ...string) {
	seen := make(map[string]bool, len(g[kind]))
	for _, l := range g[kind] {
		seen[l] = true
	}
	for _, l := range locators {
		if !seen[l] {
			g[kind] = append(g[kind], l)
			seen[l] = true
		}
	}
	if g[kind] == nil {
		g[kind] = []string{}
	}
}

// Merge adds all locators of other into g.
func (g Groups) Merge(other Groups) {
	for kind, locs := range other {
		g.Add(kind, locs...)
	}
}

// Kinds returns the kinds in sorted order.
func (g Groups) Kinds() []string {
	kinds := make([]string, 0, len(g))
	for k := range g {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Scanner finds devices reachable by this host.
// kind is one of the Kind constants or KindAll.
type Scanner interface {
	Scan(ctx context.Context, kind string) (Groups, error)
}
