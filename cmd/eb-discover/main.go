// Command eb-discover lists the Etherbone, serial console and PCI devices
// reachable from this host.
package main

import (
	"os"

	"github.com/wishbone-tools/etherbone-go/cmd/eb-discover/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
