// Package cmd implements the eb-discover CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/config"
	"github.com/wishbone-tools/etherbone-go/pkg/discovery"
)

// Version is set at build time.
var Version = "0.1.0"

// options holds the global and scan flags.
type options struct {
	output     string
	configPath string
	verbose    bool

	timeout   time.Duration
	iface     string
	noMDNS    bool
	subnet    string
	port      int
	serial    []string
	pciRoot   string
	pciVendor uint16
	pciDevice uint16
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "eb-discover [pci|eth|serial|all]",
		Short: "List reachable Wishbone bus devices",
		Long: `eb-discover looks for devices that can be opened as a Wishbone bus:

  eth     Etherbone devices advertised over mDNS (_etherbone._udp),
          listed in the config file, or answering probes on a subnet
  serial  USB serial consoles (/dev/ttyUSB*, /dev/ttyACM*)
  pci     PCI carrier boards found in sysfs

Locators are printed grouped by kind and can be passed to eb-shell.`,
		Version:      Version,
		SilenceUsage: true,
		Args:         cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:    []string{bus.KindPCI, bus.KindEth, bus.KindSerial, bus.KindAll},
		RunE: func(c *cobra.Command, args []string) error {
			kind := bus.KindAll
			if len(args) == 1 {
				kind = args[0]
			}
			return runScan(c.Context(), c.OutOrStdout(), opts, kind)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format: table, json, yaml")
	pf.StringVarP(&opts.configPath, "config", "c", "", "Configuration file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log discovery details to stderr")
	pf.DurationVarP(&opts.timeout, "timeout", "t", 0, "mDNS browse duration (default from config, 3s)")
	pf.StringVar(&opts.iface, "interface", "", "Network interface for mDNS")

	f := root.Flags()
	f.BoolVar(&opts.noMDNS, "no-mdns", false, "Skip the mDNS browse")
	f.StringVar(&opts.subnet, "subnet", "", "Probe every host of an IPv4 subnet, e.g. 192.168.1.0/24")
	f.IntVar(&opts.port, "port", 0, "UDP port for subnet probes (default 60368)")
	f.StringSliceVar(&opts.serial, "serial", nil, "Serial port glob patterns")
	f.StringVar(&opts.pciRoot, "pci-root", discovery.DefaultPCIRoot, "sysfs PCI device directory")
	f.Uint16Var(&opts.pciVendor, "pci-vendor", discovery.PCIVendorCERN, "PCI vendor ID")
	f.Uint16Var(&opts.pciDevice, "pci-device", discovery.PCIDeviceSPEC, "PCI device ID (0 matches any)")

	root.AddCommand(newBrowseCmd(opts))
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig returns the configuration file contents, or the defaults.
func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) browseTimeout(cfg *config.Config) time.Duration {
	if o.timeout > 0 {
		return o.timeout
	}
	return cfg.Discovery.Timeout.Std()
}

func (o *options) mdnsInterface(cfg *config.Config) string {
	if o.iface != "" {
		return o.iface
	}
	return cfg.Discovery.Interface
}

// buildScanner combines the scanners selected by the flags.
func buildScanner(o *options, cfg *config.Config) (discovery.MultiScanner, error) {
	scanners := discovery.MultiScanner{
		&discovery.StaticScanner{Groups: bus.Groups(cfg.Discovery.Static)},
		&discovery.SerialScanner{Patterns: o.serial},
		&discovery.PCIScanner{Root: o.pciRoot, Vendor: o.pciVendor, Device: o.pciDevice},
	}
	for _, d := range cfg.Devices {
		scanners = append(scanners, &discovery.StaticScanner{Groups: bus.Groups{bus.KindEth: {d.Locator}}})
	}
	if !o.noMDNS {
		scanners = append(scanners, &discovery.MDNSScanner{
			Browser: discovery.NewMDNSBrowser(discovery.BrowserConfig{
				Interface: o.mdnsInterface(cfg),
				Logger:    o.logger(),
			}),
			Timeout: o.browseTimeout(cfg),
		})
	}
	if o.subnet != "" {
		prefix, err := netip.ParsePrefix(o.subnet)
		if err != nil {
			return nil, fmt.Errorf("invalid subnet: %w", err)
		}
		scanners = append(scanners, &discovery.ProbeScanner{Prefix: prefix, Port: o.port})
	}
	return scanners, nil
}

func runScan(ctx context.Context, w io.Writer, o *options, kind string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	scanner, err := buildScanner(o, cfg)
	if err != nil {
		return err
	}
	groups, err := scanner.Scan(ctx, kind)
	if err != nil {
		return err
	}
	return writeGroups(w, o.output, groups)
}
