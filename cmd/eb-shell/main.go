// Command eb-shell is an interactive shell for Wishbone bus access over
// Etherbone or a serial console.
//
// Usage:
//
//	eb-shell [flags] [locator]
//
// Flags:
//
//	-config string        Configuration file path
//	-device string        Device name from the configuration file
//	-sdb uint             Default SDB table address
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Write a protocol capture to this file
//	-x string             Execute commands separated by ';' and exit
//
// Examples:
//
//	# Open a board and print its SDB tree
//	eb-shell -x "sdb" udp/192.168.1.30
//
//	# Talk to a serial console
//	eb-shell /dev/ttyUSB0
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wishbone-tools/etherbone-go/cmd/eb-shell/interactive"
	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/config"
	"github.com/wishbone-tools/etherbone-go/pkg/console"
	"github.com/wishbone-tools/etherbone-go/pkg/discovery"
	"github.com/wishbone-tools/etherbone-go/pkg/etherbone"
	"github.com/wishbone-tools/etherbone-go/pkg/log"
)

var (
	configFile  = flag.String("config", "", "Configuration file path")
	deviceName  = flag.String("device", "", "Device name from the configuration file")
	sdbRoot     = flag.Uint64("sdb", 0, "Default SDB table address")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (default from config)")
	protocolLog = flag.String("protocol-log", "", "Write a protocol capture to this file (default from config)")
	execute     = flag.String("x", "", "Execute commands separated by ';' and exit")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(0)

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			stdlog.Fatalf("Invalid configuration: %v", err)
		}
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *protocolLog != "" {
		cfg.Log.ProtocolLog = *protocolLog
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		stdlog.Fatalf("Invalid log level: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var capture *log.FileLogger
	if cfg.Log.ProtocolLog != "" {
		capture, err = log.NewFileLogger(cfg.Log.ProtocolLog)
		if err != nil {
			stdlog.Fatalf("Failed to open protocol log: %v", err)
		}
		defer capture.Close()
	}

	locator := flag.Arg(0)
	dev := config.DeviceConfig{Locator: locator}
	if *deviceName != "" {
		d, ok := cfg.Device(*deviceName)
		if !ok {
			stdlog.Fatalf("Unknown device: %s", *deviceName)
		}
		dev = d
		if locator == "" {
			locator = d.Locator
		}
	}

	var sinks []log.Logger
	if capture != nil {
		sinks = append(sinks, capture)
	}
	if level <= slog.LevelDebug {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	var protocol log.Logger
	if len(sinks) > 0 {
		protocol = log.NewMultiLogger(sinks...)
	}

	newDriver := func(loc string) bus.Driver {
		if isConsole(loc) {
			return console.New(console.Config{Logger: debugLogger(logger, level)})
		}
		d := dev
		d.Locator = loc
		dc := cfg.DriverConfig(d)
		dc.Socket.Logger = debugLogger(logger, level)
		dc.Socket.ProtocolLogger = protocol
		return etherbone.NewDriver(dc)
	}

	shell := interactive.New(interactive.Config{
		NewDriver: newDriver,
		Scanner:   scanner(cfg),
		SDBRoot:   *sdbRoot,
	}, os.Stdout)
	defer shell.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if locator != "" {
		shell.Exec(ctx, "open "+locator)
	}

	if *execute != "" {
		for _, line := range strings.Split(*execute, ";") {
			if !shell.Exec(ctx, line) {
				break
			}
		}
		return
	}

	if err := shell.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// isConsole reports whether locator names a serial device rather than
// an Etherbone address.
func isConsole(locator string) bool {
	return strings.HasPrefix(locator, "/dev/") || strings.HasPrefix(locator, "./")
}

func debugLogger(l *slog.Logger, level slog.Level) *slog.Logger {
	if level > slog.LevelDebug {
		return nil
	}
	return l
}

func scanner(cfg *config.Config) bus.Scanner {
	s := discovery.MultiScanner{
		&discovery.StaticScanner{Groups: bus.Groups(cfg.Discovery.Static)},
		&discovery.SerialScanner{},
		&discovery.PCIScanner{},
		&discovery.MDNSScanner{
			Browser: discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: cfg.Discovery.Interface}),
			Timeout: cfg.Discovery.Timeout.Std(),
		},
	}
	for _, d := range cfg.Devices {
		s = append(s, &discovery.StaticScanner{Groups: bus.Groups{bus.KindEth: {d.Locator}}})
	}
	return s
}
