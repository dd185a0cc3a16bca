// Command eb-sim runs a simulated Etherbone device on UDP.
//
// The device serves a sparse memory that can be preloaded from a raw
// image or a built-in demo SDB tree, and optionally advertises itself
// over mDNS.
//
// Usage:
//
//	eb-sim [flags]
//
// Flags:
//
//	-listen string     UDP listen address (default ":60368")
//	-widths string     Address and data widths, e.g. "32/32" (default "32/32")
//	-endian string     Byte lane order: big or little (default "big")
//	-image string      Raw memory image to load
//	-image-addr uint   Address the image is loaded at
//	-demo              Load the demo SDB tree at address 0
//	-fault string      Faulting ranges, e.g. "0x1000-0x1fff,0x8000"
//	-advertise string  Advertise over mDNS under this instance name
//	-interface string  Network interface for mDNS
//	-log-level string  Log level: debug, info, warn, error
//
// Examples:
//
//	# Serve the demo tree and announce it
//	eb-sim -demo -advertise sim-1
//
//	# Serve a memory dump
//	eb-sim -image dump.bin -image-addr 0x10000
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/wishbone-tools/etherbone-go/internal/sdbtest"
	"github.com/wishbone-tools/etherbone-go/internal/simulator"
	"github.com/wishbone-tools/etherbone-go/pkg/config"
	"github.com/wishbone-tools/etherbone-go/pkg/discovery"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

var (
	listen    = flag.String("listen", fmt.Sprintf(":%d", wire.DefaultPort), "UDP listen address")
	widths    = flag.String("widths", "32/32", "Address and data widths in bits, e.g. 32/32 or 32,64/32")
	endian    = flag.String("endian", "big", "Byte lane order: big or little")
	image     = flag.String("image", "", "Raw memory image to load")
	imageAddr = flag.Uint64("image-addr", 0, "Address the image is loaded at")
	demo      = flag.Bool("demo", false, "Load the demo SDB tree at address 0")
	faults    = flag.String("fault", "", "Comma-separated faulting ranges (first-last or single address)")
	advertise = flag.String("advertise", "", "Advertise over mDNS under this instance name")
	iface     = flag.String("interface", "", "Network interface for mDNS")
	logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(0)

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		stdlog.Fatalf("Invalid log level: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	w, err := parseWidths(*widths)
	if err != nil {
		stdlog.Fatalf("Invalid widths: %v", err)
	}
	e, order, err := parseEndian(*endian)
	if err != nil {
		stdlog.Fatalf("Invalid endian: %v", err)
	}
	ranges, err := parseFaults(*faults)
	if err != nil {
		stdlog.Fatalf("Invalid fault: %v", err)
	}

	sim, err := simulator.New(simulator.Config{
		Address: *listen,
		Widths:  w,
		Endian:  e,
		Logger:  logger,
	})
	if err != nil {
		stdlog.Fatalf("Failed to start simulator: %v", err)
	}

	if *demo {
		for _, seg := range sdbtest.Demo(order) {
			sim.Load(seg.Addr, seg.Data)
		}
		logger.Info("loaded demo SDB tree", "root", fmt.Sprintf("0x%x", sdbtest.DemoRoot))
	}
	if *image != "" {
		data, err := os.ReadFile(*image)
		if err != nil {
			stdlog.Fatalf("Failed to read image: %v", err)
		}
		sim.Load(*imageAddr, data)
		logger.Info("loaded image", "path", *image, "addr", fmt.Sprintf("0x%x", *imageAddr), "bytes", len(data))
	}
	for _, r := range ranges {
		sim.AddFault(r.First, r.Last)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sim.Start()
	logger.Info("simulator listening", "addr", sim.Addr().String(), "widths", fmt.Sprintf("%02x", w))

	if *advertise != "" {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: *iface,
			TTL:       discovery.DefaultAdvertiserConfig().TTL,
			Logger:    logger,
		})
		info := &discovery.DeviceInfo{Name: *advertise, Widths: w, Endian: *endian}
		if *demo {
			info.SDBRoot, info.HasSDB = sdbtest.DemoRoot, true
		}
		if err := adv.Advertise(ctx, *advertise, sim.Port(), info); err != nil {
			stdlog.Fatalf("Failed to advertise: %v", err)
		}
		defer adv.StopAll()
		logger.Info("advertising", "instance", *advertise, "service", discovery.ServiceType)
	}

	<-ctx.Done()

	st := sim.Stats()
	logger.Info("shutting down",
		"packets", st.Packets, "probes", st.Probes, "reads", st.Reads,
		"writes", st.Writes, "faults", st.Faults, "dropped", st.Dropped)
	if err := sim.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
}

// parseWidths reads "addr/data" where each side is a comma-separated
// list of bit widths.
func parseWidths(s string) (uint8, error) {
	a, d, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("%q: want addr/data", s)
	}
	am, err := widthMask(a)
	if err != nil {
		return 0, err
	}
	dm, err := widthMask(d)
	if err != nil {
		return 0, err
	}
	return am<<4 | dm, nil
}

func widthMask(s string) (uint8, error) {
	var m uint8
	for _, f := range strings.Split(s, ",") {
		switch strings.TrimSpace(f) {
		case "8":
			m |= 0x1
		case "16":
			m |= 0x2
		case "32":
			m |= 0x4
		case "64":
			m |= 0x8
		default:
			return 0, fmt.Errorf("unsupported width %q", f)
		}
	}
	return m, nil
}

func parseEndian(s string) (uint8, binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "big", "":
		return wire.EndianBig, binary.BigEndian, nil
	case "little":
		return wire.EndianLittle, binary.LittleEndian, nil
	}
	return 0, nil, fmt.Errorf("unknown endian %q", s)
}

func parseFaults(s string) ([]simulator.Range, error) {
	if s == "" {
		return nil, nil
	}
	var out []simulator.Range
	for _, f := range strings.Split(s, ",") {
		first, last, isRange := strings.Cut(strings.TrimSpace(f), "-")
		lo, err := strconv.ParseUint(first, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		hi := lo
		if isRange {
			if hi, err = strconv.ParseUint(last, 0, 64); err != nil {
				return nil, fmt.Errorf("%q: %w", f, err)
			}
		}
		if hi < lo {
			return nil, fmt.Errorf("%q: end before start", f)
		}
		out = append(out, simulator.Range{First: lo, Last: hi})
	}
	return out, nil
}
