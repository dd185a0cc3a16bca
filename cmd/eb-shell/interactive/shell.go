// Package interactive provides the eb-shell command loop.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
)

var (
	errFmt   = color.New(color.FgRed, color.Bold).SprintFunc()
	okFmt    = color.New(color.FgGreen).SprintFunc()
	addrFmt  = color.New(color.FgCyan).SprintFunc()
	titleFmt = color.New(color.FgYellow, color.Bold).SprintFunc()
	dimFmt   = color.New(color.Faint).SprintFunc()
)

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// DriverFactory returns an unopened driver for locator.
type DriverFactory func(locator string) bus.Driver

// Config configures a Shell.
type Config struct {
	// NewDriver picks the driver for a locator.
	NewDriver DriverFactory

	// Scanner serves the discover command (optional).
	Scanner bus.Scanner

	// SDBRoot is the default SDB table address.
	SDBRoot uint64
}

// Shell executes bus commands against one open device.
type Shell struct {
	config Config
	out    io.Writer

	drv     bus.Driver
	locator string
	sdbRoot uint64
}

// New creates a Shell writing to out.
func New(config Config, out io.Writer) *Shell {
	return &Shell{config: config, out: out, sdbRoot: config.SDBRoot}
}

// Locator returns the locator of the open device, or "".
func (s *Shell) Locator() string {
	return s.locator
}

// Close closes the open device.
func (s *Shell) Close() error {
	if s.drv == nil {
		return nil
	}
	err := s.drv.Close()
	s.drv, s.locator = nil, ""
	return err
}

// Exec runs one command line. It returns false when the shell should exit.
// Command errors are printed, not returned.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "open", "o":
		err = s.cmdOpen(ctx, args)
	case "close":
		err = s.cmdClose()
	case "read", "r":
		err = s.cmdRead(ctx, args)
	case "write", "w":
		err = s.cmdWrite(ctx, args)
	case "dump", "d":
		err = s.cmdDump(ctx, args)
	case "fill":
		err = s.cmdFill(ctx, args)
	case "load":
		err = s.cmdLoad(ctx, args)
	case "crc":
		err = s.cmdCRC(args)
	case "sdb":
		err = s.cmdSDB(ctx, args)
	case "find", "f":
		err = s.cmdFind(ctx, args)
	case "selftest":
		err = s.cmdSelfTest(ctx, args)
	case "discover", "scan":
		err = s.cmdDiscover(ctx, args)
	case "quit", "exit", "q":
		err = errQuit
	default:
		err = fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}

	if errors.Is(err, errQuit) {
		return false
	}
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", errFmt("error:"), err)
	}
	return true
}

// Run reads commands with readline until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.out = rl.Stdout()

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.setPrompt(rl)
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if !s.Exec(ctx, line) {
			return nil
		}
	}
}

func (s *Shell) setPrompt(rl *readline.Instance) {
	if s.locator == "" {
		rl.SetPrompt("eb> ")
		return
	}
	rl.SetPrompt(fmt.Sprintf("eb %s> ", s.locator))
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("open"),
		readline.PcItem("close"),
		readline.PcItem("read"),
		readline.PcItem("write"),
		readline.PcItem("dump"),
		readline.PcItem("fill"),
		readline.PcItem("load"),
		readline.PcItem("crc", readline.PcItem("reset")),
		readline.PcItem("sdb"),
		readline.PcItem("find"),
		readline.PcItem("selftest"),
		readline.PcItem("discover",
			readline.PcItem(bus.KindEth),
			readline.PcItem(bus.KindSerial),
			readline.PcItem(bus.KindPCI),
			readline.PcItem(bus.KindAll),
		),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Etherbone Shell Commands:
  Connection:
    open <locator>              - Open udp/host[/port] or a serial console path
    close                       - Close the device
    discover [kind]             - List devices (eth, serial, pci, all)

  Register access (addresses and values accept 0x, 0o, 0b prefixes):
    read <addr> [width]         - Read 1, 2 or 4 bytes (default 4)
    write <addr> <val> [width]  - Write 1, 2 or 4 bytes (default 4)
    dump <addr> <words> [stride]- Block read
    fill <addr> <words> <val>   - Block write a constant
    load <file> <addr>          - Block write a big-endian binary file
    crc [reset]                 - Show or reset the running block write CRC

  Self-describing bus:
    sdb [root]                  - Print the SDB tree
    find <vendor> <device>      - Find devices by vendor and device ID

  Diagnostics:
    selftest [endpoint] [ram]   - Check register and block access

  Other:
    help                        - Show this help
    quit                        - Exit`)
}
