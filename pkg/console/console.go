package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tarm/serial"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
)

// Defaults.
const (
	DefaultBaud    = 115200
	DefaultTimeout = time.Second
)

// Errors.
var (
	// ErrEcho indicates the console did not echo the command back.
	ErrEcho = errors.New("console: command echo mismatch")

	// ErrResponse indicates a reply line that could not be parsed.
	ErrResponse = errors.New("console: malformed response")

	// ErrCommand indicates the console reported a failed command.
	ErrCommand = errors.New("console: command failed")

	// ErrNotOpen is returned when a Bridge is used before Open.
	ErrNotOpen = errors.New("console: bridge not open")
)

// Opener connects to the console named by locator.
type Opener func(ctx context.Context, locator string) (io.ReadWriteCloser, error)

// Config configures a Bridge.
type Config struct {
	// Open connects to the console (default: serial port at Baud).
	Open Opener

	// Baud is the serial line rate used by the default opener.
	Baud int

	// Timeout bounds each read of a reply line on the serial port.
	Timeout time.Duration

	// CheckWrites makes Write fail when the console reports an error
	// or does not echo the command.
	CheckWrites bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Bridge is a bus.Driver that talks to a console.
type Bridge struct {
	bus.Unsupported

	config Config

	mu   sync.Mutex
	conn io.ReadWriteCloser
	r    *bufio.Reader
}

// New creates a Bridge. Call Open before use.
func New(config Config) *Bridge {
	if config.Baud <= 0 {
		config.Baud = DefaultBaud
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Open == nil {
		config.Open = serialOpener(config.Baud, config.Timeout)
	}
	return &Bridge{config: config}
}

func serialOpener(baud int, timeout time.Duration) Opener {
	return func(_ context.Context, locator string) (io.ReadWriteCloser, error) {
		port, err := serial.OpenPort(&serial.Config{
			Name:        locator,
			Baud:        baud,
			ReadTimeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}

// Open connects to the console at locator, for example "/dev/ttyUSB0".
func (b *Bridge) Open(ctx context.Context, locator string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return fmt.Errorf("console: %s already open", locator)
	}
	conn, err := b.config.Open(ctx, locator)
	if err != nil {
		return fmt.Errorf("console: open %s: %w", locator, err)
	}
	b.conn = conn
	b.r = bufio.NewReader(conn)
	b.debugLog("console opened", "locator", locator)
	return nil
}

// Close releases the console. It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn, b.r = nil, nil
	return err
}

// Read issues "wb read" and returns the low width bytes of the reply.
// The bar is ignored.
func (b *Bridge) Read(ctx context.Context, _ int, offset uint64, width int) (uint64, error) {
	if err := bus.ValidWidth(width); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cmd := fmt.Sprintf("wb read 0x%X", offset)
	if err := b.command(ctx, cmd, true); err != nil {
		return 0, err
	}
	line, err := b.line(ctx)
	if err != nil {
		return 0, err
	}
	v, err := parseValue(line)
	if err != nil {
		return 0, fmt.Errorf("%w: read 0x%X: %q", ErrResponse, offset, line)
	}
	return v & (1<<(8*width) - 1), nil
}

// Write issues "wb write". The bar is ignored.
func (b *Bridge) Write(ctx context.Context, _ int, offset uint64, width int, value uint64) error {
	if err := bus.ValidWidth(width); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	value &= 1<<(8*width) - 1
	cmd := fmt.Sprintf("wb write 0x%X 0x%X", offset, value)
	if err := b.command(ctx, cmd, b.config.CheckWrites); err != nil {
		return err
	}
	status, err := b.line(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(status, "Error") {
		return nil
	}
	expected, err := b.line(ctx)
	if err != nil {
		return fmt.Errorf("write 0x%X: error report: %w", offset, err)
	}
	found, err := b.line(ctx)
	if err != nil {
		return fmt.Errorf("write 0x%X: error report: %w", offset, err)
	}
	if !b.config.CheckWrites {
		b.debugLog("console write error ignored", "offset", offset, "status", status)
		return nil
	}
	return fmt.Errorf("%w: write 0x%X: %s, %s", ErrCommand, offset, expected, found)
}

// command sends cmd and consumes its echo.
func (b *Bridge) command(ctx context.Context, cmd string, checkEcho bool) error {
	if b.conn == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.WriteString(b.conn, cmd+"\r"); err != nil {
		return fmt.Errorf("console: send %q: %w", cmd, err)
	}
	b.debugLog("console send", "cmd", cmd)

	echo, err := b.line(ctx)
	if err != nil {
		return err
	}
	if checkEcho && !strings.HasSuffix(echo, cmd) {
		return fmt.Errorf("%w: sent %q, got %q", ErrEcho, cmd, echo)
	}
	return nil
}

// line reads one reply line with control characters and ANSI escapes removed.
func (b *Bridge) line(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := b.r.ReadString('\n')
	if err != nil && (raw == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("console: receive: %w", err)
	}
	return Clean(raw), nil
}

// Clean strips ANSI escape sequences, control characters and surrounding
// space from a console line.
func Clean(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x1B {
			i = skipEscape(s, i)
			continue
		}
		if c < 0x20 || c == 0x7F {
			continue
		}
		sb.WriteByte(c)
	}
	return strings.TrimFunc(sb.String(), unicode.IsSpace)
}

// skipEscape returns the index of the last byte of the escape at s[i].
func skipEscape(s string, i int) int {
	if i+1 >= len(s) || s[i+1] != '[' {
		return i
	}
	for j := i + 2; j < len(s); j++ {
		if s[j] >= 0x40 && s[j] <= 0x7E {
			return j
		}
	}
	return len(s) - 1
}

// parseValue takes the last field of the line as a number in Go syntax.
func parseValue(line string) (uint64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, ErrResponse
	}
	return strconv.ParseUint(fields[len(fields)-1], 0, 64)
}

func (b *Bridge) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}

var _ bus.Driver = (*Bridge)(nil)
