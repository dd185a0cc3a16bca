package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
)

// fakeConsole answers wb commands the way the board firmware does,
// echoing each command behind a prompt and a color escape.
type fakeConsole struct {
	mem      map[uint64]uint64
	out      bytes.Buffer
	sent     []string
	badEcho  bool
	failAddr map[uint64]bool
	closed   bool
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{mem: make(map[uint64]uint64), failAddr: make(map[uint64]bool)}
}

func (f *fakeConsole) Write(p []byte) (int, error) {
	cmd := strings.TrimSuffix(string(p), "\r")
	f.sent = append(f.sent, cmd)

	echo := cmd
	if f.badEcho {
		echo = "garbage"
	}
	fmt.Fprintf(&f.out, "\x1b[1;32mwrc# \x1b[0m%s\r\n", echo)

	fields := strings.Fields(cmd)
	addr, _ := strconv.ParseUint(fields[2], 0, 64)
	switch fields[1] {
	case "read":
		fmt.Fprintf(&f.out, "0x%08x\r\n", f.mem[addr])
	case "write":
		if f.failAddr[addr] {
			fmt.Fprintf(&f.out, "Error: verify\r\nexpected %s\r\nfound 0x0\r\n", fields[3])
			return len(p), nil
		}
		v, _ := strconv.ParseUint(fields[3], 0, 64)
		f.mem[addr] = v
		fmt.Fprintf(&f.out, "ok\r\n")
	}
	return len(p), nil
}

func (f *fakeConsole) Read(p []byte) (int, error) {
	if f.out.Len() == 0 {
		return 0, io.EOF
	}
	return f.out.Read(p)
}

func (f *fakeConsole) Close() error {
	f.closed = true
	return nil
}

func openFake(t *testing.T, cfg Config) (*Bridge, *fakeConsole) {
	t.Helper()
	fake := newFakeConsole()
	cfg.Open = func(context.Context, string) (io.ReadWriteCloser, error) { return fake, nil }
	b := New(cfg)
	require.NoError(t, b.Open(context.Background(), "/dev/ttyUSB0"))
	t.Cleanup(func() { b.Close() })
	return b, fake
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	b, fake := openFake(t, Config{CheckWrites: true})

	require.NoError(t, b.Write(ctx, 0, 0x20800, 4, 0xDEADBEEF))
	assert.Equal(t, []string{"wb write 0x20800 0xDEADBEEF"}, fake.sent)

	v, err := b.Read(ctx, 0, 0x20800, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), v)
	assert.Equal(t, "wb read 0x20800", fake.sent[1])

	v, err = b.Read(ctx, 0, 0x20800, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xBEEF), v)
}

func TestWriteMasksValue(t *testing.T) {
	b, fake := openFake(t, Config{})

	require.NoError(t, b.Write(context.Background(), 0, 0x10, 1, 0x1234))
	assert.Equal(t, "wb write 0x10 0x34", fake.sent[0])
}

func TestBusHelpers(t *testing.T) {
	ctx := context.Background()
	b, _ := openFake(t, Config{})

	require.NoError(t, bus.Write32(ctx, b, 0x100, 0xCAFEBABE))
	v, err := bus.Read32(ctx, b, 0x100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), v)
}

func TestWriteErrorReport(t *testing.T) {
	ctx := context.Background()

	b, fake := openFake(t, Config{CheckWrites: true})
	fake.failAddr[0x40] = true
	err := b.Write(ctx, 0, 0x40, 4, 7)
	require.ErrorIs(t, err, ErrCommand)
	assert.Contains(t, err.Error(), "expected 0x7")

	lenient, fake2 := openFake(t, Config{})
	fake2.failAddr[0x40] = true
	assert.NoError(t, lenient.Write(ctx, 0, 0x40, 4, 7))

	// The error lines were consumed; the next read sees its own reply.
	fake2.mem[0x44] = 9
	v, err := lenient.Read(ctx, 0, 0x44, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)
}

func TestEchoMismatch(t *testing.T) {
	b, fake := openFake(t, Config{CheckWrites: true})
	fake.badEcho = true

	_, err := b.Read(context.Background(), 0, 0x0, 4)
	assert.ErrorIs(t, err, ErrEcho)
}

func TestMalformedResponse(t *testing.T) {
	fake := &scriptedConsole{reply: "wb read 0x0\r\nnot-a-number\r\n"}
	b := New(Config{Open: func(context.Context, string) (io.ReadWriteCloser, error) { return fake, nil }})
	require.NoError(t, b.Open(context.Background(), "x"))

	_, err := b.Read(context.Background(), 0, 0, 4)
	assert.ErrorIs(t, err, ErrResponse)
}

func TestTruncatedResponse(t *testing.T) {
	fake := &scriptedConsole{reply: "wb read 0x0\r\n"}
	b := New(Config{Open: func(context.Context, string) (io.ReadWriteCloser, error) { return fake, nil }})
	require.NoError(t, b.Open(context.Background(), "x"))

	_, err := b.Read(context.Background(), 0, 0, 4)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTruncatedErrorReport(t *testing.T) {
	for _, check := range []bool{true, false} {
		t.Run(fmt.Sprintf("check=%v", check), func(t *testing.T) {
			fake := &scriptedConsole{reply: "wb write 0x40 0x7\r\nError: verify\r\nexpected 0x7\r\n"}
			b := New(Config{
				Open:        func(context.Context, string) (io.ReadWriteCloser, error) { return fake, nil },
				CheckWrites: check,
			})
			require.NoError(t, b.Open(context.Background(), "x"))

			err := b.Write(context.Background(), 0, 0x40, 4, 7)
			require.Error(t, err)
			assert.ErrorIs(t, err, io.EOF)
			assert.NotErrorIs(t, err, ErrCommand)
		})
	}
}

type scriptedConsole struct {
	reply string
	r     *strings.Reader
}

func (s *scriptedConsole) Write(p []byte) (int, error) {
	s.r = strings.NewReader(s.reply)
	return len(p), nil
}

func (s *scriptedConsole) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *scriptedConsole) Close() error               { return nil }

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeConsole()
	b := New(Config{Open: func(context.Context, string) (io.ReadWriteCloser, error) { return fake, nil }})

	_, err := b.Read(ctx, 0, 0, 4)
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, b.Open(ctx, "/dev/ttyUSB0"))
	assert.Error(t, b.Open(ctx, "/dev/ttyUSB0"))

	require.NoError(t, b.Close())
	assert.True(t, fake.closed)
	require.NoError(t, b.Close())

	_, err = b.BlockRead(ctx, 0, 0, 16, 4)
	assert.ErrorIs(t, err, bus.ErrNotSupported)
}

func TestOpenError(t *testing.T) {
	boom := errors.New("no such port")
	b := New(Config{Open: func(context.Context, string) (io.ReadWriteCloser, error) { return nil, boom }})
	assert.ErrorIs(t, b.Open(context.Background(), "/dev/ttyUSB9"), boom)
}

func TestInvalidWidth(t *testing.T) {
	b, fake := openFake(t, Config{})
	_, err := b.Read(context.Background(), 0, 0, 3)
	assert.ErrorIs(t, err, bus.ErrInvalidWidth)
	assert.ErrorIs(t, b.Write(context.Background(), 0, 0, 8, 0), bus.ErrInvalidWidth)
	assert.Empty(t, fake.sent)
}

func TestCancelledContext(t *testing.T) {
	b, fake := openFake(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Read(ctx, 0, 0, 4)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.sent)
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"\x1b[1;32mwrc# \x1b[0mwb read 0x0\r\n": "wrc# wb read 0x0",
		"  0x1234\r\n":                         "0x1234",
		"a\x07b\x7fc":                          "abc",
		"\x1b":                                 "",
		"\x1b[12":                              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Clean(in), "Clean(%q)", in)
	}
}
