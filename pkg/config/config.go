// Package config loads the YAML configuration shared by the eb-* tools.
//
// Example:
//
//	socket:
//	  local_addr: ":0"
//	  addr_widths: [4, 8]
//	  data_widths: [4]
//	retry:
//	  initial: 50ms
//	  max: 2s
//	devices:
//	  - name: board
//	    locator: udp/192.168.1.30
//	    attempts: 3
//	    endian: big
//	    timeout: 500ms
//	log:
//	  level: debug
//	  protocol_log: /var/log/eb/capture.eblog
//	discovery:
//	  timeout: 3s
//	  static:
//	    eth: [udp/10.0.0.2]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wishbone-tools/etherbone-go/pkg/bus"
	"github.com/wishbone-tools/etherbone-go/pkg/etherbone"
	"github.com/wishbone-tools/etherbone-go/pkg/retry"
	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// Config is the top-level configuration.
type Config struct {
	Socket    SocketConfig    `yaml:"socket"`
	Retry     RetryConfig     `yaml:"retry"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// SocketConfig configures the local endpoint. Widths are in bytes.
type SocketConfig struct {
	LocalAddr  string `yaml:"local_addr"`
	AddrWidths []int  `yaml:"addr_widths,omitempty"`
	DataWidths []int  `yaml:"data_widths,omitempty"`
}

// RetryConfig configures the backoff between device open attempts.
type RetryConfig struct {
	Initial    Duration `yaml:"initial"`
	Max        Duration `yaml:"max"`
	Multiplier float64  `yaml:"multiplier"`
	Jitter     float64  `yaml:"jitter"`
}

// DeviceConfig names a remote device.
type DeviceConfig struct {
	Name              string   `yaml:"name"`
	Locator           string   `yaml:"locator"`
	Attempts          int      `yaml:"attempts,omitempty"`
	Endian            string   `yaml:"endian,omitempty"`
	Timeout           Duration `yaml:"timeout,omitempty"`
	SilentBlockWrites bool     `yaml:"silent_block_writes,omitempty"`
	MaxCycleOps       int      `yaml:"max_cycle_ops,omitempty"`
}

// LogConfig configures operational and protocol logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	ProtocolLog string `yaml:"protocol_log,omitempty"`
}

// DiscoveryConfig configures device discovery.
type DiscoveryConfig struct {
	Timeout   Duration            `yaml:"timeout"`
	Interface string              `yaml:"interface,omitempty"`
	Static    map[string][]string `yaml:"static,omitempty"`
}

// Duration is a time.Duration written as a string such as "1.5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	r := retry.DefaultConfig()
	return &Config{
		Socket: SocketConfig{LocalAddr: ":0"},
		Retry: RetryConfig{
			Initial:    Duration(r.Initial),
			Max:        Duration(r.Max),
			Multiplier: r.Multiplier,
			Jitter:     r.Jitter,
		},
		Log:       LogConfig{Level: "info"},
		Discovery: DiscoveryConfig{Timeout: Duration(3 * time.Second)},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if _, err := widthMask(c.Socket.AddrWidths); err != nil {
		errs = append(errs, fmt.Errorf("socket.addr_widths: %w", err))
	}
	if _, err := widthMask(c.Socket.DataWidths); err != nil {
		errs = append(errs, fmt.Errorf("socket.data_widths: %w", err))
	}

	if c.Retry.Initial < 0 || c.Retry.Max < 0 {
		errs = append(errs, errors.New("retry: negative delay"))
	}
	if c.Retry.Max > 0 && c.Retry.Initial > c.Retry.Max {
		errs = append(errs, errors.New("retry: initial exceeds max"))
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier: %v below 1", c.Retry.Multiplier))
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter: %v outside [0, 1]", c.Retry.Jitter))
	}

	names := make(map[string]bool)
	for i, d := range c.Devices {
		where := fmt.Sprintf("devices[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s: missing name", where))
		} else if names[d.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", where, d.Name))
		}
		names[d.Name] = true

		if _, _, err := etherbone.ParseLocator(d.Locator); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if _, err := endian(d.Endian); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if d.Attempts < 0 || d.MaxCycleOps < 0 || d.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s: negative attempts, max_cycle_ops or timeout", where))
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	for kind := range c.Discovery.Static {
		switch kind {
		case bus.KindPCI, bus.KindEth, bus.KindSerial:
		default:
			errs = append(errs, fmt.Errorf("discovery.static: unknown kind %q", kind))
		}
	}
	return errors.Join(errs...)
}

// Device returns the device with the given name.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// SocketConfig returns the etherbone socket configuration. The caller
// adds loggers.
func (c *Config) SocketConfig() etherbone.SocketConfig {
	addr, _ := widthMask(c.Socket.AddrWidths)
	data, _ := widthMask(c.Socket.DataWidths)
	return etherbone.SocketConfig{
		LocalAddr:  c.Socket.LocalAddr,
		AddrWidths: addr << 4,
		DataWidths: data,
		Retry: retry.Config{
			Initial:    c.Retry.Initial.Std(),
			Max:        c.Retry.Max.Std(),
			Multiplier: c.Retry.Multiplier,
			Jitter:     c.Retry.Jitter,
		},
	}
}

// DriverConfig returns the etherbone driver configuration for d.
func (c *Config) DriverConfig(d DeviceConfig) etherbone.DriverConfig {
	sc := c.SocketConfig()
	sc.Device = d.Etherbone()
	return etherbone.DriverConfig{
		Socket:            sc,
		Attempts:          d.Attempts,
		SilentBlockWrites: d.SilentBlockWrites,
	}
}

// Etherbone returns the etherbone device configuration.
func (d DeviceConfig) Etherbone() etherbone.DeviceConfig {
	e, _ := endian(d.Endian)
	return etherbone.DeviceConfig{
		Locator:     d.Locator,
		Attempts:    d.Attempts,
		Endian:      e,
		Timeout:     d.Timeout.Std(),
		MaxCycleOps: d.MaxCycleOps,
	}
}

// SlogLevel returns the configured log level, or info if it is invalid.
func (l LogConfig) SlogLevel() slog.Level {
	lvl, err := ParseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel parses debug, info, warn or error. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return lvl, nil
}

// widthMask converts byte widths to a low-nibble mask. Empty means 0.
func widthMask(widths []int) (uint8, error) {
	var m uint8
	for _, w := range widths {
		bit, ok := wire.WidthMask(w)
		if !ok {
			return 0, fmt.Errorf("width %d not in {1, 2, 4, 8}", w)
		}
		m |= bit
	}
	return m, nil
}

func endian(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "", "big":
		return wire.EndianBig, nil
	case "little":
		return wire.EndianLittle, nil
	default:
		return 0, fmt.Errorf("unknown endian %q", s)
	}
}
