package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults.
const (
	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff = 50 * time.Millisecond

	// MaxBackoff caps the wait between attempts.
	MaxBackoff = 2 * time.Second

	// BackoffMultiplier is the growth factor from one wait to the next.
	BackoffMultiplier = 2.0

	// JitterFactor is the largest jitter as a fraction of the base wait.
	JitterFactor = 0.25
)

// Config customizes backoff parameters. Zero values select the defaults.
type Config struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultConfig returns the default backoff parameters.
func DefaultConfig() Config {
	return Config{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

func (c Config) normalize() Config {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Backoff maps the number of a failed attempt to the wait before the
// next one. It holds no per-loop state, so one Backoff can serve every
// device opened on a socket.
type Backoff struct {
	config Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a Backoff from cfg.
func NewBackoff(cfg Config) *Backoff {
	return &Backoff{
		config: cfg.normalize(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Config returns the effective parameters.
func (b *Backoff) Config() Config {
	return b.config
}

// Base returns the wait after failed attempt n (counting from 1)
// without jitter: Initial * Multiplier^(n-1), capped at Max.
func (b *Backoff) Base(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(n-1))
	if d >= float64(b.config.Max) {
		return b.config.Max
	}
	return time.Duration(d)
}

// Delay returns Base(n) plus up to Jitter of it.
func (b *Backoff) Delay(n int) time.Duration {
	d := b.Base(n)
	if b.config.Jitter <= 0 || d == 0 {
		return d
	}
	b.mu.Lock()
	f := b.rng.Float64()
	b.mu.Unlock()
	return d + time.Duration(float64(d)*b.config.Jitter*f)
}

// Budget returns the longest total wait a loop of the given number of
// attempts can spend between them.
func (b *Backoff) Budget(attempts int) time.Duration {
	var total time.Duration
	for n := 1; n < attempts; n++ {
		d := b.Base(n)
		total += d + time.Duration(float64(d)*b.config.Jitter)
	}
	return total
}
